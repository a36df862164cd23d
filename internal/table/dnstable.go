package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

func init() {
	Register("dns", openDNSTable)
}

// DNSTable is a read-only Table backed by DNS TXT-record lookups, the
// proxy's LDAP/SQL-adjacent "named lookup table" kind: key is a hostname,
// value is the first TXT record found for it.
type DNSTable struct {
	// server is the resolver to query, e.g. "127.0.0.1:53": the name half
	// of a "dns:resolver" reference, with ":53" appended when it carries
	// no ':'.
	server  string
	client  *dns.Client
	flags   int
	timeout time.Duration
}

func openDNSTable(name string, flags int) (Table, error) {
	server := name
	if !strings.Contains(server, ":") {
		server += ":53"
	}
	return &DNSTable{
		server:  server,
		client:  &dns.Client{Timeout: 3 * time.Second},
		flags:   flags | FlagReadOnly,
		timeout: 3 * time.Second,
	}, nil
}

func (d *DNSTable) Get(key string) (string, Result) {
	fqdn := dns.Fqdn(key)
	m := new(dns.Msg)
	m.SetQuestion(fqdn, dns.TypeTXT)
	m.RecursionDesired = true

	resp, _, err := d.client.Exchange(m, d.server)
	if err != nil {
		return "", ResultRetry
	}
	if resp.Rcode == dns.RcodeNameError {
		return "", ResultNoKey
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", ResultRetry
	}
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok && len(txt.Txt) > 0 {
			return strings.Join(txt.Txt, ""), ResultOK
		}
	}
	return "", ResultNoKey
}

// Put and Del are not supported: a DNS-backed table is read-only the way
// the proxy only ever performs lookups against it.
func (d *DNSTable) Put(key, value string) error {
	return fmt.Errorf("dns table: read-only, cannot put %q", key)
}

func (d *DNSTable) Del(key string) error {
	return fmt.Errorf("dns table: read-only, cannot delete %q", key)
}

func (d *DNSTable) Flags() int { return d.flags }

// Changed is always false: the proxy has no way to observe DNS zone
// changes short of re-querying, and re-querying is already what every
// lookup does.
func (d *DNSTable) Changed() bool { return false }

func (d *DNSTable) Close() error { return nil }
