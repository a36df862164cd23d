// Package proxymap is the table-proxy engine: a gatekept, handle-sharing
// lookup multiplexer that enforces a static allow-list, deduplicates open
// handles keyed by (table-reference, open-flags), and serves OPEN/LOOKUP
// requests over an attrproto stream.
package proxymap

import "strings"

// Allowlist is the immutable, process-lifetime set of canonical "type:name"
// table references the proxy is permitted to open.
type Allowlist struct {
	set map[string]bool
}

// NewAllowlist tokenizes proxyReadMaps on whitespace, strips all leading
// "proxy:" prefixes off each token, and keeps tokens that still carry an
// inner ":" separating type from name. Tokens that never carried a "proxy:"
// prefix are discarded outright: they name a map the proxy daemon is not
// meant to serve at all.
func NewAllowlist(proxyReadMaps string) *Allowlist {
	a := &Allowlist{set: make(map[string]bool)}
	for _, token := range strings.Fields(proxyReadMaps) {
		canonical, ok := canonicalize(token)
		if !ok {
			continue
		}
		a.set[canonical] = true
	}
	return a
}

// canonicalize strips every leading "proxy:" prefix from ref and reports
// whether the remainder still contains a type:name separator. A token with
// no "proxy:" prefix at all is rejected (ok=false) by the caller that
// builds the allow-list, since only proxy: references are eligible;
// Allowed, called per-request, needs the same stripping logic regardless
// of whether the original reference was proxy-prefixed.
func canonicalize(ref string) (string, bool) {
	rest := ref
	stripped := false
	for strings.HasPrefix(rest, "proxy:") {
		rest = rest[len("proxy:"):]
		stripped = true
	}
	if !stripped {
		return "", false
	}
	if !strings.Contains(rest, ":") {
		return "", false
	}
	return rest, true
}

// Allowed reports whether ref (a raw, possibly proxy:-prefixed reference)
// resolves to a canonical form present in the allow-list. malformed is true
// when ref has no inner ":" after stripping, which is PROXY_STAT_BAD, not
// DENY.
func (a *Allowlist) Allowed(ref string) (canonical string, allowed bool, malformed bool) {
	rest := ref
	for strings.HasPrefix(rest, "proxy:") {
		rest = rest[len("proxy:"):]
	}
	if !strings.Contains(rest, ":") {
		return "", false, true
	}
	return rest, a.set[rest], false
}
