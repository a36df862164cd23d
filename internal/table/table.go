// Package table is the pluggable key-value lookup-table abstraction that
// both daemons are built against: open(ref, flags), get(key), put(key,
// value), del(key), and a changed() signal, the same shape Postfix's own
// generic lookup tables (hash, DB-file, SQL, LDAP) expose.
package table

import "fmt"

// Result classifies the outcome of a Get.
type Result int

const (
	// ResultOK means the key was found; Get's value is meaningful.
	ResultOK Result = iota
	// ResultNoKey means the key does not exist. Not an error.
	ResultNoKey
	// ResultRetry means a transient backend failure occurred; the caller
	// may retry.
	ResultRetry
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultNoKey:
		return "NOKEY"
	case ResultRetry:
		return "RETRY"
	default:
		return "UNKNOWN"
	}
}

// Flag bits accepted by Open, modeled on the O_* open flags a real
// lookup-table client would pass through (read-only vs read-write).
const (
	FlagReadOnly  = 1 << 0
	FlagReadWrite = 1 << 1
	FlagCreate    = 1 << 2
)

// Table is a single open handle onto a backing key-value store.
type Table interface {
	// Get looks up key. value is only meaningful when result == ResultOK.
	Get(key string) (value string, result Result)
	Put(key, value string) error
	Del(key string) error
	// Flags reports the capability flags Open negotiated, echoed back to
	// the proxy's OPEN reply.
	Flags() int
	// Changed reports whether the backing data has mutated on disk since
	// Open, the signal polled before accepting a connection.
	Changed() bool
	// Close releases any resources. Neither daemon calls this (handles
	// live for the process lifetime); tests do.
	Close() error
}

// OpenFunc constructs a Table for the name half of a "type:name" reference.
type OpenFunc func(name string, flags int) (Table, error)

var registry = map[string]OpenFunc{}

// Register installs an OpenFunc for a table type keyword (e.g. "hash",
// "bbolt", "dns"). Intended to be called from package init() in each
// backend's file, the way database/sql drivers register themselves.
func Register(kind string, fn OpenFunc) {
	registry[kind] = fn
}

// Open resolves a canonical "type:name" reference to an open Table.
func Open(ref string, flags int) (Table, error) {
	kind, name, ok := splitRef(ref)
	if !ok {
		return nil, fmt.Errorf("table: malformed reference %q", ref)
	}
	fn, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("table: unknown table type %q", kind)
	}
	t, err := fn(name, flags)
	if err != nil {
		return nil, fmt.Errorf("table: opening %s: %w", ref, err)
	}
	if t == nil {
		return nil, fmt.Errorf("table: open(%s) returned a nil handle", ref)
	}
	return t, nil
}

func splitRef(ref string) (kind, name string, ok bool) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == ':' {
			return ref[:i], ref[i+1:], true
		}
	}
	return "", "", false
}
