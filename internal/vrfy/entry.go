// Package vrfy implements the address-verification cache engine: entry
// codec, cache policy, and service handler.
package vrfy

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is a tagged variant over the four allowed verification outcomes,
// making the status check in Parse exhaustive.
type Status int

const (
	StatusOK Status = iota
	StatusDefer
	StatusBounce
	StatusTodo
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusDefer:
		return "DEFER"
	case StatusBounce:
		return "BOUNCE"
	case StatusTodo:
		return "TODO"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus parses one of the four allowed status codes.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "OK":
		return StatusOK, true
	case "DEFER":
		return StatusDefer, true
	case "BOUNCE":
		return StatusBounce, true
	case "TODO":
		return StatusTodo, true
	default:
		return 0, false
	}
}

// Entry is one cache record.
type Entry struct {
	Status  Status
	Probed  int64 // wall-clock seconds of the last outstanding probe; 0 = none
	Updated int64 // wall-clock seconds of the last applied result; 0 = unknown
	Text    string
}

// Serialize produces the on-disk text "<status>:<probed>:<updated>:<text>".
// status, probed and updated are fixed-radix (base 10) decimals; Text is
// free-form and may itself contain ':', so only the first three colons are
// structural.
func (e Entry) Serialize() string {
	return fmt.Sprintf("%d:%d:%d:%s", int(e.Status), e.Probed, e.Updated, e.Text)
}

// Parse reverses Serialize, splitting only on the first three colons so
// that a ':' inside Text survives intact. It fails when any of the three
// leading fields is missing or status is not one of the four allowed codes.
func Parse(raw string) (Entry, error) {
	parts := splitN3(raw)
	if parts == nil {
		return Entry{}, fmt.Errorf("vrfy: malformed entry %q: missing field", raw)
	}

	statusCode, err := strconv.Atoi(parts[0])
	if err != nil {
		return Entry{}, fmt.Errorf("vrfy: malformed entry %q: bad status field: %w", raw, err)
	}
	status, ok := validStatus(statusCode)
	if !ok {
		return Entry{}, fmt.Errorf("vrfy: malformed entry %q: status code %d out of range", raw, statusCode)
	}
	probed, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("vrfy: malformed entry %q: bad probed field: %w", raw, err)
	}
	updated, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("vrfy: malformed entry %q: bad updated field: %w", raw, err)
	}

	return Entry{
		Status:  status,
		Probed:  probed,
		Updated: updated,
		Text:    parts[3],
	}, nil
}

func validStatus(code int) (Status, bool) {
	switch Status(code) {
	case StatusOK, StatusDefer, StatusBounce, StatusTodo:
		return Status(code), true
	default:
		return 0, false
	}
}

// splitN3 splits raw on its first three colons into exactly four parts,
// or returns nil if fewer than three colons are present.
func splitN3(raw string) []string {
	parts := make([]string, 0, 4)
	rest := raw
	for i := 0; i < 3; i++ {
		idx := strings.IndexByte(rest, ':')
		if idx < 0 {
			return nil
		}
		parts = append(parts, rest[:idx])
		rest = rest[idx+1:]
	}
	parts = append(parts, rest)
	return parts
}

// PeekStatus decimal-parses only the leading status field, a cheap
// fast-path for evaluating the protective-update rule without allocating a
// full parsed record.
func PeekStatus(raw string) (Status, bool) {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return 0, false
	}
	code, err := strconv.Atoi(raw[:idx])
	if err != nil {
		return 0, false
	}
	return validStatus(code)
}
