package proxymap

import (
	"fmt"
	"sync"

	"github.com/athena-mta/verigate/internal/table"
)

// HandleCache deduplicates open table.Table handles by composite key
// "type:name:octal-flags". A handle is opened at most once per composite
// key and lives for the process lifetime: it is never closed explicitly,
// since the process exits via self-restart (internal/daemon) when the
// backing tables change on disk.
type HandleCache struct {
	mu      sync.Mutex
	handles map[string]table.Table
}

// NewHandleCache returns an empty cache.
func NewHandleCache() *HandleCache {
	return &HandleCache{handles: make(map[string]table.Table)}
}

func compositeKey(ref string, flags int) string {
	return fmt.Sprintf("%s:%o", ref, flags)
}

// Get returns the open handle for (ref, flags), opening it on first use. A
// backend that hands back a nil Table with a nil error is a fatal internal
// error and is reported as such rather than silently treated as a miss.
func (h *HandleCache) Get(ref string, flags int) (table.Table, error) {
	key := compositeKey(ref, flags)

	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.handles[key]; ok {
		return t, nil
	}

	t, err := table.Open(ref, flags)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("proxymap: open(%s) returned a nil handle", ref)
	}
	h.handles[key] = t
	return t, nil
}

// Count reports the number of distinct open handles, used for the
// handles-open gauge.
func (h *HandleCache) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handles)
}

// Changed reports whether any open handle's backing table has mutated on
// disk since it was opened. This is the signal the proxy's self-restart
// hook polls.
func (h *HandleCache) Changed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.handles {
		if t.Changed() {
			return true
		}
	}
	return false
}
