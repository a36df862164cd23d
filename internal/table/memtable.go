package table

import "sync"

func init() {
	Register("hash", openMemTable)
}

// MemTable is an in-memory map-backed Table, used for the verifier's
// in-memory fallback (no address_verify_map configured) and as a synthetic
// "hash:" table type in tests.
type MemTable struct {
	mu    sync.RWMutex
	data  map[string]string
	flags int
}

// NewMemTable creates an empty in-memory table.
func NewMemTable(flags int) *MemTable {
	return &MemTable{
		data:  make(map[string]string),
		flags: flags,
	}
}

func openMemTable(name string, flags int) (Table, error) {
	return NewMemTable(flags), nil
}

func (m *MemTable) Get(key string) (string, Result) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ResultNoKey
	}
	return v, ResultOK
}

func (m *MemTable) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemTable) Del(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemTable) Flags() int { return m.flags }

// Changed is always false: nothing outside this process can mutate an
// in-memory table, so there is never a reason to self-restart over it.
func (m *MemTable) Changed() bool { return false }

func (m *MemTable) Close() error { return nil }

// Count returns the number of entries currently stored, used for the
// cache-entries gauge.
func (m *MemTable) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
