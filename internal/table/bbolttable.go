package table

import (
	"fmt"
	"os"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

func init() {
	Register("bbolt", openBoltTable)
	// "cdb" is one of Postfix's historical disk-backed table keywords; it
	// is served by this bbolt-backed implementation rather than a
	// dedicated cdb reader. "hash" is registered to MemTable (memtable.go).
	Register("cdb", openBoltTable)
}

var bucketEntries = []byte("entries")

// BoltTable is a single-bucket bbolt-backed Table. Grounded directly on
// lease.Store's bucket-per-concern BoltDB usage: CreateBucketIfNotExists
// on open, db.Update/db.View closures per operation.
type BoltTable struct {
	path  string
	db    *bolt.DB
	mu    sync.Mutex
	flags int

	openedAt time.Time
}

// NewBoltTable opens (creating if necessary) a bbolt file at path.
func NewBoltTable(path string, flags int) (*BoltTable, error) {
	mode := os.FileMode(0600)
	db, err := bolt.Open(path, mode, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt table %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing bbolt table %s: %w", path, err)
	}

	return &BoltTable{
		path:     path,
		db:       db,
		flags:    flags,
		openedAt: time.Now(),
	}, nil
}

func openBoltTable(name string, flags int) (Table, error) {
	return NewBoltTable(name, flags)
}

func (b *BoltTable) Get(key string) (string, Result) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", ResultRetry
	}
	if value == nil {
		return "", ResultNoKey
	}
	return string(value), ResultOK
}

func (b *BoltTable) Put(key, value string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(key), []byte(value))
	})
}

func (b *BoltTable) Del(key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete([]byte(key))
	})
}

func (b *BoltTable) Flags() int { return b.flags }

// Changed reports whether the file on disk has been modified (mtime moved
// forward) since this handle opened it. Any write to the file moves its
// mtime, so both an external rewrite (e.g. postmap-style regeneration) and
// this handle's own Put/Del make Changed report true.
func (b *BoltTable) Changed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, err := os.Stat(b.path)
	if err != nil {
		return true // the file disappearing counts as changed
	}
	return info.ModTime().After(b.lastKnownModTime())
}

func (b *BoltTable) lastKnownModTime() time.Time {
	return b.openedAt
}

func (b *BoltTable) Close() error {
	return b.db.Close()
}
