package snapshot

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/agentworkforce/recordmirror/internal/records"
)

// BadgerBackend keeps the snapshot under a single key of an embedded BadgerDB.
type BadgerBackend struct {
	db  *badger.DB
	key []byte
}

// OpenBadgerBackend opens (or creates) a database in dir. An empty dir opens
// an in-memory database, which is what tests use.
func OpenBadgerBackend(dir, name string) (*BadgerBackend, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	var opts badger.Options
	if strings.TrimSpace(dir) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerBackend{db: db, key: []byte("snapshot/" + name)}, nil
}

func (b *BadgerBackend) Load() ([]records.Record, error) {
	var payload []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key)
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(payload)
}

func (b *BadgerBackend) Save(recs []records.Record) error {
	payload, err := encode(recs)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key, payload)
	})
}

func (b *BadgerBackend) Clear() error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key)
	})
}

func (b *BadgerBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
