package storage

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/tangle/src/common"
	"github.com/sirupsen/logrus"
)

// BadgerBackend keeps the cells of every arena in one Badger database, under
// keys of the form <arena>_<pointer in hex>.
type BadgerBackend struct {
	db     *badger.DB
	path   string
	closed bool
}

// NewBadgerBackend opens an existing database or creates a new one if nothing
// is found in path.
func NewBadgerBackend(path string, logger *logrus.Entry) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerBackend{
		db:   handle,
		path: path,
	}, nil
}

// Arena implements the Backend interface.
func (b *BadgerBackend) Arena(name string) (Arena, error) {
	if b.closed {
		return nil, cm.NewStoreErr(name, cm.Closed, b.path)
	}
	a := &BadgerArena{
		db:     b.db,
		name:   name,
		prefix: []byte(name + "_"),
	}
	if err := a.loadSize(); err != nil {
		return nil, err
	}
	return a, nil
}

// Flush implements the Backend interface.
func (b *BadgerBackend) Flush() error {
	return b.db.Sync()
}

// Close implements the Backend interface.
func (b *BadgerBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// StorePath returns the database directory.
func (b *BadgerBackend) StorePath() string {
	return b.path
}

// BadgerArena is an Arena stored in a BadgerBackend.
type BadgerArena struct {
	db     *badger.DB
	name   string
	prefix []byte
	size   int64
}

func (a *BadgerArena) key(pointer int64) []byte {
	return []byte(fmt.Sprintf("%s_%016x", a.name, pointer))
}

// ReadCell implements the Arena interface.
func (a *BadgerArena) ReadCell(pointer int64, cell []byte) error {
	if err := checkPointer(a.name, pointer, cell); err != nil {
		return err
	}
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(a.key(pointer))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(cell, val)
			return nil
		})
	})
	if isDBKeyNotFound(err) {
		clear(cell)
		return nil
	}
	return err
}

// WriteCell implements the Arena interface.
func (a *BadgerArena) WriteCell(pointer int64, cell []byte) error {
	if err := checkPointer(a.name, pointer, cell); err != nil {
		return err
	}

	tx := a.db.NewTransaction(true)
	defer tx.Discard()

	val := make([]byte, CellSize)
	copy(val, cell)
	if err := tx.Set(a.key(pointer), val); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if pointer+CellSize > a.size {
		a.size = pointer + CellSize
	}
	return nil
}

// Size implements the Arena interface.
func (a *BadgerArena) Size() int64 {
	return a.size
}

// loadSize finds the highest written cell by iterating backwards from the end
// of the arena's key range.
func (a *BadgerArena) loadSize() error {
	return a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(append([]byte{}, a.prefix...), 0xFF))
		if !it.ValidForPrefix(a.prefix) {
			a.size = 0
			return nil
		}

		pointer, err := parsePointerKey(it.Item().Key(), a.prefix)
		if err != nil {
			return err
		}
		a.size = pointer + CellSize
		return nil
	})
}

func parsePointerKey(key, prefix []byte) (int64, error) {
	if !bytes.HasPrefix(key, prefix) {
		return 0, fmt.Errorf("key %q outside arena %q", key, prefix)
	}
	return strconv.ParseInt(string(key[len(prefix):]), 16, 64)
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}
