package storage

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBBackend keeps the cells of every arena in one LevelDB database, with
// the same key layout as BadgerBackend.
type LevelDBBackend struct {
	db   *leveldb.DB
	path string
}

// NewLevelDBBackend opens or creates a database in path.
func NewLevelDBBackend(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		NoSync: true,
	})
	if err != nil {
		return nil, err
	}
	return &LevelDBBackend{db: db, path: path}, nil
}

// NewMemLevelDBBackend opens a database over memory storage.
func NewMemLevelDBBackend() (*LevelDBBackend, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBBackend{db: db}, nil
}

// Arena implements the Backend interface.
func (b *LevelDBBackend) Arena(name string) (Arena, error) {
	a := &LevelDBArena{
		db:     b.db,
		name:   name,
		prefix: []byte(name + "_"),
	}
	if err := a.loadSize(); err != nil {
		return nil, err
	}
	return a, nil
}

// Flush implements the Backend interface. Writes go straight to the database
// log, so there is nothing to do.
func (b *LevelDBBackend) Flush() error {
	return nil
}

// Close implements the Backend interface.
func (b *LevelDBBackend) Close() error {
	err := b.db.Close()
	if err == leveldb.ErrClosed {
		return nil
	}
	return err
}

// LevelDBArena is an Arena stored in a LevelDBBackend.
type LevelDBArena struct {
	db     *leveldb.DB
	name   string
	prefix []byte
	size   int64
}

func (a *LevelDBArena) key(pointer int64) []byte {
	return []byte(fmt.Sprintf("%s_%016x", a.name, pointer))
}

// ReadCell implements the Arena interface.
func (a *LevelDBArena) ReadCell(pointer int64, cell []byte) error {
	if err := checkPointer(a.name, pointer, cell); err != nil {
		return err
	}
	val, err := a.db.Get(a.key(pointer), nil)
	if err == leveldb.ErrNotFound {
		clear(cell)
		return nil
	}
	if err != nil {
		return err
	}
	copy(cell, val)
	return nil
}

// WriteCell implements the Arena interface.
func (a *LevelDBArena) WriteCell(pointer int64, cell []byte) error {
	if err := checkPointer(a.name, pointer, cell); err != nil {
		return err
	}
	if err := a.db.Put(a.key(pointer), cell, nil); err != nil {
		return err
	}
	if pointer+CellSize > a.size {
		a.size = pointer + CellSize
	}
	return nil
}

// Size implements the Arena interface.
func (a *LevelDBArena) Size() int64 {
	return a.size
}

func (a *LevelDBArena) loadSize() error {
	iter := a.db.NewIterator(util.BytesPrefix(a.prefix), nil)
	defer iter.Release()

	if !iter.Last() {
		a.size = 0
		return iter.Error()
	}
	pointer, err := parsePointerKey(iter.Key(), a.prefix)
	if err != nil {
		return err
	}
	a.size = pointer + CellSize
	return iter.Error()
}
