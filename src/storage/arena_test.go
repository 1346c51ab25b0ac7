package storage

import (
	"path/filepath"
	"testing"

	cm "github.com/mosaicnetworks/tangle/src/common"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArena(t *testing.T, a Arena) {
	cell := make([]byte, CellSize)

	require.NoError(t, a.ReadCell(CellsOffset, cell))
	assert.Equal(t, make([]byte, CellSize), cell)
	assert.Equal(t, int64(0), a.Size())

	cell[0], cell[CellSize-1] = 1, 2
	require.NoError(t, a.WriteCell(CellsOffset+CellSize, cell))
	assert.Equal(t, int64(CellsOffset+2*CellSize), a.Size())

	read := make([]byte, CellSize)
	require.NoError(t, a.ReadCell(CellsOffset+CellSize, read))
	assert.Equal(t, cell, read)

	require.NoError(t, a.WriteCell(0, cell))
	assert.Equal(t, int64(CellsOffset+2*CellSize), a.Size())

	err := a.ReadCell(17, read)
	assert.True(t, cm.IsStore(err, cm.Corrupted))
}

func TestInmemArena(t *testing.T) {
	testArena(t, NewInmemArena("test"))
}

func TestCachedArena(t *testing.T) {
	inner := NewInmemArena("test")
	cached := NewCachedArena(inner, 2)
	testArena(t, cached)
	assert.True(t, cached.Len() <= 2)

	// writes go through
	cell := make([]byte, CellSize)
	cell[5] = 9
	require.NoError(t, cached.WriteCell(CellsOffset, cell))
	read := make([]byte, CellSize)
	require.NoError(t, inner.ReadCell(CellsOffset, read))
	assert.Equal(t, byte(9), read[5])
}

func TestLevelDBArena(t *testing.T) {
	backend, err := NewMemLevelDBBackend()
	require.NoError(t, err)
	defer backend.Close()

	a, err := backend.Arena("test")
	require.NoError(t, err)
	testArena(t, a)

	// another arena of the same database is independent
	other, err := backend.Arena("tes")
	require.NoError(t, err)
	assert.Equal(t, int64(0), other.Size())

	reopened, err := backend.Arena("test")
	require.NoError(t, err)
	assert.Equal(t, int64(CellsOffset+2*CellSize), reopened.Size())
}

func TestBadgerArena(t *testing.T) {
	logger := cm.NewTestEntry(t, logrus.InfoLevel, "badger")
	backend, err := NewBadgerBackend(filepath.Join(t.TempDir(), "badger"), logger)
	require.NoError(t, err)
	defer backend.Close()

	a, err := backend.Arena("test")
	require.NoError(t, err)
	testArena(t, a)

	reopened, err := backend.Arena("test")
	require.NoError(t, err)
	assert.Equal(t, int64(CellsOffset+2*CellSize), reopened.Size())
}

func testPersistentStore(t *testing.T, open func() (*Store, error)) {
	s, err := open()
	require.NoError(t, err)

	tx := draftTransaction(model.NullHash, testHash(4, 4, 4), -3, 0)
	pointer, err := s.StoreTransaction(tx.Hash, tx, false)
	require.NoError(t, err)
	cells := s.NumberOfCells()
	require.NoError(t, s.Close())

	s, err = open()
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, cells, s.NumberOfCells())

	loaded, err := s.LoadTransactionByHash(tx.Hash)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, pointer, loaded.Pointer)
	assert.Equal(t, int64(-3), loaded.Value)

	tips, err := s.Tips()
	require.NoError(t, err)
	assert.Equal(t, []model.Hash{tx.Hash}, tips)

	address, err := s.AddressPointers(tx.Address)
	require.NoError(t, err)
	assert.Equal(t, []int64{pointer}, address)
}

func TestBadgerStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badger")
	logger := cm.NewTestEntry(t, logrus.InfoLevel, "store")
	testPersistentStore(t, func() (*Store, error) {
		return NewBadgerStore(path, 100, logger)
	})
}

func TestLevelDBStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leveldb")
	logger := cm.NewTestEntry(t, logrus.InfoLevel, "store")
	testPersistentStore(t, func() (*Store, error) {
		return NewLevelDBStore(path, 100, logger)
	})
}
