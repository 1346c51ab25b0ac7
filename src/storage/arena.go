package storage

import (
	"fmt"
	"sync"

	cm "github.com/mosaicnetworks/tangle/src/common"
)

// Layout of every arena. A pointer is a byte offset into an arena and always
// falls on a cell boundary.
const (
	CellSize          = 2048
	CellsPerChunk     = 65536
	ChunkSize         = CellSize * CellsPerChunk
	MaxNumberOfChunks = 16384

	// SuperGroupsSize is the region holding one root group per value of the
	// first two key bytes.
	SuperGroupsSize = 65536 * CellSize

	// CellsOffset is the pointer of the first appended cell.
	CellsOffset = SuperGroupsSize

	// MaxPointer bounds the address space of an arena.
	MaxPointer = int64(MaxNumberOfChunks) * ChunkSize
)

// Arena is a sparse array of fixed-size cells. Cells that were never written
// read as zeros. Arenas are not safe for concurrent use; the Store serializes
// access.
type Arena interface {
	// ReadCell copies the cell at pointer into cell.
	ReadCell(pointer int64, cell []byte) error
	// WriteCell stores cell at pointer.
	WriteCell(pointer int64, cell []byte) error
	// Size is the pointer following the highest written cell.
	Size() int64
}

// Backend creates the named arenas of a Store and owns their resources.
type Backend interface {
	Arena(name string) (Arena, error)
	Flush() error
	Close() error
}

func checkPointer(name string, pointer int64, cell []byte) error {
	if pointer < 0 || pointer%CellSize != 0 || pointer >= MaxPointer {
		return cm.NewStoreErr(name, cm.Corrupted, fmt.Sprintf("pointer %d", pointer))
	}
	if len(cell) != CellSize {
		return fmt.Errorf("%s: invalid cell length %d", name, len(cell))
	}
	return nil
}

//------------------------------------------------------------------------------

// InmemArena keeps cells in a map.
type InmemArena struct {
	name  string
	cells map[int64][]byte
	size  int64
}

// NewInmemArena ...
func NewInmemArena(name string) *InmemArena {
	return &InmemArena{
		name:  name,
		cells: make(map[int64][]byte),
	}
}

// ReadCell implements the Arena interface.
func (a *InmemArena) ReadCell(pointer int64, cell []byte) error {
	if err := checkPointer(a.name, pointer, cell); err != nil {
		return err
	}
	stored, ok := a.cells[pointer]
	if !ok {
		clear(cell)
		return nil
	}
	copy(cell, stored)
	return nil
}

// WriteCell implements the Arena interface.
func (a *InmemArena) WriteCell(pointer int64, cell []byte) error {
	if err := checkPointer(a.name, pointer, cell); err != nil {
		return err
	}
	stored, ok := a.cells[pointer]
	if !ok {
		stored = make([]byte, CellSize)
		a.cells[pointer] = stored
	}
	copy(stored, cell)
	if pointer+CellSize > a.size {
		a.size = pointer + CellSize
	}
	return nil
}

// Size implements the Arena interface.
func (a *InmemArena) Size() int64 {
	return a.size
}

// InmemBackend hands out InmemArenas. Arenas survive Close so that a test can
// reopen a Store over the same backend.
type InmemBackend struct {
	sync.Mutex
	arenas map[string]*InmemArena
}

// NewInmemBackend ...
func NewInmemBackend() *InmemBackend {
	return &InmemBackend{
		arenas: make(map[string]*InmemArena),
	}
}

// Arena implements the Backend interface.
func (b *InmemBackend) Arena(name string) (Arena, error) {
	b.Lock()
	defer b.Unlock()
	a, ok := b.arenas[name]
	if !ok {
		a = NewInmemArena(name)
		b.arenas[name] = a
	}
	return a, nil
}

// Flush implements the Backend interface.
func (b *InmemBackend) Flush() error {
	return nil
}

// Close implements the Backend interface.
func (b *InmemBackend) Close() error {
	return nil
}
