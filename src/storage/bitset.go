package storage

import "math/bits"

// cellIndex is the position of a cell among appended cells.
func cellIndex(pointer int64) int64 {
	return (pointer - CellsOffset) / CellSize
}

func cellPointer(index int64) int64 {
	return index*CellSize + CellsOffset
}

// TipSet is a persistent bitset with one bit per transaction cell, set while
// the transaction is not referenced by any other.
type TipSet struct {
	arena Arena
	cell  []byte
}

func newTipSet(arena Arena) *TipSet {
	return &TipSet{
		arena: arena,
		cell:  make([]byte, CellSize),
	}
}

func (s *TipSet) locate(pointer int64) (cellPtr int64, offset int, mask byte) {
	index := cellIndex(pointer)
	byteIndex := index >> 3
	return (byteIndex / CellSize) * CellSize, int(byteIndex % CellSize), 1 << uint(index&7)
}

// Set marks the transaction at pointer as a tip.
func (s *TipSet) Set(pointer int64) error {
	return s.update(pointer, true)
}

// Clear marks the transaction at pointer as referenced.
func (s *TipSet) Clear(pointer int64) error {
	return s.update(pointer, false)
}

func (s *TipSet) update(pointer int64, tip bool) error {
	cellPtr, offset, mask := s.locate(pointer)
	if err := s.arena.ReadCell(cellPtr, s.cell); err != nil {
		return err
	}
	old := s.cell[offset]
	if tip {
		s.cell[offset] |= mask
	} else {
		s.cell[offset] &^= mask
	}
	if s.cell[offset] == old {
		return nil
	}
	return s.arena.WriteCell(cellPtr, s.cell)
}

// IsSet reports whether the transaction at pointer is a tip.
func (s *TipSet) IsSet(pointer int64) (bool, error) {
	cellPtr, offset, mask := s.locate(pointer)
	if err := s.arena.ReadCell(cellPtr, s.cell); err != nil {
		return false, err
	}
	return s.cell[offset]&mask != 0, nil
}

// Each calls fn with the pointer of every tip below limit, in pointer order.
func (s *TipSet) Each(limit int64, fn func(pointer int64) error) error {
	if limit <= CellsOffset {
		return nil
	}
	last := cellIndex(limit - CellSize)
	for cellPtr := int64(0); cellPtr*8 <= last; cellPtr += CellSize {
		if err := s.arena.ReadCell(cellPtr, s.cell); err != nil {
			return err
		}
		for offset, b := range s.cell {
			for b != 0 {
				bit := bits.TrailingZeros8(b)
				b &^= 1 << uint(bit)
				index := (cellPtr+int64(offset))*8 + int64(bit)
				if index > last {
					return nil
				}
				if err := fn(cellPointer(index)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

//------------------------------------------------------------------------------

// VisitedSet marks transaction cells during a DAG walk. A walk starts with
// Clear; Save and Restore keep a single snapshot. It is not synchronized, the
// caller holds the consensus lock for the whole walk.
type VisitedSet struct {
	words []uint64
	saved []uint64
}

// NewVisitedSet ...
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{}
}

// Clear starts a new epoch.
func (v *VisitedSet) Clear() {
	clear(v.words)
}

// MarkIfUnvisited marks pointer and reports whether it was not marked yet.
func (v *VisitedSet) MarkIfUnvisited(pointer int64) bool {
	index := cellIndex(pointer)
	if index < 0 {
		return false
	}
	word, mask := index>>6, uint64(1)<<uint(index&63)
	if word >= int64(len(v.words)) {
		grown := make([]uint64, word+1+int64(len(v.words)))
		copy(grown, v.words)
		v.words = grown
	}
	if v.words[word]&mask != 0 {
		return false
	}
	v.words[word] |= mask
	return true
}

// IsVisited reports whether pointer is marked.
func (v *VisitedSet) IsVisited(pointer int64) bool {
	index := cellIndex(pointer)
	if index < 0 {
		return false
	}
	word := index >> 6
	return word < int64(len(v.words)) && v.words[word]&(uint64(1)<<uint(index&63)) != 0
}

// Save copies the current marks into the snapshot.
func (v *VisitedSet) Save() {
	v.saved = append(v.saved[:0], v.words...)
}

// Restore replaces the current marks with the snapshot.
func (v *VisitedSet) Restore() {
	clear(v.words)
	copy(v.words, v.saved)
}
