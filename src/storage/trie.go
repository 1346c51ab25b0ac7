package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	cm "github.com/mosaicnetworks/tangle/src/common"
	"github.com/mosaicnetworks/tangle/src/model"
)

// Cell layout shared by every trie. A group cell holds 256 child pointers, one
// per value of the next key byte. Its type byte overlaps the low byte of the
// first pointer, which is always zero as pointers are cell aligned.
const (
	typeOffset = 0
	keyOffset  = 8

	// rootDepth is the first key byte resolved inside the trie; the first two
	// select the root group directly.
	rootDepth = 2
)

// slot maps a key byte, read as a signed value, to 0..255.
func slot(b byte) int {
	return int(int8(b)) + 128
}

func slotOffset(b byte) int {
	return slot(b) << 3
}

func rootPointer(key model.Hash) int64 {
	return int64(slot(key[0])+slot(key[1])<<8) * CellSize
}

func getPointer(cell []byte, offset int) int64 {
	return int64(binary.LittleEndian.Uint64(cell[offset:]))
}

func putPointer(cell []byte, offset int, pointer int64) {
	binary.LittleEndian.PutUint64(cell[offset:], uint64(pointer))
}

func cellType(cell []byte) model.RecordType {
	return model.RecordType(int8(cell[typeOffset]))
}

// trie maps 49-byte keys to leaf cells. Cells are only ever appended; a split
// re-points one existing group slot and appends the new path.
type trie struct {
	name  string
	arena Arena
	next  int64

	parent []byte
}

func newTrie(name string, arena Arena) *trie {
	next := arena.Size()
	if next < CellsOffset {
		next = CellsOffset
	}
	return &trie{
		name:   name,
		arena:  arena,
		next:   next,
		parent: make([]byte, CellSize),
	}
}

func (t *trie) corrupted(key model.Hash) error {
	return cm.NewStoreErr(t.name, cm.Corrupted, key.String())
}

// find returns the pointer of the leaf holding key, and leaves its content in
// cell. It returns 0 when the key is absent. The child of a group at the last
// key byte is always a leaf.
func (t *trie) find(key model.Hash, cell []byte) (int64, error) {
	pointer := rootPointer(key)
	for depth := rootDepth; depth <= model.HashSize; depth++ {
		if err := t.arena.ReadCell(pointer, cell); err != nil {
			return 0, err
		}
		if cellType(cell) == model.Group {
			if depth == model.HashSize {
				break
			}
			if pointer = getPointer(cell, slotOffset(key[depth])); pointer == 0 {
				return 0, nil
			}
			continue
		}
		if !bytes.Equal(cell[keyOffset+depth:keyOffset+model.HashSize], key[depth:]) {
			return 0, nil
		}
		return pointer, nil
	}
	return 0, t.corrupted(key)
}

// insert returns the pointer of the leaf holding key. If the key is absent,
// newLeaf is called for the content of the leaf, which is appended and linked
// in, and created is true. Otherwise cell holds the content of the existing
// leaf.
func (t *trie) insert(key model.Hash, cell []byte, newLeaf func() ([]byte, error)) (pointer int64, created bool, err error) {
	pointer = rootPointer(key)
	var prevPointer int64

	for depth := rootDepth; depth <= model.HashSize; depth++ {
		if err := t.arena.ReadCell(pointer, cell); err != nil {
			return 0, false, err
		}

		if cellType(cell) == model.Group {
			if depth == model.HashSize {
				break
			}
			prevPointer = pointer
			if pointer = getPointer(cell, slotOffset(key[depth])); pointer != 0 {
				continue
			}

			leaf, err := newLeaf()
			if err != nil {
				return 0, false, err
			}
			if pointer, err = t.append(leaf); err != nil {
				return 0, false, err
			}
			putPointer(cell, slotOffset(key[depth]), pointer)
			if err := t.arena.WriteCell(prevPointer, cell); err != nil {
				return 0, false, err
			}
			return pointer, true, nil
		}

		for i := depth; i < model.HashSize; i++ {
			if cell[keyOffset+i] == key[i] {
				continue
			}
			if prevPointer == 0 {
				return 0, false, t.corrupted(key)
			}
			pointer, err = t.split(key, depth, i, cell[keyOffset+i], pointer, prevPointer, newLeaf)
			return pointer, err == nil, err
		}
		return pointer, false, nil
	}

	return 0, false, t.corrupted(key)
}

// split moves the leaf at leafPointer, whose key first differs from key at
// byte i, under a new chain of groups covering bytes depth..i, then appends
// the new leaf beside it.
func (t *trie) split(key model.Hash, depth, i int, otherByte byte, leafPointer, prevPointer int64, newLeaf func() ([]byte, error)) (int64, error) {
	leaf, err := newLeaf()
	if err != nil {
		return 0, err
	}

	needed := int64(i-depth+2) * CellSize
	if t.next+needed > MaxPointer {
		return 0, cm.NewStoreErr(t.name, cm.Full, fmt.Sprintf("%d", t.next))
	}

	if err := t.arena.ReadCell(prevPointer, t.parent); err != nil {
		return 0, err
	}
	putPointer(t.parent, slotOffset(key[depth-1]), t.next)
	if err := t.arena.WriteCell(prevPointer, t.parent); err != nil {
		return 0, err
	}

	group := make([]byte, CellSize)
	for j := depth; j < i; j++ {
		clear(group)
		putPointer(group, slotOffset(key[j]), t.next+CellSize)
		if _, err := t.append(group); err != nil {
			return 0, err
		}
	}

	clear(group)
	putPointer(group, slotOffset(otherByte), leafPointer)
	putPointer(group, slotOffset(key[i]), t.next+CellSize)
	if _, err := t.append(group); err != nil {
		return 0, err
	}

	return t.append(leaf)
}

func (t *trie) append(cell []byte) (int64, error) {
	if t.next+CellSize > MaxPointer {
		return 0, cm.NewStoreErr(t.name, cm.Full, fmt.Sprintf("%d", t.next))
	}
	pointer := t.next
	if err := t.arena.WriteCell(pointer, cell); err != nil {
		return 0, err
	}
	t.next += CellSize
	return pointer, nil
}

// size is the append pointer.
func (t *trie) size() int64 {
	return t.next
}
