package storage

import (
	"github.com/mosaicnetworks/tangle/src/model"
)

// Pointer list layout of an index leaf. The first cell keeps its list after
// the key; overflow cells use the whole cell. The last slot of every cell
// links to the next overflow cell.
const (
	zerothPointerOffset = 64
	nextCellOffset      = CellSize - 8
)

// index is a trie whose leaves hold the list of transaction pointers stored
// under a key: a bundle hash, an address, a padded tag or an approvee hash.
type index struct {
	*trie
	cell []byte
}

func newIndex(name string, arena Arena) *index {
	return &index{
		trie: newTrie(name, arena),
		cell: make([]byte, CellSize),
	}
}

// add appends transactionPointer to the list stored under key.
func (x *index) add(key model.Hash, transactionPointer int64) error {
	pointer, created, err := x.insert(key, x.cell, func() ([]byte, error) {
		leaf := make([]byte, CellSize)
		filled := model.Filled
		leaf[typeOffset] = byte(filled)
		copy(leaf[keyOffset:], key[:])
		putPointer(leaf, zerothPointerOffset, transactionPointer)
		return leaf, nil
	})
	if err != nil || created {
		return err
	}

	cell := x.cell
	offset := zerothPointerOffset
	for {
		for offset += 8; offset < nextCellOffset && getPointer(cell, offset) != 0; offset += 8 {
		}

		if offset < nextCellOffset {
			putPointer(cell, offset, transactionPointer)
			return x.arena.WriteCell(pointer, cell)
		}

		next := getPointer(cell, nextCellOffset)
		if next == 0 {
			overflow := make([]byte, CellSize)
			putPointer(overflow, 0, transactionPointer)
			next, err := x.append(overflow)
			if err != nil {
				return err
			}
			putPointer(cell, nextCellOffset, next)
			return x.arena.WriteCell(pointer, cell)
		}

		pointer = next
		if err := x.arena.ReadCell(pointer, cell); err != nil {
			return err
		}
		offset = -8
	}
}

// pointers lists the transaction pointers stored under key, oldest first.
func (x *index) pointers(key model.Hash) ([]int64, error) {
	pointer, err := x.find(key, x.cell)
	if err != nil || pointer == 0 {
		return nil, err
	}

	var res []int64
	cell := x.cell
	offset := zerothPointerOffset
	for {
		for ; offset < nextCellOffset; offset += 8 {
			p := getPointer(cell, offset)
			if p == 0 {
				return res, nil
			}
			res = append(res, p)
		}

		next := getPointer(cell, nextCellOffset)
		if next == 0 {
			return res, nil
		}
		if err := x.arena.ReadCell(next, cell); err != nil {
			return nil, err
		}
		offset = 0
	}
}
