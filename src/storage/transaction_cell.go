package storage

import (
	"encoding/binary"

	"github.com/mosaicnetworks/tangle/src/model"
)

// Layout of a transaction leaf. Fields are 8-byte aligned.
const (
	bytesOffset        = 64
	addressOffset      = 1672
	valueOffset        = 1728
	tagOffset          = 1736
	currentIndexOffset = 1760
	lastIndexOffset    = 1768
	bundleOffset       = 1776
	trunkOffset        = 1832
	branchOffset       = 1888
	validityOffset     = 1944
)

func putInt64(cell []byte, offset int, v int64) {
	binary.LittleEndian.PutUint64(cell[offset:], uint64(v))
}

func getInt64(cell []byte, offset int) int64 {
	return int64(binary.LittleEndian.Uint64(cell[offset:]))
}

// encodeTransaction fills cell with the leaf for hash. A nil transaction gives
// a Prefilled leaf.
func encodeTransaction(cell []byte, hash model.Hash, tx *model.Transaction) {
	clear(cell)
	copy(cell[keyOffset:], hash[:])
	if tx == nil {
		cell[typeOffset] = byte(model.Prefilled)
		return
	}

	cell[typeOffset] = byte(tx.Type)
	copy(cell[bytesOffset:bytesOffset+model.Size], tx.Bytes)
	copy(cell[addressOffset:], tx.Address[:])
	putInt64(cell, valueOffset, tx.Value)
	copy(cell[tagOffset:], tx.Tag[:])
	putInt64(cell, currentIndexOffset, tx.CurrentIndex)
	putInt64(cell, lastIndexOffset, tx.LastIndex)
	copy(cell[bundleOffset:], tx.Bundle[:])
	copy(cell[trunkOffset:], tx.Trunk[:])
	copy(cell[branchOffset:], tx.Branch[:])
	cell[validityOffset] = byte(tx.Validity)
}

// decodeTransaction reads a leaf. Trunk and branch pointers are left to the
// caller.
func decodeTransaction(cell []byte, pointer int64) *model.Transaction {
	tx := &model.Transaction{
		Type:         cellType(cell),
		Hash:         model.HashFromBytes(cell[keyOffset:]),
		Bytes:        make([]byte, model.Size),
		Address:      model.HashFromBytes(cell[addressOffset:]),
		Value:        getInt64(cell, valueOffset),
		CurrentIndex: getInt64(cell, currentIndexOffset),
		LastIndex:    getInt64(cell, lastIndexOffset),
		Bundle:       model.HashFromBytes(cell[bundleOffset:]),
		Trunk:        model.HashFromBytes(cell[trunkOffset:]),
		Branch:       model.HashFromBytes(cell[branchOffset:]),
		Validity:     model.Validity(int8(cell[validityOffset])),
		Pointer:      pointer,
	}
	copy(tx.Bytes, cell[bytesOffset:bytesOffset+model.Size])
	copy(tx.Tag[:], cell[tagOffset:])
	return tx
}

// genesisTransaction is the all-zero record stored under the null hash of a
// fresh store. It references itself and heads a bundle of its own that is
// valid by definition.
func genesisTransaction() *model.Transaction {
	return &model.Transaction{
		Type:     model.Filled,
		Bytes:    make([]byte, model.Size),
		Validity: model.ValidityValid,
	}
}
