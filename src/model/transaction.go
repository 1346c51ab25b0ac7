package model

import (
	"fmt"
	"sync"

	"github.com/mosaicnetworks/tangle/src/crypto"
	"github.com/mosaicnetworks/tangle/src/trinary"
)

// Size is the number of bytes of a packed transaction.
const Size = 1604

// Supply is the total number of tokens, (3^33 - 1) / 2.
const Supply int64 = 2779530283277761

// MinWeightMagnitude is the number of trailing zero trits required in the hash
// of a transaction received from the network.
const MinWeightMagnitude = 18

// Trit layout of a transaction.
const (
	SignatureMessageFragmentTrinaryOffset = 0
	SignatureMessageFragmentTrinarySize   = 6561
	AddressTrinaryOffset                  = SignatureMessageFragmentTrinaryOffset + SignatureMessageFragmentTrinarySize
	AddressTrinarySize                    = 243
	ValueTrinaryOffset                    = AddressTrinaryOffset + AddressTrinarySize
	ValueTrinarySize                      = 81
	ValueUsableTrinarySize                = 33
	TagTrinaryOffset                      = ValueTrinaryOffset + ValueTrinarySize
	TimestampTrinaryOffset                = TagTrinaryOffset + TagTrinarySize
	TimestampTrinarySize                  = 27
	CurrentIndexTrinaryOffset             = TimestampTrinaryOffset + TimestampTrinarySize
	CurrentIndexTrinarySize               = 27
	LastIndexTrinaryOffset                = CurrentIndexTrinaryOffset + CurrentIndexTrinarySize
	LastIndexTrinarySize                  = 27
	BundleTrinaryOffset                   = LastIndexTrinaryOffset + LastIndexTrinarySize
	TrunkTrinaryOffset                    = BundleTrinaryOffset + HashTrinarySize
	BranchTrinaryOffset                   = TrunkTrinaryOffset + HashTrinarySize
	NonceTrinaryOffset                    = BranchTrinaryOffset + HashTrinarySize
	NonceTrinarySize                      = 243
	TrinarySize                           = NonceTrinaryOffset + NonceTrinarySize

	EssenceTrinaryOffset = AddressTrinaryOffset
	EssenceTrinarySize   = AddressTrinarySize + ValueTrinarySize + TagTrinarySize +
		TimestampTrinarySize + CurrentIndexTrinarySize + LastIndexTrinarySize
)

// RecordType is the type byte of a stored cell.
type RecordType int8

const (
	// Group is an interior trie cell.
	Group RecordType = 0
	// Prefilled is a transaction known only by its hash.
	Prefilled RecordType = 1
	// Filled is a transaction with its content.
	Filled RecordType = -1
)

func (t RecordType) String() string {
	switch t {
	case Group:
		return "Group"
	case Prefilled:
		return "Prefilled"
	case Filled:
		return "Filled"
	default:
		return fmt.Sprintf("RecordType(%d)", int8(t))
	}
}

// Validity is the outcome of bundle validation, recorded on the head of the
// bundle. It only ever moves away from ValidityUnknown.
type Validity int8

const (
	ValidityUnknown Validity = 0
	ValidityValid   Validity = 1
	ValidityInvalid Validity = -1
)

func (v Validity) String() string {
	switch v {
	case ValidityUnknown:
		return "Unknown"
	case ValidityValid:
		return "Valid"
	case ValidityInvalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Validity(%d)", int8(v))
	}
}

// Transaction is the decoded form of a transaction record. Pointer,
// TrunkPointer and BranchPointer are only set on records loaded from a store.
type Transaction struct {
	Type         RecordType
	Hash         Hash
	Bytes        []byte
	Address      Hash
	Value        int64
	Tag          Tag
	CurrentIndex int64
	LastIndex    int64
	Bundle       Hash
	Trunk        Hash
	Branch       Hash
	Validity     Validity

	Pointer       int64
	TrunkPointer  int64
	BranchPointer int64

	WeightMagnitude int

	tritsOnce sync.Once
	trits     trinary.Trits
}

// FromTrits builds a Filled transaction from its 8019 trits and computes its
// hash. No weight check is done, so it is meant for trusted input.
func FromTrits(trits trinary.Trits) *Transaction {
	t := &Transaction{
		Type:  Filled,
		Bytes: trinary.Bytes(trits[:TrinarySize]),
	}
	t.setTrits(trits[:TrinarySize])

	hashTrits := crypto.Hash(t.trits)
	t.Hash = HashFromTrits(hashTrits)
	t.WeightMagnitude = weightMagnitude(hashTrits)
	t.decode()
	return t
}

// FromBytes decodes a packed transaction received from a peer. It rejects
// values that use trits beyond the usable range and hashes that do not end
// with mwm zero trits.
func FromBytes(b []byte, mwm int) (*Transaction, error) {
	if len(b) < Size {
		return nil, fmt.Errorf("invalid transaction size %d, expected %d", len(b), Size)
	}

	t := &Transaction{
		Type:  Filled,
		Bytes: make([]byte, Size),
	}
	copy(t.Bytes, b[:Size])
	t.setTrits(trinary.BytesToTrits(t.Bytes, TrinarySize))

	if !trinary.IsZero(t.trits[ValueTrinaryOffset+ValueUsableTrinarySize : ValueTrinaryOffset+ValueTrinarySize]) {
		return nil, fmt.Errorf("invalid transaction value")
	}

	hashTrits := crypto.Hash(t.trits)
	if mwm > HashTrinarySize {
		mwm = HashTrinarySize
	}
	if !trinary.IsZero(hashTrits[HashTrinarySize-mwm:]) {
		return nil, fmt.Errorf("invalid transaction hash")
	}
	t.Hash = HashFromTrits(hashTrits)
	t.WeightMagnitude = weightMagnitude(hashTrits)
	t.decode()
	return t, nil
}

// FromTrytes decodes a 2673-tryte transaction with FromBytes.
func FromTrytes(trytes string, mwm int) (*Transaction, error) {
	if len(trytes) != TrinarySize/trinary.TritsPerTryte {
		return nil, fmt.Errorf("invalid transaction length %d, expected %d trytes", len(trytes), TrinarySize/trinary.TritsPerTryte)
	}
	trits, err := trinary.TrytesToTrits(trytes)
	if err != nil {
		return nil, err
	}
	return FromBytes(trinary.Bytes(trits), mwm)
}

// Trits returns the unpacked transaction. The result is computed once and
// must not be modified.
func (t *Transaction) Trits() trinary.Trits {
	t.tritsOnce.Do(func() {
		if t.trits == nil {
			t.trits = trinary.BytesToTrits(t.Bytes, TrinarySize)
		}
	})
	return t.trits
}

// Trytes returns the 2673-tryte form.
func (t *Transaction) Trytes() string {
	return trinary.TritsToTrytes(t.Trits())
}

// Essence returns the trits covered by the bundle hash.
func (t *Transaction) Essence() trinary.Trits {
	return t.Trits()[EssenceTrinaryOffset : EssenceTrinaryOffset+EssenceTrinarySize]
}

// SignatureMessageFragment returns the signature or message trits.
func (t *Transaction) SignatureMessageFragment() trinary.Trits {
	return t.Trits()[SignatureMessageFragmentTrinaryOffset : SignatureMessageFragmentTrinaryOffset+SignatureMessageFragmentTrinarySize]
}

// Timestamp is decoded from the trits as it is not kept in the store cell.
func (t *Transaction) Timestamp() int64 {
	return trinary.Int64(t.Trits()[TimestampTrinaryOffset : TimestampTrinaryOffset+TimestampTrinarySize])
}

// IsTail reports whether t is the first transaction of its bundle.
func (t *Transaction) IsTail() bool {
	return t.CurrentIndex == 0
}

func (t *Transaction) setTrits(trits trinary.Trits) {
	t.trits = trits
	t.tritsOnce.Do(func() {})
}

func (t *Transaction) decode() {
	trits := t.trits
	t.Address = HashFromTrits(trits[AddressTrinaryOffset:])
	t.Value = trinary.Int64(trits[ValueTrinaryOffset : ValueTrinaryOffset+ValueUsableTrinarySize])
	copy(t.Tag[:], trinary.Bytes(trits[TagTrinaryOffset:TagTrinaryOffset+TagTrinarySize]))
	t.CurrentIndex = trinary.Int64(trits[CurrentIndexTrinaryOffset : CurrentIndexTrinaryOffset+CurrentIndexTrinarySize])
	t.LastIndex = trinary.Int64(trits[LastIndexTrinaryOffset : LastIndexTrinaryOffset+LastIndexTrinarySize])
	t.Bundle = HashFromTrits(trits[BundleTrinaryOffset:])
	t.Trunk = HashFromTrits(trits[TrunkTrinaryOffset:])
	t.Branch = HashFromTrits(trits[BranchTrinaryOffset:])
}

func weightMagnitude(hashTrits trinary.Trits) int {
	wm := MinWeightMagnitude
	for wm < HashTrinarySize && hashTrits[HashTrinarySize-wm-1] == 0 {
		wm++
	}
	return wm
}
