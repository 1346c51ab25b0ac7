package model

import "github.com/mosaicnetworks/tangle/src/trinary"

// Draft holds the fields of a transaction before it is encoded.
type Draft struct {
	SignatureMessageFragment trinary.Trits
	Address                  Hash
	Value                    int64
	Tag                      Tag
	Timestamp                int64
	CurrentIndex             int64
	LastIndex                int64
	Bundle                   Hash
	Trunk                    Hash
	Branch                   Hash
	Nonce                    Hash
}

// Trits encodes the draft into the 8019-trit transaction layout.
func (d *Draft) Trits() trinary.Trits {
	trits := make(trinary.Trits, TrinarySize)
	copy(trits[SignatureMessageFragmentTrinaryOffset:SignatureMessageFragmentTrinaryOffset+SignatureMessageFragmentTrinarySize], d.SignatureMessageFragment)
	copy(trits[AddressTrinaryOffset:], d.Address.Trits())
	trinary.PutInt64(d.Value, trits[ValueTrinaryOffset:ValueTrinaryOffset+ValueUsableTrinarySize])
	copy(trits[TagTrinaryOffset:], d.Tag.Trits())
	trinary.PutInt64(d.Timestamp, trits[TimestampTrinaryOffset:TimestampTrinaryOffset+TimestampTrinarySize])
	trinary.PutInt64(d.CurrentIndex, trits[CurrentIndexTrinaryOffset:CurrentIndexTrinaryOffset+CurrentIndexTrinarySize])
	trinary.PutInt64(d.LastIndex, trits[LastIndexTrinaryOffset:LastIndexTrinaryOffset+LastIndexTrinarySize])
	copy(trits[BundleTrinaryOffset:], d.Bundle.Trits())
	copy(trits[TrunkTrinaryOffset:], d.Trunk.Trits())
	copy(trits[BranchTrinaryOffset:], d.Branch.Trits())
	copy(trits[NonceTrinaryOffset:], d.Nonce.Trits())
	return trits
}

// Essence returns the trits covered by the bundle hash.
func (d *Draft) Essence() trinary.Trits {
	return d.Trits()[EssenceTrinaryOffset : EssenceTrinaryOffset+EssenceTrinarySize]
}

// Transaction encodes the draft and decodes it with FromTrits.
func (d *Draft) Transaction() *Transaction {
	return FromTrits(d.Trits())
}
