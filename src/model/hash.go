package model

import (
	"bytes"
	"fmt"

	"github.com/mosaicnetworks/tangle/src/trinary"
)

// Hash sizes.
const (
	HashTrinarySize = 243
	HashSize        = 49
	HashTrytesSize  = HashTrinarySize / trinary.TritsPerTryte
)

// Hash is the packed form of a 243-trit Curl hash. Transaction hashes, bundle
// hashes and addresses share this type.
type Hash [HashSize]byte

// NullHash is the all-zero hash. It identifies the genesis transaction.
var NullHash Hash

// HashFromTrits packs the first 243 trits.
func HashFromTrits(trits trinary.Trits) Hash {
	var h Hash
	copy(h[:], trinary.Bytes(trits[:HashTrinarySize]))
	return h
}

// HashFromBytes copies up to HashSize bytes into a Hash.
func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// HashFromTrytes parses an 81-tryte string.
func HashFromTrytes(trytes string) (Hash, error) {
	if len(trytes) != HashTrytesSize {
		return NullHash, fmt.Errorf("invalid hash length %d, expected %d trytes", len(trytes), HashTrytesSize)
	}
	trits, err := trinary.TrytesToTrits(trytes)
	if err != nil {
		return NullHash, err
	}
	return HashFromTrits(trits), nil
}

// Trits unpacks the hash.
func (h Hash) Trits() trinary.Trits {
	return trinary.BytesToTrits(h[:], HashTrinarySize)
}

// IsNull reports whether h is the null hash.
func (h Hash) IsNull() bool {
	return h == NullHash
}

// Less orders hashes by their packed bytes.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// String returns the 81-tryte form.
func (h Hash) String() string {
	return trinary.TritsToTrytes(h.Trits())
}

// Tag sizes.
const (
	TagTrinarySize = 81
	TagSize        = 17
	TagTrytesSize  = TagTrinarySize / trinary.TritsPerTryte
)

// Tag is the packed 81-trit tag of a transaction.
type Tag [TagSize]byte

// TagFromTrytes parses up to 27 trytes. Shorter input is padded with '9'.
func TagFromTrytes(trytes string) (Tag, error) {
	var t Tag
	if len(trytes) > TagTrytesSize {
		return t, fmt.Errorf("invalid tag length %d, expected at most %d trytes", len(trytes), TagTrytesSize)
	}
	trits, err := trinary.TrytesToTrits(trytes)
	if err != nil {
		return t, err
	}
	return TagFromTrits(trits), nil
}

// TagFromTrits packs the first 81 trits. Shorter input is padded with zeros.
func TagFromTrits(trits trinary.Trits) Tag {
	var t Tag
	padded := make(trinary.Trits, TagTrinarySize)
	copy(padded, trits)
	copy(t[:], trinary.Bytes(padded))
	return t
}

// Trits unpacks the tag.
func (t Tag) Trits() trinary.Trits {
	return trinary.BytesToTrits(t[:], TagTrinarySize)
}

// Key returns the tag zero-padded to hash width, the form under which it is
// indexed.
func (t Tag) Key() Hash {
	var h Hash
	copy(h[:], t[:])
	return h
}

// String returns the 27-tryte form.
func (t Tag) String() string {
	return trinary.TritsToTrytes(t.Trits())
}
