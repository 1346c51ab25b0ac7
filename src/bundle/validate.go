package bundle

import (
	"fmt"

	"github.com/mosaicnetworks/tangle/src/crypto"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/trinary"
)

// Reason is the outcome of assembling or validating a group.
type Reason int

const (
	// OK means the group is a valid bundle.
	OK Reason = iota
	// Incomplete means a trunk leads outside the loaded transactions. The
	// group may become complete later.
	Incomplete
	// InvalidIndex means a member's currentIndex breaks the sequence.
	InvalidIndex
	// InconsistentLastIndex means members disagree on lastIndex.
	InconsistentLastIndex
	// ValueOutOfRange means the running sum left the supply bounds.
	ValueOutOfRange
	// NonZeroValue means the values do not sum to zero.
	NonZeroValue
	// InvalidBundleHash means the essence hash differs from the bundle hash.
	InvalidBundleHash
	// InvalidSignature means an input address does not match its signature.
	InvalidSignature
)

var reasons = []string{
	"OK",
	"Incomplete",
	"InvalidIndex",
	"InconsistentLastIndex",
	"ValueOutOfRange",
	"NonZeroValue",
	"InvalidBundleHash",
	"InvalidSignature",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasons) {
		return fmt.Sprintf("Reason(%d)", int(r))
	}
	return reasons[r]
}

// Group is the ordered list of transactions of one bundle instance, from
// currentIndex 0 to lastIndex.
type Group []*model.Transaction

// Head is the transaction with currentIndex 0. Validity is recorded on it.
func (g Group) Head() *model.Transaction {
	return g[0]
}

// Contains reports whether pointer is a member of g.
func (g Group) Contains(pointer int64) bool {
	for _, tx := range g {
		if tx.Pointer == pointer {
			return true
		}
	}
	return false
}

// assemble walks trunks from head through loaded, checking the index sequence
// and the running value.
func assemble(head *model.Transaction, loaded map[int64]*model.Transaction) (Group, Reason) {
	group := Group{}
	lastIndex := head.LastIndex
	var sum int64

	tx := head
	for i := int64(0); ; i++ {
		group = append(group, tx)

		if tx.CurrentIndex != i {
			return group, InvalidIndex
		}
		if tx.LastIndex != lastIndex {
			return group, InconsistentLastIndex
		}
		sum += tx.Value
		if sum < -model.Supply || sum > model.Supply {
			return group, ValueOutOfRange
		}

		if i == lastIndex {
			return group, OK
		}

		next, ok := loaded[tx.TrunkPointer]
		if !ok {
			return group, Incomplete
		}
		tx = next
	}
}

// Validate checks a fully assembled group: values sum to zero, the essence
// hash equals the bundle hash and every input is signed by its address. It
// reads nothing but the group.
func Validate(group Group) Reason {
	var sum int64
	for _, tx := range group {
		sum += tx.Value
	}
	if sum != 0 {
		return NonZeroValue
	}

	bundleHash := Hash(group)
	if model.HashFromTrits(bundleHash) != group.Head().Bundle {
		return InvalidBundleHash
	}

	normalized, err := crypto.NormalizedBundle(bundleHash)
	if err != nil {
		return InvalidBundleHash
	}

	for j := 0; j < len(group); {
		input := group[j]
		if input.Value >= 0 {
			j++
			continue
		}

		curl := crypto.NewCurl()
		offset := 0
		for {
			fragment := normalized[offset : offset+crypto.NormalizedFragmentLength]
			offset = (offset + crypto.NormalizedFragmentLength) % len(normalized)

			digest, err := crypto.Digest(fragment, group[j].SignatureMessageFragment())
			if err != nil {
				return InvalidSignature
			}
			curl.Absorb(digest)

			j++
			if j >= len(group) || group[j].Address != input.Address || group[j].Value != 0 {
				break
			}
		}

		address := make(trinary.Trits, crypto.HashLength)
		curl.Squeeze(address)
		if model.HashFromTrits(address) != input.Address {
			return InvalidSignature
		}
	}

	return OK
}

// Hash absorbs the essence of every member in order and squeezes the bundle
// hash.
func Hash(group Group) trinary.Trits {
	curl := crypto.NewCurl()
	for _, tx := range group {
		curl.Absorb(tx.Essence())
	}
	out := make(trinary.Trits, crypto.HashLength)
	curl.Squeeze(out)
	return out
}
