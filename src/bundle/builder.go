package bundle

import (
	"fmt"

	"github.com/mosaicnetworks/tangle/src/crypto"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/trinary"
)

// Finalize numbers the drafts, computes the bundle hash over their essences
// and writes it into every draft.
func Finalize(drafts []*model.Draft) model.Hash {
	curl := crypto.NewCurl()
	for i, d := range drafts {
		d.CurrentIndex = int64(i)
		d.LastIndex = int64(len(drafts) - 1)
		curl.Absorb(d.Essence())
	}

	out := make(trinary.Trits, crypto.HashLength)
	curl.Squeeze(out)
	hash := model.HashFromTrits(out)
	for _, d := range drafts {
		d.Bundle = hash
	}
	return hash
}

// Sign writes the signature of a finalized bundle into the drafts starting at
// index, one key fragment per draft.
func Sign(drafts []*model.Draft, index int, key trinary.Trits) error {
	if len(key) == 0 || len(key)%crypto.FragmentLength != 0 {
		return fmt.Errorf("invalid key length: %d", len(key))
	}
	fragments := len(key) / crypto.FragmentLength
	if index < 0 || index+fragments > len(drafts) {
		return fmt.Errorf("key with %d fragments does not fit at index %d", fragments, index)
	}

	normalized, err := crypto.NormalizedBundle(drafts[index].Bundle.Trits())
	if err != nil {
		return err
	}

	offset := 0
	for i := 0; i < fragments; i++ {
		signature, err := crypto.SignatureFragment(
			normalized[offset:offset+crypto.NormalizedFragmentLength],
			key[i*crypto.FragmentLength:(i+1)*crypto.FragmentLength])
		if err != nil {
			return err
		}
		drafts[index+i].SignatureMessageFragment = signature
		offset = (offset + crypto.NormalizedFragmentLength) % len(normalized)
	}
	return nil
}

// Link chains the drafts through their trunks, from the last one to the head.
// The last draft approves trunk and branch, every other draft approves its
// successor and trunk. The transactions are returned in bundle order.
func Link(drafts []*model.Draft, trunk, branch model.Hash) []*model.Transaction {
	txs := make([]*model.Transaction, len(drafts))
	next := trunk
	for i := len(drafts) - 1; i >= 0; i-- {
		if i == len(drafts)-1 {
			drafts[i].Trunk, drafts[i].Branch = trunk, branch
		} else {
			drafts[i].Trunk, drafts[i].Branch = next, trunk
		}
		txs[i] = drafts[i].Transaction()
		next = txs[i].Hash
	}
	return txs
}
