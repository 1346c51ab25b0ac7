package milestone

import (
	"fmt"
	"sync"

	"github.com/mosaicnetworks/tangle/src/bundle"
	"github.com/mosaicnetworks/tangle/src/crypto"
	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/mosaicnetworks/tangle/src/trinary"
	"github.com/sirupsen/logrus"
)

// IndexTrinarySize is the number of leading tag trits that hold the index of
// a milestone.
const IndexTrinarySize = 15

// MaxDepth is the deepest Merkle path that fits in a signature fragment.
const MaxDepth = model.SignatureMessageFragmentTrinarySize / crypto.HashLength

// Index decodes the milestone index carried in the tag of tx.
func Index(tx *model.Transaction) int64 {
	return trinary.Int64(tx.Trits()[model.TagTrinaryOffset : model.TagTrinaryOffset+IndexTrinarySize])
}

// Tracker follows the coordinator's milestones. It is the only writer of the
// milestone state in the ledger context.
type Tracker struct {
	ledger  *ledger.Context
	store   *storage.Store
	bundles *bundle.Reconstructor
	logger  *logrus.Entry

	// analyzed holds candidates that were examined to a conclusion, so they
	// are never examined again.
	mu       sync.Mutex
	analyzed map[int64]struct{}
}

// NewTracker ...
func NewTracker(ctx *ledger.Context,
	store *storage.Store,
	bundles *bundle.Reconstructor,
	logger *logrus.Entry) (*Tracker, error) {

	if ctx.CoordinatorDepth < 0 || ctx.CoordinatorDepth > MaxDepth {
		return nil, fmt.Errorf("coordinator depth %d out of range [0, %d]", ctx.CoordinatorDepth, MaxDepth)
	}

	return &Tracker{
		ledger:   ctx,
		store:    store,
		bundles:  bundles,
		logger:   logger,
		analyzed: make(map[int64]struct{}),
	}, nil
}

// UpdateLatestMilestone examines the transactions sent to the coordinator
// address and promotes every authenticated milestone with an index above the
// latest one. It reports whether the latest milestone changed.
func (t *Tracker) UpdateLatestMilestone() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pointers, err := t.store.AddressPointers(t.ledger.Coordinator)
	if err != nil {
		return false, err
	}

	changed := false
	for _, pointer := range pointers {
		if _, ok := t.analyzed[pointer]; ok {
			continue
		}

		tx, err := t.store.LoadTransaction(pointer)
		if err != nil {
			return changed, err
		}
		if tx.CurrentIndex != 0 {
			t.analyzed[pointer] = struct{}{}
			continue
		}

		index := Index(tx)
		if _, latest := t.ledger.LatestMilestone(); index <= latest {
			t.analyzed[pointer] = struct{}{}
			continue
		}

		valid, done, err := t.authenticate(tx, index)
		if err != nil {
			return changed, err
		}
		if done {
			t.analyzed[pointer] = struct{}{}
		}
		if !valid {
			continue
		}

		if t.ledger.SetLatestMilestone(tx.Hash, index) {
			changed = true
			t.logger.WithFields(logrus.Fields{
				"index": index,
				"hash":  tx.Hash,
			}).Info("New milestone")
		}
	}

	return changed, nil
}

// authenticate checks that tx heads a valid milestone bundle signed by the
// coordinator. done is false when the bundle is not complete yet and the
// candidate must be examined again later.
func (t *Tracker) authenticate(tx *model.Transaction, index int64) (valid bool, done bool, err error) {
	groups, err := t.bundles.Reconstitute(tx.Bundle)
	if err != nil {
		return false, false, err
	}

	var head bundle.Group
	for _, g := range groups {
		if g.Head().Pointer == tx.Pointer {
			head = g
			break
		}
	}
	if head == nil {
		current, err := t.store.LoadTransaction(tx.Pointer)
		if err != nil {
			return false, false, err
		}
		return false, current.Validity == model.ValidityInvalid, nil
	}

	siblings, err := t.store.LoadTransaction(tx.TrunkPointer)
	if err != nil {
		return false, false, err
	}
	if siblings.Type != model.Filled {
		return false, false, nil
	}
	if tx.BranchPointer != siblings.TrunkPointer {
		return false, true, nil
	}

	normalized, err := crypto.NormalizedBundle(tx.Trunk.Trits())
	if err != nil {
		return false, true, err
	}
	digest, err := crypto.Digest(normalized[:crypto.NumberOfFragmentChunks], tx.SignatureMessageFragment())
	if err != nil {
		return false, true, err
	}
	hash, err := crypto.Address(digest)
	if err != nil {
		return false, true, err
	}

	path := siblings.Trits()
	for i, bits := 0, index; i < t.ledger.CoordinatorDepth; i, bits = i+1, bits>>1 {
		sibling := path[i*crypto.HashLength : (i+1)*crypto.HashLength]
		if bits&1 == 0 {
			hash = crypto.HashFromTwoHashes(hash, sibling)
		} else {
			hash = crypto.HashFromTwoHashes(sibling, hash)
		}
	}

	if model.HashFromTrits(hash) != t.ledger.Coordinator {
		t.logger.WithFields(logrus.Fields{
			"index": index,
			"hash":  tx.Hash,
		}).Debug("Milestone candidate not signed by coordinator")
		return false, true, nil
	}
	return true, true, nil
}

// UpdateLatestSolidSubtangleMilestone looks for the highest known milestone
// above the latest solid one whose past cone is complete. Lower milestones are
// not checked once one is found. It reports whether the solid milestone
// changed.
func (t *Tracker) UpdateLatestSolidSubtangleMilestone() (bool, error) {
	t.ledger.Lock()
	defer t.ledger.Unlock()

	_, latest := t.ledger.LatestMilestone()
	_, solid := t.ledger.LatestSolidMilestone()

	for index := latest; index > solid; index-- {
		hash, ok := t.ledger.Milestone(index)
		if !ok {
			continue
		}

		isSolid, err := t.isSolid(hash)
		if err != nil {
			return false, err
		}
		if !isSolid {
			continue
		}

		if t.ledger.SetLatestSolidMilestone(hash, index) {
			t.logger.WithFields(logrus.Fields{
				"index": index,
				"hash":  hash,
			}).Info("New solid milestone")
			return true, nil
		}
		return false, nil
	}

	return false, nil
}

// isSolid walks the past cone of hash and reports whether every transaction
// in it has content. The caller holds the consensus lock.
func (t *Tracker) isSolid(hash model.Hash) (bool, error) {
	start, err := t.store.TransactionPointer(hash)
	if err != nil || start <= 0 {
		return false, err
	}

	visited := t.store.Visited()
	visited.Clear()

	queue := []int64{start}
	for len(queue) > 0 {
		pointer := queue[0]
		queue = queue[1:]

		if !visited.MarkIfUnvisited(pointer) {
			continue
		}

		tx, err := t.store.LoadTransaction(pointer)
		if err != nil {
			return false, err
		}
		if tx.Type == model.Prefilled {
			return false, nil
		}
		queue = append(queue, tx.TrunkPointer, tx.BranchPointer)
	}

	return true, nil
}
