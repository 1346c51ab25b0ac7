package bundle

import (
	"sort"

	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/sirupsen/logrus"
)

// MaxValidationPasses bounds how many times Reconstitute rescans a bundle
// when a validity flag changed under it.
const MaxValidationPasses = 3

// Reconstructor rebuilds bundles from the store and records their validity.
type Reconstructor struct {
	store  *storage.Store
	logger *logrus.Entry
}

// NewReconstructor ...
func NewReconstructor(store *storage.Store, logger *logrus.Entry) *Reconstructor {
	return &Reconstructor{
		store:  store,
		logger: logger,
	}
}

// Reconstitute returns every valid group stored under bundleHash. Groups whose
// head is already marked valid are returned without being checked again;
// groups whose head is marked invalid are skipped. Newly detected invalid
// groups get their head marked invalid, incomplete groups are left unmarked.
func (r *Reconstructor) Reconstitute(bundleHash model.Hash) ([]Group, error) {
	var groups []Group
	for pass := 0; pass < MaxValidationPasses; pass++ {
		var changed bool
		var err error
		groups, changed, err = r.scan(bundleHash)
		if err != nil {
			return nil, err
		}
		if !changed {
			return groups, nil
		}
		r.logger.WithFields(logrus.Fields{
			"bundle": bundleHash,
			"pass":   pass,
		}).Debug("Validity changed during scan, rescanning bundle")
	}
	return groups, nil
}

// scan assembles and validates every group once. changed reports that a head
// was marked by someone else in the meantime, making the result stale.
func (r *Reconstructor) scan(bundleHash model.Hash) (groups []Group, changed bool, err error) {
	pointers, err := r.store.BundlePointers(bundleHash)
	if err != nil || len(pointers) == 0 {
		return nil, false, err
	}

	loaded := make(map[int64]*model.Transaction, len(pointers))
	var tails []*model.Transaction
	for _, p := range pointers {
		tx, err := r.store.LoadTransaction(p)
		if err != nil {
			return nil, false, err
		}
		loaded[p] = tx
		if tx.CurrentIndex == 0 && tx.Validity != model.ValidityInvalid {
			tails = append(tails, tx)
		}
	}
	sort.Slice(tails, func(i, j int) bool { return tails[i].Pointer < tails[j].Pointer })

	for _, tail := range tails {
		group, reason := assemble(tail, loaded)
		if reason == Incomplete {
			continue
		}

		if reason == OK {
			if tail.Validity == model.ValidityValid {
				groups = append(groups, group)
				continue
			}
			reason = Validate(group)
		}

		validity := model.ValidityValid
		if reason != OK {
			validity = model.ValidityInvalid
		}
		written, err := r.store.SetValidity(tail.Pointer, validity)
		if err != nil {
			return nil, false, err
		}
		if !written {
			changed = true
			continue
		}

		if reason != OK {
			r.logger.WithFields(logrus.Fields{
				"bundle": bundleHash,
				"tail":   tail.Hash,
				"reason": reason,
			}).Debug("Invalid bundle")
			continue
		}
		tail.Validity = model.ValidityValid
		groups = append(groups, group)
	}

	return groups, changed, nil
}
