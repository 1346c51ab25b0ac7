package tips

import (
	"sync"

	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/sirupsen/logrus"
)

// Requester keeps the queue of transactions to ask neighbors for: the
// referenced-only transactions in the past cone of the latest milestone.
type Requester struct {
	ledger *ledger.Context
	store  *storage.Store
	logger *logrus.Entry

	mu    sync.Mutex
	queue []model.Hash
}

// NewRequester ...
func NewRequester(ctx *ledger.Context, store *storage.Store, logger *logrus.Entry) *Requester {
	return &Requester{
		ledger: ctx,
		store:  store,
		logger: logger,
	}
}

// Next pops a hash to request. When the queue is empty it is refilled from
// the latest milestone first. It returns the null hash when nothing is
// missing.
func (r *Requester) Next() (model.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		if err := r.refill(); err != nil {
			return model.NullHash, err
		}
	}
	if len(r.queue) == 0 {
		return model.NullHash, nil
	}

	last := len(r.queue) - 1
	hash := r.queue[last]
	r.queue = r.queue[:last]
	return hash, nil
}

// Len is the number of hashes waiting to be requested.
func (r *Requester) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Requester) refill() error {
	r.ledger.Lock()
	defer r.ledger.Unlock()

	milestone, _ := r.ledger.LatestMilestone()
	pointer, err := r.store.TransactionPointer(milestone)
	if err != nil || pointer == 0 {
		return err
	}
	if pointer < 0 {
		r.queue = append(r.queue, milestone)
		return nil
	}

	visited := r.store.Visited()
	visited.Clear()

	queue := []int64{pointer}
	for len(queue) > 0 {
		pointer := queue[0]
		queue = queue[1:]

		if !visited.MarkIfUnvisited(pointer) {
			continue
		}

		tx, err := r.store.LoadTransaction(pointer)
		if err != nil {
			return err
		}
		if tx.Type == model.Prefilled {
			r.queue = append(r.queue, tx.Hash)
			continue
		}
		queue = append(queue, tx.TrunkPointer, tx.BranchPointer)
	}

	if len(r.queue) > 0 {
		r.logger.WithField("missing", len(r.queue)).Debug("Transactions to request")
	}
	return nil
}
