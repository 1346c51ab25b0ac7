package tips

import (
	"github.com/mosaicnetworks/tangle/src/bundle"
	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/sirupsen/logrus"
)

// Selector chooses transactions for new transactions to approve, and answers
// the balance and inclusion queries that need the same DAG walks. All its
// walks run inside the consensus critical section of the ledger context.
type Selector struct {
	ledger  *ledger.Context
	store   *storage.Store
	bundles *bundle.Reconstructor
	logger  *logrus.Entry
}

// NewSelector ...
func NewSelector(ctx *ledger.Context,
	store *storage.Store,
	bundles *bundle.Reconstructor,
	logger *logrus.Entry) *Selector {

	return &Selector{
		ledger:  ctx,
		store:   store,
		bundles: bundles,
		logger:  logger,
	}
}

type tail struct {
	hash    model.Hash
	pointer int64
}

// SelectTipToApprove returns the tail that approves the most transactions not
// yet confirmed by the latest solid milestone (or by extraTip when given)
// without spending more than any address holds. It returns the solid
// milestone when no tail qualifies, and nil when the subtangle below the
// starting point is not solid.
//
// With extraTip, tails already approved by extraTip are not candidates, and
// the candidates are searched from depth bundles below the solid milestone.
func (s *Selector) SelectTipToApprove(extraTip *model.Hash, depth int) (*model.Hash, error) {
	s.ledger.Lock()
	defer s.ledger.Unlock()

	milestone, _ := s.ledger.LatestSolidMilestone()
	visited := s.store.Visited()

	start := milestone
	if extraTip != nil {
		start = *extraTip
	}

	visited.Clear()
	state, err := s.confirmedState(start)
	if err != nil || state == nil {
		return nil, err
	}
	visited.Save()
	visited.Clear()

	from := milestone
	if extraTip != nil {
		if from, err = s.referenceTail(milestone, depth); err != nil {
			return nil, err
		}
	}

	tails, err := s.collectTails(from)
	if err != nil {
		return nil, err
	}

	if extraTip != nil {
		visited.Restore()
		remaining := tails[:0]
		for _, t := range tails {
			if !visited.IsVisited(t.pointer) {
				remaining = append(remaining, t)
			}
		}
		tails = remaining
	}

	s.logger.WithField("tails", len(tails)).Debug("Analyzing tails")

	best, bestRating := milestone, 0
	for _, t := range tails {
		visited.Restore()

		rating, err := s.rate(t, state)
		if err != nil {
			return nil, err
		}
		if rating == 0 {
			continue
		}
		if rating > bestRating || (rating == bestRating && t.hash.Less(best)) {
			best, bestRating = t.hash, rating
		}
	}

	s.logger.WithFields(logrus.Fields{
		"tip":    best,
		"rating": bestRating,
	}).Debug("Selected tip")

	return &best, nil
}

// confirmedState folds the transfers of every bundle approved by start into
// the snapshot, dropping emptied addresses. It returns nil when the past cone
// of start is incomplete, holds an invalid bundle, or overspends.
func (s *Selector) confirmedState(start model.Hash) (map[model.Hash]int64, error) {
	pointer, err := s.store.TransactionPointer(start)
	if err != nil || pointer <= 0 {
		return nil, err
	}

	state := s.ledger.Snapshot.State()
	visited := s.store.Visited()

	analyzed := 0
	queue := []int64{pointer}
	for len(queue) > 0 {
		pointer := queue[0]
		queue = queue[1:]

		if !visited.MarkIfUnvisited(pointer) {
			continue
		}
		analyzed++

		tx, err := s.store.LoadTransaction(pointer)
		if err != nil {
			return nil, err
		}
		if tx.Type == model.Prefilled {
			return nil, nil
		}

		if tx.IsTail() {
			group, err := s.group(tx)
			if err != nil || group == nil {
				return nil, err
			}
			for _, member := range group {
				if member.Value != 0 {
					state[member.Address] += member.Value
				}
			}
		}

		queue = append(queue, tx.TrunkPointer, tx.BranchPointer)
	}

	s.logger.WithField("transactions", analyzed).Debug("Confirmed transactions")

	for address, balance := range state {
		if balance < 0 {
			s.logger.WithFields(logrus.Fields{
				"address": address,
				"balance": balance,
			}).Error("Ledger inconsistency detected")
			return nil, nil
		}
		if balance == 0 {
			delete(state, address)
		}
	}

	return state, nil
}

// group returns the valid group headed by tx, or nil.
func (s *Selector) group(tx *model.Transaction) (bundle.Group, error) {
	groups, err := s.bundles.Reconstitute(tx.Bundle)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Head().Pointer == tx.Pointer {
			return g, nil
		}
	}
	return nil, nil
}

// referenceTail walks down from the milestone by trunks, one bundle per step,
// for at most depth bundles or until it reaches the genesis.
func (s *Selector) referenceTail(milestone model.Hash, depth int) (model.Hash, error) {
	pointer, err := s.store.TransactionPointer(milestone)
	if err != nil || pointer == 0 {
		return milestone, err
	}
	tx, err := s.store.LoadTransaction(pointer)
	if err != nil {
		return milestone, err
	}

	tip := milestone
	for ; depth > 0 && !tip.IsNull(); depth-- {
		tip = tx.Hash
		for {
			if tx, err = s.store.LoadTransaction(tx.TrunkPointer); err != nil {
				return tip, err
			}
			if tx.IsTail() {
				break
			}
		}
	}
	return tip, nil
}

// collectTails walks the approvers of from and returns every tail with
// content it reaches.
func (s *Selector) collectTails(from model.Hash) ([]tail, error) {
	pointer, err := s.store.TransactionPointer(from)
	if err != nil || pointer == 0 {
		return nil, err
	}
	if pointer < 0 {
		pointer = -pointer
	}

	visited := s.store.Visited()

	var tails []tail
	queue := []int64{pointer}
	for len(queue) > 0 {
		pointer := queue[0]
		queue = queue[1:]

		if !visited.MarkIfUnvisited(pointer) {
			continue
		}

		tx, err := s.store.LoadTransaction(pointer)
		if err != nil {
			return nil, err
		}
		if tx.Type == model.Filled && tx.IsTail() {
			tails = append(tails, tail{hash: tx.Hash, pointer: tx.Pointer})
		}

		approvers, err := s.store.ApproverPointers(tx.Hash)
		if err != nil {
			return nil, err
		}
		queue = append(queue, approvers...)
	}
	return tails, nil
}

// rate returns the number of transactions t would confirm on top of the
// visited ones, or 0 if t is not acceptable: part of its past cone is
// missing, it confirms a partial or invalid bundle, or it overspends.
func (s *Selector) rate(t tail, state map[model.Hash]int64) (int, error) {
	visited := s.store.Visited()

	var extra []*model.Transaction
	queue := []int64{t.pointer}
	for len(queue) > 0 {
		pointer := queue[0]
		queue = queue[1:]

		if !visited.MarkIfUnvisited(pointer) {
			continue
		}

		tx, err := s.store.LoadTransaction(pointer)
		if err != nil {
			return 0, err
		}
		if tx.Type == model.Prefilled {
			return 0, nil
		}
		extra = append(extra, tx)
		queue = append(queue, tx.TrunkPointer, tx.BranchPointer)
	}

	uncovered := make(map[int64]struct{}, len(extra))
	for _, tx := range extra {
		uncovered[tx.Pointer] = struct{}{}
	}
	for _, tx := range extra {
		if !tx.IsTail() {
			continue
		}
		group, err := s.group(tx)
		if err != nil {
			return 0, err
		}
		for _, member := range group {
			if _, ok := uncovered[member.Pointer]; !ok {
				return 0, nil
			}
			delete(uncovered, member.Pointer)
		}
	}
	if len(uncovered) > 0 {
		return 0, nil
	}

	balances := make(map[model.Hash]int64, len(state))
	for address, balance := range state {
		balances[address] = balance
	}
	for _, tx := range extra {
		if tx.Value != 0 {
			balances[tx.Address] += tx.Value
		}
	}
	for _, balance := range balances {
		if balance < 0 {
			return 0, nil
		}
	}

	return len(extra), nil
}
