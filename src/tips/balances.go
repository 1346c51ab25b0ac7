package tips

import (
	"errors"

	"github.com/mosaicnetworks/tangle/src/model"
)

var (
	// ErrTipAbsent is returned when an inclusion query names an unknown tip.
	ErrTipAbsent = errors.New("One of the tips absents")
	// ErrNotSolid is returned when a walk reaches a transaction without
	// content.
	ErrNotSolid = errors.New("The subtangle is not solid")
)

// Balances returns the balance of each address as confirmed by the latest
// solid milestone, together with that milestone.
func (s *Selector) Balances(addresses []model.Hash) ([]int64, model.Hash, int64, error) {
	s.ledger.Lock()
	defer s.ledger.Unlock()

	milestone, index := s.ledger.LatestSolidMilestone()

	balances := make(map[model.Hash]int64, len(addresses))
	for _, address := range addresses {
		balances[address] = s.ledger.Snapshot[address]
	}

	pointer, err := s.store.TransactionPointer(milestone)
	if err != nil {
		return nil, milestone, index, err
	}

	if pointer > 0 {
		visited := s.store.Visited()
		visited.Clear()

		queue := []int64{pointer}
		for len(queue) > 0 {
			pointer := queue[0]
			queue = queue[1:]

			if !visited.MarkIfUnvisited(pointer) {
				continue
			}

			tx, err := s.store.LoadTransaction(pointer)
			if err != nil {
				return nil, milestone, index, err
			}
			if tx.Value != 0 {
				if balance, ok := balances[tx.Address]; ok {
					balances[tx.Address] = balance + tx.Value
				}
			}
			queue = append(queue, tx.TrunkPointer, tx.BranchPointer)
		}
	}

	res := make([]int64, len(addresses))
	for i, address := range addresses {
		res[i] = balances[address]
	}
	return res, milestone, index, nil
}

// InclusionStates reports, for each transaction, whether it is approved by
// at least one of the tips.
func (s *Selector) InclusionStates(transactions, tips []model.Hash) ([]bool, error) {
	s.ledger.Lock()
	defer s.ledger.Unlock()

	states := make([]bool, len(transactions))
	pending := make(map[model.Hash][]int, len(transactions))
	for i, h := range transactions {
		pending[h] = append(pending[h], i)
	}

	queue := make([]int64, 0, len(tips))
	for _, tip := range tips {
		pointer, err := s.store.TransactionPointer(tip)
		if err != nil {
			return nil, err
		}
		if pointer <= 0 {
			return nil, ErrTipAbsent
		}
		queue = append(queue, pointer)
	}

	visited := s.store.Visited()
	visited.Clear()

	for len(queue) > 0 && len(pending) > 0 {
		pointer := queue[0]
		queue = queue[1:]

		if !visited.MarkIfUnvisited(pointer) {
			continue
		}

		tx, err := s.store.LoadTransaction(pointer)
		if err != nil {
			return nil, err
		}
		if tx.Type == model.Prefilled {
			return nil, ErrNotSolid
		}

		if indexes, ok := pending[tx.Hash]; ok {
			for _, i := range indexes {
				states[i] = true
			}
			delete(pending, tx.Hash)
		}
		queue = append(queue, tx.TrunkPointer, tx.BranchPointer)
	}

	return states, nil
}
