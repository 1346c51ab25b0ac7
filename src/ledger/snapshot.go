package ledger

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/ugorji/go/codec"
)

// Snapshot is the genesis balance of every address. It is read-only once
// loaded.
type Snapshot map[model.Hash]int64

// DefaultSnapshot holds the whole supply on the null address.
func DefaultSnapshot() Snapshot {
	return Snapshot{model.NullHash: model.Supply}
}

// LoadSnapshot reads a JSON object mapping 81-tryte addresses to balances.
func LoadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw := make(map[string]int64)
	jh := new(codec.JsonHandle)
	if err := codec.NewDecoder(f, jh).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %v", path, err)
	}

	snapshot := make(Snapshot, len(raw))
	for trytes, balance := range raw {
		address, err := model.HashFromTrytes(trytes)
		if err != nil {
			return nil, fmt.Errorf("snapshot address %q: %v", trytes, err)
		}
		snapshot[address] += balance
	}

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Validate checks that balances are positive and add up to the supply.
func (s Snapshot) Validate() error {
	var total int64
	for address, balance := range s {
		if balance <= 0 || balance > model.Supply {
			return fmt.Errorf("invalid snapshot balance %d for %s", balance, address)
		}
		total += balance
		if total > model.Supply {
			return fmt.Errorf("snapshot exceeds supply")
		}
	}
	if total != model.Supply {
		return fmt.Errorf("snapshot total %d differs from supply %d", total, model.Supply)
	}
	return nil
}

// State returns a mutable copy of the balances.
func (s Snapshot) State() map[model.Hash]int64 {
	state := make(map[model.Hash]int64, len(s))
	for address, balance := range s {
		state[address] = balance
	}
	return state
}
