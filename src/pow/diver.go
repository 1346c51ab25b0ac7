// Package pow searches transaction nonces that give the transaction hash the
// requested number of trailing zero trits.
package pow

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/mosaicnetworks/tangle/src/crypto"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/trinary"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Searcher finds nonces.
type Searcher interface {
	// Search writes a nonce into the last HashLength trits of a transaction
	// so that its hash ends with mwm zero trits. It reports false, leaving
	// trits untouched, when ctx is done first.
	Search(ctx context.Context, trits trinary.Trits, mwm int) (bool, error)
}

const (
	stateLength = crypto.StateLength
	hashLength  = crypto.HashLength

	allOnes uint64 = 0xFFFFFFFFFFFFFFFF
)

// Diver searches 64 nonces at a time per worker. Each bit position of a pair
// of words carries one trit of one candidate: (1, 1) is 0, (0, 1) is 1 and
// (1, 0) is -1.
type Diver struct {
	workers int
	logger  *logrus.Entry
}

// NewDiver returns a Diver running workers goroutines per search. Zero or less
// uses one less than the number of CPUs.
func NewDiver(workers int, logger *logrus.Entry) *Diver {
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
		if workers < 1 {
			workers = 1
		}
	}
	return &Diver{
		workers: workers,
		logger:  logger,
	}
}

// Search implements Searcher.
func (d *Diver) Search(ctx context.Context, trits trinary.Trits, mwm int) (bool, error) {
	if len(trits) != model.TrinarySize {
		return false, fmt.Errorf("invalid transaction trits length: %d", len(trits))
	}
	if mwm < 0 || mwm > hashLength {
		return false, fmt.Errorf("invalid min weight magnitude: %d", mwm)
	}

	var low, high [stateLength]uint64
	midState(trits, &low, &high)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var (
		once  sync.Once
		found bool
	)
	for w := 0; w < d.workers; w++ {
		w := w
		g.Go(func() error {
			nonce, ok := dive(ctx, low, high, w, mwm)
			if !ok {
				return nil
			}
			once.Do(func() {
				copy(trits[model.NonceTrinaryOffset:], nonce)
				found = true
				cancel()
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	if d.logger != nil {
		d.logger.WithFields(logrus.Fields{
			"mwm":   mwm,
			"found": found,
		}).Debug("Nonce search done")
	}
	return found, nil
}

// midState absorbs every block but the last one, which is the nonce, and
// seeds the first nonce trits so that the 64 lanes start from distinct values.
func midState(trits trinary.Trits, low, high *[stateLength]uint64) {
	for i := hashLength; i < stateLength; i++ {
		low[i], high[i] = allOnes, allOnes
	}

	var scratchLow, scratchHigh [stateLength]uint64
	offset := 0
	for block := 0; block < (model.TrinarySize-hashLength)/hashLength; block++ {
		for j := 0; j < hashLength; j++ {
			switch trits[offset] {
			case 0:
				low[j], high[j] = allOnes, allOnes
			case 1:
				low[j], high[j] = 0, allOnes
			default:
				low[j], high[j] = allOnes, 0
			}
			offset++
		}
		transform(low, high, &scratchLow, &scratchHigh)
	}

	low[0], high[0] = 0xDB6DB6DB6DB6DB6D, 0xB6DB6DB6DB6DB6DB
	low[1], high[1] = 0xF1F8FC7E3F1F8FC7, 0x8FC7E3F1F8FC7E3F
	low[2], high[2] = 0x7FFFE00FFFFC01FF, 0xFFC01FFFF803FFFF
	low[3], high[3] = 0xFFC0000007FFFFFF, 0x003FFFFFFFFFFFFF
}

// dive runs one worker. Worker w starts w steps apart in the middle third of
// the nonce and then counts up in its last third.
func dive(ctx context.Context, low, high [stateLength]uint64, w, mwm int) (trinary.Trits, bool) {
	for i := 0; i < w; i++ {
		increment(&low, &high, hashLength/3, hashLength/3*2)
	}

	var stateLow, stateHigh, scratchLow, scratchHigh [stateLength]uint64
	for {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}

		increment(&low, &high, hashLength/3*2, hashLength)
		stateLow, stateHigh = low, high
		transform(&stateLow, &stateHigh, &scratchLow, &scratchHigh)

	lanes:
		for bit := 63; bit >= 0; bit-- {
			for i := 0; i < mwm; i++ {
				if (stateLow[hashLength-1-i]>>uint(bit))&1 != (stateHigh[hashLength-1-i]>>uint(bit))&1 {
					continue lanes
				}
			}
			return lane(&low, &high, bit), true
		}
	}
}

// lane extracts the nonce carried by bit.
func lane(low, high *[stateLength]uint64, bit int) trinary.Trits {
	nonce := make(trinary.Trits, hashLength)
	for i := range nonce {
		switch {
		case (low[i]>>uint(bit))&1 == 0:
			nonce[i] = 1
		case (high[i]>>uint(bit))&1 == 0:
			nonce[i] = -1
		}
	}
	return nonce
}

func transform(low, high, scratchLow, scratchHigh *[stateLength]uint64) {
	index := 0
	for round := 0; round < crypto.NumberOfRounds; round++ {
		*scratchLow, *scratchHigh = *low, *high
		for i := 0; i < stateLength; i++ {
			alpha := scratchLow[index]
			beta := scratchHigh[index]
			if index < 365 {
				index += 364
			} else {
				index -= 365
			}
			gamma := scratchHigh[index]
			delta := (alpha | ^gamma) & (scratchLow[index] ^ beta)

			low[i] = ^delta
			high[i] = (alpha ^ gamma) | delta
		}
	}
}

func increment(low, high *[stateLength]uint64, from, to int) {
	for i := from; i < to; i++ {
		switch {
		case low[i] == 0:
			low[i], high[i] = allOnes, 0
		case high[i] == 0:
			high[i] = allOnes
			return
		default:
			low[i] = 0
			return
		}
	}
}
