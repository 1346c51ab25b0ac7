package crypto

import "github.com/mosaicnetworks/tangle/src/trinary"

// Curl parameters.
const (
	HashLength     = 243
	StateLength    = 3 * HashLength
	NumberOfRounds = 27
)

var truthTable = [9]int8{1, 0, -1, 1, -1, 0, -1, 1, 0}

// Curl is a ternary sponge. It is not safe for concurrent use.
type Curl struct {
	state      [StateLength]int8
	scratchpad [StateLength]int8
}

// NewCurl returns a sponge with a zeroed state.
func NewCurl() *Curl {
	return &Curl{}
}

// Absorb feeds trits into the sponge, one HashLength block at a time. A short
// final block overwrites only the head of the state.
func (c *Curl) Absorb(trits trinary.Trits) {
	for offset := 0; ; offset += HashLength {
		n := len(trits) - offset
		if n > HashLength {
			n = HashLength
		}
		if n > 0 {
			copy(c.state[:n], trits[offset:offset+n])
		}
		c.transform()
		if n < HashLength || offset+HashLength >= len(trits) {
			return
		}
	}
}

// Squeeze fills out from the sponge, transforming after each block.
func (c *Curl) Squeeze(out trinary.Trits) {
	for offset := 0; ; offset += HashLength {
		n := len(out) - offset
		if n > HashLength {
			n = HashLength
		}
		if n > 0 {
			copy(out[offset:offset+n], c.state[:n])
		}
		c.transform()
		if n < HashLength || offset+HashLength >= len(out) {
			return
		}
	}
}

// Reset zeroes the state.
func (c *Curl) Reset() {
	c.state = [StateLength]int8{}
}

// Clone returns an independent copy of the sponge.
func (c *Curl) Clone() *Curl {
	clone := &Curl{}
	clone.state = c.state
	return clone
}

func (c *Curl) transform() {
	index := 0
	for round := 0; round < NumberOfRounds; round++ {
		c.scratchpad = c.state
		for i := 0; i < StateLength; i++ {
			a := c.scratchpad[index]
			if index < 365 {
				index += 364
			} else {
				index -= 365
			}
			c.state[i] = truthTable[int(a)+int(c.scratchpad[index])*3+4]
		}
	}
}
