package crypto

import (
	"testing"

	"github.com/mosaicnetworks/tangle/src/trinary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurlDeterministic(t *testing.T) {
	input := trinary.MustTrytesToTrits("KPWCHICGJZXKE9GSUDXZYUAPLHAKAHYHDXNPHENTERYMMBQOPSQIDENXKLKCEYCPVTZQLEEJVYJZV9BWU")

	a := Hash(input)
	b := Hash(input)
	require.Len(t, a, HashLength)
	assert.Equal(t, a, b)

	for _, trit := range a {
		assert.True(t, trit >= -1 && trit <= 1)
	}

	other := make(trinary.Trits, len(input))
	copy(other, input)
	other[0] = int8((int(other[0])+2)%3) - 1
	assert.NotEqual(t, a, Hash(other))
}

func TestCurlCloneKeepsState(t *testing.T) {
	prefix := make(trinary.Trits, 2*HashLength)
	for i := range prefix {
		prefix[i] = int8(i%3) - 1
	}
	suffix := make(trinary.Trits, HashLength)
	suffix[7] = 1

	curl := NewCurl()
	curl.Absorb(prefix)
	clone := curl.Clone()

	full := make(trinary.Trits, 0, 3*HashLength)
	full = append(full, prefix...)
	full = append(full, suffix...)

	clone.Absorb(suffix)
	out := make(trinary.Trits, HashLength)
	clone.Squeeze(out)

	assert.Equal(t, Hash(full), out)
}

func TestHashFromTwoHashes(t *testing.T) {
	left := make(trinary.Trits, HashLength)
	right := make(trinary.Trits, HashLength)
	left[0], right[1] = 1, -1

	joined := append(append(trinary.Trits{}, left...), right...)
	assert.Equal(t, Hash(joined), HashFromTwoHashes(left, right))
	assert.NotEqual(t, HashFromTwoHashes(left, right), HashFromTwoHashes(right, left))
}
