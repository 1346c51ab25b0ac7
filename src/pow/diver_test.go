package pow

import (
	"context"
	"testing"
	"time"

	cm "github.com/mosaicnetworks/tangle/src/common"
	"github.com/mosaicnetworks/tangle/src/crypto"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/trinary"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrits() trinary.Trits {
	trits := make(trinary.Trits, model.TrinarySize)
	for i := range trits {
		trits[i] = int8((i*7)%3) - 1
	}
	return trits
}

func TestDiverFindsNonce(t *testing.T) {
	d := NewDiver(2, cm.NewTestEntry(t, logrus.DebugLevel, "pow"))

	for _, mwm := range []int{0, 1, 5, 9} {
		trits := testTrits()
		found, err := d.Search(context.Background(), trits, mwm)
		require.NoError(t, err)
		require.True(t, found)

		assert.Equal(t, testTrits()[:model.NonceTrinaryOffset], trits[:model.NonceTrinaryOffset])

		hash := crypto.Hash(trits)
		assert.True(t, trinary.IsZero(hash[crypto.HashLength-mwm:]), "mwm %d", mwm)
	}
}

func TestDiverNonceIsAcceptedByCodec(t *testing.T) {
	d := NewDiver(0, nil)

	trits := (&model.Draft{Value: 3, Timestamp: 12}).Trits()
	found, err := d.Search(context.Background(), trits, 7)
	require.NoError(t, err)
	require.True(t, found)

	decoded, err := model.FromBytes(trinary.Bytes(trits), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), decoded.Value)
	assert.Equal(t, int64(12), decoded.Timestamp())
}

func TestDiverCancel(t *testing.T) {
	d := NewDiver(2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	trits := testTrits()
	found, err := d.Search(ctx, trits, crypto.HashLength)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, testTrits(), trits)
}

func TestDiverRejectsBadInput(t *testing.T) {
	d := NewDiver(1, nil)

	_, err := d.Search(context.Background(), make(trinary.Trits, 10), 1)
	assert.Error(t, err)

	_, err = d.Search(context.Background(), testTrits(), crypto.HashLength+1)
	assert.Error(t, err)
}
