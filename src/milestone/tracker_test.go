package milestone

import (
	"testing"

	"github.com/mosaicnetworks/tangle/src/bundle"
	cm "github.com/mosaicnetworks/tangle/src/common"
	"github.com/mosaicnetworks/tangle/src/crypto"
	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/mosaicnetworks/tangle/src/trinary"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSeed  = "COORDINATOR9SEED9COORDINATOR9SEED9COORDINATOR9SEED9COORDINATOR9SEED9COORDINATOR9"
	testDepth = 2
)

// coordinator signs milestones with the leaves of a Merkle tree of one-time
// keys. Leaf i signs the milestones whose index is i modulo the leaf count.
type coordinator struct {
	keys   []trinary.Trits
	levels [][]trinary.Trits
}

func newCoordinator(t *testing.T, depth int) *coordinator {
	c := &coordinator{}
	seed := trinary.MustTrytesToTrits(testSeed)

	var leaves []trinary.Trits
	for i := 0; i < 1<<uint(depth); i++ {
		subseed, err := crypto.Subseed(seed, i)
		require.NoError(t, err)
		key, err := crypto.Key(subseed, 1)
		require.NoError(t, err)
		digests, err := crypto.Digests(key)
		require.NoError(t, err)
		address, err := crypto.Address(digests)
		require.NoError(t, err)
		c.keys = append(c.keys, key)
		leaves = append(leaves, address)
	}

	c.levels = append(c.levels, leaves)
	for len(leaves) > 1 {
		var parents []trinary.Trits
		for i := 0; i < len(leaves); i += 2 {
			parents = append(parents, crypto.HashFromTwoHashes(leaves[i], leaves[i+1]))
		}
		c.levels = append(c.levels, parents)
		leaves = parents
	}
	return c
}

func (c *coordinator) address() model.Hash {
	return model.HashFromTrits(c.levels[len(c.levels)-1][0])
}

// milestone builds a two-transaction milestone bundle approving trunk and
// branch, signed with the leaf of signer.
func (c *coordinator) milestone(t *testing.T, index, signer int64, trunk, branch model.Hash) []*model.Transaction {
	leaf := int(signer % int64(len(c.keys)))

	path := make(trinary.Trits, model.SignatureMessageFragmentTrinarySize)
	for level, i := 0, leaf; level < len(c.levels)-1; level, i = level+1, i>>1 {
		copy(path[level*crypto.HashLength:], c.levels[level][i^1])
	}

	indexTrits := make(trinary.Trits, IndexTrinarySize)
	trinary.PutInt64(index, indexTrits)
	tag := model.TagFromTrits(indexTrits)

	drafts := []*model.Draft{
		{Address: c.address(), Tag: tag, Timestamp: index},
		{Address: model.NullHash, Tag: tag, Timestamp: index, SignatureMessageFragment: path},
	}
	bundle.Finalize(drafts)

	drafts[1].Trunk, drafts[1].Branch = trunk, branch
	siblings := drafts[1].Transaction()

	normalized, err := crypto.NormalizedBundle(siblings.Hash.Trits())
	require.NoError(t, err)
	signature, err := crypto.SignatureFragment(normalized[:crypto.NumberOfFragmentChunks], c.keys[leaf])
	require.NoError(t, err)

	drafts[0].SignatureMessageFragment = signature
	drafts[0].Trunk, drafts[0].Branch = siblings.Hash, trunk
	return []*model.Transaction{drafts[0].Transaction(), siblings}
}

type testTracker struct {
	*Tracker
	ctx   *ledger.Context
	store *storage.Store
}

func newTestTracker(t *testing.T, c *coordinator, startIndex int64) *testTracker {
	store, err := storage.NewInmemStore(cm.NewTestEntry(t, logrus.DebugLevel, "store"))
	require.NoError(t, err)

	ctx := ledger.NewContext(c.address(), testDepth, ledger.DefaultSnapshot(), startIndex)
	logger := cm.NewTestEntry(t, logrus.DebugLevel, "milestone")
	tracker, err := NewTracker(ctx, store, bundle.NewReconstructor(store, logger), logger)
	require.NoError(t, err)

	return &testTracker{Tracker: tracker, ctx: ctx, store: store}
}

func (tt *testTracker) storeAll(t *testing.T, txs ...*model.Transaction) {
	for _, tx := range txs {
		_, err := tt.store.StoreTransaction(tx.Hash, tx, true)
		require.NoError(t, err)
	}
}

func TestIndexFromTag(t *testing.T) {
	c := newCoordinator(t, testDepth)
	txs := c.milestone(t, 13250, 13250, model.NullHash, model.NullHash)
	assert.Equal(t, int64(13250), Index(txs[0]))
}

func TestUpdateLatestMilestone(t *testing.T) {
	c := newCoordinator(t, testDepth)
	tt := newTestTracker(t, c, 0)

	txs := c.milestone(t, 13250, 13250, model.NullHash, model.NullHash)
	tt.storeAll(t, txs...)

	changed, err := tt.UpdateLatestMilestone()
	require.NoError(t, err)
	assert.True(t, changed)

	hash, index := tt.ctx.LatestMilestone()
	assert.Equal(t, txs[0].Hash, hash)
	assert.Equal(t, int64(13250), index)

	recorded, ok := tt.ctx.Milestone(13250)
	require.True(t, ok)
	assert.Equal(t, txs[0].Hash, recorded)

	changed, err = tt.UpdateLatestMilestone()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMilestoneIndexMustGrow(t *testing.T) {
	c := newCoordinator(t, testDepth)
	tt := newTestTracker(t, c, 13250)

	// Correctly signed, but not above the latest index.
	tt.storeAll(t, c.milestone(t, 13250, 13250, model.NullHash, model.NullHash)...)

	changed, err := tt.UpdateLatestMilestone()
	require.NoError(t, err)
	assert.False(t, changed)
	_, index := tt.ctx.LatestMilestone()
	assert.Equal(t, int64(13250), index)

	next := c.milestone(t, 13251, 13251, model.NullHash, model.NullHash)
	tt.storeAll(t, next...)

	changed, err = tt.UpdateLatestMilestone()
	require.NoError(t, err)
	assert.True(t, changed)
	hash, index := tt.ctx.LatestMilestone()
	assert.Equal(t, next[0].Hash, hash)
	assert.Equal(t, int64(13251), index)
}

func TestMilestoneWithWrongLeafIsRejected(t *testing.T) {
	c := newCoordinator(t, testDepth)
	tt := newTestTracker(t, c, 0)

	tt.storeAll(t, c.milestone(t, 13250, 13251, model.NullHash, model.NullHash)...)

	changed, err := tt.UpdateLatestMilestone()
	require.NoError(t, err)
	assert.False(t, changed)
	_, index := tt.ctx.LatestMilestone()
	assert.Equal(t, int64(0), index)
}

func TestMilestoneFromOtherCoordinatorIsIgnored(t *testing.T) {
	c := newCoordinator(t, testDepth)
	tt := newTestTracker(t, c, 0)

	other := newCoordinator(t, testDepth+1)
	txs := other.milestone(t, 13250, 13250, model.NullHash, model.NullHash)
	tt.storeAll(t, txs...)

	changed, err := tt.UpdateLatestMilestone()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestIncompleteMilestoneIsRetried(t *testing.T) {
	c := newCoordinator(t, testDepth)
	tt := newTestTracker(t, c, 0)

	txs := c.milestone(t, 13250, 13250, model.NullHash, model.NullHash)
	tt.storeAll(t, txs[0])

	changed, err := tt.UpdateLatestMilestone()
	require.NoError(t, err)
	assert.False(t, changed)

	tt.storeAll(t, txs[1])

	changed, err = tt.UpdateLatestMilestone()
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestSolidSubtangleMilestone(t *testing.T) {
	c := newCoordinator(t, testDepth)
	tt := newTestTracker(t, c, 0)

	assert.Equal(t, model.Supply, tt.ctx.Snapshot[model.NullHash])

	// The milestone approves a transaction that is not stored yet.
	missing := (&model.Draft{Address: model.NullHash, Timestamp: 7}).Transaction()
	txs := c.milestone(t, 13250, 13250, model.NullHash, missing.Hash)
	tt.storeAll(t, txs...)

	changed, err := tt.UpdateLatestMilestone()
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = tt.UpdateLatestSolidSubtangleMilestone()
	require.NoError(t, err)
	assert.False(t, changed)
	_, solid := tt.ctx.LatestSolidMilestone()
	assert.Equal(t, int64(0), solid)

	tt.storeAll(t, missing)

	changed, err = tt.UpdateLatestSolidSubtangleMilestone()
	require.NoError(t, err)
	assert.True(t, changed)
	hash, solid := tt.ctx.LatestSolidMilestone()
	assert.Equal(t, txs[0].Hash, hash)
	assert.Equal(t, int64(13250), solid)
}

func TestSolidFallsBackToLowerMilestone(t *testing.T) {
	c := newCoordinator(t, testDepth)
	tt := newTestTracker(t, c, 0)

	first := c.milestone(t, 13250, 13250, model.NullHash, model.NullHash)
	tt.storeAll(t, first...)
	_, err := tt.UpdateLatestMilestone()
	require.NoError(t, err)

	missing := (&model.Draft{Address: model.NullHash, Timestamp: 8}).Transaction()
	second := c.milestone(t, 13251, 13251, first[0].Hash, missing.Hash)
	tt.storeAll(t, second...)
	_, err = tt.UpdateLatestMilestone()
	require.NoError(t, err)
	_, latest := tt.ctx.LatestMilestone()
	require.Equal(t, int64(13251), latest)

	changed, err := tt.UpdateLatestSolidSubtangleMilestone()
	require.NoError(t, err)
	assert.True(t, changed)
	_, solid := tt.ctx.LatestSolidMilestone()
	assert.Equal(t, int64(13250), solid)

	tt.storeAll(t, missing)

	changed, err = tt.UpdateLatestSolidSubtangleMilestone()
	require.NoError(t, err)
	assert.True(t, changed)
	_, solid = tt.ctx.LatestSolidMilestone()
	assert.Equal(t, int64(13251), solid)
}

func TestNewTrackerRejectsDeepTree(t *testing.T) {
	store, err := storage.NewInmemStore(cm.NewTestEntry(t, logrus.DebugLevel, "store"))
	require.NoError(t, err)
	logger := cm.NewTestEntry(t, logrus.DebugLevel, "milestone")

	ctx := ledger.NewContext(model.NullHash, MaxDepth+1, ledger.DefaultSnapshot(), 0)
	_, err = NewTracker(ctx, store, bundle.NewReconstructor(store, logger), logger)
	assert.Error(t, err)
}
