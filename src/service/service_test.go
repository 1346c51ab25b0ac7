package service

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/tangle/src/bundle"
	cm "github.com/mosaicnetworks/tangle/src/common"
	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/peers"
	"github.com/mosaicnetworks/tangle/src/pow"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/mosaicnetworks/tangle/src/tips"
	"github.com/mosaicnetworks/tangle/src/trinary"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"
)

var nullTrytes = model.NullHash.String()

type fakeGossip struct {
	mu        sync.Mutex
	broadcast []*model.Transaction
	neighbors *peers.Neighbors
}

func (g *fakeGossip) Broadcast(tx *model.Transaction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.broadcast = append(g.broadcast, tx)
}

func (g *fakeGossip) QueueLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.broadcast)
}

func (g *fakeGossip) Neighbors() *peers.Neighbors {
	return g.neighbors
}

// blockingSearcher never finds a nonce.
type blockingSearcher struct{}

func (blockingSearcher) Search(ctx context.Context, trits trinary.Trits, mwm int) (bool, error) {
	<-ctx.Done()
	return false, nil
}

type fixture struct {
	store  *storage.Store
	gossip *fakeGossip
	api    *API
	server *httptest.Server
}

func newFixture(t *testing.T, searcher pow.Searcher) *fixture {
	logger := cm.NewTestEntry(t, logrus.DebugLevel, "service")

	store, err := storage.NewInmemStore(logger)
	require.NoError(t, err)

	ctx := ledger.NewContext(model.NullHash, 2, ledger.DefaultSnapshot(), 0)
	bundles := bundle.NewReconstructor(store, logger)
	gossip := &fakeGossip{neighbors: peers.NewNeighbors(nil)}

	api := NewAPI(store,
		ctx,
		tips.NewSelector(ctx, store, bundles, logger),
		tips.NewRequester(ctx, store, logger),
		gossip,
		searcher,
		logger)

	server := httptest.NewServer(NewService("", api, logger).Handler())
	t.Cleanup(server.Close)

	return &fixture{
		store:  store,
		gossip: gossip,
		api:    api,
		server: server,
	}
}

// post sends req and decodes the response into res.
func (f *fixture) post(t *testing.T, req interface{}, res interface{}) int {
	var body []byte
	require.NoError(t, codec.NewEncoderBytes(&body, new(codec.JsonHandle)).Encode(req))

	resp, err := http.Post(f.server.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.NoError(t, codec.NewDecoder(resp.Body, new(codec.JsonHandle)).Decode(res))
	return resp.StatusCode
}

func (f *fixture) expectError(t *testing.T, req interface{}, msg string) {
	var res ErrorResponse
	assert.Equal(t, http.StatusBadRequest, f.post(t, req, &res))
	assert.Contains(t, res.Error, msg)
}

func message(timestamp int64, tag string, trunk, branch model.Hash) *model.Transaction {
	t, _ := model.TagFromTrytes(tag)
	drafts := []*model.Draft{{Timestamp: timestamp, Tag: t}}
	bundle.Finalize(drafts)
	return bundle.Link(drafts, trunk, branch)[0]
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, blockingSearcher{})

	f.expectError(t, map[string]interface{}{}, "'command' parameter has not been specified")
	f.expectError(t, Request{Command: "dance"}, "Command 'dance' is unknown")
	f.expectError(t, Request{Command: "getTrytes", Hashes: []string{"ABC"}}, "Invalid hash")
	f.expectError(t, Request{Command: "storeTransactions", Trytes: []string{"ABC"}}, "Invalid trytes")

	resp, err := http.Get(f.server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(f.server.URL, "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStoreAndFindTransactions(t *testing.T) {
	f := newFixture(t, blockingSearcher{})

	a := message(1, "FOO", model.NullHash, model.NullHash)
	b := message(2, "BAR", a.Hash, model.NullHash)

	var empty EmptyResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command: "storeTransactions",
		Trytes:  []string{a.Trytes(), b.Trytes()},
	}, &empty))

	var trytes GetTrytesResponse
	missing := message(3, "", model.NullHash, model.NullHash)
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command: "getTrytes",
		Hashes:  []string{b.Hash.String(), missing.Hash.String()},
	}, &trytes))
	require.Len(t, trytes.Trytes, 2)
	require.NotNil(t, trytes.Trytes[0])
	assert.Equal(t, b.Trytes(), *trytes.Trytes[0])
	assert.Nil(t, trytes.Trytes[1])

	var found FindTransactionsResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command: "findTransactions",
		Tags:    []string{"FOO", "BAR"},
	}, &found))
	assert.Equal(t, []string{a.Hash.String(), b.Hash.String()}, found.Hashes)

	// kinds intersect
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command:   "findTransactions",
		Tags:      []string{"FOO", "BAR"},
		Approvees: []string{a.Hash.String()},
	}, &found))
	assert.Equal(t, []string{b.Hash.String()}, found.Hashes)

	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command: "findTransactions",
		Bundles: []string{a.Bundle.String()},
	}, &found))
	assert.Equal(t, []string{a.Hash.String()}, found.Hashes)

	var tipsRes GetTipsResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{Command: "getTips"}, &tipsRes))
	assert.Equal(t, []string{b.Hash.String()}, tipsRes.Hashes)
}

func TestBroadcastTransactions(t *testing.T) {
	f := newFixture(t, blockingSearcher{})

	tx := message(1, "", model.NullHash, model.NullHash)

	var empty EmptyResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command: "broadcastTransactions",
		Trytes:  []string{tx.Trytes()},
	}, &empty))

	require.Len(t, f.gossip.broadcast, 1)
	assert.Equal(t, tx.Hash, f.gossip.broadcast[0].Hash)
	assert.Equal(t, model.HashTrinarySize, f.gossip.broadcast[0].WeightMagnitude)
}

func TestNeighbors(t *testing.T) {
	f := newFixture(t, blockingSearcher{})

	var added AddedNeighborsResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command: "addNeighbors",
		URIs:    []string{"udp://127.0.0.1:14600", "udp://127.0.0.1:14601", "udp://127.0.0.1:14600"},
	}, &added))
	assert.Equal(t, 2, added.AddedNeighbors)

	f.expectError(t, Request{Command: "addNeighbors", URIs: []string{"tcp://127.0.0.1:1"}}, "Invalid uri")

	var removed RemovedNeighborsResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command: "removeNeighbors",
		URIs:    []string{"udp://127.0.0.1:14601", "udp://127.0.0.1:14602"},
	}, &removed))
	assert.Equal(t, 1, removed.RemovedNeighbors)

	var neighbors GetNeighborsResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{Command: "getNeighbors"}, &neighbors))
	assert.Equal(t, []peers.NeighborInfo{{Address: "127.0.0.1:14600"}}, neighbors.Neighbors)
}

func TestLedgerQueries(t *testing.T) {
	f := newFixture(t, blockingSearcher{})

	f.expectError(t, Request{Command: "getBalances", Threshold: 0}, "Illegal 'threshold'")
	f.expectError(t, Request{Command: "getBalances", Threshold: 101}, "Illegal 'threshold'")

	var balances GetBalancesResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command:   "getBalances",
		Addresses: []string{nullTrytes},
		Threshold: 100,
	}, &balances))
	assert.Equal(t, []string{"2779530283277761"}, balances.Balances)
	assert.Equal(t, nullTrytes, balances.Milestone)
	assert.Equal(t, int64(0), balances.MilestoneIndex)

	var states GetInclusionStatesResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command:      "getInclusionStates",
		Transactions: []string{nullTrytes},
		Tips:         []string{nullTrytes},
	}, &states))
	assert.Equal(t, []bool{true}, states.States)

	absent := message(1, "", model.NullHash, model.NullHash)
	f.expectError(t, Request{
		Command:      "getInclusionStates",
		Transactions: []string{nullTrytes},
		Tips:         []string{absent.Hash.String()},
	}, "One of the tips absents")

	var toApprove GetTransactionsToApproveResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command: "getTransactionsToApprove",
		Depth:   1,
	}, &toApprove))
	assert.Equal(t, nullTrytes, toApprove.TrunkTransaction)
	assert.Equal(t, nullTrytes, toApprove.BranchTransaction)

	var info GetNodeInfoResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{Command: "getNodeInfo"}, &info))
	assert.Equal(t, AppName, info.AppName)
	assert.Equal(t, nullTrytes, info.LatestMilestone)
	assert.Equal(t, 1, info.Tips)
}

func TestAttachToTangle(t *testing.T) {
	f := newFixture(t, pow.NewDiver(2, nil))

	trunk := message(1, "", model.NullHash, model.NullHash)
	branch := message(2, "", model.NullHash, model.NullHash)
	first := message(3, "", model.NullHash, model.NullHash)
	second := message(4, "", model.NullHash, model.NullHash)

	var res AttachToTangleResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{
		Command:            "attachToTangle",
		TrunkTransaction:   trunk.Hash.String(),
		BranchTransaction:  branch.Hash.String(),
		MinWeightMagnitude: 3,
		Trytes:             []string{first.Trytes(), second.Trytes()},
	}, &res))
	require.Len(t, res.Trytes, 2)

	attachedSecond, err := model.FromTrytes(res.Trytes[0], 3)
	require.NoError(t, err)
	attachedFirst, err := model.FromTrytes(res.Trytes[1], 3)
	require.NoError(t, err)

	assert.Equal(t, trunk.Hash, attachedFirst.Trunk)
	assert.Equal(t, branch.Hash, attachedFirst.Branch)
	assert.Equal(t, attachedFirst.Hash, attachedSecond.Trunk)
	assert.Equal(t, trunk.Hash, attachedSecond.Branch)
	assert.Equal(t, first.Bundle, attachedFirst.Bundle)

	f.expectError(t, Request{
		Command:            "attachToTangle",
		TrunkTransaction:   "A",
		BranchTransaction:  branch.Hash.String(),
		MinWeightMagnitude: 3,
	}, "Invalid trunkTransaction")
}

func TestInterruptAttachingToTangle(t *testing.T) {
	f := newFixture(t, blockingSearcher{})

	tx := message(1, "", model.NullHash, model.NullHash)

	done := make(chan AttachToTangleResponse)
	go func() {
		var res AttachToTangleResponse
		f.post(t, Request{
			Command:            "attachToTangle",
			TrunkTransaction:   nullTrytes,
			BranchTransaction:  nullTrytes,
			MinWeightMagnitude: 3,
			Trytes:             []string{tx.Trytes()},
		}, &res)
		done <- res
	}()

	require.Eventually(t, func() bool {
		f.api.attachLock.Lock()
		defer f.api.attachLock.Unlock()
		return len(f.api.attaching) == 1
	}, 2*time.Second, 5*time.Millisecond)

	var empty EmptyResponse
	require.Equal(t, http.StatusOK, f.post(t, Request{Command: "interruptAttachingToTangle"}, &empty))

	select {
	case res := <-done:
		assert.Empty(t, res.Trytes)
	case <-time.After(2 * time.Second):
		t.Fatal("attachToTangle was not interrupted")
	}
}
