package node

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/mosaicnetworks/tangle/src/bundle"
	cm "github.com/mosaicnetworks/tangle/src/common"
	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/milestone"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/net"
	"github.com/mosaicnetworks/tangle/src/peers"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/mosaicnetworks/tangle/src/tips"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	*Node
	trans *net.InmemTransport

	// peer plays the only neighbor of the node.
	peer *net.InmemTransport
}

func newTestNode(t *testing.T) *testNode {
	logger := cm.NewTestEntry(t, logrus.DebugLevel, "test")

	store, err := storage.NewInmemStore(logger)
	require.NoError(t, err)

	ctx := ledger.NewContext(model.NullHash, 2, ledger.DefaultSnapshot(), 0)
	bundles := bundle.NewReconstructor(store, logger)
	tracker, err := milestone.NewTracker(ctx, store, bundles, logger)
	require.NoError(t, err)

	addr, trans := net.NewInmemTransport("")
	peerAddr, peer := net.NewInmemTransport("")
	trans.Connect(peerAddr, peer)
	peer.Connect(addr, trans)

	conf := TestConfig(t)
	conf.MinWeightMagnitude = 0
	conf.QueueSize = 10

	n := NewNode(conf,
		store,
		ctx,
		tracker,
		tips.NewRequester(ctx, store, logger),
		peers.NewNeighbors([]string{peerAddr}),
		trans,
	)
	n.milestoneTicker = ticker.NewForce(time.Hour)
	n.tipTicker = ticker.NewForce(time.Hour)

	return &testNode{Node: n, trans: trans, peer: peer}
}

func message(timestamp int64, trunk, branch model.Hash) *model.Transaction {
	drafts := []*model.Draft{{Timestamp: timestamp}}
	bundle.Finalize(drafts)
	return bundle.Link(drafts, trunk, branch)[0]
}

func datagram(from string, tx *model.Transaction, requested model.Hash) net.Datagram {
	return net.Datagram{
		From: from,
		Data: net.NewPacket(tx.Bytes, requested).Marshal(),
	}
}

// expect waits for a packet sent to the peer.
func (tn *testNode) expect(t *testing.T) net.Packet {
	select {
	case d := <-tn.peer.Consumer():
		var p net.Packet
		require.NoError(t, p.Unmarshal(d.Data))
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for packet")
	}
	return net.Packet{}
}

func (tn *testNode) expectNothing(t *testing.T) {
	select {
	case d := <-tn.peer.Consumer():
		t.Fatalf("unexpected packet of %d bytes", len(d.Data))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProcessDatagram(t *testing.T) {
	tn := newTestNode(t)
	defer tn.Shutdown()

	peerAddr := tn.peer.LocalAddr()
	neighbor := tn.neighbors.Get(peerAddr)
	tx := message(1, model.NullHash, model.NullHash)

	// unknown neighbors are ignored
	tn.processDatagram(datagram("stranger", tx, model.NullHash))
	stored, err := tn.store.LoadTransactionByHash(tx.Hash)
	require.NoError(t, err)
	assert.Nil(t, stored)

	tn.processDatagram(datagram(peerAddr, tx, model.NullHash))
	stored, err = tn.store.LoadTransactionByHash(tx.Hash)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, tn.QueueLen())

	// a known transaction is counted but not queued again
	tn.processDatagram(datagram(peerAddr, tx, model.NullHash))

	tn.processDatagram(net.Datagram{From: peerAddr, Data: []byte("garbage")})

	// no hash has all its trits zero
	tn.conf.MinWeightMagnitude = model.HashTrinarySize
	tn.processDatagram(datagram(peerAddr, message(2, tx.Hash, tx.Hash), model.NullHash))

	assert.Equal(t, peers.NeighborInfo{
		Address:                     peerAddr,
		NumberOfAllTransactions:     4,
		NumberOfNewTransactions:     1,
		NumberOfInvalidTransactions: 2,
	}, neighbor.Info())

	// null requests are not answered
	tn.expectNothing(t)
}

func TestReplyRequested(t *testing.T) {
	tn := newTestNode(t)
	defer tn.Shutdown()

	peerAddr := tn.peer.LocalAddr()

	known := message(1, model.NullHash, model.NullHash)
	_, err := tn.store.StoreTransaction(known.Hash, known, true)
	require.NoError(t, err)

	tx := message(2, model.NullHash, model.NullHash)
	tn.processDatagram(datagram(peerAddr, tx, known.Hash))

	p := tn.expect(t)
	assert.Equal(t, known.Bytes, p.Transaction)
	assert.Equal(t, model.NullHash, p.Requested)

	// unknown requests are not answered
	tn.processDatagram(datagram(peerAddr, tx, message(3, model.NullHash, model.NullHash).Hash))
	tn.expectNothing(t)
}

func TestReplyRequestsMissing(t *testing.T) {
	tn := newTestNode(t)
	defer tn.Shutdown()

	peerAddr := tn.peer.LocalAddr()

	missing := message(1, model.NullHash, model.NullHash)
	latest := message(2, missing.Hash, model.NullHash)
	_, err := tn.store.StoreTransaction(latest.Hash, latest, true)
	require.NoError(t, err)
	require.True(t, tn.ledger.SetLatestMilestone(latest.Hash, 1))

	// asking for the transaction itself means asking for the latest milestone
	tx := message(3, model.NullHash, model.NullHash)
	tn.processDatagram(datagram(peerAddr, tx, tx.Hash))

	p := tn.expect(t)
	assert.Equal(t, latest.Bytes, p.Transaction)
	assert.Equal(t, missing.Hash, p.Requested)
}

func TestBroadcast(t *testing.T) {
	tn := newTestNode(t)
	tn.RunAsync()
	defer tn.Shutdown()

	light := message(1, model.NullHash, model.NullHash)
	tn.Broadcast(light)
	assert.Equal(t, light.Bytes, tn.expect(t).Transaction)

	assert.Equal(t, 0, tn.QueueLen())
}

func TestReceiveAndBroadcast(t *testing.T) {
	tn := newTestNode(t)
	tn.RunAsync()
	defer tn.Shutdown()

	tx := message(1, model.NullHash, model.NullHash)
	require.NoError(t, tn.peer.Send(tn.trans.LocalAddr(), net.NewPacket(tx.Bytes, model.NullHash).Marshal()))

	// the new transaction is gossiped back to every neighbor
	assert.Equal(t, tx.Bytes, tn.expect(t).Transaction)

	stored, err := tn.store.LoadTransactionByHash(tx.Hash)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestRequestTips(t *testing.T) {
	tn := newTestNode(t)
	tn.RunAsync()
	defer tn.Shutdown()

	force := tn.tipTicker.(*ticker.Force)

	// nothing to send without a milestone
	force.Force <- time.Now()
	tn.expectNothing(t)

	latest := message(1, model.NullHash, model.NullHash)
	_, err := tn.store.StoreTransaction(latest.Hash, latest, true)
	require.NoError(t, err)
	require.True(t, tn.ledger.SetLatestMilestone(latest.Hash, 1))

	force.Force <- time.Now()
	p := tn.expect(t)
	assert.Equal(t, latest.Bytes, p.Transaction)
	assert.Equal(t, latest.Hash, p.Requested)
}

func TestUpdateMilestonesWithoutCandidates(t *testing.T) {
	tn := newTestNode(t)
	tn.RunAsync()

	tn.milestoneTicker.(*ticker.Force).Force <- time.Now()
	tn.Shutdown()

	hash, index := tn.ledger.LatestSolidMilestone()
	assert.Equal(t, model.NullHash, hash)
	assert.Equal(t, int64(0), index)
	assert.Equal(t, Shutdown, tn.GetState())
}

func TestBroadcastQueue(t *testing.T) {
	q := newBroadcastQueue(2)

	tx := func(timestamp int64, weight int) *model.Transaction {
		m := message(timestamp, model.NullHash, model.NullHash)
		m.WeightMagnitude = weight
		return m
	}

	a := tx(1, 1)
	b := tx(2, 3)
	c := tx(3, 2)
	d := tx(4, 0)

	assert.True(t, q.Push(a))
	assert.False(t, q.Push(a))
	assert.True(t, q.Push(b))
	assert.True(t, q.Push(c))
	assert.Equal(t, 2, q.Len())
	assert.False(t, q.Push(d))

	assert.Equal(t, b, q.Pop())
	assert.Equal(t, c, q.Pop())
	assert.Nil(t, q.Pop())

	// a dropped transaction can be queued again
	assert.True(t, q.Push(a))
}

func TestControlTimer(t *testing.T) {
	timer := NewDefaultControlTimer()
	go timer.Run(time.Millisecond)
	defer timer.Shutdown()

	select {
	case <-timer.tickCh:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	assert.False(t, timer.Set())

	timer.resetCh <- time.Hour
	assert.Eventually(t, timer.Set, time.Second, time.Millisecond)

	timer.stopCh <- struct{}{}
	timer.resetCh <- time.Millisecond
	select {
	case <-timer.tickCh:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}
