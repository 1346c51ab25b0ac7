package tangle

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/mosaicnetworks/tangle/src/bundle"
	"github.com/mosaicnetworks/tangle/src/config"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/peers"
	"github.com/mosaicnetworks/tangle/src/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	c := config.NewTestConfig(t, logrus.DebugLevel)
	c.SetDataDir(t.TempDir())
	c.UDPAddr = "127.0.0.1:0"
	c.ServiceAddr = "127.0.0.1:0"
	c.MilestonePeriod = 100 * time.Millisecond
	c.TipRequestPeriod = 100 * time.Millisecond
	c.Testnet = true
	c.MaxPowWorkers = 1
	return c
}

func startTangle(t *testing.T, c *config.Config) *Tangle {
	engine := NewTangle(c)
	require.NoError(t, engine.Init())

	done := make(chan struct{})
	go func() {
		engine.Run()
		close(done)
	}()

	t.Cleanup(func() {
		engine.Shutdown()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("node did not stop")
		}
	})

	return engine
}

func TestInitNeighbors(t *testing.T) {
	c := testConfig(t)
	c.NoService = true
	c.Neighbors = []string{"udp://127.0.0.1:14600", "tcp://127.0.0.1:15600"}

	require.NoError(t, peers.NewJSONNeighbors(c.DataDir).Write([]string{
		"udp://127.0.0.2:14600",
		"udp://no-port",
	}))

	engine := NewTangle(c)
	require.NoError(t, engine.Init())
	defer engine.Shutdown()

	assert.Nil(t, engine.Service)
	assert.Equal(t, []string{"127.0.0.1:14600", "127.0.0.2:14600"}, engine.Neighbors.Addresses())
}

func TestInitErrors(t *testing.T) {
	c := testConfig(t)
	c.Backend = "tape"
	assert.Error(t, NewTangle(c).Init())

	c = testConfig(t)
	c.Coordinator = "NOT A HASH"
	assert.Error(t, NewTangle(c).Init())

	c = testConfig(t)
	c.Snapshot = filepath.Join(c.DataDir, "snapshot.json")
	require.NoError(t, ioutil.WriteFile(c.Snapshot, []byte("{"), 0600))
	assert.Error(t, NewTangle(c).Init())

	c = testConfig(t)
	require.NoError(t, ioutil.WriteFile(peers.NewJSONNeighbors(c.DataDir).Path(), []byte("["), 0600))
	assert.Error(t, NewTangle(c).Init())
}

func TestBadgerBackend(t *testing.T) {
	c := testConfig(t)
	c.NoService = true
	c.Backend = config.BadgerBackend

	tx := message(1, "BADGER")

	engine := NewTangle(c)
	require.NoError(t, engine.Init())
	_, err := engine.Store.StoreTransaction(tx.Hash, tx, true)
	require.NoError(t, err)
	engine.Shutdown()

	engine = NewTangle(c)
	require.NoError(t, engine.Init())
	defer engine.Shutdown()

	loaded, err := engine.Store.LoadTransactionByHash(tx.Hash)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, tx.Bytes, loaded.Bytes)
}

func TestNodeInfo(t *testing.T) {
	c := testConfig(t)
	c.Neighbors = []string{"udp://127.0.0.1:14600"}
	engine := startTangle(t, c)

	res, err := engine.API.Process(context.Background(), &service.Request{Command: "getNodeInfo"})
	require.NoError(t, err)

	info := res.(*service.GetNodeInfoResponse)
	assert.Equal(t, service.AppName, info.AppName)
	assert.Equal(t, 1, info.Neighbors)
	assert.Equal(t, 1, info.Tips)
}

func TestGossip(t *testing.T) {
	a := startTangle(t, testConfig(t))
	b := startTangle(t, testConfig(t))

	require.True(t, a.Neighbors.Add(b.Transport.LocalAddr()))
	require.True(t, b.Neighbors.Add(a.Transport.LocalAddr()))

	res, err := a.API.Process(context.Background(), &service.Request{
		Command:            "attachToTangle",
		TrunkTransaction:   model.NullHash.String(),
		BranchTransaction:  model.NullHash.String(),
		MinWeightMagnitude: config.DefaultTestnetMWM,
		Trytes:             []string{message(1, "GOSSIP").Trytes()},
	})
	require.NoError(t, err)

	attached := res.(*service.AttachToTangleResponse).Trytes
	require.Len(t, attached, 1)

	tx, err := model.FromTrytes(attached[0], config.DefaultTestnetMWM)
	require.NoError(t, err)

	_, err = a.API.Process(context.Background(), &service.Request{
		Command: "broadcastTransactions",
		Trytes:  attached,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		received, err := b.Store.LoadTransactionByHash(tx.Hash)
		return err == nil && received != nil
	}, 5*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		n := b.Neighbors.Get(a.Transport.LocalAddr())
		return n != nil && n.Info().NumberOfNewTransactions == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func message(timestamp int64, tag string) *model.Transaction {
	t, _ := model.TagFromTrytes(tag)
	drafts := []*model.Draft{{Timestamp: timestamp, Tag: t}}
	bundle.Finalize(drafts)
	return bundle.Link(drafts, model.NullHash, model.NullHash)[0]
}
