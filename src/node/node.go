package node

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/milestone"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/net"
	"github.com/mosaicnetworks/tangle/src/peers"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/mosaicnetworks/tangle/src/tips"
	"github.com/sirupsen/logrus"
)

// slowHeartbeat paces the broadcaster while the queue is empty.
const slowHeartbeat = time.Second

// Node gossips transactions with its neighbors and keeps the milestones up to
// date.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	store     *storage.Store
	ledger    *ledger.Context
	tracker   *milestone.Tracker
	requester *tips.Requester
	neighbors *peers.Neighbors

	trans net.Transport
	netCh <-chan net.Datagram

	queue *broadcastQueue

	milestoneTicker ticker.Ticker
	tipTicker       ticker.Ticker

	controlTimer *ControlTimer
	timerLock    sync.Mutex

	shutdownCh chan struct{}
	runOnce    sync.Once

	start time.Time
}

// NewNode is a factory method that returns a Node instance
func NewNode(conf *Config,
	store *storage.Store,
	ctx *ledger.Context,
	tracker *milestone.Tracker,
	requester *tips.Requester,
	neighbors *peers.Neighbors,
	trans net.Transport,
) *Node {

	node := Node{
		conf:            conf,
		logger:          conf.Logger.WithField("prefix", "node"),
		store:           store,
		ledger:          ctx,
		tracker:         tracker,
		requester:       requester,
		neighbors:       neighbors,
		trans:           trans,
		netCh:           trans.Consumer(),
		queue:           newBroadcastQueue(conf.QueueSize),
		milestoneTicker: ticker.New(conf.MilestonePeriod),
		tipTicker:       ticker.New(conf.TipRequestPeriod),
		controlTimer:    NewDefaultControlTimer(),
		shutdownCh:      make(chan struct{}),
	}

	return &node
}

// RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	go n.Run()
}

// Run starts the workers and runs the broadcaster until Shutdown.
func (n *Node) Run() {
	n.runOnce.Do(func() {
		n.start = time.Now()

		n.logger.WithFields(logrus.Fields{
			"addr":      n.trans.LocalAddr(),
			"neighbors": n.neighbors.Len(),
		}).Debug("Run")

		go n.trans.Listen()
		go n.controlTimer.Run(n.conf.HeartbeatTimeout)

		n.goFunc(n.receive)
		n.goFunc(n.updateMilestones)
		n.goFunc(n.requestTips)

		n.broadcastLoop()
	})
}

func (n *Node) resetTimer() {
	n.timerLock.Lock()
	defer n.timerLock.Unlock()

	if !n.controlTimer.Set() {
		ts := n.conf.HeartbeatTimeout

		//Slow down if there is nothing to broadcast
		if n.queue.Len() == 0 {
			ts = slowHeartbeat
		}

		select {
		case n.controlTimer.resetCh <- ts:
		case <-n.shutdownCh:
		}
	}
}

/*******************************************************************************
Receiver
*******************************************************************************/

func (n *Node) receive() {
	for {
		select {
		case d, ok := <-n.netCh:
			if !ok {
				return
			}
			n.processDatagram(d)
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) processDatagram(d net.Datagram) {
	neighbor := n.neighbors.Get(d.From)
	if neighbor == nil {
		n.logger.WithField("from", d.From).Debug("Ignoring packet from unknown neighbor")
		return
	}
	neighbor.IncAll()

	var packet net.Packet
	if err := packet.Unmarshal(d.Data); err != nil {
		neighbor.IncInvalid()
		n.logger.WithError(err).WithField("from", d.From).Debug("Invalid packet")
		return
	}

	tx, err := model.FromBytes(packet.Transaction, n.conf.MinWeightMagnitude)
	if err != nil {
		neighbor.IncInvalid()
		n.logger.WithError(err).WithField("from", d.From).Debug("Invalid transaction")
		return
	}

	pointer, err := n.store.StoreTransaction(tx.Hash, tx, false)
	if err != nil {
		n.logger.WithError(err).Error("Storing transaction")
		return
	}
	if pointer != 0 {
		neighbor.IncNew()
		n.Broadcast(tx)
	}

	n.reply(neighbor, tx, packet.Requested)
}

// reply sends the transaction the neighbor asked for, if we have it. A
// request for the transaction carried by the same packet is a request for our
// latest milestone.
func (n *Node) reply(neighbor *peers.Neighbor, received *model.Transaction, requested model.Hash) {
	if requested == received.Hash {
		requested, _ = n.ledger.LatestMilestone()
	}
	if requested.IsNull() {
		return
	}

	tx, err := n.store.LoadTransactionByHash(requested)
	if err != nil {
		n.logger.WithError(err).Error("Loading requested transaction")
		return
	}
	if tx == nil {
		return
	}

	n.send(neighbor, tx)
}

// send attaches the hash of a missing transaction to tx and sends it.
func (n *Node) send(neighbor *peers.Neighbor, tx *model.Transaction) {
	requested, err := n.requester.Next()
	if err != nil {
		n.logger.WithError(err).Error("Selecting transaction to request")
		requested = model.NullHash
	}

	packet := net.NewPacket(tx.Bytes, requested)
	if err := n.trans.Send(neighbor.Address, packet.Marshal()); err != nil {
		n.logger.WithError(err).WithField("to", neighbor.Address).Debug("Sending packet")
	}
}

/*******************************************************************************
Broadcaster
*******************************************************************************/

// Broadcast queues a transaction to be sent to every neighbor.
func (n *Node) Broadcast(tx *model.Transaction) {
	if n.queue.Push(tx) {
		n.resetTimer()
	}
}

func (n *Node) broadcastLoop() {
	for {
		select {
		case <-n.controlTimer.tickCh:
			n.broadcast()
			n.resetTimer()
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) broadcast() {
	tx := n.queue.Pop()
	if tx == nil {
		return
	}
	for _, neighbor := range n.neighbors.List() {
		n.send(neighbor, tx)
	}
}

/*******************************************************************************
Periodic workers
*******************************************************************************/

// requestTips sends our latest milestone to every neighbor, requesting itself,
// which they answer with their own latest milestone.
func (n *Node) requestTips() {
	n.tipTicker.Resume()
	defer n.tipTicker.Stop()

	for {
		select {
		case <-n.tipTicker.Ticks():
			n.sendLatestMilestone()
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) sendLatestMilestone() {
	hash, _ := n.ledger.LatestMilestone()
	if hash.IsNull() {
		return
	}

	tx, err := n.store.LoadTransactionByHash(hash)
	if err != nil {
		n.logger.WithError(err).Error("Loading latest milestone")
		return
	}
	if tx == nil {
		return
	}

	packet := net.NewPacket(tx.Bytes, tx.Hash).Marshal()
	for _, neighbor := range n.neighbors.List() {
		if err := n.trans.Send(neighbor.Address, packet); err != nil {
			n.logger.WithError(err).WithField("to", neighbor.Address).Debug("Sending tip request")
		}
	}
}

func (n *Node) updateMilestones() {
	n.milestoneTicker.Resume()
	defer n.milestoneTicker.Stop()

	for {
		select {
		case <-n.milestoneTicker.Ticks():
			n.updateMilestone()
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) updateMilestone() {
	if _, err := n.tracker.UpdateLatestMilestone(); err != nil {
		n.logger.WithError(err).Error("Updating latest milestone")
		return
	}
	changed, err := n.tracker.UpdateLatestSolidSubtangleMilestone()
	if err != nil {
		n.logger.WithError(err).Error("Updating latest solid milestone")
		return
	}
	if changed {
		n.logStats()
	}
}

/*******************************************************************************
Shutdown and stats
*******************************************************************************/

// Shutdown stops the workers and closes the transport.
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		//The transport is only closed once the workers are done with it
		n.trans.Close()
	}
}

// QueueLen is the number of transactions waiting to be broadcast.
func (n *Node) QueueLen() int {
	return n.queue.Len()
}

// Neighbors ...
func (n *Node) Neighbors() *peers.Neighbors {
	return n.neighbors
}

// GetState ...
func (n *Node) GetState() State {
	return n.getState()
}

func (n *Node) logStats() {
	milestone, milestoneIndex := n.ledger.LatestMilestone()
	solid, solidIndex := n.ledger.LatestSolidMilestone()

	n.logger.WithFields(logrus.Fields{
		"latest_milestone":       milestone.String(),
		"latest_milestone_index": milestoneIndex,
		"latest_solid":           solid.String(),
		"latest_solid_index":     solidIndex,
		"to_request":             n.requester.Len(),
		"queue":                  n.queue.Len(),
		"neighbors":              n.neighbors.Len(),
		"uptime":                 time.Since(n.start).String(),
	}).Info("Milestones")
}
