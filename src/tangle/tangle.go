package tangle

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mosaicnetworks/tangle/src/bundle"
	"github.com/mosaicnetworks/tangle/src/config"
	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/milestone"
	"github.com/mosaicnetworks/tangle/src/net"
	"github.com/mosaicnetworks/tangle/src/node"
	"github.com/mosaicnetworks/tangle/src/peers"
	"github.com/mosaicnetworks/tangle/src/pow"
	"github.com/mosaicnetworks/tangle/src/service"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/mosaicnetworks/tangle/src/tips"
	"github.com/sirupsen/logrus"
)

const serviceShutdownTimeout = 5 * time.Second

// Tangle is a struct containing the key parts of a tangle node.
type Tangle struct {
	Config    *config.Config
	Store     *storage.Store
	Ledger    *ledger.Context
	Bundles   *bundle.Reconstructor
	Tracker   *milestone.Tracker
	Selector  *tips.Selector
	Requester *tips.Requester
	Neighbors *peers.Neighbors
	Transport net.Transport
	Node      *node.Node
	Searcher  pow.Searcher
	API       *service.API
	Service   *service.Service

	logger *logrus.Entry
}

// NewTangle is a factory method to produce a Tangle instance.
func NewTangle(c *config.Config) *Tangle {
	engine := &Tangle{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

func (t *Tangle) initStore() error {
	var err error

	switch t.Config.Backend {
	case config.InmemBackend:
		t.Store, err = storage.NewInmemStore(t.logger)
		if err == nil {
			t.logger.Debug("created new in-mem store")
		}
	case config.BadgerBackend:
		t.logger.WithField("path", t.Config.DatabaseDir).Debug("Attempting to load or create badger database")
		t.Store, err = storage.NewBadgerStore(t.Config.DatabaseDir, t.Config.CacheSize, t.logger)
	case config.LevelDBBackend:
		t.logger.WithField("path", t.Config.DatabaseDir).Debug("Attempting to load or create leveldb database")
		t.Store, err = storage.NewLevelDBStore(t.Config.DatabaseDir, t.Config.CacheSize, t.logger)
	default:
		err = fmt.Errorf("unknown storage backend %q", t.Config.Backend)
	}

	return err
}

func (t *Tangle) initLedger() error {
	coordinator, err := t.Config.CoordinatorAddress()
	if err != nil {
		return fmt.Errorf("invalid coordinator: %v", err)
	}

	snapshot, err := t.Config.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("cannot load snapshot: %v", err)
	}

	t.Ledger = ledger.NewContext(coordinator,
		t.Config.CoordinatorDepth,
		snapshot,
		t.Config.MilestoneStartIndex)

	t.Bundles = bundle.NewReconstructor(t.Store, t.logger.WithField("prefix", "bundle"))

	t.Tracker, err = milestone.NewTracker(t.Ledger,
		t.Store,
		t.Bundles,
		t.logger.WithField("prefix", "milestone"))
	if err != nil {
		return err
	}

	t.Selector = tips.NewSelector(t.Ledger, t.Store, t.Bundles, t.logger.WithField("prefix", "tips"))
	t.Requester = tips.NewRequester(t.Ledger, t.Store, t.logger.WithField("prefix", "requester"))

	return nil
}

// initNeighbors merges the configured neighbors with those of the
// neighbors.json file. Invalid URIs are skipped.
func (t *Tangle) initNeighbors() error {
	uris := append([]string{}, t.Config.Neighbors...)

	jsonNeighbors := peers.NewJSONNeighbors(t.Config.DataDir)
	fileURIs, err := jsonNeighbors.URIs()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	uris = append(uris, fileURIs...)

	addresses := []string{}
	for _, uri := range uris {
		address, err := peers.ParseURI(uri)
		if err != nil {
			t.logger.WithError(err).WithField("uri", uri).Warn("Invalid neighbor")
			continue
		}
		addresses = append(addresses, address)
	}

	t.Neighbors = peers.NewNeighbors(addresses)

	t.logger.WithField("neighbors", t.Neighbors.Addresses()).Debug("NEIGHBORS")

	return nil
}

func (t *Tangle) initTransport() error {
	transport, err := net.NewUDPTransport(
		t.Config.UDPAddr,
		t.Config.QueueSize,
		t.Config.UDPTimeout,
		t.logger.WithField("prefix", "udp"),
	)

	if err != nil {
		return err
	}

	t.Transport = transport

	return nil
}

func (t *Tangle) initNode() error {
	t.Node = node.NewNode(
		t.Config.NodeConfig(),
		t.Store,
		t.Ledger,
		t.Tracker,
		t.Requester,
		t.Neighbors,
		t.Transport,
	)

	return nil
}

func (t *Tangle) initService() error {
	t.Searcher = pow.NewDiver(t.Config.MaxPowWorkers, t.logger.WithField("prefix", "pow"))

	t.API = service.NewAPI(t.Store,
		t.Ledger,
		t.Selector,
		t.Requester,
		t.Node,
		t.Searcher,
		t.logger.WithField("prefix", "api"))

	if !t.Config.NoService {
		t.Service = service.NewService(t.Config.ServiceAddr, t.API, t.logger.WithField("prefix", "service"))
	}

	return nil
}

// Init initialises the tangle node based on its configuration. It opens the
// store, loads the snapshot and the neighbors, and binds the UDP socket.
func (t *Tangle) Init() error {
	if err := t.initStore(); err != nil {
		return err
	}

	if err := t.initLedger(); err != nil {
		return err
	}

	if err := t.initNeighbors(); err != nil {
		return err
	}

	if err := t.initTransport(); err != nil {
		return err
	}

	if err := t.initNode(); err != nil {
		return err
	}

	if err := t.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the API service, if any, and the node. This is a blocking call
// which returns after Shutdown.
func (t *Tangle) Run() {
	if t.Service != nil {
		go func() {
			if err := t.Service.Serve(); err != nil {
				t.logger.WithError(err).Error("API service stopped")
			}
		}()
	}

	t.Node.Run()
}

// Shutdown stops the service and the node, and closes the store.
func (t *Tangle) Shutdown() {
	t.logger.Debug("Shutdown")

	if t.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), serviceShutdownTimeout)
		defer cancel()
		if err := t.Service.Shutdown(ctx); err != nil {
			t.logger.WithError(err).Error("Shutting down API service")
		}
	}

	if t.Node != nil {
		t.Node.Shutdown()
	}

	if t.Store != nil {
		if err := t.Store.Close(); err != nil {
			t.logger.WithError(err).Error("Closing store")
		}
	}
}
