package service

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/peers"
	"github.com/mosaicnetworks/tangle/src/pow"
	"github.com/mosaicnetworks/tangle/src/storage"
	"github.com/mosaicnetworks/tangle/src/tips"
	"github.com/mosaicnetworks/tangle/src/trinary"
	"github.com/mosaicnetworks/tangle/src/version"
	"github.com/sirupsen/logrus"
)

// AppName is reported by getNodeInfo.
const AppName = "Tangle"

// Gossip is the part of the node the commands use.
type Gossip interface {
	Broadcast(tx *model.Transaction)
	QueueLen() int
	Neighbors() *peers.Neighbors
}

// requestError is a rejected request, as opposed to a failure of the node.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func requestErrorf(format string, args ...interface{}) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// IsRequestError reports whether err was caused by the request.
func IsRequestError(err error) bool {
	_, ok := err.(*requestError)
	return ok
}

type command func(ctx context.Context, req *Request) (Response, error)

// API executes the commands.
type API struct {
	store     *storage.Store
	ledger    *ledger.Context
	selector  *tips.Selector
	requester *tips.Requester
	gossip    Gossip
	searcher  pow.Searcher
	logger    *logrus.Entry

	commands map[string]command

	attachLock sync.Mutex
	attachSeq  int
	attaching  map[int]context.CancelFunc
}

// NewAPI ...
func NewAPI(store *storage.Store,
	ctx *ledger.Context,
	selector *tips.Selector,
	requester *tips.Requester,
	gossip Gossip,
	searcher pow.Searcher,
	logger *logrus.Entry) *API {

	api := &API{
		store:     store,
		ledger:    ctx,
		selector:  selector,
		requester: requester,
		gossip:    gossip,
		searcher:  searcher,
		logger:    logger,
		attaching: make(map[int]context.CancelFunc),
	}

	api.commands = map[string]command{
		"addNeighbors":               api.addNeighbors,
		"attachToTangle":             api.attachToTangle,
		"broadcastTransactions":      api.broadcastTransactions,
		"findTransactions":           api.findTransactions,
		"getBalances":                api.getBalances,
		"getInclusionStates":         api.getInclusionStates,
		"getNeighbors":               api.getNeighbors,
		"getNodeInfo":                api.getNodeInfo,
		"getTips":                    api.getTips,
		"getTransactionsToApprove":   api.getTransactionsToApprove,
		"getTrytes":                  api.getTrytes,
		"interruptAttachingToTangle": api.interruptAttachingToTangle,
		"removeNeighbors":            api.removeNeighbors,
		"storeTransactions":          api.storeTransactions,
	}

	return api
}

// Process runs the command named in req.
func (a *API) Process(ctx context.Context, req *Request) (Response, error) {
	if req.Command == "" {
		return nil, requestErrorf("'command' parameter has not been specified")
	}
	cmd, ok := a.commands[req.Command]
	if !ok {
		return nil, requestErrorf("Command '%s' is unknown", req.Command)
	}
	return cmd(ctx, req)
}

func parseHashes(trytes []string) ([]model.Hash, error) {
	res := make([]model.Hash, 0, len(trytes))
	for _, t := range trytes {
		h, err := model.HashFromTrytes(t)
		if err != nil {
			return nil, requestErrorf("Invalid hash '%s': %v", t, err)
		}
		res = append(res, h)
	}
	return res, nil
}

func parseTransactions(trytes []string) ([]*model.Transaction, error) {
	res := make([]*model.Transaction, 0, len(trytes))
	for _, t := range trytes {
		tx, err := model.FromTrytes(t, 0)
		if err != nil {
			return nil, requestErrorf("Invalid trytes: %v", err)
		}
		res = append(res, tx)
	}
	return res, nil
}

/*******************************************************************************
Neighbors
*******************************************************************************/

func (a *API) addNeighbors(ctx context.Context, req *Request) (Response, error) {
	addresses, err := parseURIs(req.URIs)
	if err != nil {
		return nil, err
	}

	added := 0
	for _, addr := range addresses {
		if a.gossip.Neighbors().Add(addr) {
			added++
		}
	}
	a.logger.WithField("added", added).Info("Added neighbors")

	return &AddedNeighborsResponse{AddedNeighbors: added}, nil
}

func (a *API) removeNeighbors(ctx context.Context, req *Request) (Response, error) {
	addresses, err := parseURIs(req.URIs)
	if err != nil {
		return nil, err
	}

	removed := 0
	for _, addr := range addresses {
		if a.gossip.Neighbors().Remove(addr) {
			removed++
		}
	}
	a.logger.WithField("removed", removed).Info("Removed neighbors")

	return &RemovedNeighborsResponse{RemovedNeighbors: removed}, nil
}

func parseURIs(uris []string) ([]string, error) {
	res := make([]string, 0, len(uris))
	for _, uri := range uris {
		addr, err := peers.ParseURI(uri)
		if err != nil {
			return nil, requestErrorf("Invalid uri '%s': %v", uri, err)
		}
		res = append(res, addr)
	}
	return res, nil
}

func (a *API) getNeighbors(ctx context.Context, req *Request) (Response, error) {
	neighbors := a.gossip.Neighbors().List()
	infos := make([]peers.NeighborInfo, 0, len(neighbors))
	for _, n := range neighbors {
		infos = append(infos, n.Info())
	}
	return &GetNeighborsResponse{Neighbors: infos}, nil
}

/*******************************************************************************
Attach
*******************************************************************************/

// attachToTangle links the transactions into a chain on top of trunk and
// branch, and searches the nonce of each. The result is empty if the search
// is interrupted.
func (a *API) attachToTangle(ctx context.Context, req *Request) (Response, error) {
	trunk, err := model.HashFromTrytes(req.TrunkTransaction)
	if err != nil {
		return nil, requestErrorf("Invalid trunkTransaction: %v", err)
	}
	branch, err := model.HashFromTrytes(req.BranchTransaction)
	if err != nil {
		return nil, requestErrorf("Invalid branchTransaction: %v", err)
	}
	if req.MinWeightMagnitude < 0 || req.MinWeightMagnitude > model.HashTrinarySize {
		return nil, requestErrorf("Invalid minWeightMagnitude %d", req.MinWeightMagnitude)
	}

	ctx, done := a.startAttach(ctx)
	defer done()

	var (
		attached []*model.Transaction
		previous *model.Hash
	)
	for _, t := range req.Trytes {
		trits, err := trinary.TrytesToTrits(t)
		if err != nil || len(trits) != model.TrinarySize {
			return nil, requestErrorf("Invalid trytes")
		}

		if previous == nil {
			copy(trits[model.TrunkTrinaryOffset:], trunk.Trits())
			copy(trits[model.BranchTrinaryOffset:], branch.Trits())
		} else {
			copy(trits[model.TrunkTrinaryOffset:], previous.Trits())
			copy(trits[model.BranchTrinaryOffset:], trunk.Trits())
		}

		found, err := a.searcher.Search(ctx, trits, req.MinWeightMagnitude)
		if err != nil {
			return nil, err
		}
		if !found {
			attached = nil
			break
		}

		tx := model.FromTrits(trits)
		attached = append(attached, tx)
		previous = &tx.Hash
	}

	res := make([]string, 0, len(attached))
	for i := len(attached) - 1; i >= 0; i-- {
		res = append(res, attached[i].Trytes())
	}
	return &AttachToTangleResponse{Trytes: res}, nil
}

func (a *API) startAttach(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	a.attachLock.Lock()
	defer a.attachLock.Unlock()

	id := a.attachSeq
	a.attachSeq++
	a.attaching[id] = cancel

	return ctx, func() {
		a.attachLock.Lock()
		delete(a.attaching, id)
		a.attachLock.Unlock()
		cancel()
	}
}

func (a *API) interruptAttachingToTangle(ctx context.Context, req *Request) (Response, error) {
	a.attachLock.Lock()
	defer a.attachLock.Unlock()

	for _, cancel := range a.attaching {
		cancel()
	}
	return &EmptyResponse{}, nil
}

/*******************************************************************************
Transactions
*******************************************************************************/

func (a *API) broadcastTransactions(ctx context.Context, req *Request) (Response, error) {
	txs, err := parseTransactions(req.Trytes)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		// ours go first
		tx.WeightMagnitude = model.HashTrinarySize
		a.gossip.Broadcast(tx)
	}
	return &EmptyResponse{}, nil
}

func (a *API) storeTransactions(ctx context.Context, req *Request) (Response, error) {
	txs, err := parseTransactions(req.Trytes)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if _, err := a.store.StoreTransaction(tx.Hash, tx, false); err != nil {
			return nil, err
		}
	}
	return &EmptyResponse{}, nil
}

func (a *API) getTrytes(ctx context.Context, req *Request) (Response, error) {
	hashes, err := parseHashes(req.Hashes)
	if err != nil {
		return nil, err
	}

	res := make([]*string, 0, len(hashes))
	for _, h := range hashes {
		tx, err := a.store.LoadTransactionByHash(h)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			res = append(res, nil)
			continue
		}
		trytes := tx.Trytes()
		res = append(res, &trytes)
	}
	return &GetTrytesResponse{Trytes: res}, nil
}

func (a *API) getTips(ctx context.Context, req *Request) (Response, error) {
	hashes, err := a.store.Tips()
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(hashes))
	for _, h := range hashes {
		res = append(res, h.String())
	}
	return &GetTipsResponse{Hashes: res}, nil
}

// findTransactions returns the transactions matching every kind of key given
// in the request. Within a kind, the keys are alternatives.
func (a *API) findTransactions(ctx context.Context, req *Request) (Response, error) {
	var sets []map[int64]struct{}

	collect := func(keys []string, lookup func(string) ([]int64, error)) error {
		if len(keys) == 0 {
			return nil
		}
		set := make(map[int64]struct{})
		for _, k := range keys {
			pointers, err := lookup(k)
			if err != nil {
				return err
			}
			for _, p := range pointers {
				set[p] = struct{}{}
			}
		}
		if len(set) > 0 {
			sets = append(sets, set)
		}
		return nil
	}

	byHash := func(lookup func(model.Hash) ([]int64, error)) func(string) ([]int64, error) {
		return func(trytes string) ([]int64, error) {
			h, err := model.HashFromTrytes(trytes)
			if err != nil {
				return nil, requestErrorf("Invalid hash '%s': %v", trytes, err)
			}
			return lookup(h)
		}
	}

	byTag := func(trytes string) ([]int64, error) {
		tag, err := model.TagFromTrytes(trytes)
		if err != nil {
			return nil, requestErrorf("Invalid tag '%s': %v", trytes, err)
		}
		return a.store.TagPointers(tag)
	}

	if err := collect(req.Bundles, byHash(a.store.BundlePointers)); err != nil {
		return nil, err
	}
	if err := collect(req.Addresses, byHash(a.store.AddressPointers)); err != nil {
		return nil, err
	}
	if err := collect(req.Tags, byTag); err != nil {
		return nil, err
	}
	if err := collect(req.Approvees, byHash(a.store.ApproverPointers)); err != nil {
		return nil, err
	}

	var found []int64
	if len(sets) > 0 {
		for p := range sets[0] {
			matches := true
			for _, other := range sets[1:] {
				if _, ok := other[p]; !ok {
					matches = false
					break
				}
			}
			if matches {
				found = append(found, p)
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })

	res := make([]string, 0, len(found))
	for _, p := range found {
		tx, err := a.store.LoadTransaction(p)
		if err != nil {
			return nil, err
		}
		res = append(res, tx.Hash.String())
	}
	return &FindTransactionsResponse{Hashes: res}, nil
}

/*******************************************************************************
Ledger
*******************************************************************************/

func (a *API) getTransactionsToApprove(ctx context.Context, req *Request) (Response, error) {
	trunk, err := a.selector.SelectTipToApprove(nil, req.Depth)
	if err != nil {
		return nil, err
	}
	if trunk == nil {
		return nil, requestErrorf("%v", tips.ErrNotSolid)
	}

	branch, err := a.selector.SelectTipToApprove(trunk, req.Depth)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, requestErrorf("%v", tips.ErrNotSolid)
	}

	return &GetTransactionsToApproveResponse{
		TrunkTransaction:  trunk.String(),
		BranchTransaction: branch.String(),
	}, nil
}

func (a *API) getBalances(ctx context.Context, req *Request) (Response, error) {
	if req.Threshold <= 0 || req.Threshold > 100 {
		return nil, requestErrorf("Illegal 'threshold'")
	}
	addresses, err := parseHashes(req.Addresses)
	if err != nil {
		return nil, err
	}

	balances, milestone, index, err := a.selector.Balances(addresses)
	if err != nil {
		return nil, err
	}

	res := make([]string, 0, len(balances))
	for _, b := range balances {
		res = append(res, fmt.Sprint(b))
	}
	return &GetBalancesResponse{
		Balances:       res,
		Milestone:      milestone.String(),
		MilestoneIndex: index,
	}, nil
}

func (a *API) getInclusionStates(ctx context.Context, req *Request) (Response, error) {
	transactions, err := parseHashes(req.Transactions)
	if err != nil {
		return nil, err
	}
	tipHashes, err := parseHashes(req.Tips)
	if err != nil {
		return nil, err
	}

	states, err := a.selector.InclusionStates(transactions, tipHashes)
	switch err {
	case nil:
	case tips.ErrTipAbsent, tips.ErrNotSolid:
		return nil, requestErrorf("%v", err)
	default:
		return nil, err
	}
	return &GetInclusionStatesResponse{States: states}, nil
}

func (a *API) getNodeInfo(ctx context.Context, req *Request) (Response, error) {
	milestone, milestoneIndex := a.ledger.LatestMilestone()
	solid, solidIndex := a.ledger.LatestSolidMilestone()

	tipHashes, err := a.store.Tips()
	if err != nil {
		return nil, err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &GetNodeInfoResponse{
		AppName:                            AppName,
		AppVersion:                         version.Version,
		AvailableProcessors:                runtime.NumCPU(),
		Goroutines:                         runtime.NumGoroutine(),
		HeapAlloc:                          mem.HeapAlloc,
		HeapSys:                            mem.HeapSys,
		LatestMilestone:                    milestone.String(),
		LatestMilestoneIndex:               milestoneIndex,
		LatestSolidSubtangleMilestone:      solid.String(),
		LatestSolidSubtangleMilestoneIndex: solidIndex,
		Neighbors:                          a.gossip.Neighbors().Len(),
		PacketsQueueSize:                   a.gossip.QueueLen(),
		Time:                               time.Now().UnixNano() / int64(time.Millisecond),
		Tips:                               len(tipHashes),
		TransactionsToRequest:              a.requester.Len(),
	}, nil
}
