package service

import "github.com/mosaicnetworks/tangle/src/peers"

// Request carries the parameters of every command. Each command reads the
// fields it needs.
type Request struct {
	Command string `json:"command"`

	URIs []string `json:"uris"`

	TrunkTransaction   string   `json:"trunkTransaction"`
	BranchTransaction  string   `json:"branchTransaction"`
	MinWeightMagnitude int      `json:"minWeightMagnitude"`
	Trytes             []string `json:"trytes"`

	Addresses []string `json:"addresses"`
	Threshold int      `json:"threshold"`

	Transactions []string `json:"transactions"`
	Tips         []string `json:"tips"`

	Depth int `json:"depth"`

	Hashes []string `json:"hashes"`

	Bundles   []string `json:"bundles"`
	Tags      []string `json:"tags"`
	Approvees []string `json:"approvees"`
}

// Response is implemented by every response body. The duration of the
// command, in milliseconds, is set just before it is written.
type Response interface {
	setDuration(ms int64)
}

// AbstractResponse ...
type AbstractResponse struct {
	Duration int64 `json:"duration"`
}

func (r *AbstractResponse) setDuration(ms int64) {
	r.Duration = ms
}

// ErrorResponse reports a malformed or rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
	AbstractResponse
}

// ExceptionResponse reports an unexpected failure.
type ExceptionResponse struct {
	Exception string `json:"exception"`
	AbstractResponse
}

// AddedNeighborsResponse ...
type AddedNeighborsResponse struct {
	AddedNeighbors int `json:"addedNeighbors"`
	AbstractResponse
}

// RemovedNeighborsResponse ...
type RemovedNeighborsResponse struct {
	RemovedNeighbors int `json:"removedNeighbors"`
	AbstractResponse
}

// GetNeighborsResponse ...
type GetNeighborsResponse struct {
	Neighbors []peers.NeighborInfo `json:"neighbors"`
	AbstractResponse
}

// AttachToTangleResponse lists the attached transactions, last one first.
type AttachToTangleResponse struct {
	Trytes []string `json:"trytes"`
	AbstractResponse
}

// GetBalancesResponse ...
type GetBalancesResponse struct {
	Balances       []string `json:"balances"`
	Milestone      string   `json:"milestone"`
	MilestoneIndex int64    `json:"milestoneIndex"`
	AbstractResponse
}

// GetInclusionStatesResponse ...
type GetInclusionStatesResponse struct {
	States []bool `json:"states"`
	AbstractResponse
}

// FindTransactionsResponse ...
type FindTransactionsResponse struct {
	Hashes []string `json:"hashes"`
	AbstractResponse
}

// GetTipsResponse ...
type GetTipsResponse struct {
	Hashes []string `json:"hashes"`
	AbstractResponse
}

// GetTransactionsToApproveResponse ...
type GetTransactionsToApproveResponse struct {
	TrunkTransaction  string `json:"trunkTransaction"`
	BranchTransaction string `json:"branchTransaction"`
	AbstractResponse
}

// GetTrytesResponse has a null entry for every unknown hash.
type GetTrytesResponse struct {
	Trytes []*string `json:"trytes"`
	AbstractResponse
}

// GetNodeInfoResponse ...
type GetNodeInfoResponse struct {
	AppName                            string `json:"appName"`
	AppVersion                         string `json:"appVersion"`
	AvailableProcessors                int    `json:"availableProcessors"`
	Goroutines                         int    `json:"goroutines"`
	HeapAlloc                          uint64 `json:"heapAlloc"`
	HeapSys                            uint64 `json:"heapSys"`
	LatestMilestone                    string `json:"latestMilestone"`
	LatestMilestoneIndex               int64  `json:"latestMilestoneIndex"`
	LatestSolidSubtangleMilestone      string `json:"latestSolidSubtangleMilestone"`
	LatestSolidSubtangleMilestoneIndex int64  `json:"latestSolidSubtangleMilestoneIndex"`
	Neighbors                          int    `json:"neighbors"`
	PacketsQueueSize                   int    `json:"packetsQueueSize"`
	Time                               int64  `json:"time"`
	Tips                               int    `json:"tips"`
	TransactionsToRequest              int    `json:"transactionsToRequest"`
	AbstractResponse
}

// EmptyResponse ...
type EmptyResponse struct {
	AbstractResponse
}
