package ledger

import (
	"sync"

	"github.com/mosaicnetworks/tangle/src/model"
)

// DefaultCoordinator is the address of the milestone signer.
const DefaultCoordinator = "KPWCHICGJZXKE9GSUDXZYUAPLHAKAHYHDXNPHENTERYMMBQOPSQIDENXKLKCEYCPVTZQLEEJVYJZV9BWU"

// DefaultCoordinatorDepth is the depth of the coordinator's Merkle tree.
const DefaultCoordinatorDepth = 20

// Context is the state shared by the consensus components.
//
// Coordinator, CoordinatorDepth and Snapshot are set at construction and never
// change. The milestone fields are written only by the milestone tracker.
// Every DAG walk over the store's visited set runs between Lock and Unlock.
type Context struct {
	Coordinator      model.Hash
	CoordinatorDepth int
	Snapshot         Snapshot

	consensus sync.Mutex

	mu                        sync.RWMutex
	latestMilestone           model.Hash
	latestMilestoneIndex      int64
	latestSolidMilestone      model.Hash
	latestSolidMilestoneIndex int64
	milestones                map[int64]model.Hash
}

// NewContext ...
func NewContext(coordinator model.Hash, depth int, snapshot Snapshot, startIndex int64) *Context {
	return &Context{
		Coordinator:               coordinator,
		CoordinatorDepth:          depth,
		Snapshot:                  snapshot,
		latestMilestoneIndex:      startIndex,
		latestSolidMilestoneIndex: startIndex,
		milestones:                make(map[int64]model.Hash),
	}
}

// Lock enters the consensus critical section.
func (c *Context) Lock() {
	c.consensus.Lock()
}

// Unlock leaves the consensus critical section.
func (c *Context) Unlock() {
	c.consensus.Unlock()
}

// LatestMilestone ...
func (c *Context) LatestMilestone() (model.Hash, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latestMilestone, c.latestMilestoneIndex
}

// LatestSolidMilestone ...
func (c *Context) LatestSolidMilestone() (model.Hash, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latestSolidMilestone, c.latestSolidMilestoneIndex
}

// Milestone returns the milestone with the given index, if known.
func (c *Context) Milestone(index int64) (model.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.milestones[index]
	return h, ok
}

// SetLatestMilestone records an authenticated milestone. Indexes only grow.
func (c *Context) SetLatestMilestone(hash model.Hash, index int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index <= c.latestMilestoneIndex {
		return false
	}
	c.latestMilestone = hash
	c.latestMilestoneIndex = index
	c.milestones[index] = hash
	return true
}

// SetLatestSolidMilestone records a milestone whose past cone is complete.
func (c *Context) SetLatestSolidMilestone(hash model.Hash, index int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index <= c.latestSolidMilestoneIndex {
		return false
	}
	c.latestSolidMilestone = hash
	c.latestSolidMilestoneIndex = index
	return true
}
