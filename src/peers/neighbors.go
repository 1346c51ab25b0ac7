package peers

import (
	"sort"
	"sync"
)

// Neighbors is a concurrency-safe set of neighbors indexed by address.
type Neighbors struct {
	sync.RWMutex
	sorted    []*Neighbor
	byAddress map[string]*Neighbor
}

// NewNeighbors creates a set from a list of addresses. Duplicates are ignored.
func NewNeighbors(addresses []string) *Neighbors {
	n := &Neighbors{
		byAddress: make(map[string]*Neighbor),
	}
	for _, a := range addresses {
		n.addRaw(a)
	}
	n.internalSort()
	return n
}

// Add a neighbor without sorting the set. Not protected by the mutex.
func (n *Neighbors) addRaw(address string) bool {
	if _, ok := n.byAddress[address]; ok {
		return false
	}
	n.byAddress[address] = NewNeighbor(address)
	return true
}

func (n *Neighbors) internalSort() {
	res := make([]*Neighbor, 0, len(n.byAddress))
	for _, nb := range n.byAddress {
		res = append(res, nb)
	}
	sort.Sort(ByAddress(res))
	n.sorted = res
}

// Add inserts a neighbor and reports whether it was new.
func (n *Neighbors) Add(address string) bool {
	n.Lock()
	defer n.Unlock()

	if !n.addRaw(address) {
		return false
	}
	n.internalSort()
	return true
}

// Remove deletes a neighbor and reports whether it was present.
func (n *Neighbors) Remove(address string) bool {
	n.Lock()
	defer n.Unlock()

	if _, ok := n.byAddress[address]; !ok {
		return false
	}
	delete(n.byAddress, address)
	n.internalSort()
	return true
}

// Get returns the neighbor with the given address, or nil.
func (n *Neighbors) Get(address string) *Neighbor {
	n.RLock()
	defer n.RUnlock()
	return n.byAddress[address]
}

// List returns the neighbors sorted by address.
func (n *Neighbors) List() []*Neighbor {
	n.RLock()
	defer n.RUnlock()

	res := make([]*Neighbor, len(n.sorted))
	copy(res, n.sorted)
	return res
}

// Addresses returns the sorted addresses.
func (n *Neighbors) Addresses() []string {
	n.RLock()
	defer n.RUnlock()

	res := make([]string, 0, len(n.sorted))
	for _, nb := range n.sorted {
		res = append(res, nb.Address)
	}
	return res
}

// Len returns the number of neighbors.
func (n *Neighbors) Len() int {
	n.RLock()
	defer n.RUnlock()
	return len(n.byAddress)
}

// ByAddress implements sort.Interface for neighbors based on the Address
// field.
type ByAddress []*Neighbor

func (a ByAddress) Len() int           { return len(a) }
func (a ByAddress) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByAddress) Less(i, j int) bool { return a[i].Address < a[j].Address }
