// Package node implements the long-lived workers of a tangle node.
//
// A Node ties the transaction store to the gossip transport:
//
// - the receiver decodes packets from known neighbors, stores the new
// transactions, queues them for broadcast, and answers the transaction the
// neighbor requested in the same packet
//
// - the broadcaster sends the heaviest queued transaction to every neighbor.
// Its ControlTimer runs fast while the queue is busy and slows down when it is
// empty
//
// - the tip requester periodically sends our latest milestone to every
// neighbor, asking for theirs in return
//
// - the milestone updater periodically promotes new milestones, and the
// latest solid one
//
// Every outgoing packet carries the hash of a transaction we are missing,
// popped from the tips.Requester, so that gaps in the local DAG are filled by
// the neighbors over time.
package node
