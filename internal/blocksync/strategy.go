package blocksync

import (
	"errors"

	"github.com/tendermint/chainsync/internal/eth"
)

var (
	// ErrPeerAlreadyAdded is returned when a peer is added to the pool twice.
	ErrPeerAlreadyAdded = errors.New("peer already added")
	// ErrHeadersDisconnected is returned when headers don't extend the queue.
	ErrHeadersDisconnected = errors.New("headers do not connect to the known chain")
)

//go:generate ../../scripts/mockery_generate.sh PeerPool|Queue

// PeerPool is the set of connected peers, as seen by a strategy.
type PeerPool interface {
	// Peers returns a snapshot of the pool, in a stable order.
	Peers() []eth.Eth
	// Master elects a peer to retrieve headers from, nil if none is
	// eligible.
	Master() eth.Eth
	// ChangeState sets the sync state of every peer.
	ChangeState(state eth.SyncState)
}

// Queue holds the headers and blocks retrieved, as seen by a strategy.
type Queue interface {
	// IsLimitExceeded returns true if no more headers should be retrieved
	// until bodies catch up.
	IsLimitExceeded() bool
	// IsHeadersEmpty returns true if no header is waiting for its body.
	IsHeadersEmpty() bool
	// IsMoreBlocksNeeded returns true once the importer drained enough
	// blocks for header retrieval to resume.
	IsMoreBlocksNeeded() bool
}

// Strategy drives synchronization one tick at a time. Ticks never block on
// network I/O.
type Strategy interface {
	Tick()
	Phase() Phase
	String() string
}
