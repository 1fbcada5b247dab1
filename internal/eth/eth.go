package eth

import (
	"errors"
	"math/big"

	"github.com/tendermint/chainsync/types"
)

var (
	// ErrDuplicateStatus is returned when a peer sends a second status message.
	ErrDuplicateStatus = errors.New("duplicate status message")
	// ErrIncompatiblePeer is returned when the status handshake failed.
	ErrIncompatiblePeer = errors.New("incompatible peer")
	// ErrNoStatus is returned for messages received before a successful
	// status handshake.
	ErrNoStatus = errors.New("message received before status")
	// ErrUnexpectedResponse is returned for responses to requests that were
	// never issued, or of the wrong kind.
	ErrUnexpectedResponse = errors.New("unexpected response")
	// ErrInvalidHeaders is returned when a header batch does not match the
	// request or is not contiguous.
	ErrInvalidHeaders = errors.New("invalid headers")
	// ErrBodyMismatch is returned when a block body does not match its header.
	ErrBodyMismatch = errors.New("block body does not match header")
	// ErrRequestTimeout is the reason a peer is dropped when it did not
	// answer a request in time.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrUnknownMessage is returned for message types the handler can't
	// process.
	ErrUnknownMessage = errors.New("unknown message")
)

//go:generate ../../scripts/mockery_generate.sh Eth

// Eth is the capability set every connected peer exposes to the sync
// strategy, regardless of the connection implementation behind it.
type Eth interface {
	// ID returns the peer identity.
	ID() types.NodeID

	// HasStatusPassed returns true once a status message was processed,
	// whatever its outcome.
	HasStatusPassed() bool
	// HasStatusSucceeded returns true if the processed status describes a
	// compatible peer. It is never true while HasStatusPassed is false.
	HasStatusSucceeded() bool
	// SendStatus sends the status message. It is sent at most once.
	SendStatus()

	// ChangeState sets the peer sync state. It performs no I/O and is a
	// no-op if the state is unchanged.
	ChangeState(SyncState)
	IsHashRetrievingDone() bool
	IsHashRetrieving() bool
	IsIdle() bool
	// Stats returns the live sync statistics of the peer.
	Stats() *SyncStatistics

	DisableTransactions()
	EnableTransactions()
	// SendTransactions relays txs to the peer. It is a no-op while
	// transactions are disabled.
	SendTransactions(txs types.Transactions)

	SendNewBlock(block *types.Block)
	SendNewBlockHashes(block *types.Block)

	Version() Version

	// OnSyncDone notifies the peer that the long sync ended (true) or was
	// resumed (false).
	OnSyncDone(done bool)
	// RecoverGap asks the peer for the ancestry missing below block. It never
	// blocks.
	RecoverGap(block *types.BlockWrapper)

	// OnShutdown releases resources held for the peer. It is idempotent.
	OnShutdown()
	LogSyncStats()
}

// Sender is implemented by the transport carrying messages to the peer.
type Sender interface {
	// TrySend queues msg for the peer without blocking. It returns false if
	// the message was dropped.
	TrySend(msg Message) bool
	// Disconnect asks the transport to drop the peer.
	Disconnect(reason error)
}

// HeaderQueue is the sync queue as seen by a peer handler.
type HeaderQueue interface {
	// NextHeaderNumber is the number of the first header not yet known.
	NextHeaderNumber() uint64
	AddHeaders(peerID types.NodeID, headers []*types.Header) error
	// PollHeaders takes up to max headers whose bodies must be retrieved.
	PollHeaders(max int) []*types.Header
	// ReturnHeaders gives back polled headers whose bodies were not
	// retrieved.
	ReturnHeaders(headers []*types.Header)
	// IsHeadersEmpty returns true if no header is queued or in flight.
	IsHeadersEmpty() bool
	AddBlocks(peerID types.NodeID, blocks []*types.Block) error
}

// ChainReader gives read access to the local chain. It is used to build
// status messages and to serve requests from the peer.
type ChainReader interface {
	// Head returns the local head, nil for an empty chain.
	Head() *types.Header
	TotalDifficulty() *big.Int
	LoadBlock(number uint64) *types.Block
	LoadBlockByHash(hash types.Hash) *types.Block
}
