package blocksync

import "github.com/tendermint/chainsync/internal/eth"

// Phase is the global state of the long sync.
type Phase uint32

const (
	PhaseHashRetrieving Phase = iota
	PhaseBlockRetrieving
	PhaseIdle
)

func (p Phase) String() string {
	switch p {
	case PhaseHashRetrieving:
		return "HASH_RETRIEVING"
	case PhaseBlockRetrieving:
		return "BLOCK_RETRIEVING"
	case PhaseIdle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// SyncState returns the peer state matching p.
func (p Phase) SyncState() eth.SyncState {
	switch p {
	case PhaseHashRetrieving:
		return eth.SyncStateHashRetrieving
	case PhaseBlockRetrieving:
		return eth.SyncStateBlockRetrieving
	default:
		return eth.SyncStateIdle
	}
}
