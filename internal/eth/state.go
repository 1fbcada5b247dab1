package eth

// SyncState is a peer-local view of sync progress.
type SyncState uint8

const (
	SyncStateIdle SyncState = iota
	SyncStateHashRetrieving
	SyncStateDoneHashRetrieving
	SyncStateBlockRetrieving
)

func (s SyncState) String() string {
	switch s {
	case SyncStateIdle:
		return "IDLE"
	case SyncStateHashRetrieving:
		return "HASH_RETRIEVING"
	case SyncStateDoneHashRetrieving:
		return "DONE_HASH_RETRIEVING"
	case SyncStateBlockRetrieving:
		return "BLOCK_RETRIEVING"
	default:
		return "UNKNOWN"
	}
}
