package blocksync

import (
	"math/big"
	"sync"

	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/types"
)

// stubPeer implements the parts of eth.Eth the pool and the strategy use.
type stubPeer struct {
	eth.Eth

	id        types.NodeID
	succeeded bool
	td        *big.Int
	stats     *eth.SyncStatistics

	mtx       sync.Mutex
	state     eth.SyncState
	syncDone  []bool
	shutdowns int
}

func newStubPeer(id types.NodeID, td int64) *stubPeer {
	return &stubPeer{
		id:        id,
		succeeded: true,
		td:        big.NewInt(td),
		stats:     eth.NewSyncStatistics(),
	}
}

func (p *stubPeer) ID() types.NodeID                { return p.id }
func (p *stubPeer) Version() eth.Version            { return eth.V63 }
func (p *stubPeer) HasStatusSucceeded() bool        { return p.succeeded }
func (p *stubPeer) TotalDifficulty() *big.Int       { return p.td }
func (p *stubPeer) Stats() *eth.SyncStatistics      { return p.stats }
func (p *stubPeer) LogSyncStats()                   {}
func (p *stubPeer) IsIdle() bool                    { return p.State() == eth.SyncStateIdle }
func (p *stubPeer) IsHashRetrieving() bool          { return p.State() == eth.SyncStateHashRetrieving }
func (p *stubPeer) IsHashRetrievingDone() bool      { return p.State() == eth.SyncStateDoneHashRetrieving }
func (p *stubPeer) SendTransactions(types.Transactions) {}

func (p *stubPeer) State() eth.SyncState {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.state
}

func (p *stubPeer) ChangeState(state eth.SyncState) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.state = state
}

func (p *stubPeer) OnSyncDone(done bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.syncDone = append(p.syncDone, done)
}

func (p *stubPeer) lastSyncDone() (bool, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if len(p.syncDone) == 0 {
		return false, false
	}
	return p.syncDone[len(p.syncDone)-1], true
}

func (p *stubPeer) OnShutdown() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.shutdowns++
}

// stubPool is a PeerPool recording broadcasts.
type stubPool struct {
	peers      []eth.Eth
	master     eth.Eth
	broadcasts []eth.SyncState
}

func (p *stubPool) Peers() []eth.Eth { return p.peers }
func (p *stubPool) Master() eth.Eth  { return p.master }

func (p *stubPool) ChangeState(state eth.SyncState) {
	p.broadcasts = append(p.broadcasts, state)
}

type stubQueue struct {
	limitExceeded bool
	headersEmpty  bool
	moreNeeded    bool
}

func (q *stubQueue) IsLimitExceeded() bool    { return q.limitExceeded }
func (q *stubQueue) IsHeadersEmpty() bool     { return q.headersEmpty }
func (q *stubQueue) IsMoreBlocksNeeded() bool { return q.moreNeeded }
