package blocksync

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/types"
)

func TestLongSyncProperties(t *testing.T) {
	rapid.Check(t, rapid.Run(&longSyncModel{}))
}

type longSyncModel struct {
	strategy *LongSync
	pool     *stubPool
	queue    *stubQueue
	limit    int

	phase      Phase
	broadcasts int
}

func (m *longSyncModel) Init(t *rapid.T) {
	m.limit = rapid.IntRange(0, 5).Draw(t, "rotationLimit").(int)
	m.pool = &stubPool{}
	m.queue = &stubQueue{}
	m.strategy = NewLongSync(log.NewNopLogger(), m.pool, m.queue, m.limit, nil)
	m.phase = PhaseHashRetrieving
	m.broadcasts = 0
}

func (m *longSyncModel) Tick(t *rapid.T) {
	m.queue.limitExceeded = rapid.Bool().Draw(t, "limitExceeded").(bool)
	m.queue.headersEmpty = rapid.Bool().Draw(t, "headersEmpty").(bool)
	m.queue.moreNeeded = rapid.Bool().Draw(t, "moreNeeded").(bool)

	n := rapid.IntRange(0, 3).Draw(t, "peers").(int)
	peers := make([]*stubPeer, n)
	m.pool.peers = nil
	for i := range peers {
		peers[i] = newStubPeer(types.NodeID(fmt.Sprintf("peer%d", i)), 1)
		peers[i].state = eth.SyncState(rapid.IntRange(0, 3).Draw(t, "state").(int))
		bunches := rapid.IntRange(0, m.limit+2).Draw(t, "bunches").(int)
		for j := 0; j < bunches; j++ {
			peers[i].stats.AddHeaders(1)
		}
		m.pool.peers = append(m.pool.peers, peers[i])
	}

	var candidate *stubPeer
	if rapid.Bool().Draw(t, "electable").(bool) {
		candidate = newStubPeer("candidate", 1)
		m.pool.master = candidate
	} else {
		m.pool.master = nil
	}

	next, elect := m.phase, false
	switch m.phase {
	case PhaseHashRetrieving:
		var master *stubPeer
		anyDone := false
		for _, p := range peers {
			if p.state == eth.SyncStateDoneHashRetrieving {
				anyDone = true
			}
			if master == nil && p.state == eth.SyncStateHashRetrieving {
				master = p
			}
		}
		switch {
		case m.queue.limitExceeded, anyDone:
			next = PhaseBlockRetrieving
		case master != nil:
			if master.stats.HeaderBunchesCount() > m.limit {
				next = PhaseBlockRetrieving
			}
		default:
			elect = candidate != nil
		}
	case PhaseBlockRetrieving:
		if m.queue.headersEmpty {
			next = PhaseIdle
		}
	case PhaseIdle:
		if m.queue.moreNeeded {
			next = PhaseHashRetrieving
		}
	}

	m.strategy.Tick()

	if next == PhaseBlockRetrieving && m.phase != PhaseBlockRetrieving {
		m.broadcasts++
	}
	m.phase = next

	if candidate != nil {
		require.Equal(t, elect, candidate.IsHashRetrieving())
	}
}

func (m *longSyncModel) Check(t *rapid.T) {
	require.Equal(t, m.phase, m.strategy.Phase())
	require.Len(t, m.pool.broadcasts, m.broadcasts)
	for _, state := range m.pool.broadcasts {
		require.Equal(t, eth.SyncStateBlockRetrieving, state)
	}
}
