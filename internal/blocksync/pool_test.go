package blocksync

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/types"
)

func TestPoolAddRemove(t *testing.T) {
	pool := NewPool(log.NewNopLogger(), config.MasterElectionBest)

	a, b := newStubPeer("a", 10), newStubPeer("b", 20)
	require.NoError(t, pool.AddPeer(a))
	require.NoError(t, pool.AddPeer(b))
	assert.ErrorIs(t, pool.AddPeer(newStubPeer("a", 1)), ErrPeerAlreadyAdded)

	assert.Equal(t, 2, pool.Size())
	assert.Equal(t, []eth.Eth{a, b}, pool.Peers())
	assert.Equal(t, a, pool.Get("a"))
	assert.Nil(t, pool.Get("c"))

	pool.RemovePeer("a")
	pool.RemovePeer("a")
	pool.RemovePeer("unknown")
	assert.Equal(t, 1, a.shutdowns)
	assert.Equal(t, 0, b.shutdowns)
	assert.Equal(t, []eth.Eth{b}, pool.Peers())
}

func TestPoolNotifySyncDone(t *testing.T) {
	pool := NewPool(log.NewNopLogger(), config.MasterElectionBest)

	early := newStubPeer("early", 1)
	require.NoError(t, pool.AddPeer(early))
	done, ok := early.lastSyncDone()
	require.True(t, ok)
	assert.False(t, done)

	pool.NotifySyncDone(true)
	done, _ = early.lastSyncDone()
	assert.True(t, done)

	late := newStubPeer("late", 1)
	require.NoError(t, pool.AddPeer(late))
	done, ok = late.lastSyncDone()
	require.True(t, ok)
	assert.True(t, done)
}

func TestPoolChangeState(t *testing.T) {
	pool := NewPool(log.NewNopLogger(), config.MasterElectionBest)
	peers := []*stubPeer{newStubPeer("a", 1), newStubPeer("b", 1), newStubPeer("c", 1)}
	for _, p := range peers {
		require.NoError(t, pool.AddPeer(p))
	}

	pool.ChangeState(eth.SyncStateBlockRetrieving)
	for _, p := range peers {
		assert.Equal(t, eth.SyncStateBlockRetrieving, p.State())
	}
}

func TestPoolMasterBest(t *testing.T) {
	testCases := []struct {
		name   string
		setup  func() []*stubPeer
		expect types.NodeID
	}{
		{
			name:   "empty",
			setup:  func() []*stubPeer { return nil },
			expect: "",
		},
		{
			name: "highest total difficulty",
			setup: func() []*stubPeer {
				return []*stubPeer{newStubPeer("a", 10), newStubPeer("b", 30), newStubPeer("c", 20)}
			},
			expect: "b",
		},
		{
			name: "first on ties",
			setup: func() []*stubPeer {
				return []*stubPeer{newStubPeer("a", 10), newStubPeer("b", 10)}
			},
			expect: "a",
		},
		{
			name: "busy peers are not eligible",
			setup: func() []*stubPeer {
				busy := newStubPeer("busy", 100)
				busy.state = eth.SyncStateBlockRetrieving
				return []*stubPeer{busy, newStubPeer("idle", 1)}
			},
			expect: "idle",
		},
		{
			name: "peers without status are not eligible",
			setup: func() []*stubPeer {
				p := newStubPeer("fresh", 100)
				p.succeeded = false
				return []*stubPeer{p}
			},
			expect: "",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			pool := NewPool(log.NewNopLogger(), config.MasterElectionBest)
			for _, p := range tc.setup() {
				require.NoError(t, pool.AddPeer(p))
			}

			master := pool.Master()
			if tc.expect == "" {
				assert.Nil(t, master)
				return
			}
			require.NotNil(t, master)
			assert.Equal(t, tc.expect, master.ID())
		})
	}
}

func TestPoolMasterWeighted(t *testing.T) {
	pool := NewPool(log.NewNopLogger(), config.MasterElectionWeighted)
	assert.Nil(t, pool.Master())

	heavy := newStubPeer("heavy", 1<<40)
	light := newStubPeer("light", 1)
	busy := newStubPeer("busy", 1<<50)
	busy.state = eth.SyncStateHashRetrieving
	for _, p := range []*stubPeer{light, heavy, busy} {
		require.NoError(t, pool.AddPeer(p))
	}

	counts := make(map[types.NodeID]int)
	for i := 0; i < 200; i++ {
		master := pool.Master()
		require.NotNil(t, master)
		counts[master.ID()]++
	}
	assert.Zero(t, counts["busy"])
	assert.Greater(t, counts["heavy"], counts["light"])
}

func TestPoolMasterWeightedZeroDifficulty(t *testing.T) {
	pool := NewPool(log.NewNopLogger(), config.MasterElectionWeighted)
	p := newStubPeer("zero", 0)
	require.NoError(t, pool.AddPeer(p))

	master := pool.Master()
	require.NotNil(t, master)
	assert.Equal(t, types.NodeID("zero"), master.ID())
}

func TestElectionWeights(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(3), 250)
	half := new(big.Int).Rsh(huge, 1)

	weights := electionWeights([]*big.Int{huge, half, big.NewInt(0), big.NewInt(5)})
	require.Len(t, weights, 4)
	for _, w := range weights {
		assert.LessOrEqual(t, w, uint(1<<maxWeightBits))
		assert.GreaterOrEqual(t, w, uint(1))
	}
	assert.InDelta(t, 2, float64(weights[0])/float64(weights[1]), 0.01)
	assert.Equal(t, uint(1), weights[2])

	small := electionWeights([]*big.Int{big.NewInt(100), big.NewInt(7)})
	assert.Equal(t, []uint{101, 8}, small)
}

func TestPickWeightedHugeDifficulty(t *testing.T) {
	peers := make([]eth.Eth, 0, 128)
	for i := 0; i < 128; i++ {
		p := newStubPeer(types.NodeID(fmt.Sprintf("peer%d", i)), 0)
		p.td = new(big.Int).Lsh(big.NewInt(int64(i+1)), 300)
		peers = append(peers, p)
	}

	for i := 0; i < 20; i++ {
		master, err := pickWeighted(peers)
		require.NoError(t, err)
		require.NotNil(t, master)
	}
}
