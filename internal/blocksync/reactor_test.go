package blocksync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/internal/eth/ethtest"
	"github.com/tendermint/chainsync/internal/store"
	"github.com/tendermint/chainsync/internal/test/factory"
	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/types"
)

const syncTimeout = 20 * time.Second

type reactorTestSuite struct {
	reactor  *Reactor
	store    *store.BlockStore
	remotes  map[types.NodeID]*ethtest.RemotePeer
	handlers map[types.NodeID]*eth.Handler
	wg       sync.WaitGroup
}

func testReactorConfig(election string) *config.SyncConfig {
	cfg := config.TestSyncConfig()
	cfg.GenesisHash = factory.GenesisHashHex()
	cfg.MasterElection = election
	return cfg
}

func setup(ctx context.Context, t *testing.T, cfg *config.SyncConfig) *reactorTestSuite {
	t.Helper()

	bs, err := store.NewBlockStore(dbm.NewMemDB(), factory.MakeGenesis())
	require.NoError(t, err)

	rts := &reactorTestSuite{
		reactor:  NewReactor(log.NewNopLogger(), cfg, bs, dbm.NewMemDB(), nil),
		store:    bs,
		remotes:  make(map[types.NodeID]*ethtest.RemotePeer),
		handlers: make(map[types.NodeID]*eth.Handler),
	}
	require.NoError(t, rts.reactor.Start(ctx))
	t.Cleanup(rts.wg.Wait)
	return rts
}

// connect adds a remote peer serving chain and runs it until ctx is
// canceled or the connection is dropped.
func (rts *reactorTestSuite) connect(
	ctx context.Context,
	t *testing.T,
	id types.NodeID,
	chain []*types.Block,
	behavior ethtest.Behavior,
) *ethtest.RemotePeer {
	t.Helper()

	remote := ethtest.NewRemotePeer(log.NewNopLogger(), id, 1, eth.V63, chain, behavior)
	h, err := rts.reactor.AddPeer(ctx, id, eth.V63, remote)
	require.NoError(t, err)
	rts.remotes[id] = remote
	rts.handlers[id] = h

	rts.wg.Add(1)
	go func() {
		defer rts.wg.Done()
		if err := remote.Run(ctx, h); err != nil {
			rts.reactor.RemovePeer(id)
		}
	}()
	return remote
}

func (rts *reactorTestSuite) requireHeight(t *testing.T, height uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return rts.store.Height() >= height
	}, syncTimeout, 10*time.Millisecond, "stuck at height %d", rts.store.Height())
}

func TestReactorSyncsChain(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := factory.MakeChain(200)
	rts := setup(ctx, t, testReactorConfig(config.MasterElectionBest))
	for i := 0; i < 3; i++ {
		rts.connect(ctx, t, types.NodeID(fmt.Sprintf("peer%d", i)), chain, ethtest.Behavior{})
	}

	rts.requireHeight(t, 200)
	assert.Equal(t, chain[200].Hash(), rts.store.Head().Hash())
	assert.Equal(t, factory.TotalDifficulty(chain), rts.store.TotalDifficulty())
	assert.Equal(t, 3, rts.reactor.Pool().Size())

	var blocks uint64
	for _, h := range rts.handlers {
		blocks += h.Stats().BlocksCount()
	}
	assert.GreaterOrEqual(t, blocks, uint64(200))
}

func TestReactorSyncsWithWeightedElection(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := factory.MakeChain(120)
	rts := setup(ctx, t, testReactorConfig(config.MasterElectionWeighted))
	rts.connect(ctx, t, "short", chain[:61], ethtest.Behavior{})
	rts.connect(ctx, t, "full", chain, ethtest.Behavior{MaxHeaders: 7})

	rts.requireHeight(t, 120)
	assert.Equal(t, chain[120].Hash(), rts.store.Head().Hash())
}

func TestReactorRotatesStalledMaster(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := factory.MakeChain(80)
	rts := setup(ctx, t, testReactorConfig(config.MasterElectionBest))

	// equal difficulty: the first peer added is elected first
	staller := rts.connect(ctx, t, "staller", chain, ethtest.Behavior{Stall: true})
	rts.connect(ctx, t, "honest", chain, ethtest.Behavior{})

	rts.requireHeight(t, 80)

	select {
	case <-staller.Done():
	case <-time.After(syncTimeout):
		t.Fatal("stalling peer was not disconnected")
	}
	assert.ErrorIs(t, staller.Reason(), eth.ErrRequestTimeout)
	require.Eventually(t, func() bool { return rts.reactor.Pool().Get("staller") == nil },
		time.Second, 10*time.Millisecond)
}

func TestReactorDisconnectsCorruptPeer(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := factory.MakeChain(150)
	rts := setup(ctx, t, testReactorConfig(config.MasterElectionBest))
	corrupt := rts.connect(ctx, t, "corrupt", chain, ethtest.Behavior{CorruptBodies: true})
	rts.connect(ctx, t, "honest", chain, ethtest.Behavior{Latency: time.Millisecond})

	rts.requireHeight(t, 150)
	assert.Equal(t, chain[150].Hash(), rts.store.Head().Hash())

	select {
	case <-corrupt.Done():
		assert.ErrorIs(t, corrupt.Reason(), eth.ErrBodyMismatch)
	case <-time.After(time.Second):
		// the honest peer may have served every body
		assert.Zero(t, rts.handlers["corrupt"].Stats().BlocksCount())
	}
}

func TestReactorRecoversGap(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := factory.MakeChain(55)
	rts := setup(ctx, t, testReactorConfig(config.MasterElectionBest))
	remote := rts.connect(ctx, t, "peer", chain[:51], ethtest.Behavior{})
	rts.requireHeight(t, 50)

	remote.Extend(chain[51:]...)
	err := rts.handlers["peer"].Receive(&eth.NewBlockMessage{
		Block:           chain[55],
		TotalDifficulty: factory.TotalDifficulty(chain),
	})
	require.NoError(t, err)

	rts.requireHeight(t, 55)

	var gap *eth.GetBlockHeadersMessage
	for _, msg := range remote.Received() {
		if req, ok := msg.(*eth.GetBlockHeadersMessage); ok && req.Origin == 51 && req.Amount == 4 {
			gap = req
		}
	}
	require.NotNil(t, gap, "no gap request was sent")
}

func TestReactorAddPeerValidation(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rts := setup(ctx, t, testReactorConfig(config.MasterElectionBest))
	chain := factory.MakeChain(1)

	_, err := rts.reactor.AddPeer(ctx, "", eth.V63, ethtest.NewRemotePeer(log.NewNopLogger(), "x", 1, eth.V63, chain, ethtest.Behavior{}))
	assert.Error(t, err)

	_, err = rts.reactor.AddPeer(ctx, "peer", eth.Version(61), ethtest.NewRemotePeer(log.NewNopLogger(), "peer", 1, eth.V63, chain, ethtest.Behavior{}))
	assert.ErrorIs(t, err, eth.ErrIncompatiblePeer)

	remote := ethtest.NewRemotePeer(log.NewNopLogger(), "peer", 1, eth.V63, chain, ethtest.Behavior{})
	_, err = rts.reactor.AddPeer(ctx, "peer", eth.V63, remote)
	require.NoError(t, err)
	_, err = rts.reactor.AddPeer(ctx, "peer", eth.V63, remote)
	assert.ErrorIs(t, err, ErrPeerAlreadyAdded)

	rts.reactor.RemovePeer("peer")
	assert.Zero(t, rts.reactor.Pool().Size())
}
