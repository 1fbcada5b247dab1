package store

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/chainsync/internal/test/factory"
	"github.com/tendermint/chainsync/types"
)

func TestNewBlockStoreInitializesGenesis(t *testing.T) {
	genesis := factory.MakeGenesis()
	bs, err := NewBlockStore(dbm.NewMemDB(), genesis)
	require.NoError(t, err)

	assert.EqualValues(t, 0, bs.Height())
	assert.Equal(t, genesis.Hash(), bs.Head().Hash())
	assert.Equal(t, big.NewInt(1), bs.TotalDifficulty())
	assert.Equal(t, genesis.Hash(), bs.LoadBlockByHash(genesis.Hash()).Hash())
}

func TestBlockStoreSaveLoad(t *testing.T) {
	chain := factory.MakeChain(10)
	bs, err := NewBlockStore(dbm.NewMemDB(), chain[0])
	require.NoError(t, err)

	for _, block := range chain[1:] {
		require.NoError(t, bs.SaveBlock(block))
	}

	assert.EqualValues(t, 10, bs.Height())
	assert.Equal(t, factory.TotalDifficulty(chain), bs.TotalDifficulty())
	for _, block := range chain {
		loaded := bs.LoadBlock(block.Number())
		require.NotNil(t, loaded)
		assert.Equal(t, block.Hash(), loaded.Hash())
		assert.Len(t, loaded.Txs, len(block.Txs))

		byHash := bs.LoadBlockByHash(block.Hash())
		require.NotNil(t, byHash)
		assert.Equal(t, block.Number(), byHash.Number())
	}
	assert.Nil(t, bs.LoadBlock(11))
	assert.Nil(t, bs.LoadBlockByHash(types.Hash{0x01}))
}

func TestBlockStoreRejectsNonContiguous(t *testing.T) {
	chain := factory.MakeChain(5)
	bs, err := NewBlockStore(dbm.NewMemDB(), chain[0])
	require.NoError(t, err)

	err = bs.SaveBlock(chain[2])
	assert.ErrorIs(t, err, ErrNonContiguous)

	require.NoError(t, bs.SaveBlock(chain[1]))
	fork := factory.MakeFork(chain, 0, 2, 7)
	assert.ErrorIs(t, bs.SaveBlock(fork[2]), ErrNonContiguous)
	assert.EqualValues(t, 1, bs.Height())
}

func TestBlockStoreReopen(t *testing.T) {
	chain := factory.MakeChain(4)
	db := dbm.NewMemDB()

	bs, err := NewBlockStore(db, chain[0])
	require.NoError(t, err)
	for _, block := range chain[1:] {
		require.NoError(t, bs.SaveBlock(block))
	}

	reopened, err := NewBlockStore(db, chain[0])
	require.NoError(t, err)
	assert.EqualValues(t, 4, reopened.Height())
	assert.Equal(t, chain[4].Hash(), reopened.Head().Hash())
	assert.Equal(t, bs.TotalDifficulty(), reopened.TotalDifficulty())
}

func TestBlockKeyRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 255, 1 << 40} {
		got, err := decodeBlockKey(blockKey(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	_, err := decodeBlockKey(blockHashKey(types.Hash{}))
	assert.Error(t, err)
}
