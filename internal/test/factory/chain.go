package factory

import (
	"encoding/hex"
	"math/big"

	"github.com/tendermint/chainsync/types"
)

// GenesisTime is the timestamp of the genesis block made by MakeGenesis.
const GenesisTime uint64 = 1438269973

// MakeGenesis returns the genesis block shared by every chain of this
// package.
func MakeGenesis() *types.Block {
	return types.NewBlock(types.Header{
		Number:     0,
		Difficulty: 1,
		Time:       GenesisTime,
	}, nil)
}

// GenesisHashHex returns the hex encoded genesis hash, as expected by
// config.SyncConfig.
func GenesisHashHex() string {
	return hex.EncodeToString(MakeGenesis().Hash().Bytes())
}

// MakeChain returns the genesis block followed by n blocks. The block at
// index i has number i.
func MakeChain(n int) []*types.Block {
	return ExtendChain([]*types.Block{MakeGenesis()}, n, 0)
}

// ExtendChain appends n blocks to a copy of chain. Chains extended from the
// same parent with different seeds diverge.
func ExtendChain(chain []*types.Block, n int, seed uint64) []*types.Block {
	out := make([]*types.Block, len(chain), len(chain)+n)
	copy(out, chain)

	parent := out[len(out)-1]
	for i := 0; i < n; i++ {
		number := parent.Number() + 1
		txs := MakeTxs(number, int(number%4))
		if seed != 0 {
			txs = append(txs, &types.Transaction{Nonce: seed, Value: number})
		}
		block := types.NewBlock(types.Header{
			Number:     number,
			ParentHash: parent.Hash(),
			Difficulty: 100 + number%7 + seed,
			Time:       GenesisTime + number*15,
		}, txs)
		out = append(out, block)
		parent = block
	}
	return out
}

// MakeFork returns the first at+1 blocks of chain followed by n blocks
// diverging from chain.
func MakeFork(chain []*types.Block, at int, n int, seed uint64) []*types.Block {
	return ExtendChain(chain[:at+1], n, seed)
}

// Headers returns the headers of blocks.
func Headers(blocks []*types.Block) []*types.Header {
	headers := make([]*types.Header, len(blocks))
	for i, b := range blocks {
		hdr := b.Header
		headers[i] = &hdr
	}
	return headers
}

// TotalDifficulty returns the sum of the difficulties of chain.
func TotalDifficulty(chain []*types.Block) *big.Int {
	td := new(big.Int)
	for _, b := range chain {
		td.Add(td, new(big.Int).SetUint64(b.Difficulty()))
	}
	return td
}
