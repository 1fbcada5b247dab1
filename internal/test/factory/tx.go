package factory

import "github.com/tendermint/chainsync/types"

// MakeTenTxs returns ten transactions unique to height.
func MakeTenTxs(height uint64) types.Transactions {
	return MakeTxs(height, 10)
}

// MakeTxs returns n transactions unique to height.
func MakeTxs(height uint64, n int) types.Transactions {
	txs := make(types.Transactions, n)
	for i := range txs {
		txs[i] = &types.Transaction{
			Nonce:   uint64(i),
			Value:   height*1000 + uint64(i),
			Payload: []byte{byte(height >> 8), byte(height), byte(i)},
		}
	}
	return txs
}
