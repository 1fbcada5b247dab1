package types

import "fmt"

// Transaction is an opaque value transfer relayed between peers. The sync
// layer never interprets it beyond hashing.
type Transaction struct {
	Nonce   uint64
	Value   uint64
	Payload []byte
}

// Hash returns the keccak256 hash of the encoded transaction.
func (tx *Transaction) Hash() Hash {
	return keccak256(tx.appendTo(nil))
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("Tx{%d %v}", tx.Nonce, tx.Hash().ShortString())
}

// Transactions is a list of transactions, in block order.
type Transactions []*Transaction

// Root returns the digest committed to by Header.TxRoot.
func (txs Transactions) Root() Hash {
	hashes := make([][]byte, len(txs))
	for i, tx := range txs {
		h := tx.Hash()
		hashes[i] = h[:]
	}
	return keccak256(hashes...)
}
