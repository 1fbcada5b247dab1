package types

import (
	"errors"
	"fmt"
	"time"
)

// Header is the part of a block retrieved during the hash retrieving phase.
type Header struct {
	Number     uint64
	ParentHash Hash
	TxRoot     Hash
	Difficulty uint64
	Time       uint64 // unix seconds
}

// Hash returns the keccak256 hash of the encoded header.
func (h *Header) Hash() Hash {
	return keccak256(h.appendTo(nil))
}

func (h *Header) String() string {
	return fmt.Sprintf("Header{#%d %v}", h.Number, h.Hash().ShortString())
}

// Block is a header together with its body.
type Block struct {
	Header Header
	Txs    Transactions
}

// NewBlock creates a block whose header commits to txs.
func NewBlock(header Header, txs Transactions) *Block {
	header.TxRoot = txs.Root()
	return &Block{Header: header, Txs: txs}
}

func (b *Block) Hash() Hash         { return b.Header.Hash() }
func (b *Block) Number() uint64     { return b.Header.Number }
func (b *Block) ParentHash() Hash   { return b.Header.ParentHash }
func (b *Block) Difficulty() uint64 { return b.Header.Difficulty }

// ValidateBasic checks that the body matches the header.
func (b *Block) ValidateBasic() error {
	if b == nil {
		return errors.New("nil block")
	}
	if root := b.Txs.Root(); root != b.Header.TxRoot {
		return fmt.Errorf("wrong tx root: expected %v, got %v", b.Header.TxRoot, root)
	}
	return nil
}

func (b *Block) String() string {
	if b == nil {
		return "nil-Block"
	}
	return fmt.Sprintf("Block{#%d %v txs:%d}", b.Number(), b.Hash().ShortString(), len(b.Txs))
}

// BlockWrapper is a block received from the network together with where and
// when it came from.
type BlockWrapper struct {
	Block      *Block
	NodeID     NodeID
	ReceivedAt time.Time
	// NewBlock is true for blocks announced as freshly mined rather than
	// retrieved during sync.
	NewBlock bool
}

// NewBlockWrapper wraps a block received from nodeID now.
func NewBlockWrapper(block *Block, nodeID NodeID) *BlockWrapper {
	return &BlockWrapper{
		Block:      block,
		NodeID:     nodeID,
		ReceivedAt: time.Now(),
	}
}

func (w *BlockWrapper) Number() uint64   { return w.Block.Number() }
func (w *BlockWrapper) Hash() Hash       { return w.Block.Hash() }
func (w *BlockWrapper) ParentHash() Hash { return w.Block.ParentHash() }
