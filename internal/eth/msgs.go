package eth

import (
	"fmt"
	"math/big"

	"github.com/tendermint/chainsync/types"
)

// MsgCode identifies an eth protocol message.
type MsgCode uint8

const (
	StatusMsg          MsgCode = 0x00
	NewBlockHashesMsg  MsgCode = 0x01
	TxMsg              MsgCode = 0x02
	GetBlockHeadersMsg MsgCode = 0x03
	BlockHeadersMsg    MsgCode = 0x04
	GetBlockBodiesMsg  MsgCode = 0x05
	BlockBodiesMsg     MsgCode = 0x06
	NewBlockMsg        MsgCode = 0x07
)

func (c MsgCode) String() string {
	switch c {
	case StatusMsg:
		return "STATUS"
	case NewBlockHashesMsg:
		return "NEW_BLOCK_HASHES"
	case TxMsg:
		return "TRANSACTIONS"
	case GetBlockHeadersMsg:
		return "GET_BLOCK_HEADERS"
	case BlockHeadersMsg:
		return "BLOCK_HEADERS"
	case GetBlockBodiesMsg:
		return "GET_BLOCK_BODIES"
	case BlockBodiesMsg:
		return "BLOCK_BODIES"
	case NewBlockMsg:
		return "NEW_BLOCK"
	default:
		return fmt.Sprintf("UNKNOWN(%#x)", uint8(c))
	}
}

// Message is a decoded eth protocol message.
type Message interface {
	Code() MsgCode
}

// StatusMessage is exchanged once, right after the connection is
// established.
type StatusMessage struct {
	ProtocolVersion Version
	NetworkID       uint64
	TotalDifficulty *big.Int
	BestHash        types.Hash
	GenesisHash     types.Hash
}

// BlockAnnouncement is a single entry of NewBlockHashesMessage.
type BlockAnnouncement struct {
	Hash   types.Hash
	Number uint64
}

type NewBlockHashesMessage struct {
	Announcements []BlockAnnouncement
}

type TransactionsMessage struct {
	Txs types.Transactions
}

// GetBlockHeadersMessage asks for Amount headers starting at Origin, every
// Skip+1 blocks, descending if Reverse.
type GetBlockHeadersMessage struct {
	RequestID uint64
	Origin    uint64
	Amount    uint64
	Skip      uint64
	Reverse   bool
}

type BlockHeadersMessage struct {
	RequestID uint64
	Headers   []*types.Header
}

type GetBlockBodiesMessage struct {
	RequestID uint64
	Hashes    []types.Hash
}

// BlockBodiesMessage carries bodies in the order of the requested hashes.
// Trailing bodies the peer does not have are omitted.
type BlockBodiesMessage struct {
	RequestID uint64
	Bodies    []types.Transactions
}

type NewBlockMessage struct {
	Block           *types.Block
	TotalDifficulty *big.Int
}

func (*StatusMessage) Code() MsgCode          { return StatusMsg }
func (*NewBlockHashesMessage) Code() MsgCode  { return NewBlockHashesMsg }
func (*TransactionsMessage) Code() MsgCode    { return TxMsg }
func (*GetBlockHeadersMessage) Code() MsgCode { return GetBlockHeadersMsg }
func (*BlockHeadersMessage) Code() MsgCode    { return BlockHeadersMsg }
func (*GetBlockBodiesMessage) Code() MsgCode  { return GetBlockBodiesMsg }
func (*BlockBodiesMessage) Code() MsgCode     { return BlockBodiesMsg }
func (*NewBlockMessage) Code() MsgCode        { return NewBlockMsg }
