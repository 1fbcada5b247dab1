package types

import (
	"errors"
	"fmt"

	"github.com/gogo/protobuf/proto"
	"google.golang.org/protobuf/encoding/protowire"
)

// Headers, blocks and transactions are stored as protobuf messages:
//
//	message Header {
//	  uint64 number      = 1;
//	  bytes  parent_hash = 2;
//	  bytes  tx_root     = 3;
//	  uint64 difficulty  = 4;
//	  uint64 time        = 5;
//	}
//	message Transaction {
//	  uint64 nonce   = 1;
//	  uint64 value   = 2;
//	  bytes  payload = 3;
//	}
//	message Block {
//	  Header               header = 1;
//	  repeated Transaction txs    = 2;
//	}
//
// Fields are written in number order and zero values are omitted, so the
// encoding is deterministic. Header.Hash and Transaction.Hash commit to it.

var (
	_ proto.Marshaler   = (*Header)(nil)
	_ proto.Unmarshaler = (*Header)(nil)
	_ proto.Marshaler   = (*Transaction)(nil)
	_ proto.Unmarshaler = (*Transaction)(nil)
	_ proto.Marshaler   = (*Block)(nil)
	_ proto.Unmarshaler = (*Block)(nil)
)

var errWireType = errors.New("unexpected wire type")

func (h *Header) Reset()      { *h = Header{} }
func (*Header) ProtoMessage() {}

// Marshal implements proto.Marshaler.
func (h *Header) Marshal() ([]byte, error) { return h.appendTo(nil), nil }

func (h *Header) appendTo(b []byte) []byte {
	b = appendVarintField(b, 1, h.Number)
	b = appendHashField(b, 2, h.ParentHash)
	b = appendHashField(b, 3, h.TxRoot)
	b = appendVarintField(b, 4, h.Difficulty)
	b = appendVarintField(b, 5, h.Time)
	return b
}

// Unmarshal implements proto.Unmarshaler.
func (h *Header) Unmarshal(bz []byte) error {
	return consumeFields(bz, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarint(typ, b, &h.Number)
		case 2:
			return consumeHash(typ, b, &h.ParentHash)
		case 3:
			return consumeHash(typ, b, &h.TxRoot)
		case 4:
			return consumeVarint(typ, b, &h.Difficulty)
		case 5:
			return consumeVarint(typ, b, &h.Time)
		}
		return skipField(num, typ, b)
	})
}

func (tx *Transaction) Reset()      { *tx = Transaction{} }
func (*Transaction) ProtoMessage() {}

// Marshal implements proto.Marshaler.
func (tx *Transaction) Marshal() ([]byte, error) { return tx.appendTo(nil), nil }

func (tx *Transaction) appendTo(b []byte) []byte {
	b = appendVarintField(b, 1, tx.Nonce)
	b = appendVarintField(b, 2, tx.Value)
	if len(tx.Payload) > 0 {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, tx.Payload)
	}
	return b
}

// Unmarshal implements proto.Unmarshaler.
func (tx *Transaction) Unmarshal(bz []byte) error {
	return consumeFields(bz, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarint(typ, b, &tx.Nonce)
		case 2:
			return consumeVarint(typ, b, &tx.Value)
		case 3:
			payload, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			if len(payload) > 0 {
				tx.Payload = append([]byte(nil), payload...)
			}
			return n, nil
		}
		return skipField(num, typ, b)
	})
}

func (b *Block) Reset()      { *b = Block{} }
func (*Block) ProtoMessage() {}

// Marshal implements proto.Marshaler.
func (b *Block) Marshal() ([]byte, error) {
	bz := protowire.AppendTag(nil, 1, protowire.BytesType)
	bz = protowire.AppendBytes(bz, b.Header.appendTo(nil))
	for _, tx := range b.Txs {
		bz = protowire.AppendTag(bz, 2, protowire.BytesType)
		bz = protowire.AppendBytes(bz, tx.appendTo(nil))
	}
	return bz, nil
}

// Unmarshal implements proto.Unmarshaler.
func (b *Block) Unmarshal(bz []byte) error {
	return consumeFields(bz, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			msg, n, err := consumeBytes(typ, v)
			if err != nil {
				return 0, err
			}
			return n, b.Header.Unmarshal(msg)
		case 2:
			msg, n, err := consumeBytes(typ, v)
			if err != nil {
				return 0, err
			}
			tx := new(Transaction)
			if err := tx.Unmarshal(msg); err != nil {
				return 0, fmt.Errorf("tx %d: %w", len(b.Txs), err)
			}
			b.Txs = append(b.Txs, tx)
			return n, nil
		}
		return skipField(num, typ, v)
	})
}

// MarshalHeader encodes h for storage.
func MarshalHeader(h *Header) []byte {
	return mustMarshal(h)
}

// UnmarshalHeader decodes a header produced by MarshalHeader.
func UnmarshalHeader(bz []byte) (*Header, error) {
	h := new(Header)
	if err := proto.Unmarshal(bz, h); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

// MarshalBlock encodes b for storage.
func MarshalBlock(b *Block) []byte {
	return mustMarshal(b)
}

// UnmarshalBlock decodes a block produced by MarshalBlock.
func UnmarshalBlock(bz []byte) (*Block, error) {
	b := new(Block)
	if err := proto.Unmarshal(bz, b); err != nil {
		return nil, fmt.Errorf("block: %w", err)
	}
	return b, nil
}

func mustMarshal(msg proto.Message) []byte {
	bz, err := proto.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return bz
}

//-----------------------------------------------------------------------------

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendHashField(b []byte, num protowire.Number, h Hash) []byte {
	if h.IsZero() {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, h[:])
}

// consumeFields calls field for every field of the message in bz. field
// returns the length of the value it consumed.
func consumeFields(bz []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return protowire.ParseError(n)
		}
		bz = bz[n:]

		n, err := field(num, typ, bz)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		bz = bz[n:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte, v *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, errWireType
	}
	x, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*v = x
	return n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeHash(typ protowire.Type, b []byte, h *Hash) (int, error) {
	v, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	if len(v) != HashSize {
		return 0, fmt.Errorf("hash of %d bytes", len(v))
	}
	copy(h[:], v)
	return n, nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
