package store

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/chainsync/types"
)

// ErrNonContiguous is returned when a saved block does not extend the head.
var ErrNonContiguous = errors.New("block does not extend the chain head")

/*
BlockStore is a simple low level store for the imported chain.

There are three types of information stored:
  - Block:           the encoded block, by number
  - Block hash:      the number of each block, by hash
  - Total difficulty: the accumulated difficulty up to each block, by number

The store always contains the contiguous chain from genesis up to Height.

// NOTE: BlockStore methods will panic if they encounter errors
// deserializing loaded data, indicating probable corruption on disk.
*/
type BlockStore struct {
	db dbm.DB

	mtx  sync.RWMutex
	head *types.Header
	td   *big.Int
}

// NewBlockStore returns a new BlockStore with the given DB, initialized to
// the last block saved. An empty DB is initialized with genesis.
func NewBlockStore(db dbm.DB, genesis *types.Block) (*BlockStore, error) {
	bs := &BlockStore{db: db}

	height, ok := bs.lastHeight()
	if !ok {
		td := new(big.Int).SetUint64(genesis.Difficulty())
		if err := bs.saveBlock(genesis, td); err != nil {
			return nil, err
		}
		bs.setHead(&genesis.Header, td)
		return bs, nil
	}

	block := bs.LoadBlock(height)
	if block == nil {
		return nil, fmt.Errorf("missing head block #%d", height)
	}
	if height == 0 && block.Hash() != genesis.Hash() {
		return nil, fmt.Errorf("stored genesis %v does not match %v",
			block.Hash().ShortString(), genesis.Hash().ShortString())
	}
	bs.setHead(&block.Header, bs.loadTotalDifficulty(height))
	return bs, nil
}

// Height returns the number of the head block.
func (bs *BlockStore) Height() uint64 {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return bs.head.Number
}

// Head returns the head header.
func (bs *BlockStore) Head() *types.Header {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	hdr := *bs.head
	return &hdr
}

// TotalDifficulty returns the total difficulty of the chain up to the head.
func (bs *BlockStore) TotalDifficulty() *big.Int {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return new(big.Int).Set(bs.td)
}

// LoadBlock returns the block with the given number.
// If no block is found for that number, it returns nil.
func (bs *BlockStore) LoadBlock(number uint64) *types.Block {
	bz, err := bs.db.Get(blockKey(number))
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return nil
	}

	block, err := types.UnmarshalBlock(bz)
	if err != nil {
		panic(fmt.Errorf("error reading block: %w", err))
	}
	return block
}

// LoadBlockByHash returns the block with the given hash.
// If no block is found for that hash, it returns nil.
func (bs *BlockStore) LoadBlockByHash(hash types.Hash) *types.Block {
	bz, err := bs.db.Get(blockHashKey(hash))
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return nil
	}

	var number uint64
	if _, err := orderedcode.Parse(string(bz), &number); err != nil {
		panic(fmt.Errorf("failed to extract number from %X: %w", bz, err))
	}
	return bs.LoadBlock(number)
}

// SaveBlock persists block as the new head. block must be the child of the
// current head.
func (bs *BlockStore) SaveBlock(block *types.Block) error {
	if block == nil {
		panic("BlockStore can only save a non-nil block")
	}

	bs.mtx.Lock()
	defer bs.mtx.Unlock()

	if block.Number() != bs.head.Number+1 || block.ParentHash() != bs.head.Hash() {
		return fmt.Errorf("%w: got #%d (parent %v), head is #%d (%v)", ErrNonContiguous,
			block.Number(), block.ParentHash().ShortString(), bs.head.Number, bs.head.Hash().ShortString())
	}

	td := new(big.Int).Add(bs.td, new(big.Int).SetUint64(block.Difficulty()))
	if err := bs.saveBlock(block, td); err != nil {
		return err
	}

	hdr := block.Header
	bs.head = &hdr
	bs.td = td
	return nil
}

func (bs *BlockStore) saveBlock(block *types.Block, td *big.Int) error {
	batch := bs.db.NewBatch()
	defer batch.Close()

	number := block.Number()
	if err := batch.Set(blockKey(number), types.MarshalBlock(block)); err != nil {
		return err
	}
	if err := batch.Set(blockHashKey(block.Hash()), encodeNumber(number)); err != nil {
		return err
	}
	if err := batch.Set(totalDifficultyKey(number), td.Bytes()); err != nil {
		return err
	}
	return batch.WriteSync()
}

func (bs *BlockStore) setHead(hdr *types.Header, td *big.Int) {
	bs.mtx.Lock()
	defer bs.mtx.Unlock()
	h := *hdr
	bs.head = &h
	bs.td = td
}

func (bs *BlockStore) loadTotalDifficulty(number uint64) *big.Int {
	bz, err := bs.db.Get(totalDifficultyKey(number))
	if err != nil {
		panic(err)
	}
	return new(big.Int).SetBytes(bz)
}

func (bs *BlockStore) lastHeight() (uint64, bool) {
	iter, err := bs.db.ReverseIterator(blockKey(0), blockKey(1<<64-1))
	if err != nil {
		panic(err)
	}
	defer iter.Close()

	if iter.Valid() {
		number, err := decodeBlockKey(iter.Key())
		if err == nil {
			return number, true
		}
	}
	if err := iter.Error(); err != nil {
		panic(err)
	}
	return 0, false
}

// Close closes the underlying database.
func (bs *BlockStore) Close() error {
	return bs.db.Close()
}

//---------------------------------- KEY ENCODING -----------------------------------------

// key prefixes
const (
	// prefixes are unique across all chainsync db's
	prefixBlock           = int64(0)
	prefixBlockHash       = int64(1)
	prefixTotalDifficulty = int64(2)
)

func blockKey(number uint64) []byte {
	key, err := orderedcode.Append(nil, prefixBlock, number)
	if err != nil {
		panic(err)
	}
	return key
}

func decodeBlockKey(key []byte) (number uint64, err error) {
	var prefix int64
	remaining, err := orderedcode.Parse(string(key), &prefix, &number)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block key: %w", err)
	}
	if len(remaining) != 0 {
		return 0, fmt.Errorf("expected complete key but got remainder: %s", remaining)
	}
	if prefix != prefixBlock {
		return 0, fmt.Errorf("incorrect prefix. Expected %v, got %v", prefixBlock, prefix)
	}
	return number, nil
}

func blockHashKey(hash types.Hash) []byte {
	key, err := orderedcode.Append(nil, prefixBlockHash, string(hash.Bytes()))
	if err != nil {
		panic(err)
	}
	return key
}

func totalDifficultyKey(number uint64) []byte {
	key, err := orderedcode.Append(nil, prefixTotalDifficulty, number)
	if err != nil {
		panic(err)
	}
	return key
}

func encodeNumber(number uint64) []byte {
	bz, err := orderedcode.Append(nil, number)
	if err != nil {
		panic(err)
	}
	return bz
}
