package blocksync

import (
	"fmt"
	"sync"

	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/types"
)

var (
	_ Queue           = (*SyncQueue)(nil)
	_ eth.HeaderQueue = (*SyncQueue)(nil)
)

// ChainHead gives the head of the local chain.
type ChainHead interface {
	Head() *types.Header
}

// SyncQueue holds the headers retrieved from the master, the headers whose
// bodies are being retrieved and the blocks waiting to be imported. Headers
// and blocks are kept in a database; in-flight headers are kept in memory.
// It is safe for concurrent use.
type SyncQueue struct {
	logger log.Logger
	db     dbm.DB

	headerLimit int
	blockLimit  int

	mtx       sync.Mutex
	tip       types.Header // last known header
	nextBlock uint64       // next block handed to the importer
	headers   int
	blocks    int
	inflight  map[uint64]*types.Header
}

// NewSyncQueue returns an empty queue extending the head of chain.
func NewSyncQueue(logger log.Logger, db dbm.DB, chain ChainHead, cfg *config.SyncConfig) *SyncQueue {
	head := chain.Head()
	return &SyncQueue{
		logger:      logger.With("module", "queue"),
		db:          db,
		headerLimit: cfg.HeaderQueueLimit,
		blockLimit:  cfg.BlockQueueLimit,
		tip:         *head,
		nextBlock:   head.Number + 1,
		inflight:    make(map[uint64]*types.Header),
	}
}

// IsLimitExceeded implements Queue.
func (q *SyncQueue) IsLimitExceeded() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.headers+len(q.inflight) >= q.headerLimit || q.blocks >= q.blockLimit
}

// IsHeadersEmpty implements Queue.
func (q *SyncQueue) IsHeadersEmpty() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.headers == 0 && len(q.inflight) == 0
}

// IsMoreBlocksNeeded implements Queue.
func (q *SyncQueue) IsMoreBlocksNeeded() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.blocks < q.blockLimit/2
}

// NextHeaderNumber implements eth.HeaderQueue.
func (q *SyncQueue) NextHeaderNumber() uint64 {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.tip.Number + 1
}

// Size returns the number of queued headers, in-flight headers and queued
// blocks.
func (q *SyncQueue) Size() (headers, inflight, blocks int) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.headers, len(q.inflight), q.blocks
}

// AddHeaders implements eth.HeaderQueue. headers must be contiguous; the
// ones not above the known tip are skipped, the first remaining one must
// be the child of the tip.
func (q *SyncQueue) AddHeaders(peerID types.NodeID, headers []*types.Header) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	i := 0
	for i < len(headers) && headers[i].Number <= q.tip.Number {
		i++
	}
	headers = headers[i:]
	if len(headers) == 0 {
		return nil
	}

	first := headers[0]
	if first.Number != q.tip.Number+1 || first.ParentHash != q.tip.Hash() {
		return fmt.Errorf("%w: header #%d (parent %v), tip #%d (%v)", ErrHeadersDisconnected,
			first.Number, first.ParentHash.ShortString(), q.tip.Number, q.tip.Hash().ShortString())
	}

	batch := q.db.NewBatch()
	defer batch.Close()
	for _, hdr := range headers {
		if err := batch.Set(headerKey(hdr.Number), types.MarshalHeader(hdr)); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}

	q.headers += len(headers)
	q.tip = *headers[len(headers)-1]
	q.logger.Debug("added headers", "peer", peerID, "count", len(headers), "tip", q.tip.Number)
	return nil
}

// PollHeaders implements eth.HeaderQueue. The lowest headers are returned
// first.
func (q *SyncQueue) PollHeaders(max int) []*types.Header {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if max <= 0 || q.headers == 0 {
		return nil
	}

	iter, err := q.db.Iterator(headerKey(0), headerKey(1<<64-1))
	if err != nil {
		panic(err)
	}
	var headers []*types.Header
	for ; iter.Valid() && len(headers) < max; iter.Next() {
		hdr, err := types.UnmarshalHeader(iter.Value())
		if err != nil {
			panic(fmt.Errorf("error reading header: %w", err))
		}
		headers = append(headers, hdr)
	}
	if err := iter.Error(); err != nil {
		panic(err)
	}
	iter.Close()

	for _, hdr := range headers {
		if err := q.db.Delete(headerKey(hdr.Number)); err != nil {
			panic(err)
		}
		q.inflight[hdr.Number] = hdr
	}
	q.headers -= len(headers)
	return headers
}

// ReturnHeaders implements eth.HeaderQueue. Headers that are not in flight
// are ignored.
func (q *SyncQueue) ReturnHeaders(headers []*types.Header) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	for _, hdr := range headers {
		if _, ok := q.inflight[hdr.Number]; !ok {
			continue
		}
		delete(q.inflight, hdr.Number)
		if err := q.db.Set(headerKey(hdr.Number), types.MarshalHeader(hdr)); err != nil {
			panic(err)
		}
		q.headers++
	}
}

// AddBlocks implements eth.HeaderQueue. Blocks whose header is not in
// flight are ignored.
func (q *SyncQueue) AddBlocks(peerID types.NodeID, blocks []*types.Block) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	batch := q.db.NewBatch()
	defer batch.Close()

	added := 0
	for _, block := range blocks {
		hdr, ok := q.inflight[block.Number()]
		if !ok || hdr.Hash() != block.Hash() {
			continue
		}
		if err := batch.Set(blockKey(block.Number()), types.MarshalBlock(block)); err != nil {
			return err
		}
		delete(q.inflight, block.Number())
		added++
	}
	if err := batch.Write(); err != nil {
		return err
	}

	q.blocks += added
	if added < len(blocks) {
		q.logger.Debug("ignored blocks", "peer", peerID, "count", len(blocks)-added)
	}
	return nil
}

// PollBlocks returns up to max contiguous blocks following the last block
// polled, removing them from the queue.
func (q *SyncQueue) PollBlocks(max int) []*types.Block {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	var blocks []*types.Block
	for len(blocks) < max {
		key := blockKey(q.nextBlock)
		bz, err := q.db.Get(key)
		if err != nil {
			panic(err)
		}
		if len(bz) == 0 {
			break
		}
		block, err := types.UnmarshalBlock(bz)
		if err != nil {
			panic(fmt.Errorf("error reading block: %w", err))
		}
		if err := q.db.Delete(key); err != nil {
			panic(err)
		}
		blocks = append(blocks, block)
		q.nextBlock++
	}
	q.blocks -= len(blocks)
	return blocks
}

// ReturnBlocks puts back blocks returned by PollBlocks that could not be
// imported. blocks must be the unimported tail of the last poll, in order.
func (q *SyncQueue) ReturnBlocks(blocks []*types.Block) {
	if len(blocks) == 0 {
		return
	}

	q.mtx.Lock()
	defer q.mtx.Unlock()

	batch := q.db.NewBatch()
	defer batch.Close()

	for _, block := range blocks {
		if err := batch.Set(blockKey(block.Number()), types.MarshalBlock(block)); err != nil {
			panic(err)
		}
	}
	if err := batch.Write(); err != nil {
		panic(err)
	}

	q.blocks += len(blocks)
	if first := blocks[0].Number(); first < q.nextBlock {
		q.nextBlock = first
	}
}

//---------------------------------- KEY ENCODING -----------------------------------------

const (
	prefixHeader = int64(0)
	prefixBlock  = int64(1)
)

func headerKey(number uint64) []byte {
	key, err := orderedcode.Append(nil, prefixHeader, number)
	if err != nil {
		panic(err)
	}
	return key
}

func blockKey(number uint64) []byte {
	key, err := orderedcode.Append(nil, prefixBlock, number)
	if err != nil {
		panic(err)
	}
	return key
}
