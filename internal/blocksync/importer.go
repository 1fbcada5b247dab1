package blocksync

import (
	"context"
	"time"

	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/libs/service"
	"github.com/tendermint/chainsync/types"
)

// BlockSaver persists imported blocks.
type BlockSaver interface {
	SaveBlock(block *types.Block) error
	Height() uint64
}

// Importer moves contiguous blocks from the queue to the block store.
// Blocks are not executed.
type Importer struct {
	service.BaseService
	logger  log.Logger
	metrics *Metrics

	queue     *SyncQueue
	store     BlockSaver
	interval  time.Duration
	batchSize int
}

// NewImporter returns an importer polling queue every interval.
func NewImporter(
	logger log.Logger,
	queue *SyncQueue,
	store BlockSaver,
	interval time.Duration,
	batchSize int,
	metrics *Metrics,
) *Importer {
	if metrics == nil {
		metrics = NopMetrics()
	}
	imp := &Importer{
		logger:    logger,
		metrics:   metrics,
		queue:     queue,
		store:     store,
		interval:  interval,
		batchSize: batchSize,
	}
	imp.BaseService = *service.NewBaseService(logger, "Importer", imp)
	return imp
}

// OnStart implements service.Service.
func (imp *Importer) OnStart(ctx context.Context) error {
	go imp.importRoutine(ctx)
	return nil
}

// OnStop implements service.Service.
func (imp *Importer) OnStop() {}

func (imp *Importer) importRoutine(ctx context.Context) {
	ticker := time.NewTicker(imp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-imp.Quit():
			return
		case <-ticker.C:
			// drain everything available before sleeping again
			for {
				if n := imp.importBatch(); n < imp.batchSize {
					break
				}
			}
		}
	}
}

// importBatch imports up to batchSize blocks and returns how many were
// imported. Blocks left over after a failed save go back to the queue.
func (imp *Importer) importBatch() int {
	blocks := imp.queue.PollBlocks(imp.batchSize)
	imported := len(blocks)
	for i, block := range blocks {
		if err := imp.store.SaveBlock(block); err != nil {
			imp.logger.Error("failed to import block", "number", block.Number(), "err", err)
			imp.queue.ReturnBlocks(blocks[i:])
			imported = i
			break
		}
	}
	if imported > 0 {
		imp.metrics.ImportedBlocks.Add(float64(imported))
		imp.metrics.Height.Set(float64(imp.store.Height()))
		imp.logger.Debug("imported blocks", "count", imported, "height", imp.store.Height())
	}
	return imported
}
