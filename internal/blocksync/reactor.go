package blocksync

import (
	"context"
	"fmt"

	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/libs/service"
	"github.com/tendermint/chainsync/types"
)

// Chain is the local chain the reactor syncs into.
type Chain interface {
	eth.ChainReader
	BlockSaver
}

// Reactor ties the long sync together: it owns the peer pool, the queue,
// the control loop and the importer, and creates an eth handler for every
// connected peer.
type Reactor struct {
	service.BaseService
	logger  log.Logger
	cfg     *config.SyncConfig
	metrics *Metrics

	chain    Chain
	pool     *Pool
	queue    *SyncQueue
	strategy *LongSync
	syncer   *Syncer
	importer *Importer
	services *service.Group
}

// NewReactor returns a reactor syncing into chain. db holds the queue.
func NewReactor(
	logger log.Logger,
	cfg *config.SyncConfig,
	chain Chain,
	db dbm.DB,
	metrics *Metrics,
) *Reactor {
	if metrics == nil {
		metrics = NopMetrics()
	}

	pool := NewPool(logger, cfg.MasterElection)
	queue := NewSyncQueue(logger, db, chain, cfg)
	strategy := NewLongSync(logger.With("module", "longsync"), pool, queue, cfg.RotationLimit, metrics)

	r := &Reactor{
		logger:   logger,
		cfg:      cfg,
		metrics:  metrics,
		chain:    chain,
		pool:     pool,
		queue:    queue,
		strategy: strategy,
		syncer:   NewSyncer(logger.With("module", "syncer"), strategy, pool, queue, cfg.TickInterval, metrics),
		importer: NewImporter(logger.With("module", "importer"), queue, chain, cfg.TickInterval, cfg.ImportBatchSize, metrics),
	}
	r.services = service.NewGroup(logger, "BlockSyncServices", r.importer, r.syncer)
	r.BaseService = *service.NewBaseService(logger, "BlockSync", r)
	return r
}

// OnStart starts the importer and the control loop.
func (r *Reactor) OnStart(ctx context.Context) error {
	r.metrics.Height.Set(float64(r.chain.Height()))
	return r.services.Start(ctx)
}

// OnStop stops the services and removes every peer.
func (r *Reactor) OnStop() {
	if err := r.services.Stop(); err != nil {
		r.logger.Debug("stopping services", "err", err)
	}
	for _, peer := range r.pool.Peers() {
		r.pool.RemovePeer(peer.ID())
	}
}

// AddPeer creates and starts the handler of a newly connected peer.
// Messages from the peer must be passed to the handler's Receive method.
func (r *Reactor) AddPeer(
	ctx context.Context,
	peerID types.NodeID,
	version eth.Version,
	sender eth.Sender,
) (*eth.Handler, error) {
	if err := peerID.Validate(); err != nil {
		return nil, err
	}
	if !version.IsSupported() {
		return nil, fmt.Errorf("%w: unsupported version %v", eth.ErrIncompatiblePeer, version)
	}

	h, err := eth.NewHandler(
		r.logger.With("module", "eth"),
		r.cfg,
		peerID,
		version,
		sender,
		r.queue,
		eth.WithChainReader(r.chain),
		eth.WithBlockSink(r.onNewBlock),
		eth.WithTxSink(r.relayTransactions),
	)
	if err != nil {
		return nil, err
	}
	if err := r.pool.AddPeer(h); err != nil {
		return nil, err
	}
	if err := h.Start(ctx); err != nil {
		r.pool.RemovePeer(peerID)
		return nil, err
	}
	return h, nil
}

// RemovePeer shuts down the handler of a disconnected peer.
func (r *Reactor) RemovePeer(peerID types.NodeID) {
	r.pool.RemovePeer(peerID)
}

// onNewBlock asks the announcing peer for the headers missing below a block
// announced ahead of the queued headers.
func (r *Reactor) onNewBlock(block *types.BlockWrapper) {
	if block.Number() <= r.queue.NextHeaderNumber() {
		return
	}
	if peer := r.pool.Get(block.NodeID); peer != nil {
		peer.RecoverGap(block)
	}
}

// relayTransactions forwards transactions received from one peer to the
// others.
func (r *Reactor) relayTransactions(from types.NodeID, txs types.Transactions) {
	for _, peer := range r.pool.Peers() {
		if peer.ID() != from {
			peer.SendTransactions(txs)
		}
	}
}

// Height returns the number of the local head.
func (r *Reactor) Height() uint64 { return r.chain.Height() }

// Phase returns the long sync phase.
func (r *Reactor) Phase() Phase { return r.strategy.Phase() }

// Pool returns the peer pool.
func (r *Reactor) Pool() *Pool { return r.pool }

// Syncer returns the control loop, to hand over to another strategy.
func (r *Reactor) Syncer() *Syncer { return r.syncer }

// Strategy returns the long sync strategy.
func (r *Reactor) Strategy() *LongSync { return r.strategy }
