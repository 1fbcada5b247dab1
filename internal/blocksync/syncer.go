package blocksync

import (
	"context"
	"sync"
	"time"

	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/libs/service"
)

// Syncer runs the control loop ticking the active strategy. Ticks run on a
// single goroutine and never overlap.
type Syncer struct {
	service.BaseService
	logger  log.Logger
	metrics *Metrics

	pool     *Pool
	queue    *SyncQueue
	interval time.Duration

	mtx      sync.RWMutex
	strategy Strategy
}

// NewSyncer returns a Syncer ticking strategy every interval.
func NewSyncer(
	logger log.Logger,
	strategy Strategy,
	pool *Pool,
	queue *SyncQueue,
	interval time.Duration,
	metrics *Metrics,
) *Syncer {
	if metrics == nil {
		metrics = NopMetrics()
	}
	s := &Syncer{
		logger:   logger,
		metrics:  metrics,
		pool:     pool,
		queue:    queue,
		interval: interval,
		strategy: strategy,
	}
	s.BaseService = *service.NewBaseService(logger, "Syncer", s)
	return s
}

// OnStart implements service.Service.
func (s *Syncer) OnStart(ctx context.Context) error {
	s.pool.NotifySyncDone(!isLongSync(s.Strategy()))
	go s.syncRoutine(ctx)
	return nil
}

// OnStop implements service.Service.
func (s *Syncer) OnStop() {
	s.pool.LogSyncStats()
}

// Strategy returns the active strategy.
func (s *Syncer) Strategy() Strategy {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.strategy
}

// Handover makes next the active strategy, sharing the pool and the queue.
// Peers are told when the long sync ends or resumes.
func (s *Syncer) Handover(next Strategy) {
	s.mtx.Lock()
	prev := s.strategy
	s.strategy = next
	s.mtx.Unlock()

	s.logger.Info("strategy handover", "from", prev, "to", next)

	wasLong, isLong := isLongSync(prev), isLongSync(next)
	switch {
	case wasLong && !isLong:
		s.pool.NotifySyncDone(true)
	case !wasLong && isLong:
		s.pool.NotifySyncDone(false)
	}
}

func (s *Syncer) syncRoutine(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Quit():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Syncer) tick() {
	s.Strategy().Tick()

	headers, inflight, blocks := s.queue.Size()
	s.metrics.Peers.Set(float64(s.pool.Size()))
	s.metrics.QueuedHeaders.Set(float64(headers))
	s.metrics.InflightHeaders.Set(float64(inflight))
	s.metrics.QueuedBlocks.Set(float64(blocks))
}

func isLongSync(strategy Strategy) bool {
	_, ok := strategy.(*LongSync)
	return ok
}
