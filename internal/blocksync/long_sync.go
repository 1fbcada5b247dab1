package blocksync

import (
	"fmt"
	"sync/atomic"

	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/libs/log"
)

var _ Strategy = (*LongSync)(nil)

// LongSync retrieves headers from a single master peer, then bodies from
// all peers, until the node caught up with the network.
//
// Each LongSync owns its phase; instances sharing a pool and a queue are
// independent otherwise.
type LongSync struct {
	logger  log.Logger
	metrics *Metrics

	pool          PeerPool
	queue         Queue
	rotationLimit int

	phase   uint32 // atomic, Phase
	ticking uint32 // atomic
}

// NewLongSync returns a LongSync in PhaseHashRetrieving. A master is
// abandoned once it retrieved more than rotationLimit header bunches.
func NewLongSync(logger log.Logger, pool PeerPool, queue Queue, rotationLimit int, metrics *Metrics) *LongSync {
	if metrics == nil {
		metrics = NopMetrics()
	}
	s := &LongSync{
		logger:        logger.With("strategy", "long"),
		metrics:       metrics,
		pool:          pool,
		queue:         queue,
		rotationLimit: rotationLimit,
		phase:         uint32(PhaseHashRetrieving),
	}
	metrics.Phase.Set(float64(PhaseHashRetrieving))
	return s
}

// Phase returns the current phase.
func (s *LongSync) Phase() Phase {
	return Phase(atomic.LoadUint32(&s.phase))
}

// Tick evaluates the transition table once. A tick started while another
// one is in progress returns immediately.
func (s *LongSync) Tick() {
	if !atomic.CompareAndSwapUint32(&s.ticking, 0, 1) {
		return
	}
	defer atomic.StoreUint32(&s.ticking, 0)

	phase := s.Phase()
	s.logger.Debug("maintain state", "phase", phase)

	switch phase {
	case PhaseHashRetrieving:
		s.doHeaders()
	case PhaseBlockRetrieving:
		s.doBodies()
	case PhaseIdle:
		s.doIdle()
	}
}

func (s *LongSync) doHeaders() {
	if s.queue.IsLimitExceeded() {
		s.logger.Info("queue limit exceeded")
		s.changeState(PhaseBlockRetrieving)
		return
	}

	var master eth.Eth
	for _, peer := range s.pool.Peers() {
		if peer.IsHashRetrievingDone() {
			s.changeState(PhaseBlockRetrieving)
			return
		}
		if master == nil && peer.IsHashRetrieving() {
			master = peer
		}
	}

	if master != nil {
		if bunches := master.Stats().HeaderBunchesCount(); bunches > s.rotationLimit {
			s.logger.Debug("rotating master", "peer", master.ID(), "bunches", bunches)
			s.metrics.Rotations.Add(1)
			s.changeState(PhaseBlockRetrieving)
		}
		return
	}

	if master = s.pool.Master(); master != nil {
		s.logger.Info("master elected", "peer", master.ID())
		s.metrics.Elections.Add(1)
		master.ChangeState(eth.SyncStateHashRetrieving)
	}
}

func (s *LongSync) doBodies() {
	if s.queue.IsHeadersEmpty() {
		s.changeState(PhaseIdle)
	}
}

func (s *LongSync) doIdle() {
	if s.queue.IsMoreBlocksNeeded() {
		s.changeState(PhaseHashRetrieving)
	}
}

// changeState moves to next. Only entering PhaseBlockRetrieving is
// broadcast to the pool.
func (s *LongSync) changeState(next Phase) {
	prev := s.Phase()
	if prev == next {
		return
	}

	atomic.StoreUint32(&s.phase, uint32(next))
	s.logger.Info("change state", "from", prev, "to", next)
	s.metrics.Phase.Set(float64(next))
	s.metrics.Transitions.With("phase", next.String()).Add(1)

	if next == PhaseBlockRetrieving {
		s.pool.ChangeState(next.SyncState())
	}
}

func (s *LongSync) String() string {
	return fmt.Sprintf("LongSync{%v}", s.Phase())
}
