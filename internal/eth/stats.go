package eth

import (
	"fmt"
	"sync/atomic"
	"time"
)

// SyncStatistics counts retrieval activity of a single peer. All methods are
// safe for concurrent use; values returned are live, not snapshots.
type SyncStatistics struct {
	headerBunches  uint64 // atomic
	headers        uint64 // atomic
	blocks         uint64 // atomic
	emptyResponses uint64 // atomic
	timeouts       uint64 // atomic
	updatedAt      int64  // atomic, unix nanos
}

// NewSyncStatistics returns zeroed statistics.
func NewSyncStatistics() *SyncStatistics {
	s := &SyncStatistics{}
	s.touch()
	return s
}

// AddHeaders records one completed header round-trip carrying n headers.
func (s *SyncStatistics) AddHeaders(n int) {
	atomic.AddUint64(&s.headerBunches, 1)
	atomic.AddUint64(&s.headers, uint64(n))
	s.touch()
}

// AddBlocks records n retrieved block bodies.
func (s *SyncStatistics) AddBlocks(n int) {
	atomic.AddUint64(&s.blocks, uint64(n))
	s.touch()
}

func (s *SyncStatistics) AddEmptyResponse() { atomic.AddUint64(&s.emptyResponses, 1) }

func (s *SyncStatistics) AddTimeout() { atomic.AddUint64(&s.timeouts, 1) }

// HeaderBunchesCount is the rotation counter read by the sync strategy.
func (s *SyncStatistics) HeaderBunchesCount() int {
	return int(atomic.LoadUint64(&s.headerBunches))
}

func (s *SyncStatistics) HeadersCount() uint64 { return atomic.LoadUint64(&s.headers) }

func (s *SyncStatistics) BlocksCount() uint64 { return atomic.LoadUint64(&s.blocks) }

func (s *SyncStatistics) EmptyResponsesCount() uint64 { return atomic.LoadUint64(&s.emptyResponses) }

func (s *SyncStatistics) TimeoutsCount() uint64 { return atomic.LoadUint64(&s.timeouts) }

// UpdatedAt is the time of the last retrieval recorded.
func (s *SyncStatistics) UpdatedAt() time.Time {
	return time.Unix(0, atomic.LoadInt64(&s.updatedAt))
}

// Reset zeroes all counters.
func (s *SyncStatistics) Reset() {
	atomic.StoreUint64(&s.headerBunches, 0)
	atomic.StoreUint64(&s.headers, 0)
	atomic.StoreUint64(&s.blocks, 0)
	atomic.StoreUint64(&s.emptyResponses, 0)
	atomic.StoreUint64(&s.timeouts, 0)
	s.touch()
}

func (s *SyncStatistics) touch() { atomic.StoreInt64(&s.updatedAt, time.Now().UnixNano()) }

func (s *SyncStatistics) String() string {
	return fmt.Sprintf("SyncStatistics{bunches:%d headers:%d blocks:%d empty:%d timeouts:%d}",
		s.HeaderBunchesCount(), s.HeadersCount(), s.BlocksCount(), s.EmptyResponsesCount(), s.TimeoutsCount())
}
