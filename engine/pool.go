package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const DefaultPoolSize = 4

// SessionPool hands out pre-built sessions, one request at a time each. An
// AdvancedSession is bound to a single pair of input/output buffers, so it
// cannot serve two runs at once.
type SessionPool struct {
	sessions chan *ModelSession
	size     int
	mu       sync.Mutex
	closed   bool
	metrics  *poolMetrics
}

type poolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

// PoolMetrics is a point-in-time copy of a pool's counters.
type PoolMetrics struct {
	PoolSize        int   `json:"pool_size"`
	SessionsInUse   int   `json:"sessions_in_use"`
	TotalAcquired   int64 `json:"total_acquired"`
	TotalReleased   int64 `json:"total_released"`
	AcquireFailures int64 `json:"acquire_failures"`
	WaitTimeMs      int64 `json:"wait_time_ms"`
}

func NewSessionPool(size int, newSession func() (*ModelSession, error)) (*SessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	pool := &SessionPool{
		sessions: make(chan *ModelSession, size),
		size:     size,
		metrics:  &poolMetrics{},
	}

	// Initialize sessions
	for i := 0; i < size; i++ {
		session, err := newSession()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

// Acquire waits for a free session or for ctx to end.
func (p *SessionPool) Acquire(ctx context.Context) (*ModelSession, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("pool is closed")
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			p.recordFailure()
			return nil, fmt.Errorf("pool is closed")
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return session, nil
	case <-ctx.Done():
		p.recordFailure()
		return nil, ctx.Err()
	}
}

func (p *SessionPool) Release(session *ModelSession) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	if p.closed {
		session.Destroy()
		return
	}
	p.sessions <- session
}

func (p *SessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.sessions)

	// Destroy all idle sessions; busy ones are destroyed on Release.
	for session := range p.sessions {
		session.Destroy()
	}
}

func (p *SessionPool) Size() int {
	return p.size
}

func (p *SessionPool) Metrics() PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolMetrics{
		PoolSize:        p.size,
		SessionsInUse:   p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		WaitTimeMs:      p.metrics.waitTime.Milliseconds(),
	}
}

func (p *SessionPool) recordFailure() {
	p.metrics.mu.Lock()
	p.metrics.acquireFailures++
	p.metrics.mu.Unlock()
}
