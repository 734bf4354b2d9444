package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// DefaultPoolMaxConcurrent is the cap on simultaneously running requests.
	DefaultPoolMaxConcurrent = 10

	// DefaultPoolCallTimeout bounds a single pooled request.
	DefaultPoolCallTimeout = 30 * time.Second

	// latencyWindow is the number of recent calls kept for the rolling average.
	latencyWindow = 100
)

var (
	// ErrPoolTimeout is returned when a pooled request exceeds the call timeout.
	ErrPoolTimeout = errors.New("request pool: call timed out")

	// ErrPoolClosed is returned for requests submitted after Close.
	ErrPoolClosed = errors.New("request pool: closed")
)

// RequestFunc is a unit of work executed through the pool. It must honor
// ctx cancellation; the pool derives a per-call deadline from it.
type RequestFunc func(ctx context.Context) (interface{}, error)

// PooledResult carries the outcome of a pooled request.
type PooledResult struct {
	Value interface{}
	Err   error
}

// PoolStats is a point-in-time snapshot of pool counters.
type PoolStats struct {
	MaxConcurrent  int     `json:"max_concurrent"`
	Active         int     `json:"active"`
	Queued         int     `json:"queued"`
	TotalIssued    int64   `json:"total_issued"`
	TotalCompleted int64   `json:"total_completed"`
	TotalFailed    int64   `json:"total_failed"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
}

type poolTask struct {
	ctx    context.Context
	fn     RequestFunc
	result chan PooledResult
}

// RequestPool runs at most maxConcurrent requests at once and queues the
// rest in FIFO order. Each call gets its own deadline; latency of the last
// latencyWindow calls feeds the rolling average in Stats.
type RequestPool struct {
	maxConcurrent int
	callTimeout   time.Duration

	mu     sync.Mutex
	active int
	queue  []*poolTask
	closed bool

	totalIssued    int64
	totalCompleted int64
	totalFailed    int64

	latencies  [latencyWindow]float64
	latencyIdx int64
}

// NewRequestPool creates a pool with the given concurrency cap and per-call
// timeout. Non-positive values fall back to the defaults.
func NewRequestPool(maxConcurrent int, callTimeout time.Duration) *RequestPool {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultPoolMaxConcurrent
	}
	if callTimeout <= 0 {
		callTimeout = DefaultPoolCallTimeout
	}
	return &RequestPool{
		maxConcurrent: maxConcurrent,
		callTimeout:   callTimeout,
	}
}

// Submit enqueues fn and returns a channel that receives exactly one result.
// The request starts immediately when a slot is free, otherwise it waits its
// turn behind earlier submissions.
func (p *RequestPool) Submit(ctx context.Context, fn RequestFunc) <-chan PooledResult {
	task := &poolTask{
		ctx:    ctx,
		fn:     fn,
		result: make(chan PooledResult, 1),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		task.result <- PooledResult{Err: ErrPoolClosed}
		return task.result
	}
	p.totalIssued++
	if p.active < p.maxConcurrent {
		p.active++
		p.mu.Unlock()
		go p.execute(task)
		return task.result
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()
	return task.result
}

// Do submits fn and waits for its result or for ctx cancellation.
func (p *RequestPool) Do(ctx context.Context, fn RequestFunc) (interface{}, error) {
	select {
	case res := <-p.Submit(ctx, fn):
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execute runs a task in the current slot, then hands the slot to the next
// queued task if there is one.
func (p *RequestPool) execute(task *poolTask) {
	callCtx, cancel := context.WithTimeout(task.ctx, p.callTimeout)
	start := time.Now()
	value, err := runRequest(callCtx, task.fn)
	cancel()
	elapsed := time.Since(start)

	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", ErrPoolTimeout, p.callTimeout)
		log.Printf("⏱️ [POOL] request timed out after %s", p.callTimeout)
	}

	p.mu.Lock()
	p.latencies[p.latencyIdx%latencyWindow] = float64(elapsed.Microseconds()) / 1000.0
	p.latencyIdx++
	if err != nil {
		p.totalFailed++
	} else {
		p.totalCompleted++
	}
	var next *poolTask
	if len(p.queue) > 0 {
		// hand the slot straight to the next queued task
		next = p.queue[0]
		p.queue = p.queue[1:]
	} else {
		p.active--
	}
	p.mu.Unlock()

	task.result <- PooledResult{Value: value, Err: err}
	if next != nil {
		go p.execute(next)
	}
}

func runRequest(ctx context.Context, fn RequestFunc) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Stats returns the current pool counters.
func (p *RequestPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := p.latencyIdx
	if count > latencyWindow {
		count = latencyWindow
	}
	var sum float64
	for i := int64(0); i < count; i++ {
		sum += p.latencies[i]
	}
	avg := 0.0
	if count > 0 {
		avg = sum / float64(count)
	}

	return PoolStats{
		MaxConcurrent:  p.maxConcurrent,
		Active:         p.active,
		Queued:         len(p.queue),
		TotalIssued:    p.totalIssued,
		TotalCompleted: p.totalCompleted,
		TotalFailed:    p.totalFailed,
		AvgLatencyMS:   avg,
	}
}

// Close rejects queued requests and stops accepting new ones. Requests
// already running finish normally.
func (p *RequestPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pending := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, task := range pending {
		task.result <- PooledResult{Err: ErrPoolClosed}
	}
	if len(pending) > 0 {
		log.Printf("🛑 [POOL] closed - rejected %d queued requests", len(pending))
	}
}
