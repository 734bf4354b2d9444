package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRequestPoolConcurrencyCeiling(t *testing.T) {
	pool := NewRequestPool(3, time.Minute)
	defer pool.Close()

	var active, peak int32
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		ch := pool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
			cur := atomic.AddInt32(&active, 1)
			for {
				prev := atomic.LoadInt32(&peak)
				if cur <= prev || atomic.CompareAndSwapInt32(&peak, prev, cur) {
					break
				}
			}
			<-release
			atomic.AddInt32(&active, -1)
			return nil, nil
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ch
		}()
	}

	time.Sleep(50 * time.Millisecond)
	stats := pool.Stats()
	if stats.Active != 3 {
		t.Errorf("expected 3 active while gated, got %d", stats.Active)
	}
	if stats.Queued != 7 {
		t.Errorf("expected 7 queued while gated, got %d", stats.Queued)
	}

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > 3 {
		t.Errorf("concurrency ceiling breached: peak %d", got)
	}
	stats = pool.Stats()
	if stats.TotalCompleted != 10 {
		t.Errorf("expected 10 completed, got %d", stats.TotalCompleted)
	}
}

func TestRequestPoolFIFOOrder(t *testing.T) {
	pool := NewRequestPool(1, time.Minute)
	defer pool.Close()

	gate := make(chan struct{})
	blocker := pool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		<-gate
		return nil, nil
	})

	var mu sync.Mutex
	var order []int
	var results []<-chan PooledResult
	for i := 0; i < 5; i++ {
		i := i
		results = append(results, pool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}))
	}

	close(gate)
	<-blocker
	for _, ch := range results {
		<-ch
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("expected FIFO start order, got %v", order)
		}
	}
}

func TestRequestPoolCallTimeout(t *testing.T) {
	pool := NewRequestPool(2, 30*time.Millisecond)
	defer pool.Close()

	_, err := pool.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	})
	if !errors.Is(err, ErrPoolTimeout) {
		t.Fatalf("expected ErrPoolTimeout, got %v", err)
	}

	stats := pool.Stats()
	if stats.TotalFailed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.TotalFailed)
	}
}

func TestRequestPoolFailureIsolation(t *testing.T) {
	pool := NewRequestPool(2, time.Minute)
	defer pool.Close()

	boom := errors.New("boom")
	_, err := pool.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	value, err := pool.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "fine", nil
	})
	if err != nil {
		t.Fatalf("expected later request to succeed, got %v", err)
	}
	if value.(string) != "fine" {
		t.Errorf("expected 'fine', got %v", value)
	}

	stats := pool.Stats()
	if stats.TotalFailed != 1 || stats.TotalCompleted != 1 {
		t.Errorf("expected 1 failed and 1 completed, got failed=%d completed=%d",
			stats.TotalFailed, stats.TotalCompleted)
	}
}

func TestRequestPoolRecoversPanic(t *testing.T) {
	pool := NewRequestPool(2, time.Minute)
	defer pool.Close()

	_, err := pool.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		panic("bad request")
	})
	if err == nil {
		t.Fatal("expected error from panicking request")
	}

	if _, err := pool.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		return 1, nil
	}); err != nil {
		t.Fatalf("expected pool to survive panic, got %v", err)
	}
}

func TestRequestPoolLatencyTracking(t *testing.T) {
	pool := NewRequestPool(2, time.Minute)
	defer pool.Close()

	for i := 0; i < 5; i++ {
		if _, err := pool.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
			time.Sleep(5 * time.Millisecond)
			return nil, nil
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stats := pool.Stats()
	if stats.TotalIssued != 5 {
		t.Errorf("expected 5 issued, got %d", stats.TotalIssued)
	}
	if stats.AvgLatencyMS < 4.0 {
		t.Errorf("expected avg latency >= 4ms, got %.3f", stats.AvgLatencyMS)
	}
}

func TestRequestPoolClose(t *testing.T) {
	pool := NewRequestPool(1, time.Minute)

	gate := make(chan struct{})
	blocker := pool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		<-gate
		return nil, nil
	})
	queued := pool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})

	pool.Close()

	res := <-queued
	if !errors.Is(res.Err, ErrPoolClosed) {
		t.Errorf("expected queued request rejected with ErrPoolClosed, got %v", res.Err)
	}

	late := <-pool.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	if !errors.Is(late.Err, ErrPoolClosed) {
		t.Errorf("expected post-close submit rejected, got %v", late.Err)
	}

	close(gate)
	if res := <-blocker; res.Err != nil {
		t.Errorf("expected running request to finish after close, got %v", res.Err)
	}
}
