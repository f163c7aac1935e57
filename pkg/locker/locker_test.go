package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSameDomainNeverOverlaps(t *testing.T) {
	dl := NewDomainLocker()
	ctx := context.Background()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dl.WithLock(ctx, DomainStorage, func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					prev := atomic.LoadInt32(&maxInFlight)
					if n <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			if err != nil {
				t.Errorf("WithLock failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if max := atomic.LoadInt32(&maxInFlight); max != 1 {
		t.Errorf("expected at most 1 in-flight call for one domain, observed %d", max)
	}
}

func TestDifferentDomainsOverlap(t *testing.T) {
	dl := NewDomainLocker()
	ctx := context.Background()

	storageEntered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = dl.WithLock(ctx, DomainStorage, func() error {
			close(storageEntered)
			<-release
			return nil
		})
	}()

	<-storageEntered

	// A compute call must proceed while storage is still held.
	done := make(chan struct{})
	go func() {
		_ = dl.WithLock(ctx, DomainCompute, func() error {
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("compute call blocked behind storage lock")
	}
	close(release)
}

func TestAcquisitionOrderIsFIFO(t *testing.T) {
	dl := NewDomainLocker()
	ctx := context.Background()

	var order []int
	var mu sync.Mutex

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = dl.WithLock(ctx, DomainFunctions, func() error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	// Queue waiters one at a time so arrival order is deterministic.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		entered := make(chan struct{})
		go func() {
			defer wg.Done()
			_ = dl.WithLock(ctx, DomainFunctions, func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// Give the goroutine time to join the wait queue before the next arrives.
		go func() { close(entered) }()
		<-entered
		time.Sleep(10 * time.Millisecond)
	}

	close(hold)
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("expected FIFO order [0 1 2 3 4], got %v", order)
		}
	}
}

func TestWithLockCancelledWhileWaiting(t *testing.T) {
	dl := NewDomainLocker()

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = dl.WithLock(context.Background(), DomainStorage, func() error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := dl.WithLock(ctx, DomainStorage, func() error {
		t.Error("fn must not run after cancelled acquisition")
		return nil
	})
	if err == nil {
		t.Error("expected context error from cancelled wait")
	}
	close(hold)
}
