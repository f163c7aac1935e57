// Package locker serializes infrastructure-engine calls per resource domain
// and wraps them with bounded exponential-backoff retry.
//
// The Terraform engine keeps one mutable state file per resource domain;
// concurrent writers would corrupt it. Calls sharing a domain therefore run
// strictly one at a time in arrival order, while different domains proceed
// concurrently.
package locker

import (
	"context"
	"sync"
)

// Domain is a coarse resource category used as the unit of mutual exclusion.
type Domain string

const (
	DomainStorage   Domain = "storage"
	DomainCompute   Domain = "compute"
	DomainFunctions Domain = "functions"
	DomainOther     Domain = "other"
)

// DomainLocker provides per-domain FIFO mutual exclusion.
// The zero value is not usable; construct with NewDomainLocker.
type DomainLocker struct {
	mu    sync.Mutex
	locks map[Domain]*fifoMutex
}

// fifoMutex grants acquisition in strict arrival order. A plain sync.Mutex
// does not guarantee FIFO handoff under contention, so waiters queue their
// own channel and the releaser wakes exactly the head of the queue.
type fifoMutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []chan struct{}
}

// NewDomainLocker creates an empty locker; domain queues are created lazily
// on first use and live for the process lifetime.
func NewDomainLocker() *DomainLocker {
	return &DomainLocker{locks: make(map[Domain]*fifoMutex)}
}

func (d *DomainLocker) lockFor(domain Domain) *fifoMutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	fm, ok := d.locks[domain]
	if !ok {
		fm = &fifoMutex{}
		d.locks[domain] = fm
	}
	return fm
}

// acquire blocks until the mutex is granted or ctx is done.
func (f *fifoMutex) acquire(ctx context.Context) error {
	f.mu.Lock()
	if !f.locked && len(f.waiters) == 0 {
		f.locked = true
		f.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	f.waiters = append(f.waiters, ready)
	f.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		// Remove ourselves from the queue; if the grant raced with
		// cancellation, pass it along to the next waiter.
		f.mu.Lock()
		for i, w := range f.waiters {
			if w == ready {
				f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
				f.mu.Unlock()
				return ctx.Err()
			}
		}
		// Not in the queue: the grant already happened.
		f.mu.Unlock()
		f.release()
		return ctx.Err()
	}
}

func (f *fifoMutex) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.waiters) > 0 {
		head := f.waiters[0]
		f.waiters = f.waiters[1:]
		close(head) // hand ownership directly to the head waiter
		return
	}
	f.locked = false
}

// WithLock runs fn while holding the lock for domain. Acquisition order
// equals arrival order. The context only bounds the wait for the lock;
// cancellation does not abort fn once it has started.
func (d *DomainLocker) WithLock(ctx context.Context, domain Domain, fn func() error) error {
	fm := d.lockFor(domain)
	if err := fm.acquire(ctx); err != nil {
		return err
	}
	defer fm.release()
	return fn()
}
