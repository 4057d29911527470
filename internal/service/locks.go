package service

import (
	"context"
	"sync"
)

// ownerLocks serializes mutations per owner. Entries are dropped once no
// caller holds or waits on them.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[int64]*ownerLock
}

type ownerLock struct {
	ch   chan struct{}
	refs int
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[int64]*ownerLock)}
}

// Lock blocks until the owner's critical section is free or ctx is done.
// The returned func must be called exactly once.
func (o *ownerLocks) Lock(ctx context.Context, ownerID int64) (func(), error) {
	o.mu.Lock()
	l, ok := o.locks[ownerID]
	if !ok {
		l = &ownerLock{ch: make(chan struct{}, 1)}
		o.locks[ownerID] = l
	}
	l.refs++
	o.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			o.done(ownerID, l)
		}, nil
	case <-ctx.Done():
		o.done(ownerID, l)
		return nil, ctx.Err()
	}
}

func (o *ownerLocks) done(ownerID int64, l *ownerLock) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(o.locks, ownerID)
	}
}

func (o *ownerLocks) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.locks)
}
