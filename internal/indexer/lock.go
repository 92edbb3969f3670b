package indexer

import (
	"context"
	"sync"
)

// ProjectLock is a mutex that can be acquired with a context or tried
// without blocking.
type ProjectLock struct {
	ch chan struct{}
}

func newProjectLock() *ProjectLock {
	return &ProjectLock{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is held or ctx is done.
func (l *ProjectLock) Acquire(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *ProjectLock) TryAcquire() bool {
	select {
	case l.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release releases the lock.
// Must only be called by the goroutine that acquired it.
func (l *ProjectLock) Release() {
	<-l.ch
}

// keyedLocks hands out one ProjectLock per project id. Locks are reference
// counted and dropped once nobody holds or waits on them.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	lock *ProjectLock
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*keyedEntry)}
}

// acquire locks key and returns the matching release func.
func (k *keyedLocks) acquire(ctx context.Context, key string) (func(), error) {
	e := k.ref(key)
	if err := e.lock.Acquire(ctx); err != nil {
		k.unref(key)
		return nil, err
	}
	return func() {
		e.lock.Release()
		k.unref(key)
	}, nil
}

// busy reports whether key is currently locked.
func (k *keyedLocks) busy(key string) bool {
	k.mu.Lock()
	e, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		return false
	}
	if e.lock.TryAcquire() {
		e.lock.Release()
		return false
	}
	return true
}

func (k *keyedLocks) ref(key string) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{lock: newProjectLock()}
		k.locks[key] = e
	}
	e.refs++
	return e
}

func (k *keyedLocks) unref(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}
