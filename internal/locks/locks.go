// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package locks provides named mutual exclusion with a bounded acquire
// wait.  The engine serializes per-player and per-phraseset critical
// sections with these locks so concurrent submissions cannot interleave
// balance mutations or double-finalize a phraseset.
package locks

import (
	"context"
	"sync"
	"time"

	"github.com/decred/slog"
)

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the
// caller requests it.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

const (
	// DefaultAcquireTimeout bounds how long Acquire waits for a
	// contended lock before giving up.
	DefaultAcquireTimeout = 10 * time.Second
)

// ErrorKind identifies a kind of error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrAcquireTimeout indicates the lock could not be acquired within
	// the configured wait.
	ErrAcquireTimeout = ErrorKind("ErrAcquireTimeout")

	// ErrContextDone indicates the caller's context was canceled while
	// waiting for the lock.
	ErrContextDone = ErrorKind("ErrContextDone")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a lock acquisition error.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// entry is one named lock plus its waiter refcount.  Entries are removed
// from the table once the last holder or waiter releases, so the table
// only grows with concurrently contended names.
type entry struct {
	sem  chan struct{}
	refs int
}

// Manager hands out named locks.  The zero value is not usable; use
// NewManager.
type Manager struct {
	mtx            sync.Mutex
	locks          map[string]*entry
	acquireTimeout time.Duration
}

// NewManager returns a lock manager with the given acquire timeout.  A
// non-positive timeout selects DefaultAcquireTimeout.
func NewManager(acquireTimeout time.Duration) *Manager {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &Manager{
		locks:          make(map[string]*entry),
		acquireTimeout: acquireTimeout,
	}
}

// Acquire obtains the named lock, waiting up to the manager's acquire
// timeout.  On success it returns a release function that must be called
// exactly once.  The context can cancel the wait early.
func (m *Manager) Acquire(ctx context.Context, name string) (func(), error) {
	m.mtx.Lock()
	e, ok := m.locks[name]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[name] = e
	}
	e.refs++
	m.mtx.Unlock()

	timer := time.NewTimer(m.acquireTimeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			m.unref(name, e)
		}, nil
	case <-timer.C:
		m.unref(name, e)
		log.Warnf("Lock %q not acquired within %v", name, m.acquireTimeout)
		return nil, Error{Err: ErrAcquireTimeout,
			Description: "timed out waiting for lock " + name}
	case <-ctx.Done():
		m.unref(name, e)
		return nil, Error{Err: ErrContextDone,
			Description: "context done waiting for lock " + name}
	}
}

// unref drops one reference to the entry and deletes it from the table
// when no holder or waiter remains.
func (m *Manager) unref(name string, e *entry) {
	m.mtx.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, name)
	}
	m.mtx.Unlock()
}

// WithLock runs fn while holding the named lock.
func (m *Manager) WithLock(ctx context.Context, name string, fn func() error) error {
	release, err := m.Acquire(ctx, name)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
