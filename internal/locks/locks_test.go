// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	m := NewManager(time.Second)
	release, err := m.Acquire(context.Background(), "player:abc")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()

	// Reacquire after release must succeed immediately.
	release, err = m.Acquire(context.Background(), "player:abc")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	release()
}

func TestAcquireTimeout(t *testing.T) {
	m := NewManager(50 * time.Millisecond)
	release, err := m.Acquire(context.Background(), "phraseset:xyz")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	_, err = m.Acquire(context.Background(), "phraseset:xyz")
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("contended acquire: got %v, want ErrAcquireTimeout", err)
	}
}

func TestAcquireContextCancel(t *testing.T) {
	m := NewManager(time.Minute)
	release, err := m.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = m.Acquire(ctx, "k")
	if !errors.Is(err, ErrContextDone) {
		t.Fatalf("canceled acquire: got %v, want ErrContextDone", err)
	}
}

func TestIndependentNames(t *testing.T) {
	m := NewManager(50 * time.Millisecond)
	releaseA, err := m.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	// A held lock on one name must not block another name.
	releaseB, err := m.Acquire(context.Background(), "b")
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	releaseB()
}

func TestWithLockSerializes(t *testing.T) {
	m := NewManager(time.Second)
	const workers = 8
	const iters = 50

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				err := m.WithLock(context.Background(), "counter", func() error {
					counter++
					return nil
				})
				if err != nil {
					t.Errorf("with lock: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if counter != workers*iters {
		t.Fatalf("counter: got %d, want %d", counter, workers*iters)
	}
}

func TestEntryCleanup(t *testing.T) {
	m := NewManager(time.Second)
	release, err := m.Acquire(context.Background(), "ephemeral")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()

	m.mtx.Lock()
	n := len(m.locks)
	m.mtx.Unlock()
	if n != 0 {
		t.Fatalf("lock table retains %d entries after release", n)
	}
}
