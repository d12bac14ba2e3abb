// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package queue

import (
	"testing"

	"github.com/sheegaon/wordpool/internal/wpid"
)

func TestBrokerFIFO(t *testing.T) {
	b := NewMemoryBroker()
	ids := []wpid.ID{wpid.New(), wpid.New(), wpid.New()}
	for _, id := range ids {
		if err := b.Push(id); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	for i, want := range ids {
		got, ok, err := b.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if got != want {
			t.Errorf("pop %d: got %s, want %s", i, got, want)
		}
	}

	if _, ok, _ := b.Pop(); ok {
		t.Fatal("pop on empty queue reported ok")
	}
}

func TestBrokerPushFront(t *testing.T) {
	b := NewMemoryBroker()
	first, returned := wpid.New(), wpid.New()
	if err := b.Push(first); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := b.PushFront(returned); err != nil {
		t.Fatalf("push front: %v", err)
	}

	got, ok, err := b.Pop()
	if err != nil || !ok {
		t.Fatalf("pop: ok=%v err=%v", ok, err)
	}
	if got != returned {
		t.Errorf("head: got %s, want returned id %s", got, returned)
	}
}

func TestBrokerRemove(t *testing.T) {
	b := NewMemoryBroker()
	keep, drop := wpid.New(), wpid.New()
	b.Push(keep)
	b.Push(drop)

	if err := b.Remove(drop); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing an absent id is a no-op.
	if err := b.Remove(wpid.New()); err != nil {
		t.Fatalf("remove absent: %v", err)
	}

	n, err := b.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Fatalf("len after remove: got %d, want 1", n)
	}
	got, ok, _ := b.Pop()
	if !ok || got != keep {
		t.Errorf("remaining: got %s ok=%v, want %s", got, ok, keep)
	}
}

func TestPromptQueueDiscount(t *testing.T) {
	q := NewPromptQueue(NewMemoryBroker(), 10)

	for i := 0; i < 10; i++ {
		if err := q.Push(wpid.New()); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	active, err := q.DiscountActive()
	if err != nil {
		t.Fatalf("discount: %v", err)
	}
	if active {
		t.Fatal("discount active at threshold, want inactive")
	}

	// The 11th waiting prompt flips the discount on.
	if err := q.Push(wpid.New()); err != nil {
		t.Fatalf("push: %v", err)
	}
	active, err = q.DiscountActive()
	if err != nil {
		t.Fatalf("discount: %v", err)
	}
	if !active {
		t.Fatal("discount inactive above threshold, want active")
	}
}

func TestPromptQueueContains(t *testing.T) {
	q := NewPromptQueue(NewMemoryBroker(), 10)
	id := wpid.New()
	if err := q.Push(id); err != nil {
		t.Fatalf("push: %v", err)
	}

	ok, err := q.Contains(id)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatal("queued id not found")
	}
	ok, err = q.Contains(wpid.New())
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatal("absent id reported present")
	}
}
