// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package queue provides the matchmaking queues: a FIFO of prompt
// rounds awaiting copy players and a pool of phrasesets awaiting votes.
// Both are backed by a Broker so a distributed deployment can swap the
// in-process implementation for a shared one.
package queue

import (
	"sync"

	"github.com/decred/slog"

	"github.com/sheegaon/wordpool/internal/wpid"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// Broker is an ordered id queue with atomic pop.  Remove is advisory:
// brokers that cannot random-access may treat it as a no-op, so callers
// must defend against stale ids at pop time.
type Broker interface {
	// Push appends the id to the tail.
	Push(id wpid.ID) error

	// PushFront inserts the id at the head, used to return a leased
	// entry after an abandonment.
	PushFront(id wpid.ID) error

	// Pop removes and returns the head id.  ok is false when the queue
	// is empty.
	Pop() (id wpid.ID, ok bool, err error)

	// Remove deletes the id wherever it sits in the queue.  Best
	// effort.
	Remove(id wpid.ID) error

	// Len returns the number of queued ids.
	Len() (int, error)

	// Members returns a snapshot of the queued ids in order.
	Members() ([]wpid.ID, error)
}

// memoryBroker is the in-process Broker used by single-node
// deployments.
type memoryBroker struct {
	mtx sync.Mutex
	ids []wpid.ID
}

// NewMemoryBroker returns an empty in-process broker.
func NewMemoryBroker() Broker {
	return &memoryBroker{}
}

func (b *memoryBroker) Push(id wpid.ID) error {
	b.mtx.Lock()
	b.ids = append(b.ids, id)
	b.mtx.Unlock()
	return nil
}

func (b *memoryBroker) PushFront(id wpid.ID) error {
	b.mtx.Lock()
	b.ids = append([]wpid.ID{id}, b.ids...)
	b.mtx.Unlock()
	return nil
}

func (b *memoryBroker) Pop() (wpid.ID, bool, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if len(b.ids) == 0 {
		return "", false, nil
	}
	id := b.ids[0]
	b.ids = b.ids[1:]
	return id, true, nil
}

func (b *memoryBroker) Remove(id wpid.ID) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for i, queued := range b.ids {
		if queued == id {
			b.ids = append(b.ids[:i:i], b.ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *memoryBroker) Len() (int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return len(b.ids), nil
}

func (b *memoryBroker) Members() ([]wpid.ID, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return append([]wpid.ID(nil), b.ids...), nil
}

// PromptQueue is the FIFO of submitted prompt rounds waiting for copy
// players.
type PromptQueue struct {
	broker Broker

	// discountThreshold is the queue length above which copy rounds
	// become cheaper.
	discountThreshold int
}

// NewPromptQueue returns a prompt queue over the given broker.
func NewPromptQueue(broker Broker, discountThreshold int) *PromptQueue {
	return &PromptQueue{broker: broker, discountThreshold: discountThreshold}
}

// Push enqueues a submitted prompt round.
func (q *PromptQueue) Push(promptRoundID wpid.ID) error {
	log.Debugf("Enqueued prompt round %s", promptRoundID)
	return q.broker.Push(promptRoundID)
}

// Return puts an abandoned prompt round back at the head so it is
// offered again before newer prompts.
func (q *PromptQueue) Return(promptRoundID wpid.ID) error {
	log.Debugf("Returned prompt round %s to queue head", promptRoundID)
	return q.broker.PushFront(promptRoundID)
}

// Pop atomically leases the oldest waiting prompt round.
func (q *PromptQueue) Pop() (wpid.ID, bool, error) {
	return q.broker.Pop()
}

// Remove drops a prompt round from the queue, used when the prompt
// round expires before any copy player drew it.  Best effort.
func (q *PromptQueue) Remove(promptRoundID wpid.ID) error {
	return q.broker.Remove(promptRoundID)
}

// Len returns the number of waiting prompt rounds.
func (q *PromptQueue) Len() (int, error) {
	return q.broker.Len()
}

// DiscountActive reports whether enough prompts are waiting that copy
// rounds are discounted.  Evaluated at copy-round creation.
func (q *PromptQueue) DiscountActive() (bool, error) {
	n, err := q.broker.Len()
	if err != nil {
		return false, err
	}
	return n > q.discountThreshold, nil
}

// Contains reports whether the prompt round is currently queued.
func (q *PromptQueue) Contains(promptRoundID wpid.ID) (bool, error) {
	members, err := q.broker.Members()
	if err != nil {
		return false, err
	}
	for _, id := range members {
		if id == promptRoundID {
			return true, nil
		}
	}
	return false, nil
}
