// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sweep is the timer service: a periodic pass that unwinds
// timed-out rounds, finalizes phrasesets whose closing conditions have
// passed, and repairs the prompt queue.  Every action it takes is also
// safe under concurrent invocation from the request paths.
package sweep

import (
	"context"
	"time"

	"github.com/decred/slog"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/queue"
	"github.com/sheegaon/wordpool/internal/rounds"
	"github.com/sheegaon/wordpool/internal/votes"
	"github.com/sheegaon/wordpool/internal/wpid"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// DefaultInterval is the sweep tick.  The worst-case delay from a
// timeout condition to its state transition is one tick.
const DefaultInterval = 5 * time.Second

// Sweeper drives the periodic pass.
type Sweeper struct {
	db       gamedb.DB
	rounds   *rounds.Coordinator
	votes    *votes.Service
	queue    *queue.PromptQueue
	interval time.Duration
}

// Config bundles the sweeper's collaborators.
type Config struct {
	DB     gamedb.DB
	Rounds *rounds.Coordinator
	Votes  *votes.Service
	Queue  *queue.PromptQueue

	// Interval between passes.  Zero selects DefaultInterval.
	Interval time.Duration
}

// New returns a sweeper.
func New(cfg *Config) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		db:       cfg.DB,
		rounds:   cfg.Rounds,
		votes:    cfg.Votes,
		queue:    cfg.Queue,
		interval: interval,
	}
}

// Run sweeps until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Infof("Sweeper started (interval %s)", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infof("Sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass.  Errors are logged, not returned; the next tick
// retries anything that failed.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweepRounds(ctx)
	s.sweepFinalizations(ctx)
	s.reconcileQueue()
}

func (s *Sweeper) sweepRounds(ctx context.Context) {
	expired, err := s.rounds.ExpiredRounds()
	if err != nil {
		log.Errorf("Sweep: listing expired rounds: %v", err)
		return
	}
	for _, r := range expired {
		if err := s.rounds.HandleTimeout(ctx, r.ID); err != nil {
			log.Errorf("Sweep: timing out round %s: %v", r.ID, err)
		}
	}
}

func (s *Sweeper) sweepFinalizations(ctx context.Context) {
	due, err := s.votes.DueForFinalization()
	if err != nil {
		log.Errorf("Sweep: listing due phrasesets: %v", err)
		return
	}
	for _, id := range due {
		if err := s.votes.Finalize(ctx, id); err != nil {
			log.Errorf("Sweep: finalizing phraseset %s: %v", id, err)
		}
	}
}

// reconcileQueue re-enqueues submitted prompt rounds that are neither
// queued nor leased to an active copy round, which can happen when a
// process dies between committing a submission and pushing the id.
func (s *Sweeper) reconcileQueue() {
	var missing []*gamedb.Round
	err := s.db.View(func(tx gamedb.Tx) error {
		active, err := tx.ActiveRounds()
		if err != nil {
			return err
		}
		leased := make(map[wpid.ID]struct{})
		for _, r := range active {
			if r.Type == gamedb.RoundCopy {
				leased[r.Copy.PromptRoundID] = struct{}{}
			}
		}

		waiting, err := tx.WaitingPromptRounds()
		if err != nil {
			return err
		}
		for _, r := range waiting {
			if _, ok := leased[r.ID]; ok {
				continue
			}
			queued, err := s.queue.Contains(r.ID)
			if err != nil {
				return err
			}
			if !queued {
				missing = append(missing, r)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("Sweep: queue reconciliation: %v", err)
		return
	}

	for _, r := range missing {
		log.Warnf("Sweep: re-enqueueing orphaned prompt round %s", r.ID)
		if err := s.queue.Push(r.ID); err != nil {
			log.Errorf("Sweep: re-enqueueing prompt round %s: %v", r.ID, err)
		}
	}
}
