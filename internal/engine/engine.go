// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package engine composes the game services behind the operation
// surface the RPC server exposes.  It owns the shared lock manager,
// ledger, and matchmaking queue, and runs the background sweeper.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/locks"
	"github.com/sheegaon/wordpool/internal/params"
	"github.com/sheegaon/wordpool/internal/phrase"
	"github.com/sheegaon/wordpool/internal/players"
	"github.com/sheegaon/wordpool/internal/queue"
	"github.com/sheegaon/wordpool/internal/results"
	"github.com/sheegaon/wordpool/internal/rounds"
	"github.com/sheegaon/wordpool/internal/sweep"
	"github.com/sheegaon/wordpool/internal/votes"
	"github.com/sheegaon/wordpool/internal/wpid"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// Config holds what the engine needs to assemble its services.
type Config struct {
	DB        gamedb.DB
	Params    *params.Params
	Validator *phrase.Validator

	// Broker backs the prompt queue.  Nil selects the in-process
	// broker.
	Broker queue.Broker

	// SweepInterval overrides the sweeper tick.  Zero selects the
	// default.
	SweepInterval time.Duration
}

// Engine is the assembled game.
type Engine struct {
	db     gamedb.DB
	params *params.Params

	locks   *locks.Manager
	ledger  *ledger.Ledger
	queue   *queue.PromptQueue
	rounds  *rounds.Coordinator
	votes   *votes.Service
	results *results.Service
	players *players.Service
	sweeper *sweep.Sweeper

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New assembles an engine.
func New(cfg *Config) *Engine {
	p := cfg.Params
	if p == nil {
		p = params.Default()
	}
	broker := cfg.Broker
	if broker == nil {
		broker = queue.NewMemoryBroker()
	}

	lockMgr := locks.NewManager(p.LockTimeout)
	led := ledger.New(cfg.DB, lockMgr)
	promptQueue := queue.NewPromptQueue(broker, p.CopyDiscountThreshold)

	roundCoord := rounds.New(&rounds.Config{
		DB:        cfg.DB,
		Ledger:    led,
		Locks:     lockMgr,
		Queue:     promptQueue,
		Validator: cfg.Validator,
		Params:    p,
	})
	voteSvc := votes.New(&votes.Config{
		DB:     cfg.DB,
		Ledger: led,
		Locks:  lockMgr,
		Params: p,
	})
	resultSvc := results.New(&results.Config{
		DB:     cfg.DB,
		Ledger: led,
		Locks:  lockMgr,
		Params: p,
	})
	playerSvc := players.New(&players.Config{
		DB:     cfg.DB,
		Ledger: led,
		Locks:  lockMgr,
		Params: p,
	})
	sweeper := sweep.New(&sweep.Config{
		DB:       cfg.DB,
		Rounds:   roundCoord,
		Votes:    voteSvc,
		Queue:    promptQueue,
		Interval: cfg.SweepInterval,
	})

	return &Engine{
		db:      cfg.DB,
		params:  p,
		locks:   lockMgr,
		ledger:  led,
		queue:   promptQueue,
		rounds:  roundCoord,
		votes:   voteSvc,
		results: resultSvc,
		players: playerSvc,
		sweeper: sweeper,
	}
}

// Start launches the background sweeper.
func (e *Engine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sweeper.Run(ctx)
	}()
	log.Infof("Engine started")
}

// Stop halts the sweeper and waits for it to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		e.wg.Wait()
	}
	log.Infof("Engine stopped")
}

// SetClock overrides every service clock.  Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.rounds.SetClock(now)
	e.votes.SetClock(now)
	e.results.SetClock(now)
	e.players.SetClock(now)
}

// Sweep runs one synchronous sweeper pass.
func (e *Engine) Sweep(ctx context.Context) {
	e.sweeper.Sweep(ctx)
}

// Params returns the engine's game parameters.
func (e *Engine) Params() *params.Params {
	return e.params
}

// CreatePlayer registers a new player with the starting balance.
func (e *Engine) CreatePlayer(ctx context.Context) (*gamedb.Player, error) {
	return e.players.Create(ctx)
}

// GetPlayer returns the player row.
func (e *Engine) GetPlayer(playerID wpid.ID) (*gamedb.Player, error) {
	return e.players.Get(playerID)
}

// ClaimDailyBonus credits the daily bonus once per UTC calendar day.
func (e *Engine) ClaimDailyBonus(ctx context.Context, playerID wpid.ID) (*players.BonusResult, error) {
	return e.players.ClaimDailyBonus(ctx, playerID)
}

// StartPromptRound opens a prompt round for the player.
func (e *Engine) StartPromptRound(ctx context.Context, playerID wpid.ID) (*rounds.StartPromptResult, error) {
	return e.rounds.StartPrompt(ctx, playerID)
}

// SubmitPromptPhrase records the player's original phrase.
func (e *Engine) SubmitPromptPhrase(ctx context.Context, playerID, roundID wpid.ID, phrase string) (string, error) {
	return e.rounds.SubmitPrompt(ctx, playerID, roundID, phrase)
}

// StartCopyRound leases a waiting prompt and opens a copy round.
func (e *Engine) StartCopyRound(ctx context.Context, playerID wpid.ID) (*rounds.StartCopyResult, error) {
	return e.rounds.StartCopy(ctx, playerID)
}

// SubmitCopyPhrase records the player's copy phrase.
func (e *Engine) SubmitCopyPhrase(ctx context.Context, playerID, roundID wpid.ID, phrase string) (string, error) {
	return e.rounds.SubmitCopy(ctx, playerID, roundID, phrase)
}

// StartVoteRound opens a vote round on an eligible phraseset.
func (e *Engine) StartVoteRound(ctx context.Context, playerID wpid.ID) (*votes.StartVoteResult, error) {
	return e.votes.StartVote(ctx, playerID)
}

// SubmitVote records the player's vote.
func (e *Engine) SubmitVote(ctx context.Context, playerID, phrasesetID wpid.ID, phrase string) (*votes.SubmitVoteResult, error) {
	return e.votes.SubmitVote(ctx, playerID, phrasesetID, phrase)
}

// GetCurrentRound returns the player's active round, unwinding it first
// when it has timed out.  A nil round means the player is free.
func (e *Engine) GetCurrentRound(ctx context.Context, playerID wpid.ID) (*gamedb.Round, error) {
	return e.rounds.CurrentRound(ctx, playerID)
}

// GetRoundAvailability reports which round types the player could start
// right now.
func (e *Engine) GetRoundAvailability(playerID wpid.ID) (*rounds.Availability, error) {
	eligible, err := e.votes.EligibleCount(playerID)
	if err != nil {
		return nil, err
	}
	return e.rounds.CheckAvailability(playerID, eligible)
}

// GetPhrasesetResults returns the finalized detail bundle for a
// contributor.
func (e *Engine) GetPhrasesetResults(playerID, phrasesetID wpid.ID) (*results.Bundle, error) {
	return e.results.Results(playerID, phrasesetID)
}

// ClaimPhrasesetPrize acknowledges a contributor's payout.  Idempotent.
func (e *Engine) ClaimPhrasesetPrize(ctx context.Context, playerID, phrasesetID wpid.ID) (*results.ClaimResult, error) {
	return e.results.Claim(ctx, playerID, phrasesetID)
}

// ListPhrasesets returns the player's phraseset entries.
func (e *Engine) ListPhrasesets(playerID wpid.ID, role results.Role, bucket results.Bucket, limit, offset int) ([]*results.Entry, error) {
	return e.results.List(playerID, role, bucket, limit, offset)
}

// GetSummary returns the player's dashboard summary.
func (e *Engine) GetSummary(playerID wpid.ID) (*results.Summary, error) {
	return e.results.Summarize(playerID)
}

// GetUnclaimed returns the finalized entries the player has not
// claimed.
func (e *Engine) GetUnclaimed(playerID wpid.ID) ([]*results.Entry, error) {
	return e.results.Unclaimed(playerID)
}

// GetTransactionHistory returns the player's journal, newest first.
func (e *Engine) GetTransactionHistory(playerID wpid.ID, limit, offset int) ([]*gamedb.Transaction, error) {
	return e.ledger.History(playerID, limit, offset)
}

// AuditPlayer verifies the player's balance against the journal.
func (e *Engine) AuditPlayer(playerID wpid.ID) error {
	return e.ledger.Audit(playerID, e.params.StartingBalance)
}

// AddPrompt inserts a prompt into the library.  Used at seeding time
// and by operators.
func (e *Engine) AddPrompt(text, category string) (*gamedb.Prompt, error) {
	prompt := &gamedb.Prompt{
		ID:       wpid.New(),
		Text:     text,
		Category: category,
		Enabled:  true,
	}
	err := e.db.Update(func(tx gamedb.Tx) error {
		return tx.PutPrompt(prompt)
	})
	if err != nil {
		return nil, err
	}
	return prompt, nil
}
