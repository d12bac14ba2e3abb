// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package gamedb defines the transactional storage contracts for the
// wordpool engine along with two drivers: a durable leveldb-backed store
// and an in-memory store used by tests and single-process deployments.
//
// All reads and writes happen inside a managed transaction obtained from
// the View and Update methods of the DB interface.  Update transactions
// commit atomically when the closure returns nil and roll back entirely
// when it returns an error, which is what gives the engine its
// no-partial-side-effects guarantee.
package gamedb

import (
	"time"

	"github.com/decred/slog"

	"github.com/sheegaon/wordpool/internal/wpid"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// Tx is a storage transaction.  Rows returned by getters are private
// copies; mutations only take effect through the Put methods.
type Tx interface {
	// Players.
	Player(id wpid.ID) (*Player, error)
	PutPlayer(p *Player) error

	// Prompt library.
	Prompt(id wpid.ID) (*Prompt, error)
	PutPrompt(p *Prompt) error
	RandomEnabledPrompt() (*Prompt, error)
	EnabledPromptCount() (int, error)

	// Rounds.
	Round(id wpid.ID) (*Round, error)
	PutRound(r *Round) error
	// SubmittedCopyRounds returns the submitted copy rounds referencing
	// the given prompt round, ordered by creation time.
	SubmittedCopyRounds(promptRoundID wpid.ID) ([]*Round, error)
	// ActiveRounds returns every round still in the active status.
	ActiveRounds() ([]*Round, error)
	// WaitingPromptRounds returns the submitted prompt rounds whose
	// phraseset has not yet been built, ordered by creation time.
	WaitingPromptRounds() ([]*Round, error)
	// RoundsByPlayer returns the player's rounds of the given type,
	// newest first.  An empty type matches all rounds.
	RoundsByPlayer(playerID wpid.ID, typ RoundType) ([]*Round, error)

	// Phrasesets.
	Phraseset(id wpid.ID) (*Phraseset, error)
	PutPhraseset(ps *Phraseset) error
	PhrasesetByPromptRound(promptRoundID wpid.ID) (*Phraseset, error)
	// PhrasesetsByStatus returns phrasesets whose status is one of the
	// given values, ordered by creation time.
	PhrasesetsByStatus(statuses ...PhrasesetStatus) ([]*Phraseset, error)

	// Votes.
	PutVote(v *Vote) error
	VotesByPhraseset(phrasesetID wpid.ID) ([]*Vote, error)
	VoteByPlayer(phrasesetID, playerID wpid.ID) (*Vote, error)

	// Ledger journal.
	AppendTransaction(t *Transaction) error
	// TransactionsByPlayer returns journal entries newest first.
	TransactionsByPlayer(playerID wpid.ID, limit, offset int) ([]*Transaction, error)

	// Daily bonuses.
	PutDailyBonus(b *DailyBonus) error

	// Result views.
	ResultView(phrasesetID, playerID wpid.ID) (*ResultView, error)
	PutResultView(rv *ResultView) error

	// Abandonment cooldowns.
	PutAbandonment(a *Abandonment) error
	// HasAbandonment reports whether the player abandoned the prompt round
	// at or after the given cutoff.
	HasAbandonment(playerID, promptRoundID wpid.ID, cutoff time.Time) (bool, error)

	// Activity timeline.
	PutActivity(a *Activity) error
	// ActivitiesByPhraseset returns the timeline oldest first.
	ActivitiesByPhraseset(phrasesetID wpid.ID) ([]*Activity, error)
	// AttachActivityPhraseset stamps the phraseset id onto prompt-level
	// activity rows recorded before the phraseset existed.
	AttachActivityPhraseset(promptRoundID, phrasesetID wpid.ID) error
}

// DB is a transactional store for the engine.
type DB interface {
	// View executes fn inside a read-only transaction.
	View(fn func(tx Tx) error) error

	// Update executes fn inside a read-write transaction.  The
	// transaction commits if fn returns nil and rolls back otherwise.
	Update(fn func(tx Tx) error) error

	// Close releases all database resources.
	Close() error
}
