// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package results surfaces per-player phraseset views: the paginated
// list, the dashboard summary, unclaimed prizes, the detail bundle, and
// the idempotent prize claim.
package results

import (
	"fmt"
	"time"

	"github.com/decred/slog"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/locks"
	"github.com/sheegaon/wordpool/internal/params"
	"github.com/sheegaon/wordpool/internal/scoring"
	"github.com/sheegaon/wordpool/internal/votes"
	"github.com/sheegaon/wordpool/internal/wpid"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// ErrorKind identifies a kind of error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrNotContributor indicates the player did not contribute to the
	// phraseset.
	ErrNotContributor = ErrorKind("ErrNotContributor")

	// ErrNotFinalized indicates results were requested before the
	// phraseset finalized.
	ErrNotFinalized = ErrorKind("ErrNotFinalized")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a results error.
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

func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}

// Role distinguishes how a player contributed to a phraseset.
type Role string

const (
	RoleAll    Role = "all"
	RolePrompt Role = "prompt"
	RoleCopy   Role = "copy"
)

// Bucket groups phrasesets by lifecycle stage from the player's
// perspective.
type Bucket string

const (
	BucketAll        Bucket = "all"
	BucketInProgress Bucket = "in_progress"
	BucketVoting     Bucket = "voting"
	BucketFinalized  Bucket = "finalized"
	BucketAbandoned  Bucket = "abandoned"
)

// Service serves result views and claims.
type Service struct {
	db     gamedb.DB
	ledger *ledger.Ledger
	locks  *locks.Manager
	params *params.Params

	now func() time.Time
}

// Config bundles the result service's collaborators.
type Config struct {
	DB     gamedb.DB
	Ledger *ledger.Ledger
	Locks  *locks.Manager
	Params *params.Params
}

// New returns a results service.
func New(cfg *Config) *Service {
	return &Service{
		db:     cfg.DB,
		ledger: cfg.Ledger,
		locks:  cfg.Locks,
		params: cfg.Params,
		now:    time.Now,
	}
}

// SetClock overrides the service's clock.  Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Entry is one row of the player's phraseset list.
type Entry struct {
	PhrasesetID   wpid.ID
	PromptRoundID wpid.ID
	Role          Role
	Bucket        Bucket
	PromptText    string
	YourPhrase    string
	VoteCount     int
	Payout        int64
	Claimed       bool
	CreatedAt     time.Time
}

// entryForRound derives the list entry for one prompt or copy round, or
// nil for rounds that never produced a submission.
func (s *Service) entryForRound(tx gamedb.Tx, playerID wpid.ID, r *gamedb.Round) (*Entry, error) {
	e := &Entry{CreatedAt: r.CreatedAt}

	var promptRoundID wpid.ID
	switch r.Type {
	case gamedb.RoundPrompt:
		e.Role = RolePrompt
		e.PromptText = r.Prompt.PromptText
		e.YourPhrase = r.Prompt.SubmittedPhrase
		promptRoundID = r.ID
	case gamedb.RoundCopy:
		e.Role = RoleCopy
		e.YourPhrase = r.Copy.CopyPhrase
		promptRoundID = r.Copy.PromptRoundID
	default:
		return nil, nil
	}
	e.PromptRoundID = promptRoundID

	switch r.Status {
	case gamedb.RoundExpired, gamedb.RoundAbandoned:
		e.Bucket = BucketAbandoned
		return e, nil
	case gamedb.RoundActive:
		e.Bucket = BucketInProgress
		return e, nil
	}

	ps, err := tx.PhrasesetByPromptRound(promptRoundID)
	if err != nil {
		// Submitted but the phraseset has not materialized yet.
		e.Bucket = BucketInProgress
		return e, nil
	}
	if r.Type == gamedb.RoundCopy &&
		r.ID != ps.CopyRound1ID && r.ID != ps.CopyRound2ID {
		// Late third copy that plays no part in the phraseset.
		e.Bucket = BucketAbandoned
		return e, nil
	}

	e.PhrasesetID = ps.ID
	e.PromptText = ps.PromptText
	e.VoteCount = ps.VoteCount
	switch ps.Status {
	case gamedb.PhrasesetFinalized:
		e.Bucket = BucketFinalized
		payout, claimed, err := s.payoutForTx(tx, playerID, ps)
		if err != nil {
			return nil, err
		}
		e.Payout = payout
		e.Claimed = claimed
	case gamedb.PhrasesetOpen, gamedb.PhrasesetClosing, gamedb.PhrasesetClosed:
		e.Bucket = BucketVoting
	}
	return e, nil
}

// payoutForTx computes the player's share of a finalized phraseset and
// whether they have claimed it.
func (s *Service) payoutForTx(tx gamedb.Tx, playerID wpid.ID, ps *gamedb.Phraseset) (int64, bool, error) {
	voteRows, err := tx.VotesByPhraseset(ps.ID)
	if err != nil {
		return 0, false, err
	}
	result := scoring.Calculate(ps, voteRows, s.params.VotePayoutCorrect)

	promptPlayer, copy1Player, copy2Player, err := votes.Contributors(tx, ps)
	if err != nil {
		return 0, false, err
	}
	var payout int64
	switch playerID {
	case promptPlayer:
		payout = result.PromptPayout
	case copy1Player:
		payout = result.Copy1Payout
	case copy2Player:
		payout = result.Copy2Payout
	default:
		return 0, false, makeError(ErrNotContributor, fmt.Sprintf("player "+
			"%s did not contribute to phraseset %s", playerID, ps.ID))
	}

	claimed := false
	if rv, err := tx.ResultView(ps.ID, playerID); err == nil {
		claimed = rv.Claimed
	}
	return payout, claimed, nil
}

// List returns the player's phraseset entries, newest first, filtered
// by role and bucket.
func (s *Service) List(playerID wpid.ID, role Role, bucket Bucket, limit, offset int) ([]*Entry, error) {
	var entries []*Entry
	err := s.db.View(func(tx gamedb.Tx) error {
		rounds, err := tx.RoundsByPlayer(playerID, "")
		if err != nil {
			return err
		}
		for _, r := range rounds {
			e, err := s.entryForRound(tx, playerID, r)
			if err != nil {
				return err
			}
			if e == nil {
				continue
			}
			if role != RoleAll && role != "" && e.Role != role {
				continue
			}
			if bucket != BucketAll && bucket != "" && e.Bucket != bucket {
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Summary aggregates the player's entries by role and bucket along with
// unclaimed totals.
type Summary struct {
	Counts          map[Role]map[Bucket]int
	UnclaimedCount  int
	UnclaimedAmount int64
}

// Summarize computes the dashboard summary for a player.
func (s *Service) Summarize(playerID wpid.ID) (*Summary, error) {
	entries, err := s.List(playerID, RoleAll, BucketAll, 0, 0)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Counts: map[Role]map[Bucket]int{
		RolePrompt: make(map[Bucket]int),
		RoleCopy:   make(map[Bucket]int),
	}}
	for _, e := range entries {
		summary.Counts[e.Role][e.Bucket]++
		if e.Bucket == BucketFinalized && !e.Claimed && e.Payout > 0 {
			summary.UnclaimedCount++
			summary.UnclaimedAmount += e.Payout
		}
	}
	return summary, nil
}

// Unclaimed returns the finalized entries the player has not claimed.
func (s *Service) Unclaimed(playerID wpid.ID) ([]*Entry, error) {
	entries, err := s.List(playerID, RoleAll, BucketFinalized, 0, 0)
	if err != nil {
		return nil, err
	}
	var unclaimed []*Entry
	for _, e := range entries {
		if !e.Claimed && e.Payout > 0 {
			unclaimed = append(unclaimed, e)
		}
	}
	return unclaimed, nil
}
