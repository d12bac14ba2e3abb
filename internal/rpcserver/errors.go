// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"errors"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/locks"
	"github.com/sheegaon/wordpool/internal/phrase"
	"github.com/sheegaon/wordpool/internal/players"
	"github.com/sheegaon/wordpool/internal/results"
	"github.com/sheegaon/wordpool/internal/rounds"
	"github.com/sheegaon/wordpool/internal/votes"
)

// codeInternal is returned for errors with no client-facing mapping.
// These are logged server-side; the client only learns something went
// wrong.
const codeInternal = "internal_error"

// wireCodes maps engine error kinds onto the wire error taxonomy.
// Ordering matters where kinds from different packages share a wire
// code.
var wireCodes = []struct {
	kind error
	code string
}{
	{ledger.ErrInsufficientBalance, "insufficient_balance"},
	{rounds.ErrAlreadyInRound, "already_in_round"},
	{votes.ErrAlreadyInRound, "already_in_round"},
	{rounds.ErrMaxOutstandingPrompts, "max_outstanding_prompts"},
	{rounds.ErrNoPromptsEnabled, "no_prompts_enabled"},
	{rounds.ErrNoPromptsAvailable, "no_prompts_available"},
	{votes.ErrNoPhrasesetsAvailable, "no_phrasesets_available"},
	{rounds.ErrRoundNotFound, "round_not_found"},
	{votes.ErrRoundNotFound, "round_not_found"},
	{rounds.ErrRoundExpired, "round_expired"},
	{votes.ErrRoundExpired, "round_expired"},
	// A submit against a round that already left the active state, such
	// as a stale client retry, is distinct from a timed-out window.
	{rounds.ErrWrongRoundState, "wrong_round_state"},
	{votes.ErrAlreadyVoted, "already_voted"},
	{votes.ErrInvalidChoice, "invalid_choice"},
	{results.ErrNotContributor, "not_contributor"},
	{results.ErrNotFinalized, "not_finalized"},
	{players.ErrBonusNotAvailable, "daily_bonus_not_available"},

	{phrase.ErrInvalidPhrase, "invalid_phrase"},
	{phrase.ErrDuplicatePhrase, "duplicate_phrase"},
	{phrase.ErrTooSimilar, "phrase_too_similar"},

	{phrase.ErrSimilarityUnavailable, "external_service_unavailable"},
	{locks.ErrAcquireTimeout, "lock_timeout"},

	{ledger.ErrInconsistent, "ledger_inconsistency"},
	{gamedb.ErrNotFound, "not_found"},
}

// wireCode resolves an engine error to its wire error code.
func wireCode(err error) string {
	for _, m := range wireCodes {
		if errors.Is(err, m.kind) {
			return m.code
		}
	}
	return codeInternal
}
