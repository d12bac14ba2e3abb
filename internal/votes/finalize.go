// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package votes

import (
	"context"
	"time"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/scoring"
	"github.com/sheegaon/wordpool/internal/wpid"
)

// dueForFinalization reports whether any closing condition holds.
func (s *Service) dueForFinalization(ps *gamedb.Phraseset, now time.Time) bool {
	if ps.Status == gamedb.PhrasesetFinalized {
		return false
	}
	if ps.VoteCount >= s.params.VoteFinalizeMax {
		return true
	}
	if !ps.FifthVoteAt.IsZero() &&
		now.Sub(ps.FifthVoteAt) >= s.params.FifthVoteCloseAfter {
		return true
	}
	if ps.FifthVoteAt.IsZero() && !ps.ThirdVoteAt.IsZero() &&
		now.Sub(ps.ThirdVoteAt) >= s.params.ThirdVoteTimeoutAfter {
		return true
	}
	return false
}

// finalizeTx scores the phraseset and commits the prize payouts inside
// the caller's storage transaction.  The caller holds the phraseset
// lock and has already verified the phraseset is not finalized.
func (s *Service) finalizeTx(tx gamedb.Tx, ps *gamedb.Phraseset, now time.Time) error {
	votes, err := tx.VotesByPhraseset(ps.ID)
	if err != nil {
		return err
	}
	result := scoring.Calculate(ps, votes, s.params.VotePayoutCorrect)

	promptPlayer, copy1Player, copy2Player, err := Contributors(tx, ps)
	if err != nil {
		return err
	}

	payouts := []struct {
		playerID wpid.ID
		amount   int64
	}{
		{promptPlayer, result.PromptPayout},
		{copy1Player, result.Copy1Payout},
		{copy2Player, result.Copy2Payout},
	}
	for _, p := range payouts {
		if p.amount == 0 {
			continue
		}
		if _, err := s.ledger.ApplyTx(tx, p.playerID, p.amount,
			gamedb.TxPrizePayout, ps.ID); err != nil {
			return err
		}
	}

	ps.Status = gamedb.PhrasesetFinalized
	ps.FinalizedAt = now
	if err := tx.PutPhraseset(ps); err != nil {
		return err
	}

	promptRound, err := tx.Round(ps.PromptRoundID)
	if err != nil {
		return err
	}
	promptRound.Prompt.PhrasesetStatus = gamedb.PromptsetFinalized
	if err := tx.PutRound(promptRound); err != nil {
		return err
	}

	err = tx.PutActivity(&gamedb.Activity{
		ID:            wpid.New(),
		PhrasesetID:   ps.ID,
		PromptRoundID: ps.PromptRoundID,
		Type:          gamedb.ActivityFinalized,
		CreatedAt:     now,
	})
	if err != nil {
		return err
	}

	log.Infof("Finalized phraseset %s: pool %d, payouts %d/%d/%d, "+
		"remainder %d", ps.ID, ps.TotalPool, result.PromptPayout,
		result.Copy1Payout, result.Copy2Payout, result.Remainder())
	return nil
}

// Finalize closes the phraseset if a closing condition holds.
// Idempotent: finalizing an already-finalized phraseset is a no-op, so
// the sweeper and the vote path can race.
func (s *Service) Finalize(ctx context.Context, phrasesetID wpid.ID) error {
	return s.locks.WithLock(ctx, PhrasesetLockName(phrasesetID), func() error {
		return s.db.Update(func(tx gamedb.Tx) error {
			ps, err := tx.Phraseset(phrasesetID)
			if err != nil {
				return err
			}
			now := s.now().UTC()
			if !s.dueForFinalization(ps, now) {
				return nil
			}
			return s.finalizeTx(tx, ps, now)
		})
	})
}

// DueForFinalization returns the phrasesets whose closing conditions
// hold right now, for the sweeper.
func (s *Service) DueForFinalization() ([]wpid.ID, error) {
	var due []wpid.ID
	err := s.db.View(func(tx gamedb.Tx) error {
		candidates, err := tx.PhrasesetsByStatus(gamedb.PhrasesetOpen,
			gamedb.PhrasesetClosing)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for _, ps := range candidates {
			if s.dueForFinalization(ps, now) {
				due = append(due, ps.ID)
			}
		}
		return nil
	})
	return due, err
}
