// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package results

import (
	"context"
	"fmt"
	"time"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/scoring"
	"github.com/sheegaon/wordpool/internal/votes"
	"github.com/sheegaon/wordpool/internal/wpid"
)

// Contributor attributes one of the three phrases to its player.
type Contributor struct {
	PlayerID wpid.ID
	Role     Role
	Phrase   string
	Payout   int64
}

// Bundle is the full detail view of a finalized phraseset for one
// contributor.
type Bundle struct {
	PhrasesetID    wpid.ID
	PromptText     string
	OriginalPhrase string
	Status         gamedb.PhrasesetStatus
	FinalizedAt    time.Time

	Contributors []Contributor
	Votes        []*gamedb.Vote
	Timeline     []*gamedb.Activity
	Scoring      *scoring.Result

	YourRole   Role
	YourPayout int64
	Claimed    bool
}

// Results returns the finalized detail bundle for a contributor, and
// records the first view.  Fails with ErrNotFinalized before
// finalization and ErrNotContributor for everyone but the three
// contributors.
func (s *Service) Results(playerID, phrasesetID wpid.ID) (*Bundle, error) {
	var bundle *Bundle
	err := s.db.Update(func(tx gamedb.Tx) error {
		ps, err := tx.Phraseset(phrasesetID)
		if err != nil {
			return err
		}

		promptPlayer, copy1Player, copy2Player, err := votes.Contributors(tx, ps)
		if err != nil {
			return err
		}
		var yourRole Role
		switch playerID {
		case promptPlayer:
			yourRole = RolePrompt
		case copy1Player, copy2Player:
			yourRole = RoleCopy
		default:
			return makeError(ErrNotContributor, fmt.Sprintf("player %s did "+
				"not contribute to phraseset %s", playerID, phrasesetID))
		}

		if ps.Status != gamedb.PhrasesetFinalized {
			return makeError(ErrNotFinalized,
				fmt.Sprintf("phraseset %s is %s", phrasesetID, ps.Status))
		}

		voteRows, err := tx.VotesByPhraseset(phrasesetID)
		if err != nil {
			return err
		}
		timeline, err := tx.ActivitiesByPhraseset(phrasesetID)
		if err != nil {
			return err
		}
		result := scoring.Calculate(ps, voteRows, s.params.VotePayoutCorrect)

		var yourPayout int64
		switch playerID {
		case promptPlayer:
			yourPayout = result.PromptPayout
		case copy1Player:
			yourPayout = result.Copy1Payout
		case copy2Player:
			yourPayout = result.Copy2Payout
		}

		// Record the first view; the stored amount doubles as the claim
		// idempotency key.
		view, err := tx.ResultView(phrasesetID, playerID)
		if err != nil {
			view = &gamedb.ResultView{
				ID:            wpid.New(),
				PhrasesetID:   phrasesetID,
				PlayerID:      playerID,
				PayoutAmount:  yourPayout,
				FirstViewedAt: s.now().UTC(),
			}
			if err := tx.PutResultView(view); err != nil {
				return err
			}
		}

		bundle = &Bundle{
			PhrasesetID:    phrasesetID,
			PromptText:     ps.PromptText,
			OriginalPhrase: ps.OriginalPhrase,
			Status:         ps.Status,
			FinalizedAt:    ps.FinalizedAt,
			Contributors: []Contributor{
				{promptPlayer, RolePrompt, ps.OriginalPhrase, result.PromptPayout},
				{copy1Player, RoleCopy, ps.CopyPhrase1, result.Copy1Payout},
				{copy2Player, RoleCopy, ps.CopyPhrase2, result.Copy2Payout},
			},
			Votes:      voteRows,
			Timeline:   timeline,
			Scoring:    result,
			YourRole:   yourRole,
			YourPayout: yourPayout,
			Claimed:    view.Claimed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

// ClaimResult is the outcome of a prize claim.
type ClaimResult struct {
	Amount         int64
	NewBalance     int64
	AlreadyClaimed bool
}

// Claim acknowledges a contributor's finalized payout.  The prize
// transaction was written at finalization; claiming flips the per
// (player, phraseset) flag exactly once, so repeated claims return the
// same amount without moving money.
func (s *Service) Claim(ctx context.Context, playerID, phrasesetID wpid.ID) (*ClaimResult, error) {
	var result *ClaimResult
	err := s.locks.WithLock(ctx, ledger.PlayerLockName(playerID), func() error {
		return s.db.Update(func(tx gamedb.Tx) error {
			ps, err := tx.Phraseset(phrasesetID)
			if err != nil {
				return err
			}

			if ps.Status != gamedb.PhrasesetFinalized {
				return makeError(ErrNotFinalized,
					fmt.Sprintf("phraseset %s is %s", phrasesetID, ps.Status))
			}

			payout, _, err := s.payoutForTx(tx, playerID, ps)
			if err != nil {
				return err
			}

			player, err := tx.Player(playerID)
			if err != nil {
				return err
			}

			view, err := tx.ResultView(phrasesetID, playerID)
			if err == nil && view.Claimed {
				result = &ClaimResult{
					Amount:         view.PayoutAmount,
					NewBalance:     player.Balance,
					AlreadyClaimed: true,
				}
				return nil
			}
			if err != nil {
				view = &gamedb.ResultView{
					ID:            wpid.New(),
					PhrasesetID:   phrasesetID,
					PlayerID:      playerID,
					PayoutAmount:  payout,
					FirstViewedAt: s.now().UTC(),
				}
			}

			view.Claimed = true
			view.ClaimedAt = s.now().UTC()
			if err := tx.PutResultView(view); err != nil {
				return err
			}

			err = tx.PutActivity(&gamedb.Activity{
				ID:            wpid.New(),
				PhrasesetID:   phrasesetID,
				PromptRoundID: ps.PromptRoundID,
				PlayerID:      playerID,
				Type:          gamedb.ActivityPrizeClaimed,
				Payload: map[string]string{
					"amount": fmt.Sprintf("%d", payout),
				},
				CreatedAt: s.now().UTC(),
			})
			if err != nil {
				return err
			}

			result = &ClaimResult{
				Amount:         view.PayoutAmount,
				NewBalance:     player.Balance,
				AlreadyClaimed: false,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Player %s claimed %d on phraseset %s (already=%t)", playerID,
		result.Amount, phrasesetID, result.AlreadyClaimed)
	return result, nil
}
