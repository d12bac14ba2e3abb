// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rounds

import (
	"context"
	"time"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/wpid"
)

// HandleTimeout unwinds a round whose grace window has passed: refunds
// where the rules call for one, returns leased prompts to the queue,
// and clears the player's active round.  Safe to call on rounds that
// are no longer active or not yet timed out; those are no-ops, so the
// sweeper and lazy read-path checks can race freely.
func (c *Coordinator) HandleTimeout(ctx context.Context, roundID wpid.ID) error {
	var round *gamedb.Round
	if err := c.db.View(func(tx gamedb.Tx) error {
		var err error
		round, err = tx.Round(roundID)
		return err
	}); err != nil {
		return err
	}

	return c.locks.WithLock(ctx, ledger.PlayerLockName(round.PlayerID), func() error {
		var returnPrompt, removePrompt wpid.ID
		err := c.db.Update(func(tx gamedb.Tx) error {
			round, err := tx.Round(roundID)
			if err != nil {
				return err
			}
			if round.Status != gamedb.RoundActive || !c.timedOut(round) {
				return nil
			}

			switch round.Type {
			case gamedb.RoundPrompt:
				round.Status = gamedb.RoundExpired
				round.Prompt.PhrasesetStatus = gamedb.PromptsetAbandoned
				removePrompt = round.ID
				if err := c.refundTx(tx, round); err != nil {
					return err
				}

			case gamedb.RoundCopy:
				round.Status = gamedb.RoundAbandoned
				returnPrompt = round.Copy.PromptRoundID
				if err := c.refundTx(tx, round); err != nil {
					return err
				}
				err := tx.PutAbandonment(&gamedb.Abandonment{
					PlayerID:      round.PlayerID,
					PromptRoundID: round.Copy.PromptRoundID,
					AbandonedAt:   c.now().UTC(),
				})
				if err != nil {
					return err
				}

			case gamedb.RoundVote:
				// The vote entry fee is forfeited.
				round.Status = gamedb.RoundExpired
			}

			if err := tx.PutRound(round); err != nil {
				return err
			}

			player, err := tx.Player(round.PlayerID)
			if err != nil {
				return err
			}
			if player.ActiveRoundID == roundID {
				player.ActiveRoundID = ""
				if err := tx.PutPlayer(player); err != nil {
					return err
				}
			}

			log.Infof("Round %s (%s) timed out for player %s", roundID,
				round.Type, round.PlayerID)
			return nil
		})
		if err != nil {
			return err
		}

		if returnPrompt != "" {
			if qerr := c.queue.Return(returnPrompt); qerr != nil {
				log.Warnf("Failed to return prompt round %s to queue: %v",
					returnPrompt, qerr)
			}
		}
		if removePrompt != "" {
			// Best effort; an expired prompt normally never reached the
			// queue.
			if qerr := c.queue.Remove(removePrompt); qerr != nil {
				log.Warnf("Failed to remove prompt round %s from queue: %v",
					removePrompt, qerr)
			}
		}
		return nil
	})
}

// refundTx credits 90% of the round cost back to the player.
func (c *Coordinator) refundTx(tx gamedb.Tx, round *gamedb.Round) error {
	refund := c.params.RefundAmount(round.Cost)
	if refund <= 0 {
		return nil
	}
	_, err := c.ledger.ApplyTx(tx, round.PlayerID, refund, gamedb.TxRefund,
		round.ID)
	return err
}

// CurrentRound returns the player's active round, first unwinding it if
// its grace window has passed.  A nil round means the player is free to
// start a new one.
func (c *Coordinator) CurrentRound(ctx context.Context, playerID wpid.ID) (*gamedb.Round, error) {
	var round *gamedb.Round
	err := c.db.View(func(tx gamedb.Tx) error {
		player, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		if player.ActiveRoundID == "" {
			return nil
		}
		round, err = tx.Round(player.ActiveRoundID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, nil
	}

	if round.Status == gamedb.RoundActive && c.timedOut(round) {
		if err := c.HandleTimeout(ctx, round.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if round.Status != gamedb.RoundActive {
		return nil, nil
	}
	return round, nil
}

// ExpiredRounds returns the active rounds whose grace window has
// passed, for the sweeper.
func (c *Coordinator) ExpiredRounds() ([]*gamedb.Round, error) {
	var expired []*gamedb.Round
	err := c.db.View(func(tx gamedb.Tx) error {
		active, err := tx.ActiveRounds()
		if err != nil {
			return err
		}
		for _, r := range active {
			if c.timedOut(r) {
				expired = append(expired, r)
			}
		}
		return nil
	})
	return expired, err
}

// Availability reports which round types the player could start right
// now, without mutating anything.
type Availability struct {
	CanPrompt bool
	CanCopy   bool
	CanVote   bool

	PromptsWaiting    int
	PhrasesetsWaiting int

	CopyDiscountActive bool
	CopyCost           int64

	CurrentRoundID wpid.ID
}

// CheckAvailability computes the player's start options.  eligibleVotes
// is supplied by the vote service since eligibility filtering lives
// there.
func (c *Coordinator) CheckAvailability(playerID wpid.ID, eligibleVotes int) (*Availability, error) {
	av := &Availability{PhrasesetsWaiting: eligibleVotes}

	discount, err := c.queue.DiscountActive()
	if err != nil {
		return nil, err
	}
	av.CopyDiscountActive = discount
	av.CopyCost = c.params.CopyCostNormal
	if discount {
		av.CopyCost = c.params.CopyCostDiscount
	}

	queueLen, err := c.queue.Len()
	if err != nil {
		return nil, err
	}
	av.PromptsWaiting = queueLen

	err = c.db.View(func(tx gamedb.Tx) error {
		player, err := tx.Player(playerID)
		if err != nil {
			return err
		}

		inRound := false
		if player.ActiveRoundID != "" {
			r, err := tx.Round(player.ActiveRoundID)
			if err != nil {
				return err
			}
			if r.Status == gamedb.RoundActive && !c.timedOut(r) {
				inRound = true
				av.CurrentRoundID = r.ID
			}
		}

		outstanding, err := OutstandingPrompts(tx, playerID)
		if err != nil {
			return err
		}

		free := !inRound
		av.CanPrompt = free &&
			outstanding < c.params.MaxOutstandingPrompts &&
			player.Balance >= c.params.PromptCost
		av.CanCopy = free && queueLen > 0 && player.Balance >= av.CopyCost
		av.CanVote = free && eligibleVotes > 0 &&
			player.Balance >= c.params.VoteCost
		return nil
	})
	if err != nil {
		return nil, err
	}
	return av, nil
}

// Clock returns the coordinator's current time.  Shared with the
// sweeper so lazy and proactive checks agree.
func (c *Coordinator) Clock() time.Time {
	return c.now()
}
