// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rounds coordinates the round state machine: starting and
// submitting prompt and copy rounds, enforcing entry preconditions,
// building phrasesets when the second copy lands, and unwinding rounds
// that time out.
package rounds

import (
	"context"
	"fmt"
	"time"

	"github.com/decred/slog"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/locks"
	"github.com/sheegaon/wordpool/internal/params"
	"github.com/sheegaon/wordpool/internal/phrase"
	"github.com/sheegaon/wordpool/internal/queue"
	"github.com/sheegaon/wordpool/internal/wpid"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// Coordinator creates and terminates rounds.
type Coordinator struct {
	db        gamedb.DB
	ledger    *ledger.Ledger
	locks     *locks.Manager
	queue     *queue.PromptQueue
	validator *phrase.Validator
	params    *params.Params

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Config bundles the coordinator's collaborators.
type Config struct {
	DB        gamedb.DB
	Ledger    *ledger.Ledger
	Locks     *locks.Manager
	Queue     *queue.PromptQueue
	Validator *phrase.Validator
	Params    *params.Params
}

// New returns a round coordinator.
func New(cfg *Config) *Coordinator {
	return &Coordinator{
		db:        cfg.DB,
		ledger:    cfg.Ledger,
		locks:     cfg.Locks,
		queue:     cfg.Queue,
		validator: cfg.Validator,
		params:    cfg.Params,
		now:       time.Now,
	}
}

// SetClock overrides the coordinator's clock.  Tests only.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// StartPromptResult is the successful outcome of StartPrompt.
type StartPromptResult struct {
	RoundID    wpid.ID
	PromptText string
	ExpiresAt  time.Time
	Cost       int64
}

// StartCopyResult is the successful outcome of StartCopy.
type StartCopyResult struct {
	RoundID        wpid.ID
	PromptRoundID  wpid.ID
	OriginalPhrase string
	ExpiresAt      time.Time
	Cost           int64
	DiscountActive bool
}

// OutstandingPrompts counts the player's prompt rounds still in flight:
// active or submitted rounds whose phraseset has not finalized or been
// abandoned.
func OutstandingPrompts(tx gamedb.Tx, playerID wpid.ID) (int, error) {
	rounds, err := tx.RoundsByPlayer(playerID, gamedb.RoundPrompt)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rounds {
		if r.Status != gamedb.RoundActive && r.Status != gamedb.RoundSubmitted {
			continue
		}
		switch r.Prompt.PhrasesetStatus {
		case gamedb.PromptsetFinalized, gamedb.PromptsetAbandoned:
		default:
			n++
		}
	}
	return n, nil
}

// requireNoActiveRound fails with ErrAlreadyInRound when the player has
// an active round.  Rounds past their grace window do not count; they
// are unwound lazily by CurrentRound or proactively by the sweeper.
func (c *Coordinator) requireNoActiveRound(tx gamedb.Tx, player *gamedb.Player) error {
	if player.ActiveRoundID == "" {
		return nil
	}
	r, err := tx.Round(player.ActiveRoundID)
	if err != nil {
		return err
	}
	if r.Status == gamedb.RoundActive && !c.timedOut(r) {
		return makeError(ErrAlreadyInRound, fmt.Sprintf("player %s already "+
			"has active round %s", player.ID, r.ID))
	}
	return nil
}

func (c *Coordinator) timedOut(r *gamedb.Round) bool {
	return c.now().After(r.ExpiresAt.Add(c.params.GracePeriod))
}

// StartPrompt debits the prompt cost, draws a random enabled prompt,
// and opens a prompt round.
func (c *Coordinator) StartPrompt(ctx context.Context, playerID wpid.ID) (*StartPromptResult, error) {
	var result *StartPromptResult
	err := c.locks.WithLock(ctx, ledger.PlayerLockName(playerID), func() error {
		return c.db.Update(func(tx gamedb.Tx) error {
			player, err := tx.Player(playerID)
			if err != nil {
				return err
			}
			if err := c.requireNoActiveRound(tx, player); err != nil {
				return err
			}

			outstanding, err := OutstandingPrompts(tx, playerID)
			if err != nil {
				return err
			}
			if outstanding >= c.params.MaxOutstandingPrompts {
				return makeError(ErrMaxOutstandingPrompts, fmt.Sprintf(
					"player %s has %d outstanding prompts", playerID,
					outstanding))
			}

			prompt, err := tx.RandomEnabledPrompt()
			if err != nil {
				return makeError(ErrNoPromptsEnabled, "no enabled prompts")
			}

			roundID := wpid.New()
			if _, err := c.ledger.ApplyTx(tx, playerID, -c.params.PromptCost,
				gamedb.TxPromptEntry, roundID); err != nil {
				return err
			}

			now := c.now().UTC()
			round := &gamedb.Round{
				ID:        roundID,
				PlayerID:  playerID,
				Type:      gamedb.RoundPrompt,
				Status:    gamedb.RoundActive,
				CreatedAt: now,
				ExpiresAt: now.Add(c.params.PromptRoundDuration),
				Cost:      c.params.PromptCost,
				Prompt: &gamedb.PromptRound{
					PromptID:   prompt.ID,
					PromptText: prompt.Text,
				},
			}
			if err := tx.PutRound(round); err != nil {
				return err
			}

			prompt.UsageCount++
			if err := tx.PutPrompt(prompt); err != nil {
				return err
			}

			player, err = tx.Player(playerID)
			if err != nil {
				return err
			}
			player.ActiveRoundID = roundID
			if err := tx.PutPlayer(player); err != nil {
				return err
			}

			result = &StartPromptResult{
				RoundID:    roundID,
				PromptText: prompt.Text,
				ExpiresAt:  round.ExpiresAt,
				Cost:       round.Cost,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Player %s started prompt round %s", playerID, result.RoundID)
	return result, nil
}

// loadOwnActiveRound fetches the round, verifies ownership and type,
// and enforces the expiry grace window.
func (c *Coordinator) loadOwnActiveRound(tx gamedb.Tx, playerID, roundID wpid.ID, typ gamedb.RoundType) (*gamedb.Round, error) {
	round, err := tx.Round(roundID)
	if err != nil {
		return nil, makeError(ErrRoundNotFound,
			fmt.Sprintf("round %s not found", roundID))
	}
	if round.PlayerID != playerID || round.Type != typ {
		return nil, makeError(ErrRoundNotFound,
			fmt.Sprintf("round %s not found", roundID))
	}
	if round.Status != gamedb.RoundActive {
		return nil, makeError(ErrWrongRoundState,
			fmt.Sprintf("round %s is %s", roundID, round.Status))
	}
	if c.timedOut(round) {
		return nil, makeError(ErrRoundExpired,
			fmt.Sprintf("round %s expired", roundID))
	}
	return round, nil
}

// SubmitPrompt validates and records the player's original phrase and
// queues the prompt round for copy players.
func (c *Coordinator) SubmitPrompt(ctx context.Context, playerID, roundID wpid.ID, rawPhrase string) (string, error) {
	normalized := phrase.Normalize(rawPhrase)
	err := c.locks.WithLock(ctx, ledger.PlayerLockName(playerID), func() error {
		err := c.db.Update(func(tx gamedb.Tx) error {
			round, err := c.loadOwnActiveRound(tx, playerID, roundID,
				gamedb.RoundPrompt)
			if err != nil {
				return err
			}
			if err := c.validator.ValidatePrompt(rawPhrase,
				round.Prompt.PromptText); err != nil {
				return err
			}

			round.Status = gamedb.RoundSubmitted
			round.Prompt.SubmittedPhrase = normalized
			round.Prompt.PhrasesetStatus = gamedb.PromptsetWaitingCopies
			if err := tx.PutRound(round); err != nil {
				return err
			}

			player, err := tx.Player(playerID)
			if err != nil {
				return err
			}
			if player.ActiveRoundID == roundID {
				player.ActiveRoundID = ""
				if err := tx.PutPlayer(player); err != nil {
					return err
				}
			}

			return tx.PutActivity(&gamedb.Activity{
				ID:            wpid.New(),
				PromptRoundID: roundID,
				PlayerID:      playerID,
				Type:          gamedb.ActivityPromptCreated,
				CreatedAt:     c.now().UTC(),
			})
		})
		if err != nil {
			return err
		}
		// Enqueue after the commit so a rolled-back submission never
		// leaves a queued id, and a crashed enqueue is repaired by the
		// sweeper's queue reconciliation.
		return c.queue.Push(roundID)
	})
	if err != nil {
		return "", err
	}
	log.Infof("Player %s submitted prompt round %s", playerID, roundID)
	return normalized, nil
}

// StartCopy leases the oldest eligible prompt from the queue, debits
// the current copy cost, and opens a copy round.
func (c *Coordinator) StartCopy(ctx context.Context, playerID wpid.ID) (*StartCopyResult, error) {
	var result *StartCopyResult
	err := c.locks.WithLock(ctx, ledger.PlayerLockName(playerID), func() error {
		discount, err := c.queue.DiscountActive()
		if err != nil {
			return err
		}
		cost := c.params.CopyCostNormal
		var contribution int64
		if discount {
			cost = c.params.CopyCostDiscount
			contribution = c.params.CopyCostNormal - c.params.CopyCostDiscount
		}

		promptRound, skipped, err := c.leasePrompt(playerID)
		// Return skipped prompts to the head in reverse so their
		// relative order is preserved.
		for i := len(skipped) - 1; i >= 0; i-- {
			if qerr := c.queue.Return(skipped[i]); qerr != nil {
				log.Warnf("Failed to return prompt round %s to queue: %v",
					skipped[i], qerr)
			}
		}
		if err != nil {
			return err
		}

		err = c.db.Update(func(tx gamedb.Tx) error {
			player, err := tx.Player(playerID)
			if err != nil {
				return err
			}
			if err := c.requireNoActiveRound(tx, player); err != nil {
				return err
			}

			roundID := wpid.New()
			if _, err := c.ledger.ApplyTx(tx, playerID, -cost,
				gamedb.TxCopyEntry, roundID); err != nil {
				return err
			}

			now := c.now().UTC()
			round := &gamedb.Round{
				ID:        roundID,
				PlayerID:  playerID,
				Type:      gamedb.RoundCopy,
				Status:    gamedb.RoundActive,
				CreatedAt: now,
				ExpiresAt: now.Add(c.params.CopyRoundDuration),
				Cost:      cost,
				Copy: &gamedb.CopyRound{
					PromptRoundID:      promptRound.ID,
					OriginalPhrase:     promptRound.Prompt.SubmittedPhrase,
					SystemContribution: contribution,
				},
			}
			if err := tx.PutRound(round); err != nil {
				return err
			}

			player, err = tx.Player(playerID)
			if err != nil {
				return err
			}
			player.ActiveRoundID = roundID
			if err := tx.PutPlayer(player); err != nil {
				return err
			}

			result = &StartCopyResult{
				RoundID:        roundID,
				PromptRoundID:  promptRound.ID,
				OriginalPhrase: promptRound.Prompt.SubmittedPhrase,
				ExpiresAt:      round.ExpiresAt,
				Cost:           cost,
				DiscountActive: discount,
			}
			return nil
		})
		if err != nil {
			// The lease was consumed but the round never materialized;
			// put the prompt back for the next copy player.
			if qerr := c.queue.Return(promptRound.ID); qerr != nil {
				log.Warnf("Failed to return prompt round %s to queue: %v",
					promptRound.ID, qerr)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Player %s started copy round %s on prompt round %s",
		playerID, result.RoundID, result.PromptRoundID)
	return result, nil
}

// leasePrompt pops queued prompt rounds until one is eligible for the
// player.  Ineligible but still-live prompts are returned in skipped for
// the caller to requeue.  Queued ids can be stale (expired or already
// matched); those are dropped.
func (c *Coordinator) leasePrompt(playerID wpid.ID) (*gamedb.Round, []wpid.ID, error) {
	var skipped []wpid.ID
	cutoff := c.now().Add(-c.params.AbandonmentCooldown)
	for {
		id, ok, err := c.queue.Pop()
		if err != nil {
			return nil, skipped, err
		}
		if !ok {
			return nil, skipped, makeError(ErrNoPromptsAvailable,
				"no prompts available")
		}

		var promptRound *gamedb.Round
		err = c.db.View(func(tx gamedb.Tx) error {
			r, err := tx.Round(id)
			if err != nil {
				return err
			}
			if r.Type != gamedb.RoundPrompt ||
				r.Status != gamedb.RoundSubmitted ||
				r.Prompt.PhrasesetStatus == gamedb.PromptsetActive ||
				r.Prompt.PhrasesetStatus == gamedb.PromptsetFinalized ||
				r.Prompt.PhrasesetStatus == gamedb.PromptsetAbandoned {
				// Stale queue entry.
				return nil
			}
			if r.PlayerID == playerID {
				skipped = append(skipped, id)
				return nil
			}
			// A player contributes at most one copy per prompt.
			others, err := tx.SubmittedCopyRounds(id)
			if err != nil {
				return err
			}
			for _, other := range others {
				if other.PlayerID == playerID {
					skipped = append(skipped, id)
					return nil
				}
			}
			abandoned, err := tx.HasAbandonment(playerID, id, cutoff)
			if err != nil {
				return err
			}
			if abandoned {
				skipped = append(skipped, id)
				return nil
			}
			promptRound = r
			return nil
		})
		if err != nil {
			return nil, skipped, err
		}
		if promptRound != nil {
			return promptRound, skipped, nil
		}
	}
}

// SubmitCopy validates and records a copy phrase, then builds the
// phraseset when this was the second copy.
func (c *Coordinator) SubmitCopy(ctx context.Context, playerID, roundID wpid.ID, rawPhrase string) (string, error) {
	normalized := phrase.Normalize(rawPhrase)

	// Gather validation context without holding the player lock; the
	// embedding call must not run inside a critical section.
	var original, otherCopy, promptText string
	err := c.db.View(func(tx gamedb.Tx) error {
		round, err := c.loadOwnActiveRound(tx, playerID, roundID,
			gamedb.RoundCopy)
		if err != nil {
			return err
		}
		original = round.Copy.OriginalPhrase

		promptRound, err := tx.Round(round.Copy.PromptRoundID)
		if err != nil {
			return err
		}
		promptText = promptRound.Prompt.PromptText

		others, err := tx.SubmittedCopyRounds(round.Copy.PromptRoundID)
		if err != nil {
			return err
		}
		if len(others) > 0 {
			otherCopy = others[0].Copy.CopyPhrase
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := c.validator.ValidateCopy(ctx, rawPhrase, original, otherCopy,
		promptText); err != nil {
		return "", err
	}

	var promptRoundID wpid.ID
	var built bool
	err = c.locks.WithLock(ctx, ledger.PlayerLockName(playerID), func() error {
		return c.db.Update(func(tx gamedb.Tx) error {
			round, err := c.loadOwnActiveRound(tx, playerID, roundID,
				gamedb.RoundCopy)
			if err != nil {
				return err
			}
			promptRoundID = round.Copy.PromptRoundID

			// Another copy may have landed while validation ran outside
			// the lock; re-check exact duplicates against the committed
			// rows.
			others, err := tx.SubmittedCopyRounds(round.Copy.PromptRoundID)
			if err != nil {
				return err
			}
			for _, other := range others {
				if other.Copy.CopyPhrase == normalized {
					return phrase.Error{Err: phrase.ErrDuplicatePhrase,
						Description: "cannot submit the same phrase as " +
							"other copy"}
				}
			}

			round.Status = gamedb.RoundSubmitted
			round.Copy.CopyPhrase = normalized
			if err := tx.PutRound(round); err != nil {
				return err
			}

			player, err := tx.Player(playerID)
			if err != nil {
				return err
			}
			if player.ActiveRoundID == roundID {
				player.ActiveRoundID = ""
				if err := tx.PutPlayer(player); err != nil {
					return err
				}
			}

			err = tx.PutActivity(&gamedb.Activity{
				ID:            wpid.New(),
				PromptRoundID: round.Copy.PromptRoundID,
				PlayerID:      playerID,
				Type:          gamedb.ActivityCopySubmitted,
				CreatedAt:     c.now().UTC(),
			})
			if err != nil {
				return err
			}

			built, err = c.buildPhrasesetTx(tx, round.Copy.PromptRoundID)
			return err
		})
	})
	if err != nil {
		return "", err
	}

	// With only one copy in, the prompt goes back to the head of the
	// queue for a second copy player.
	if !built {
		if qerr := c.queue.Return(promptRoundID); qerr != nil {
			log.Warnf("Failed to return prompt round %s to queue: %v",
				promptRoundID, qerr)
		}
	}

	log.Infof("Player %s submitted copy round %s", playerID, roundID)
	return normalized, nil
}
