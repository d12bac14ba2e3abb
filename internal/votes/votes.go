// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package votes runs the voting pool: eligibility filtering, priority
// selection, vote rounds, and phraseset finalization.
package votes

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/decred/slog"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/locks"
	"github.com/sheegaon/wordpool/internal/params"
	"github.com/sheegaon/wordpool/internal/phrase"
	"github.com/sheegaon/wordpool/internal/wpid"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// Service runs voting.
type Service struct {
	db     gamedb.DB
	ledger *ledger.Ledger
	locks  *locks.Manager
	params *params.Params

	now func() time.Time
}

// Config bundles the vote service's collaborators.
type Config struct {
	DB     gamedb.DB
	Ledger *ledger.Ledger
	Locks  *locks.Manager
	Params *params.Params
}

// New returns a vote service.
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

// PhrasesetLockName returns the advisory lock name serializing vote
// submission and finalization for a phraseset.
func PhrasesetLockName(phrasesetID wpid.ID) string {
	return "phraseset:" + string(phrasesetID)
}

// Contributors returns the three player ids behind a phraseset.
func Contributors(tx gamedb.Tx, ps *gamedb.Phraseset) (prompt, copy1, copy2 wpid.ID, err error) {
	promptRound, err := tx.Round(ps.PromptRoundID)
	if err != nil {
		return "", "", "", err
	}
	copyRound1, err := tx.Round(ps.CopyRound1ID)
	if err != nil {
		return "", "", "", err
	}
	copyRound2, err := tx.Round(ps.CopyRound2ID)
	if err != nil {
		return "", "", "", err
	}
	return promptRound.PlayerID, copyRound1.PlayerID, copyRound2.PlayerID, nil
}

// eligibleTx returns the phrasesets the player may vote on: open or
// closing, no contribution by the player, and no prior vote.
func (s *Service) eligibleTx(tx gamedb.Tx, playerID wpid.ID) ([]*gamedb.Phraseset, error) {
	candidates, err := tx.PhrasesetsByStatus(gamedb.PhrasesetOpen,
		gamedb.PhrasesetClosing)
	if err != nil {
		return nil, err
	}

	var eligible []*gamedb.Phraseset
	for _, ps := range candidates {
		prompt, copy1, copy2, err := Contributors(tx, ps)
		if err != nil {
			return nil, err
		}
		if playerID == prompt || playerID == copy1 || playerID == copy2 {
			continue
		}
		if _, err := tx.VoteByPlayer(ps.ID, playerID); err == nil {
			continue
		}
		eligible = append(eligible, ps)
	}
	return eligible, nil
}

// EligibleCount returns how many phrasesets the player could vote on.
func (s *Service) EligibleCount(playerID wpid.ID) (int, error) {
	var n int
	err := s.db.View(func(tx gamedb.Tx) error {
		eligible, err := s.eligibleTx(tx, playerID)
		if err != nil {
			return err
		}
		n = len(eligible)
		return nil
	})
	return n, err
}

// selectPhraseset picks from the eligible set: phrasesets already
// closing drain first (oldest fifth vote), then those on the third-vote
// clock (oldest third vote), then a uniform random young phraseset.
func selectPhraseset(eligible []*gamedb.Phraseset) *gamedb.Phraseset {
	var closing, aging, young []*gamedb.Phraseset
	for _, ps := range eligible {
		switch {
		case ps.VoteCount >= 5:
			closing = append(closing, ps)
		case ps.VoteCount >= 3:
			aging = append(aging, ps)
		default:
			young = append(young, ps)
		}
	}

	oldest := func(sets []*gamedb.Phraseset, at func(*gamedb.Phraseset) time.Time) *gamedb.Phraseset {
		best := sets[0]
		for _, ps := range sets[1:] {
			if at(ps).Before(at(best)) {
				best = ps
			}
		}
		return best
	}

	switch {
	case len(closing) > 0:
		return oldest(closing, func(ps *gamedb.Phraseset) time.Time {
			return ps.FifthVoteAt
		})
	case len(aging) > 0:
		return oldest(aging, func(ps *gamedb.Phraseset) time.Time {
			return ps.ThirdVoteAt
		})
	case len(young) > 0:
		return young[rand.Intn(len(young))]
	}
	return nil
}

// StartVoteResult is the successful outcome of StartVote.  Phrases are
// shuffled so the client cannot infer which is the original.
type StartVoteResult struct {
	RoundID     wpid.ID
	PhrasesetID wpid.ID
	PromptText  string
	Phrases     [3]string
	ExpiresAt   time.Time
	Cost        int64
}

// StartVote debits the vote fee and opens a vote round on the highest
// priority eligible phraseset.
func (s *Service) StartVote(ctx context.Context, playerID wpid.ID) (*StartVoteResult, error) {
	var result *StartVoteResult
	err := s.locks.WithLock(ctx, ledger.PlayerLockName(playerID), func() error {
		return s.db.Update(func(tx gamedb.Tx) error {
			player, err := tx.Player(playerID)
			if err != nil {
				return err
			}
			if err := s.requireNoActiveRound(tx, player); err != nil {
				return err
			}

			eligible, err := s.eligibleTx(tx, playerID)
			if err != nil {
				return err
			}
			ps := selectPhraseset(eligible)
			if ps == nil {
				return makeError(ErrNoPhrasesetsAvailable,
					"no phrasesets available")
			}

			roundID := wpid.New()
			if _, err := s.ledger.ApplyTx(tx, playerID, -s.params.VoteCost,
				gamedb.TxVoteEntry, roundID); err != nil {
				return err
			}

			now := s.now().UTC()
			round := &gamedb.Round{
				ID:        roundID,
				PlayerID:  playerID,
				Type:      gamedb.RoundVote,
				Status:    gamedb.RoundActive,
				CreatedAt: now,
				ExpiresAt: now.Add(s.params.VoteRoundDuration),
				Cost:      s.params.VoteCost,
				Vote: &gamedb.VoteRound{
					PhrasesetID: ps.ID,
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

			phrases := [3]string{ps.OriginalPhrase, ps.CopyPhrase1,
				ps.CopyPhrase2}
			rand.Shuffle(len(phrases), func(i, j int) {
				phrases[i], phrases[j] = phrases[j], phrases[i]
			})

			result = &StartVoteResult{
				RoundID:     roundID,
				PhrasesetID: ps.ID,
				PromptText:  ps.PromptText,
				Phrases:     phrases,
				ExpiresAt:   round.ExpiresAt,
				Cost:        round.Cost,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Player %s started vote round %s on phraseset %s", playerID,
		result.RoundID, result.PhrasesetID)
	return result, nil
}

func (s *Service) requireNoActiveRound(tx gamedb.Tx, player *gamedb.Player) error {
	if player.ActiveRoundID == "" {
		return nil
	}
	r, err := tx.Round(player.ActiveRoundID)
	if err != nil {
		return err
	}
	if r.Status == gamedb.RoundActive &&
		!s.now().After(r.ExpiresAt.Add(s.params.GracePeriod)) {
		return makeError(ErrAlreadyInRound, fmt.Sprintf("player %s already "+
			"has active round %s", player.ID, r.ID))
	}
	return nil
}

// SubmitVoteResult is the successful outcome of SubmitVote.
type SubmitVoteResult struct {
	Correct        bool
	Payout         int64
	OriginalPhrase string
	YourChoice     string
	NewBalance     int64
}

// SubmitVote records the player's choice on the phraseset they hold a
// vote round for, credits correct voters, advances the phraseset vote
// timeline, and finalizes when a closing condition is met.
func (s *Service) SubmitVote(ctx context.Context, playerID, phrasesetID wpid.ID, rawPhrase string) (*SubmitVoteResult, error) {
	choice := phrase.Normalize(rawPhrase)
	var result *SubmitVoteResult

	err := s.locks.WithLock(ctx, ledger.PlayerLockName(playerID), func() error {
		return s.locks.WithLock(ctx, PhrasesetLockName(phrasesetID), func() error {
			return s.db.Update(func(tx gamedb.Tx) error {
				round, err := s.findVoteRound(tx, playerID, phrasesetID)
				if err != nil {
					return err
				}
				if s.now().After(round.ExpiresAt.Add(s.params.GracePeriod)) {
					return makeError(ErrRoundExpired,
						fmt.Sprintf("vote round %s expired", round.ID))
				}

				if _, err := tx.VoteByPlayer(phrasesetID, playerID); err == nil {
					return makeError(ErrAlreadyVoted, fmt.Sprintf("player %s "+
						"already voted on phraseset %s", playerID, phrasesetID))
				}

				ps, err := tx.Phraseset(phrasesetID)
				if err != nil {
					return err
				}
				if choice != ps.OriginalPhrase && choice != ps.CopyPhrase1 &&
					choice != ps.CopyPhrase2 {
					return makeError(ErrInvalidChoice, fmt.Sprintf("%q is not "+
						"one of the phrases", choice))
				}

				now := s.now().UTC()
				correct := choice == ps.OriginalPhrase
				var payout int64
				if correct {
					payout = s.params.VotePayoutCorrect
				}

				vote := &gamedb.Vote{
					ID:          wpid.New(),
					PhrasesetID: phrasesetID,
					PlayerID:    playerID,
					VotedPhrase: choice,
					Correct:     correct,
					Payout:      payout,
					CreatedAt:   now,
				}
				if err := tx.PutVote(vote); err != nil {
					return err
				}

				var newBalance int64
				if correct {
					entry, err := s.ledger.ApplyTx(tx, playerID, payout,
						gamedb.TxVotePayout, phrasesetID)
					if err != nil {
						return err
					}
					newBalance = entry.BalanceAfter
				} else {
					player, err := tx.Player(playerID)
					if err != nil {
						return err
					}
					newBalance = player.Balance
				}

				round.Status = gamedb.RoundSubmitted
				round.Vote.SubmittedAt = now
				if err := tx.PutRound(round); err != nil {
					return err
				}

				player, err := tx.Player(playerID)
				if err != nil {
					return err
				}
				if player.ActiveRoundID == round.ID {
					player.ActiveRoundID = ""
					if err := tx.PutPlayer(player); err != nil {
						return err
					}
				}

				ps.VoteCount++
				switch ps.VoteCount {
				case 3:
					ps.ThirdVoteAt = now
				case 5:
					ps.FifthVoteAt = now
					ps.Status = gamedb.PhrasesetClosing
					ps.ClosesAt = now.Add(s.params.FifthVoteCloseAfter)
				}
				if err := tx.PutPhraseset(ps); err != nil {
					return err
				}

				err = tx.PutActivity(&gamedb.Activity{
					ID:            wpid.New(),
					PhrasesetID:   phrasesetID,
					PromptRoundID: ps.PromptRoundID,
					PlayerID:      playerID,
					Type:          gamedb.ActivityVoteCast,
					Payload: map[string]string{
						"correct": fmt.Sprintf("%t", correct),
					},
					CreatedAt: now,
				})
				if err != nil {
					return err
				}

				if s.dueForFinalization(ps, now) {
					if err := s.finalizeTx(tx, ps, now); err != nil {
						return err
					}
				}

				result = &SubmitVoteResult{
					Correct:        correct,
					Payout:         payout,
					OriginalPhrase: ps.OriginalPhrase,
					YourChoice:     choice,
					NewBalance:     newBalance,
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Player %s voted on phraseset %s (correct=%t)", playerID,
		phrasesetID, result.Correct)
	return result, nil
}

// findVoteRound locates the player's active vote round for the
// phraseset.
func (s *Service) findVoteRound(tx gamedb.Tx, playerID, phrasesetID wpid.ID) (*gamedb.Round, error) {
	player, err := tx.Player(playerID)
	if err != nil {
		return nil, err
	}
	if player.ActiveRoundID == "" {
		return nil, makeError(ErrRoundNotFound,
			"no active vote round")
	}
	round, err := tx.Round(player.ActiveRoundID)
	if err != nil {
		return nil, err
	}
	if round.Type != gamedb.RoundVote || round.Status != gamedb.RoundActive ||
		round.Vote.PhrasesetID != phrasesetID {
		return nil, makeError(ErrRoundNotFound,
			fmt.Sprintf("no active vote round on phraseset %s", phrasesetID))
	}
	return round, nil
}
