// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package players manages player accounts: creation with the starting
// balance and the once-per-calendar-day bonus.
package players

import (
	"context"
	"fmt"
	"time"

	"github.com/decred/slog"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/locks"
	"github.com/sheegaon/wordpool/internal/params"
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
	// ErrBonusNotAvailable indicates the player already collected
	// today's bonus.
	ErrBonusNotAvailable = ErrorKind("ErrBonusNotAvailable")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a player service error.
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

// Service manages player accounts.
type Service struct {
	db     gamedb.DB
	ledger *ledger.Ledger
	locks  *locks.Manager
	params *params.Params

	now func() time.Time
}

// Config bundles the player service's collaborators.
type Config struct {
	DB     gamedb.DB
	Ledger *ledger.Ledger
	Locks  *locks.Manager
	Params *params.Params
}

// New returns a player service.
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

// civilDate formats a moment as the UTC calendar date used by the
// daily-bonus gate.
func civilDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Create registers a new player with the starting balance.  The
// starting balance is the journal's baseline, not a journal entry.
func (s *Service) Create(ctx context.Context) (*gamedb.Player, error) {
	player := &gamedb.Player{
		ID:            wpid.New(),
		Balance:       s.params.StartingBalance,
		CreatedAt:     s.now().UTC(),
		LastLoginDate: civilDate(s.now()),
	}
	err := s.db.Update(func(tx gamedb.Tx) error {
		return tx.PutPlayer(player)
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Created player %s with balance %d", player.ID, player.Balance)
	return player, nil
}

// Get returns the player row.
func (s *Service) Get(playerID wpid.ID) (*gamedb.Player, error) {
	var player *gamedb.Player
	err := s.db.View(func(tx gamedb.Tx) error {
		var err error
		player, err = tx.Player(playerID)
		return err
	})
	return player, err
}

// BonusResult is the outcome of a daily bonus claim.
type BonusResult struct {
	Amount     int64
	NewBalance int64
}

// ClaimDailyBonus credits the daily bonus once per UTC calendar day.
func (s *Service) ClaimDailyBonus(ctx context.Context, playerID wpid.ID) (*BonusResult, error) {
	var result *BonusResult
	err := s.locks.WithLock(ctx, ledger.PlayerLockName(playerID), func() error {
		return s.db.Update(func(tx gamedb.Tx) error {
			player, err := tx.Player(playerID)
			if err != nil {
				return err
			}

			today := civilDate(s.now())
			if player.LastLoginDate == today {
				return makeError(ErrBonusNotAvailable, fmt.Sprintf("bonus "+
					"already collected on %s", today))
			}

			entry, err := s.ledger.ApplyTx(tx, playerID,
				s.params.DailyBonus, gamedb.TxDailyBonus, "")
			if err != nil {
				return err
			}

			err = tx.PutDailyBonus(&gamedb.DailyBonus{
				ID:        wpid.New(),
				PlayerID:  playerID,
				Amount:    s.params.DailyBonus,
				Day:       today,
				CreatedAt: s.now().UTC(),
			})
			if err != nil {
				return err
			}

			// Re-read: ApplyTx rewrote the player row.
			player, err = tx.Player(playerID)
			if err != nil {
				return err
			}
			player.LastLoginDate = today
			if err := tx.PutPlayer(player); err != nil {
				return err
			}

			result = &BonusResult{
				Amount:     s.params.DailyBonus,
				NewBalance: entry.BalanceAfter,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Player %s collected daily bonus %d", playerID, result.Amount)
	return result, nil
}
