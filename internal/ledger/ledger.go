// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledger maintains player balances and the append-only
// transaction journal.  Every balance mutation writes a journal entry in
// the same storage transaction, so the journal alone can reconstruct any
// balance.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/decred/slog"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/locks"
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
	// ErrInsufficientBalance indicates a debit would take the player
	// balance below zero.
	ErrInsufficientBalance = ErrorKind("ErrInsufficientBalance")

	// ErrInconsistent indicates the journal does not reproduce the
	// stored balance.
	ErrInconsistent = ErrorKind("ErrInconsistent")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a ledger error.
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

// PlayerLockName returns the advisory lock name serializing mutations
// for the given player.
func PlayerLockName(playerID wpid.ID) string {
	return "player:" + string(playerID)
}

// Ledger applies balance mutations.  Mutations for a single player are
// serialized by an advisory lock; callers already inside that lock use
// the *Locked variants.
type Ledger struct {
	db    gamedb.DB
	locks *locks.Manager
	now   func() time.Time
}

// New returns a ledger over the given database and lock manager.
func New(db gamedb.DB, lockMgr *locks.Manager) *Ledger {
	return &Ledger{db: db, locks: lockMgr, now: time.Now}
}

// ApplyTx mutates the player balance and appends the journal entry
// inside the caller's storage transaction.  The caller must hold the
// player's advisory lock.
func (l *Ledger) ApplyTx(tx gamedb.Tx, playerID wpid.ID, amount int64, kind gamedb.TxKind, referenceID wpid.ID) (*gamedb.Transaction, error) {
	player, err := tx.Player(playerID)
	if err != nil {
		return nil, err
	}

	newBalance := player.Balance + amount
	if newBalance < 0 {
		return nil, makeError(ErrInsufficientBalance,
			fmt.Sprintf("balance %d cannot cover %d", player.Balance, -amount))
	}

	player.Balance = newBalance
	if err := tx.PutPlayer(player); err != nil {
		return nil, err
	}

	entry := &gamedb.Transaction{
		ID:           wpid.New(),
		PlayerID:     playerID,
		Amount:       amount,
		Kind:         kind,
		ReferenceID:  referenceID,
		BalanceAfter: newBalance,
		CreatedAt:    l.now().UTC(),
	}
	if err := tx.AppendTransaction(entry); err != nil {
		return nil, err
	}

	log.Debugf("Applied %s %+d to player %s (balance %d)", kind, amount,
		playerID, newBalance)
	return entry, nil
}

// Apply acquires the player's advisory lock and applies the mutation in
// its own storage transaction.
func (l *Ledger) Apply(ctx context.Context, playerID wpid.ID, amount int64, kind gamedb.TxKind, referenceID wpid.ID) (*gamedb.Transaction, error) {
	var entry *gamedb.Transaction
	err := l.locks.WithLock(ctx, PlayerLockName(playerID), func() error {
		return l.db.Update(func(tx gamedb.Tx) error {
			var err error
			entry, err = l.ApplyTx(tx, playerID, amount, kind, referenceID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Balance returns the player's current balance.
func (l *Ledger) Balance(playerID wpid.ID) (int64, error) {
	var balance int64
	err := l.db.View(func(tx gamedb.Tx) error {
		player, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		balance = player.Balance
		return nil
	})
	return balance, err
}

// History returns the player's journal entries, newest first.
func (l *Ledger) History(playerID wpid.ID, limit, offset int) ([]*gamedb.Transaction, error) {
	var entries []*gamedb.Transaction
	err := l.db.View(func(tx gamedb.Tx) error {
		var err error
		entries, err = tx.TransactionsByPlayer(playerID, limit, offset)
		return err
	})
	return entries, err
}

// Audit reconstructs the player balance from the journal and the
// starting balance, and fails with ErrInconsistent when the stored
// balance disagrees.  It also verifies every entry's balance_after
// snapshot against the running sum.
func (l *Ledger) Audit(playerID wpid.ID, startingBalance int64) error {
	return l.db.View(func(tx gamedb.Tx) error {
		player, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		entries, err := tx.TransactionsByPlayer(playerID, 0, 0)
		if err != nil {
			return err
		}

		// Journal is served newest first; replay oldest first.
		running := startingBalance
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			running += e.Amount
			if e.BalanceAfter != running {
				return makeError(ErrInconsistent, fmt.Sprintf("transaction "+
					"%s snapshots balance %d but replay gives %d", e.ID,
					e.BalanceAfter, running))
			}
		}
		if running != player.Balance {
			return makeError(ErrInconsistent, fmt.Sprintf("journal replays "+
				"to %d but player %s holds %d", running, playerID,
				player.Balance))
		}
		return nil
	})
}
