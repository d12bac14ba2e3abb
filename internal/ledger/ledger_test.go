// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/locks"
	"github.com/sheegaon/wordpool/internal/wpid"
)

func newTestLedger(t *testing.T) (*Ledger, gamedb.DB) {
	t.Helper()
	db := gamedb.NewMemDB()
	t.Cleanup(func() { db.Close() })
	return New(db, locks.NewManager(time.Second)), db
}

func seedPlayer(t *testing.T, db gamedb.DB, balance int64) wpid.ID {
	t.Helper()
	id := wpid.New()
	err := db.Update(func(tx gamedb.Tx) error {
		return tx.PutPlayer(&gamedb.Player{
			ID:        id,
			Balance:   balance,
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatalf("seed player: %v", err)
	}
	return id
}

func TestApplyDebitCredit(t *testing.T) {
	l, db := newTestLedger(t)
	playerID := seedPlayer(t, db, 1000)
	ctx := context.Background()

	entry, err := l.Apply(ctx, playerID, -100, gamedb.TxPromptEntry, wpid.New())
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if entry.BalanceAfter != 900 {
		t.Errorf("balance after debit: got %d, want 900", entry.BalanceAfter)
	}

	entry, err = l.Apply(ctx, playerID, 5, gamedb.TxVotePayout, wpid.New())
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if entry.BalanceAfter != 905 {
		t.Errorf("balance after credit: got %d, want 905", entry.BalanceAfter)
	}

	balance, err := l.Balance(playerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 905 {
		t.Errorf("stored balance: got %d, want 905", balance)
	}
}

func TestApplyInsufficientBalance(t *testing.T) {
	l, db := newTestLedger(t)
	playerID := seedPlayer(t, db, 50)

	_, err := l.Apply(context.Background(), playerID, -100,
		gamedb.TxPromptEntry, wpid.New())
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientBalance", err)
	}

	// A rejected debit must leave no trace in the journal or balance.
	balance, err := l.Balance(playerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 50 {
		t.Errorf("balance after rejected debit: got %d, want 50", balance)
	}
	history, err := l.History(playerID, 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("journal after rejected debit: got %d entries, want 0",
			len(history))
	}
}

func TestApplyTxPartOfLargerTransaction(t *testing.T) {
	l, db := newTestLedger(t)
	playerID := seedPlayer(t, db, 1000)
	boom := errors.New("later step failed")

	// A later failure in the same storage transaction must roll back the
	// ledger mutation too.
	err := db.Update(func(tx gamedb.Tx) error {
		if _, err := l.ApplyTx(tx, playerID, -100, gamedb.TxCopyEntry, wpid.New()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("update: got %v, want %v", err, boom)
	}

	balance, err := l.Balance(playerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1000 {
		t.Errorf("balance after rollback: got %d, want 1000", balance)
	}
}

func TestDebitRefundIdentity(t *testing.T) {
	l, db := newTestLedger(t)
	playerID := seedPlayer(t, db, 1000)
	ctx := context.Background()
	refID := wpid.New()

	if _, err := l.Apply(ctx, playerID, -90, gamedb.TxCopyEntry, refID); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if _, err := l.Apply(ctx, playerID, 90, gamedb.TxRefund, refID); err != nil {
		t.Fatalf("refund: %v", err)
	}

	balance, err := l.Balance(playerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1000 {
		t.Errorf("balance after debit+refund: got %d, want 1000", balance)
	}

	// Identity holds over balance but not over the journal.
	history, err := l.History(playerID, 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("journal: got %d entries, want 2", len(history))
	}
}

func TestConcurrentAppliesSerialize(t *testing.T) {
	l, db := newTestLedger(t)
	playerID := seedPlayer(t, db, 1000)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Apply(ctx, playerID, -10, gamedb.TxVoteEntry, wpid.New()); err != nil {
				t.Errorf("apply: %v", err)
			}
		}()
	}
	wg.Wait()

	balance, err := l.Balance(playerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1000-10*workers {
		t.Errorf("balance: got %d, want %d", balance, 1000-10*workers)
	}
	if err := l.Audit(playerID, 1000); err != nil {
		t.Fatalf("audit: %v", err)
	}
}

func TestAuditDetectsTampering(t *testing.T) {
	l, db := newTestLedger(t)
	playerID := seedPlayer(t, db, 1000)

	if _, err := l.Apply(context.Background(), playerID, -100,
		gamedb.TxPromptEntry, wpid.New()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := l.Audit(playerID, 1000); err != nil {
		t.Fatalf("clean audit: %v", err)
	}

	// Mutate the balance without a journal entry.
	err := db.Update(func(tx gamedb.Tx) error {
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		p.Balance += 7
		return tx.PutPlayer(p)
	})
	if err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if err := l.Audit(playerID, 1000); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("audit after tamper: got %v, want ErrInconsistent", err)
	}
}
