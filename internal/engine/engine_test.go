// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/phrase"
	"github.com/sheegaon/wordpool/internal/players"
	"github.com/sheegaon/wordpool/internal/results"
	"github.com/sheegaon/wordpool/internal/rounds"
	"github.com/sheegaon/wordpool/internal/votes"
	"github.com/sheegaon/wordpool/internal/wpid"
)

// orthoEmbedder assigns every distinct text its own axis, so different
// phrases always embed orthogonally and identical phrases identically.
type orthoEmbedder struct {
	mtx  sync.Mutex
	dims map[string]int
}

func (e *orthoEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.dims == nil {
		e.dims = make(map[string]int)
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		key := strings.ToLower(strings.TrimSpace(text))
		dim, ok := e.dims[key]
		if !ok {
			dim = len(e.dims)
			e.dims[key] = dim
		}
		vec := make([]float64, 128)
		vec[dim%128] = 1
		out[i] = vec
	}
	return out, nil
}

// fakeClock is a manually advanced clock shared by every engine
// service.
type fakeClock struct {
	mtx sync.Mutex
	t   time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	c.t = c.t.Add(d)
	c.mtx.Unlock()
}

type testEngine struct {
	*Engine
	clock *fakeClock
	ctx   context.Context
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	db := gamedb.NewMemDB()
	t.Cleanup(func() { db.Close() })

	dict, err := phrase.LoadDictionary("")
	if err != nil {
		t.Fatalf("load dictionary: %v", err)
	}
	validator := phrase.NewValidator(phrase.DefaultConfig(), dict,
		&orthoEmbedder{})

	e := New(&Config{DB: db, Validator: validator})
	clock := newFakeClock()
	e.SetClock(clock.Now)

	if _, err := e.AddPrompt("one word for hope", "feelings"); err != nil {
		t.Fatalf("add prompt: %v", err)
	}
	return &testEngine{Engine: e, clock: clock, ctx: context.Background()}
}

func (te *testEngine) newPlayer(t *testing.T) wpid.ID {
	t.Helper()
	p, err := te.CreatePlayer(te.ctx)
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	return p.ID
}

func (te *testEngine) balance(t *testing.T, playerID wpid.ID) int64 {
	t.Helper()
	p, err := te.GetPlayer(playerID)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	return p.Balance
}

func (te *testEngine) submitPrompt(t *testing.T, playerID wpid.ID, phrase string) wpid.ID {
	t.Helper()
	start, err := te.StartPromptRound(te.ctx, playerID)
	if err != nil {
		t.Fatalf("start prompt: %v", err)
	}
	if _, err := te.SubmitPromptPhrase(te.ctx, playerID, start.RoundID, phrase); err != nil {
		t.Fatalf("submit prompt %q: %v", phrase, err)
	}
	return start.RoundID
}

func (te *testEngine) submitCopy(t *testing.T, playerID wpid.ID, phrase string) *rounds.StartCopyResult {
	t.Helper()
	start, err := te.StartCopyRound(te.ctx, playerID)
	if err != nil {
		t.Fatalf("start copy: %v", err)
	}
	if _, err := te.SubmitCopyPhrase(te.ctx, playerID, start.RoundID, phrase); err != nil {
		t.Fatalf("submit copy %q: %v", phrase, err)
	}
	return start
}

func (te *testEngine) vote(t *testing.T, playerID wpid.ID, phrase string) *votes.SubmitVoteResult {
	t.Helper()
	start, err := te.StartVoteRound(te.ctx, playerID)
	if err != nil {
		t.Fatalf("start vote: %v", err)
	}
	result, err := te.SubmitVote(te.ctx, playerID, start.PhrasesetID, phrase)
	if err != nil {
		t.Fatalf("submit vote %q: %v", phrase, err)
	}
	return result
}

// TestHappyPath walks a full phraseset from prompt to claimed prize:
// one prompt, two copies, five votes, fifth-vote close, proportional
// payouts, and an idempotent claim.
func TestHappyPath(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)
	b := te.newPlayer(t)
	c := te.newPlayer(t)
	v := te.newPlayer(t)

	promptRoundID := te.submitPrompt(t, a, "freedom")
	if got := te.balance(t, a); got != 900 {
		t.Fatalf("prompt player balance: got %d, want 900", got)
	}

	copyB := te.submitCopy(t, b, "liberty")
	if copyB.Cost != 100 || copyB.DiscountActive {
		t.Fatalf("first copy: cost %d discount %t, want 100 false",
			copyB.Cost, copyB.DiscountActive)
	}
	if copyB.PromptRoundID != promptRoundID {
		t.Fatalf("copy leased wrong prompt round")
	}
	if copyB.OriginalPhrase != "FREEDOM" {
		t.Fatalf("copy original: got %q, want FREEDOM", copyB.OriginalPhrase)
	}
	te.submitCopy(t, c, "justice")
	if got := te.balance(t, b); got != 900 {
		t.Fatalf("copy player balance: got %d, want 900", got)
	}

	// First voter sees all three phrases shuffled.
	start, err := te.StartVoteRound(te.ctx, v)
	if err != nil {
		t.Fatalf("start vote: %v", err)
	}
	if got := te.balance(t, v); got != 999 {
		t.Fatalf("voter balance after entry: got %d, want 999", got)
	}
	seen := map[string]bool{}
	for _, p := range start.Phrases {
		seen[p] = true
	}
	for _, want := range []string{"FREEDOM", "LIBERTY", "JUSTICE"} {
		if !seen[want] {
			t.Fatalf("shuffled phrases missing %s: %v", want, start.Phrases)
		}
	}

	voteResult, err := te.SubmitVote(te.ctx, v, start.PhrasesetID, "freedom")
	if err != nil {
		t.Fatalf("submit vote: %v", err)
	}
	if !voteResult.Correct || voteResult.Payout != 5 {
		t.Fatalf("correct vote: got correct=%t payout=%d",
			voteResult.Correct, voteResult.Payout)
	}
	if voteResult.NewBalance != 1004 {
		t.Fatalf("voter balance after payout: got %d, want 1004",
			voteResult.NewBalance)
	}

	// Four more votes: two correct, one per copy.
	for _, choice := range []string{"freedom", "freedom", "liberty", "justice"} {
		te.vote(t, te.newPlayer(t), choice)
	}

	// Fifth vote marked the phraseset closing; 60s later it closes.
	te.clock.Advance(61 * time.Second)
	te.Sweep(te.ctx)

	// Points A=3, B=2, C=2 over pool 300-15=285.
	if got := te.balance(t, a); got != 900+122 {
		t.Fatalf("prompt payout: balance got %d, want 1022", got)
	}
	if got := te.balance(t, b); got != 900+81 {
		t.Fatalf("copy1 payout: balance got %d, want 981", got)
	}
	if got := te.balance(t, c); got != 900+81 {
		t.Fatalf("copy2 payout: balance got %d, want 981", got)
	}

	bundle, err := te.GetPhrasesetResults(a, start.PhrasesetID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if bundle.YourPayout != 122 || bundle.YourRole != results.RolePrompt {
		t.Fatalf("bundle: payout %d role %s", bundle.YourPayout, bundle.YourRole)
	}
	if bundle.Scoring.Remainder() != 1 {
		t.Fatalf("remainder: got %d, want 1", bundle.Scoring.Remainder())
	}

	// Claim is idempotent: second call returns the same amount with no
	// new transaction or balance change.
	claim, err := te.ClaimPhrasesetPrize(te.ctx, a, start.PhrasesetID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.Amount != 122 || claim.AlreadyClaimed || claim.NewBalance != 1022 {
		t.Fatalf("first claim: %+v", claim)
	}
	claim, err = te.ClaimPhrasesetPrize(te.ctx, a, start.PhrasesetID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claim.Amount != 122 || !claim.AlreadyClaimed || claim.NewBalance != 1022 {
		t.Fatalf("second claim: %+v", claim)
	}

	// Every balance must replay from the journal.
	for _, id := range []wpid.ID{a, b, c, v} {
		if err := te.AuditPlayer(id); err != nil {
			t.Fatalf("audit %s: %v", id, err)
		}
	}
}

// TestDiscountTrigger verifies the copy discount: with more than ten
// prompts waiting the next copy costs 90, carries a 10 system
// contribution, and grows the eventual pool.
func TestDiscountTrigger(t *testing.T) {
	te := newTestEngine(t)

	phrases := []string{"freedom", "justice", "wisdom", "courage", "mercy",
		"sorrow", "wonder", "silence", "thunder", "twilight", "harbor"}
	for _, p := range phrases {
		te.submitPrompt(t, te.newPlayer(t), p)
	}

	av, err := te.GetRoundAvailability(te.newPlayer(t))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if av.PromptsWaiting != 11 || !av.CopyDiscountActive || av.CopyCost != 90 {
		t.Fatalf("availability: %+v", av)
	}

	copier := te.newPlayer(t)
	start, err := te.StartCopyRound(te.ctx, copier)
	if err != nil {
		t.Fatalf("start copy: %v", err)
	}
	if start.Cost != 90 || !start.DiscountActive {
		t.Fatalf("discounted copy: cost %d discount %t", start.Cost,
			start.DiscountActive)
	}
	if got := te.balance(t, copier); got != 910 {
		t.Fatalf("copier balance: got %d, want 910", got)
	}
	if _, err := te.SubmitCopyPhrase(te.ctx, copier, start.RoundID, "liberty"); err != nil {
		t.Fatalf("submit copy: %v", err)
	}

	// The prompt went back to the queue head for its second copy, so
	// the queue is at eleven again and the discount still holds.
	second := te.newPlayer(t)
	start2, err := te.StartCopyRound(te.ctx, second)
	if err != nil {
		t.Fatalf("start second copy: %v", err)
	}
	if start2.Cost != 90 || !start2.DiscountActive {
		t.Fatalf("second copy: cost %d discount %t", start2.Cost,
			start2.DiscountActive)
	}
	if start2.PromptRoundID != start.PromptRoundID {
		t.Fatalf("second copy drew a different prompt round")
	}
	if _, err := te.SubmitCopyPhrase(te.ctx, second, start2.RoundID, "velvet"); err != nil {
		t.Fatalf("submit second copy: %v", err)
	}

	err = te.db.View(func(tx gamedb.Tx) error {
		ps, err := tx.PhrasesetByPromptRound(start.PromptRoundID)
		if err != nil {
			return err
		}
		if ps.TotalPool != 320 || ps.SystemContribution != 20 {
			t.Errorf("pool: got %d (contribution %d), want 320 (20)",
				ps.TotalPool, ps.SystemContribution)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect phraseset: %v", err)
	}
}

// TestPromptTimeoutRefund verifies the lazy expiry path: reading the
// current round past the grace window expires it and refunds 90%.
func TestPromptTimeoutRefund(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)

	start, err := te.StartPromptRound(te.ctx, a)
	if err != nil {
		t.Fatalf("start prompt: %v", err)
	}
	te.clock.Advance(186 * time.Second)

	round, err := te.GetCurrentRound(te.ctx, a)
	if err != nil {
		t.Fatalf("current round: %v", err)
	}
	if round != nil {
		t.Fatalf("current round after expiry: got %v, want nil", round.ID)
	}

	if got := te.balance(t, a); got != 990 {
		t.Fatalf("balance after refund: got %d, want 990", got)
	}
	history, err := te.GetTransactionHistory(a, 1, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Kind != gamedb.TxRefund ||
		history[0].Amount != 90 {
		t.Fatalf("refund entry: %+v", history)
	}

	err = te.db.View(func(tx gamedb.Tx) error {
		r, err := tx.Round(start.RoundID)
		if err != nil {
			return err
		}
		if r.Status != gamedb.RoundExpired {
			t.Errorf("round status: got %s, want expired", r.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect round: %v", err)
	}
	if err := te.AuditPlayer(a); err != nil {
		t.Fatalf("audit: %v", err)
	}
}

// TestAbandonedCopyUnwind verifies the copy timeout: refund, prompt
// back in the queue, and a 24h block on re-drawing the same prompt.
func TestAbandonedCopyUnwind(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)
	b := te.newPlayer(t)

	te.submitPrompt(t, a, "freedom")

	if _, err := te.StartCopyRound(te.ctx, b); err != nil {
		t.Fatalf("start copy: %v", err)
	}
	te.clock.Advance(186 * time.Second)
	te.Sweep(te.ctx)

	if got := te.balance(t, b); got != 990 {
		t.Fatalf("balance after abandonment refund: got %d, want 990", got)
	}

	// A's prompt is the only one available and B just abandoned it.
	_, err := te.StartCopyRound(te.ctx, b)
	if !errors.Is(err, rounds.ErrNoPromptsAvailable) {
		t.Fatalf("re-draw after abandonment: got %v, want "+
			"ErrNoPromptsAvailable", err)
	}

	// Another player can still draw it.
	c := te.newPlayer(t)
	start, err := te.StartCopyRound(te.ctx, c)
	if err != nil {
		t.Fatalf("other player copy: %v", err)
	}
	if _, err := te.SubmitCopyPhrase(te.ctx, c, start.RoundID, "liberty"); err != nil {
		t.Fatalf("submit copy: %v", err)
	}

	// After the cooldown B may draw it again.
	te.clock.Advance(25 * time.Hour)
	if _, err := te.StartCopyRound(te.ctx, b); err != nil {
		t.Fatalf("copy after cooldown: %v", err)
	}
}

// TestThirdVoteTimeout verifies finalization on exactly three votes
// after ten minutes of silence.
func TestThirdVoteTimeout(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)
	te.submitPrompt(t, a, "freedom")
	te.submitCopy(t, te.newPlayer(t), "liberty")
	te.submitCopy(t, te.newPlayer(t), "justice")

	for _, choice := range []string{"freedom", "freedom", "liberty"} {
		te.vote(t, te.newPlayer(t), choice)
	}

	// Not yet due.
	te.clock.Advance(599 * time.Second)
	te.Sweep(te.ctx)
	if _, err := te.GetPhrasesetResults(a, te.onlyPhraseset(t)); !errors.Is(err, results.ErrNotFinalized) {
		t.Fatalf("early results: got %v, want ErrNotFinalized", err)
	}

	te.clock.Advance(2 * time.Second)
	te.Sweep(te.ctx)

	bundle, err := te.GetPhrasesetResults(a, te.onlyPhraseset(t))
	if err != nil {
		t.Fatalf("results after timeout: %v", err)
	}
	// Points A=2, copy1=2 over pool 300-10=290: 145 each.
	if bundle.YourPayout != 145 {
		t.Fatalf("payout: got %d, want 145", bundle.YourPayout)
	}
	if len(bundle.Votes) != 3 {
		t.Fatalf("votes scored: got %d, want 3", len(bundle.Votes))
	}
}

// onlyPhraseset returns the id of the single phraseset in the store.
func (te *testEngine) onlyPhraseset(t *testing.T) wpid.ID {
	t.Helper()
	var id wpid.ID
	err := te.db.View(func(tx gamedb.Tx) error {
		all, err := tx.PhrasesetsByStatus(gamedb.PhrasesetOpen,
			gamedb.PhrasesetClosing, gamedb.PhrasesetClosed,
			gamedb.PhrasesetFinalized)
		if err != nil {
			return err
		}
		if len(all) != 1 {
			t.Fatalf("phraseset count: got %d, want 1", len(all))
		}
		id = all[0].ID
		return nil
	})
	if err != nil {
		t.Fatalf("find phraseset: %v", err)
	}
	return id
}

// TestVotePreconditions covers the vote error paths: self-voting,
// double voting, and invalid choices.
func TestVotePreconditions(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)
	te.submitPrompt(t, a, "freedom")
	b := te.newPlayer(t)
	te.submitCopy(t, b, "liberty")
	te.submitCopy(t, te.newPlayer(t), "justice")

	// Contributors are not eligible.
	if _, err := te.StartVoteRound(te.ctx, a); !errors.Is(err, votes.ErrNoPhrasesetsAvailable) {
		t.Fatalf("contributor vote: got %v, want ErrNoPhrasesetsAvailable", err)
	}

	v := te.newPlayer(t)
	start, err := te.StartVoteRound(te.ctx, v)
	if err != nil {
		t.Fatalf("start vote: %v", err)
	}

	// A phrase outside the set is rejected without consuming the vote.
	_, err = te.SubmitVote(te.ctx, v, start.PhrasesetID, "thunder")
	if !errors.Is(err, votes.ErrInvalidChoice) {
		t.Fatalf("invalid choice: got %v, want ErrInvalidChoice", err)
	}
	if _, err := te.SubmitVote(te.ctx, v, start.PhrasesetID, "liberty"); err != nil {
		t.Fatalf("valid vote after invalid attempt: %v", err)
	}

	// Voting again on the same phraseset fails.
	if _, err := te.StartVoteRound(te.ctx, v); !errors.Is(err, votes.ErrNoPhrasesetsAvailable) {
		t.Fatalf("second vote eligibility: got %v, want "+
			"ErrNoPhrasesetsAvailable", err)
	}
}

// TestSingleActiveRound verifies a player cannot hold two rounds.
func TestSingleActiveRound(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)

	if _, err := te.StartPromptRound(te.ctx, a); err != nil {
		t.Fatalf("start prompt: %v", err)
	}
	if _, err := te.StartPromptRound(te.ctx, a); !errors.Is(err, rounds.ErrAlreadyInRound) {
		t.Fatalf("second round: got %v, want ErrAlreadyInRound", err)
	}
	if _, err := te.StartCopyRound(te.ctx, a); !errors.Is(err, rounds.ErrAlreadyInRound) {
		t.Fatalf("copy while prompting: got %v, want ErrAlreadyInRound", err)
	}
}

// TestOutstandingPromptBound verifies the ten-prompt cap.
func TestOutstandingPromptBound(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)

	// Fund the player for eleven prompts.
	err := te.db.Update(func(tx gamedb.Tx) error {
		p, err := tx.Player(a)
		if err != nil {
			return err
		}
		p.Balance = 2000
		return tx.PutPlayer(p)
	})
	if err != nil {
		t.Fatalf("fund player: %v", err)
	}

	phrases := []string{"freedom", "justice", "wisdom", "courage", "mercy",
		"sorrow", "wonder", "silence", "thunder", "twilight"}
	for _, p := range phrases {
		te.submitPrompt(t, a, p)
	}

	_, err = te.StartPromptRound(te.ctx, a)
	if !errors.Is(err, rounds.ErrMaxOutstandingPrompts) {
		t.Fatalf("eleventh prompt: got %v, want ErrMaxOutstandingPrompts", err)
	}
}

// TestDailyBonus verifies the calendar-day gate.
func TestDailyBonus(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)

	// Created today, so today's bonus is spent.
	_, err := te.ClaimDailyBonus(te.ctx, a)
	if !errors.Is(err, players.ErrBonusNotAvailable) {
		t.Fatalf("same-day bonus: got %v, want ErrBonusNotAvailable", err)
	}

	te.clock.Advance(24 * time.Hour)
	bonus, err := te.ClaimDailyBonus(te.ctx, a)
	if err != nil {
		t.Fatalf("next-day bonus: %v", err)
	}
	if bonus.Amount != 100 || bonus.NewBalance != 1100 {
		t.Fatalf("bonus: %+v", bonus)
	}

	// Only once per day.
	if _, err := te.ClaimDailyBonus(te.ctx, a); !errors.Is(err, players.ErrBonusNotAvailable) {
		t.Fatalf("repeat bonus: got %v, want ErrBonusNotAvailable", err)
	}
	if err := te.AuditPlayer(a); err != nil {
		t.Fatalf("audit: %v", err)
	}
}

// TestInsufficientBalance verifies entry fees are checked before any
// mutation.
func TestInsufficientBalance(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)
	err := te.db.Update(func(tx gamedb.Tx) error {
		p, err := tx.Player(a)
		if err != nil {
			return err
		}
		p.Balance = 50
		return tx.PutPlayer(p)
	})
	if err != nil {
		t.Fatalf("drain player: %v", err)
	}

	_, err = te.StartPromptRound(te.ctx, a)
	if err == nil {
		t.Fatal("prompt with 50 balance succeeded")
	}
	if got := te.balance(t, a); got != 50 {
		t.Fatalf("balance after rejected start: got %d, want 50", got)
	}
}

// TestListAndSummary exercises the player-facing list shapes across a
// finalized phraseset.
func TestListAndSummary(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)
	b := te.newPlayer(t)
	te.submitPrompt(t, a, "freedom")
	te.submitCopy(t, b, "liberty")
	te.submitCopy(t, te.newPlayer(t), "justice")
	for _, choice := range []string{"freedom", "liberty", "justice"} {
		te.vote(t, te.newPlayer(t), choice)
	}
	te.clock.Advance(601 * time.Second)
	te.Sweep(te.ctx)

	entries, err := te.ListPhrasesets(a, results.RolePrompt,
		results.BucketFinalized, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("list: got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Role != results.RolePrompt || e.YourPhrase != "FREEDOM" ||
		e.VoteCount != 3 || e.Claimed {
		t.Fatalf("entry: %+v", e)
	}
	if e.Payout == 0 {
		t.Fatal("entry payout is zero")
	}

	summary, err := te.GetSummary(a)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Counts[results.RolePrompt][results.BucketFinalized] != 1 {
		t.Fatalf("summary counts: %+v", summary.Counts)
	}
	if summary.UnclaimedCount != 1 || summary.UnclaimedAmount != e.Payout {
		t.Fatalf("summary unclaimed: %+v", summary)
	}

	unclaimed, err := te.GetUnclaimed(a)
	if err != nil {
		t.Fatalf("unclaimed: %v", err)
	}
	if len(unclaimed) != 1 {
		t.Fatalf("unclaimed: got %d, want 1", len(unclaimed))
	}

	if _, err := te.ClaimPhrasesetPrize(te.ctx, a, e.PhrasesetID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	unclaimed, err = te.GetUnclaimed(a)
	if err != nil {
		t.Fatalf("unclaimed after claim: %v", err)
	}
	if len(unclaimed) != 0 {
		t.Fatalf("unclaimed after claim: got %d, want 0", len(unclaimed))
	}

	// Outsiders get ErrNotContributor.
	outsider := te.newPlayer(t)
	if _, err := te.GetPhrasesetResults(outsider, e.PhrasesetID); !errors.Is(err, results.ErrNotContributor) {
		t.Fatalf("outsider results: got %v, want ErrNotContributor", err)
	}
}

// TestDuplicateCopyRejected verifies a copy cannot echo the original.
func TestDuplicateCopyRejected(t *testing.T) {
	te := newTestEngine(t)
	te.submitPrompt(t, te.newPlayer(t), "freedom")

	b := te.newPlayer(t)
	start, err := te.StartCopyRound(te.ctx, b)
	if err != nil {
		t.Fatalf("start copy: %v", err)
	}
	_, err = te.SubmitCopyPhrase(te.ctx, b, start.RoundID, "freedom")
	if !errors.Is(err, phrase.ErrDuplicatePhrase) {
		t.Fatalf("duplicate copy: got %v, want ErrDuplicatePhrase", err)
	}

	// The round survives the rejection; a distinct phrase still lands.
	if _, err := te.SubmitCopyPhrase(te.ctx, b, start.RoundID, "liberty"); err != nil {
		t.Fatalf("retry copy: %v", err)
	}
}

// TestVoteCapFinalizesImmediately verifies the twenty-vote hard cap.
func TestVoteCapFinalizesImmediately(t *testing.T) {
	te := newTestEngine(t)
	a := te.newPlayer(t)
	te.submitPrompt(t, a, "freedom")
	te.submitCopy(t, te.newPlayer(t), "liberty")
	te.submitCopy(t, te.newPlayer(t), "justice")

	for i := 0; i < 20; i++ {
		te.vote(t, te.newPlayer(t), "freedom")
	}

	psID := te.onlyPhraseset(t)
	bundle, err := te.GetPhrasesetResults(a, psID)
	if err != nil {
		t.Fatalf("results after cap: %v", err)
	}
	if bundle.Scoring.OriginalVotes != 20 {
		t.Fatalf("scored votes: got %d, want 20", bundle.Scoring.OriginalVotes)
	}

	// The twenty-first voter finds nothing to vote on.
	if _, err := te.StartVoteRound(te.ctx, te.newPlayer(t)); !errors.Is(err, votes.ErrNoPhrasesetsAvailable) {
		t.Fatalf("vote after finalize: got %v, want ErrNoPhrasesetsAvailable", err)
	}
}
