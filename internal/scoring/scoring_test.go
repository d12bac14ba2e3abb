// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scoring

import (
	"testing"

	"github.com/sheegaon/wordpool/internal/gamedb"
)

func makeVotes(ps *gamedb.Phraseset, original, copy1, copy2 int) []*gamedb.Vote {
	var votes []*gamedb.Vote
	add := func(phrase string, n int, correct bool) {
		for i := 0; i < n; i++ {
			votes = append(votes, &gamedb.Vote{
				VotedPhrase: phrase,
				Correct:     correct,
			})
		}
	}
	add(ps.OriginalPhrase, original, true)
	add(ps.CopyPhrase1, copy1, false)
	add(ps.CopyPhrase2, copy2, false)
	return votes
}

func TestCalculate(t *testing.T) {
	ps := &gamedb.Phraseset{
		OriginalPhrase: "FREEDOM",
		CopyPhrase1:    "LIBERTY",
		CopyPhrase2:    "JUSTICE",
		TotalPool:      300,
	}

	tests := []struct {
		name                     string
		totalPool                int64
		original, copy1, copy2   int
		wantPool                 int64
		wantPrompt, wantC1, wantC2 int64
		wantRemainder            int64
	}{{
		// 3 FREEDOM, 1 LIBERTY, 1 JUSTICE. Points 3/2/2 over pool 285.
		name:     "mixed votes",
		totalPool: 300,
		original: 3, copy1: 1, copy2: 1,
		wantPool:   285,
		wantPrompt: 122, wantC1: 81, wantC2: 81,
		wantRemainder: 1,
	}, {
		name:      "all correct",
		totalPool: 300,
		original:  5,
		wantPool:  275,
		wantPrompt: 275, wantC1: 0, wantC2: 0,
		wantRemainder: 0,
	}, {
		name:      "all fooled by one copy",
		totalPool: 300,
		copy1:     4,
		wantPool:  300,
		wantPrompt: 0, wantC1: 300, wantC2: 0,
		wantRemainder: 0,
	}, {
		name:      "no votes splits in thirds",
		totalPool: 300,
		wantPool:  300,
		wantPrompt: 100, wantC1: 100, wantC2: 100,
		wantRemainder: 0,
	}, {
		name:      "thirds discard remainder",
		totalPool: 310,
		wantPool:  310,
		wantPrompt: 103, wantC1: 103, wantC2: 103,
		wantRemainder: 1,
	}, {
		// Discounted copies grow the pool: 3 correct on pool 320.
		name:      "augmented pool",
		totalPool: 320,
		original:  2, copy1: 1,
		wantPool:   310,
		wantPrompt: 155, wantC1: 155, wantC2: 0,
		wantRemainder: 0,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ps := *ps
			ps.TotalPool = test.totalPool
			votes := makeVotes(&ps, test.original, test.copy1, test.copy2)

			r := Calculate(&ps, votes, 5)
			if r.PrizePool != test.wantPool {
				t.Errorf("prize pool: got %d, want %d", r.PrizePool, test.wantPool)
			}
			if r.PromptPayout != test.wantPrompt {
				t.Errorf("prompt payout: got %d, want %d", r.PromptPayout, test.wantPrompt)
			}
			if r.Copy1Payout != test.wantC1 {
				t.Errorf("copy1 payout: got %d, want %d", r.Copy1Payout, test.wantC1)
			}
			if r.Copy2Payout != test.wantC2 {
				t.Errorf("copy2 payout: got %d, want %d", r.Copy2Payout, test.wantC2)
			}
			if r.Remainder() != test.wantRemainder {
				t.Errorf("remainder: got %d, want %d", r.Remainder(), test.wantRemainder)
			}

			// Conservation: payouts plus correct-vote payouts never
			// exceed the pool, and the floor remainder is small.
			distributed := r.TotalPayout() + int64(test.original)*5
			if distributed > test.totalPool {
				t.Errorf("over-distribution: %d > %d", distributed, test.totalPool)
			}
			if r.Remainder() < 0 || r.Remainder() > 2 {
				t.Errorf("remainder out of bounds: %d", r.Remainder())
			}
		})
	}
}

func TestCalculateIsPure(t *testing.T) {
	ps := &gamedb.Phraseset{
		OriginalPhrase: "FREEDOM",
		CopyPhrase1:    "LIBERTY",
		CopyPhrase2:    "JUSTICE",
		TotalPool:      300,
	}
	votes := makeVotes(ps, 3, 1, 1)

	first := Calculate(ps, votes, 5)
	second := Calculate(ps, votes, 5)
	if *first != *second {
		t.Fatalf("repeated calculation diverged: %+v vs %+v", first, second)
	}
}
