// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package scoring computes finalized phraseset payouts.  Calculate is a
// pure function of the phraseset and its votes, so it can be re-run at
// any time to reproduce the amounts committed at finalization.
package scoring

import (
	"github.com/sheegaon/wordpool/internal/gamedb"
)

const (
	// pointsPerOriginalVote is awarded to the prompt player for each
	// vote their original phrase drew.
	pointsPerOriginalVote = 1

	// pointsPerCopyVote is awarded to a copy player for each vote their
	// copy drew.  Copies earn double because fooling a voter is harder
	// than being recognized.
	pointsPerCopyVote = 2
)

// Result is the computed outcome of a finalized phraseset.
type Result struct {
	// Vote tallies per phrase.
	OriginalVotes int
	Copy1Votes    int
	Copy2Votes    int

	// Points per contributor.
	PromptPoints int
	Copy1Points  int
	Copy2Points  int

	// PrizePool is what remains of the total pool after correct-voter
	// payouts.
	PrizePool int64

	// Payouts per contributor.  Zero payouts are valid and simply skip
	// the prize transaction.
	PromptPayout int64
	Copy1Payout  int64
	Copy2Payout  int64
}

// TotalPayout returns the sum distributed to the three contributors.
func (r *Result) TotalPayout() int64 {
	return r.PromptPayout + r.Copy1Payout + r.Copy2Payout
}

// Remainder returns the integer-floor remainder retained by the system.
func (r *Result) Remainder() int64 {
	return r.PrizePool - r.TotalPayout()
}

// Calculate tallies the votes on a phraseset and distributes the prize
// pool.  votePayoutCorrect is the per-correct-vote amount already paid
// to voters out of the pool.  Distribution is proportional to points
// with integer floor division; the remainder stays with the system.
// When nobody scored, the pool splits into three equal floors.
func Calculate(ps *gamedb.Phraseset, votes []*gamedb.Vote, votePayoutCorrect int64) *Result {
	r := &Result{}
	for _, v := range votes {
		switch v.VotedPhrase {
		case ps.OriginalPhrase:
			r.OriginalVotes++
		case ps.CopyPhrase1:
			r.Copy1Votes++
		case ps.CopyPhrase2:
			r.Copy2Votes++
		}
	}

	r.PromptPoints = r.OriginalVotes * pointsPerOriginalVote
	r.Copy1Points = r.Copy1Votes * pointsPerCopyVote
	r.Copy2Points = r.Copy2Votes * pointsPerCopyVote

	r.PrizePool = ps.TotalPool - int64(r.OriginalVotes)*votePayoutCorrect
	if r.PrizePool < 0 {
		r.PrizePool = 0
	}

	totalPoints := r.PromptPoints + r.Copy1Points + r.Copy2Points
	if totalPoints == 0 {
		third := r.PrizePool / 3
		r.PromptPayout = third
		r.Copy1Payout = third
		r.Copy2Payout = third
		return r
	}

	r.PromptPayout = int64(r.PromptPoints) * r.PrizePool / int64(totalPoints)
	r.Copy1Payout = int64(r.Copy1Points) * r.PrizePool / int64(totalPoints)
	r.Copy2Payout = int64(r.Copy2Points) * r.PrizePool / int64(totalPoints)
	return r
}
