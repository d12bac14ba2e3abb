// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package params defines the tunable economy and timing constants of
// the game.  A Params value is immutable once handed to the engine.
package params

import "time"

// Params holds every recognized game parameter.
type Params struct {
	// Economy.
	StartingBalance   int64
	DailyBonus        int64
	PromptCost        int64
	CopyCostNormal    int64
	CopyCostDiscount  int64
	VoteCost          int64
	VotePayoutCorrect int64
	PhrasesetPool     int64

	// Matchmaking bounds.
	MaxOutstandingPrompts int
	CopyDiscountThreshold int

	// Round timing.
	PromptRoundDuration time.Duration
	CopyRoundDuration   time.Duration
	VoteRoundDuration   time.Duration
	GracePeriod         time.Duration

	// Finalization.
	VoteFinalizeMax       int
	FifthVoteCloseAfter   time.Duration
	ThirdVoteTimeoutAfter time.Duration

	// Abandonment.
	AbandonmentCooldown time.Duration

	// Locking.
	LockTimeout time.Duration
}

// Default returns the standard game parameters.
func Default() *Params {
	return &Params{
		StartingBalance:   1000,
		DailyBonus:        100,
		PromptCost:        100,
		CopyCostNormal:    100,
		CopyCostDiscount:  90,
		VoteCost:          1,
		VotePayoutCorrect: 5,
		PhrasesetPool:     300,

		MaxOutstandingPrompts: 10,
		CopyDiscountThreshold: 10,

		PromptRoundDuration: 180 * time.Second,
		CopyRoundDuration:   180 * time.Second,
		VoteRoundDuration:   60 * time.Second,
		GracePeriod:         5 * time.Second,

		VoteFinalizeMax:       20,
		FifthVoteCloseAfter:   60 * time.Second,
		ThirdVoteTimeoutAfter: 600 * time.Second,

		AbandonmentCooldown: 24 * time.Hour,

		LockTimeout: 10 * time.Second,
	}
}

// RefundAmount returns the timeout refund for a round of the given
// cost: 90% of the cost, rounded toward zero.
func (p *Params) RefundAmount(cost int64) int64 {
	return 9 * cost / 10
}
