// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gamedb

import (
	"time"

	"github.com/sheegaon/wordpool/internal/wpid"
)

// RoundType identifies the variant of a round.
type RoundType string

const (
	RoundPrompt RoundType = "prompt"
	RoundCopy   RoundType = "copy"
	RoundVote   RoundType = "vote"
)

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

const (
	RoundActive    RoundStatus = "active"
	RoundSubmitted RoundStatus = "submitted"
	RoundExpired   RoundStatus = "expired"
	RoundAbandoned RoundStatus = "abandoned"
)

// PromptsetStatus is the phraseset-level status carried on a prompt round
// while (and after) its phraseset is being assembled.
type PromptsetStatus string

const (
	PromptsetWaitingCopies PromptsetStatus = "waiting_copies"
	PromptsetWaitingCopy1  PromptsetStatus = "waiting_copy1"
	PromptsetActive        PromptsetStatus = "active"
	PromptsetFinalized     PromptsetStatus = "finalized"
	PromptsetAbandoned     PromptsetStatus = "abandoned"
)

// PhrasesetStatus is the lifecycle state of a phraseset.
type PhrasesetStatus string

const (
	PhrasesetOpen      PhrasesetStatus = "open"
	PhrasesetClosing   PhrasesetStatus = "closing"
	PhrasesetClosed    PhrasesetStatus = "closed"
	PhrasesetFinalized PhrasesetStatus = "finalized"
)

// TxKind identifies the category of a ledger transaction.
type TxKind string

const (
	TxPromptEntry        TxKind = "prompt_entry"
	TxCopyEntry          TxKind = "copy_entry"
	TxVoteEntry          TxKind = "vote_entry"
	TxVotePayout         TxKind = "vote_payout"
	TxPrizePayout        TxKind = "prize_payout"
	TxRefund             TxKind = "refund"
	TxDailyBonus         TxKind = "daily_bonus"
	TxSystemContribution TxKind = "system_contribution"
)

// Player is a game participant.  Balance is whole game dollars and is never
// negative.  LastLoginDate is a civil date (YYYY-MM-DD) used for the
// daily-bonus gate.  ActiveRoundID is empty when the player has no active
// round.
type Player struct {
	ID            wpid.ID
	Balance       int64
	CreatedAt     time.Time
	LastLoginDate string
	ActiveRoundID wpid.ID
}

// Prompt is a library entry players write phrases against.
type Prompt struct {
	ID         wpid.ID
	Text       string
	Category   string
	Enabled    bool
	UsageCount int64
}

// PromptRound carries the prompt-variant fields of a Round.
type PromptRound struct {
	PromptID        wpid.ID
	PromptText      string
	SubmittedPhrase string
	PhrasesetStatus PromptsetStatus
	Copy1PlayerID   wpid.ID
	Copy2PlayerID   wpid.ID
}

// CopyRound carries the copy-variant fields of a Round.  The back-reference
// to the prompt round is a weak relation resolved by lookup.
type CopyRound struct {
	PromptRoundID      wpid.ID
	OriginalPhrase     string
	CopyPhrase         string
	SystemContribution int64
}

// VoteRound carries the vote-variant fields of a Round.
type VoteRound struct {
	PhrasesetID wpid.ID
	SubmittedAt time.Time
}

// Round is a fixed-duration interaction in which a player submits one
// artifact.  Exactly one of Prompt, Copy, or Vote is non-nil, matching Type.
type Round struct {
	ID        wpid.ID
	PlayerID  wpid.ID
	Type      RoundType
	Status    RoundStatus
	CreatedAt time.Time
	ExpiresAt time.Time
	Cost      int64

	Prompt *PromptRound `json:",omitempty"`
	Copy   *CopyRound   `json:",omitempty"`
	Vote   *VoteRound   `json:",omitempty"`
}

// Phraseset is the triple voters adjudicate: one original phrase and two
// copies under a shared prompt.
type Phraseset struct {
	ID            wpid.ID
	PromptRoundID wpid.ID
	CopyRound1ID  wpid.ID
	CopyRound2ID  wpid.ID

	PromptText     string
	OriginalPhrase string
	CopyPhrase1    string
	CopyPhrase2    string

	Status      PhrasesetStatus
	VoteCount   int
	ThirdVoteAt time.Time
	FifthVoteAt time.Time
	ClosesAt    time.Time
	CreatedAt   time.Time
	FinalizedAt time.Time

	TotalPool          int64
	SystemContribution int64
}

// Vote is a single player's adjudication of a phraseset.  Unique per
// (player, phraseset).
type Vote struct {
	ID          wpid.ID
	PhrasesetID wpid.ID
	PlayerID    wpid.ID
	VotedPhrase string
	Correct     bool
	Payout      int64
	CreatedAt   time.Time
}

// Transaction is an append-only journal entry.  BalanceAfter snapshots the
// player balance immediately after the entry was applied.
type Transaction struct {
	ID           wpid.ID
	PlayerID     wpid.ID
	Amount       int64
	Kind         TxKind
	ReferenceID  wpid.ID
	BalanceAfter int64
	CreatedAt    time.Time
}

// DailyBonus is the audit record written alongside a daily_bonus
// transaction.  Day is a civil date (YYYY-MM-DD).
type DailyBonus struct {
	ID        wpid.ID
	PlayerID  wpid.ID
	Amount    int64
	Day       string
	CreatedAt time.Time
}

// ResultView tracks, per (player, phraseset), the owed payout and the
// idempotent claim acknowledgement.
type ResultView struct {
	ID            wpid.ID
	PhrasesetID   wpid.ID
	PlayerID      wpid.ID
	PayoutAmount  int64
	Claimed       bool
	FirstViewedAt time.Time
	ClaimedAt     time.Time
}

// Abandonment records that a player walked away from a copy round on the
// given prompt round, blocking a re-draw for the cooldown window.
type Abandonment struct {
	PlayerID      wpid.ID
	PromptRoundID wpid.ID
	AbandonedAt   time.Time
}

// Activity is an append-only timeline entry for a phraseset.  Entries
// recorded before the phraseset materializes carry only the prompt round id
// and are attached retroactively.
type Activity struct {
	ID            wpid.ID
	PhrasesetID   wpid.ID
	PromptRoundID wpid.ID
	PlayerID      wpid.ID
	Type          string
	Payload       map[string]string `json:",omitempty"`
	CreatedAt     time.Time
}

// Activity type tags recorded by the engine.
const (
	ActivityPromptCreated    = "prompt_created"
	ActivityCopySubmitted    = "copy_submitted"
	ActivityPhrasesetCreated = "phraseset_created"
	ActivityVoteCast         = "vote_cast"
	ActivityFinalized        = "finalized"
	ActivityPrizeClaimed     = "prize_claimed"
)
