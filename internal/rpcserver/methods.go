// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sheegaon/wordpool/internal/engine"
	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/results"
	"github.com/sheegaon/wordpool/internal/wpid"
)

// handlerFunc runs one RPC method against the engine.
type handlerFunc func(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error)

// methods is the dispatch table.  Method names are lowercase with no
// separators.
var methods = map[string]handlerFunc{
	"createplayer":          handleCreatePlayer,
	"getplayer":             handleGetPlayer,
	"claimdailybonus":       handleClaimDailyBonus,
	"startpromptround":      handleStartPromptRound,
	"submitpromptphrase":    handleSubmitPromptPhrase,
	"startcopyround":        handleStartCopyRound,
	"submitcopyphrase":      handleSubmitCopyPhrase,
	"startvoteround":        handleStartVoteRound,
	"submitvote":            handleSubmitVote,
	"getcurrentround":       handleGetCurrentRound,
	"getroundavailability":  handleGetRoundAvailability,
	"getphrasesetresults":   handleGetPhrasesetResults,
	"claimphrasesetprize":   handleClaimPhrasesetPrize,
	"listphrasesets":        handleListPhrasesets,
	"getsummary":            handleGetSummary,
	"getunclaimed":          handleGetUnclaimed,
	"gettransactionhistory": handleGetTransactionHistory,
}

// playerParams is the common parameter shape: every method acts on
// behalf of a player.
type playerParams struct {
	PlayerID wpid.ID `json:"player_id"`
}

func decodeParams(params json.RawMessage, into interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing params")
	}
	return json.Unmarshal(params, into)
}

func decodePlayer(params json.RawMessage) (wpid.ID, error) {
	var p playerParams
	if err := decodeParams(params, &p); err != nil {
		return "", err
	}
	if !p.PlayerID.Valid() {
		return "", fmt.Errorf("invalid player_id")
	}
	return p.PlayerID, nil
}

type playerResult struct {
	PlayerID  wpid.ID   `json:"player_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func handleCreatePlayer(ctx context.Context, e *engine.Engine, _ json.RawMessage) (interface{}, error) {
	player, err := e.CreatePlayer(ctx)
	if err != nil {
		return nil, err
	}
	return &playerResult{
		PlayerID:  player.ID,
		Balance:   player.Balance,
		CreatedAt: player.CreatedAt,
	}, nil
}

func handleGetPlayer(_ context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	playerID, err := decodePlayer(params)
	if err != nil {
		return nil, err
	}
	player, err := e.GetPlayer(playerID)
	if err != nil {
		return nil, err
	}
	return &playerResult{
		PlayerID:  player.ID,
		Balance:   player.Balance,
		CreatedAt: player.CreatedAt,
	}, nil
}

func handleClaimDailyBonus(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	playerID, err := decodePlayer(params)
	if err != nil {
		return nil, err
	}
	bonus, err := e.ClaimDailyBonus(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &struct {
		Amount     int64 `json:"amount"`
		NewBalance int64 `json:"new_balance"`
	}{bonus.Amount, bonus.NewBalance}, nil
}

func handleStartPromptRound(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	playerID, err := decodePlayer(params)
	if err != nil {
		return nil, err
	}
	start, err := e.StartPromptRound(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &struct {
		RoundID    wpid.ID   `json:"round_id"`
		PromptText string    `json:"prompt_text"`
		ExpiresAt  time.Time `json:"expires_at"`
		Cost       int64     `json:"cost"`
	}{start.RoundID, start.PromptText, start.ExpiresAt, start.Cost}, nil
}

// submitParams carries a phrase submission against a round.
type submitParams struct {
	PlayerID wpid.ID `json:"player_id"`
	RoundID  wpid.ID `json:"round_id"`
	Phrase   string  `json:"phrase"`
}

// submitResult is shared by prompt and copy submission.
type submitResult struct {
	Success          bool   `json:"success"`
	PhraseNormalized string `json:"phrase_normalized"`
}

func handleSubmitPromptPhrase(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	var p submitParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	normalized, err := e.SubmitPromptPhrase(ctx, p.PlayerID, p.RoundID, p.Phrase)
	if err != nil {
		return nil, err
	}
	return &submitResult{Success: true, PhraseNormalized: normalized}, nil
}

func handleStartCopyRound(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	playerID, err := decodePlayer(params)
	if err != nil {
		return nil, err
	}
	start, err := e.StartCopyRound(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &struct {
		RoundID        wpid.ID   `json:"round_id"`
		OriginalPhrase string    `json:"original_phrase"`
		PromptRoundID  wpid.ID   `json:"prompt_round_id"`
		ExpiresAt      time.Time `json:"expires_at"`
		Cost           int64     `json:"cost"`
		DiscountActive bool      `json:"discount_active"`
	}{start.RoundID, start.OriginalPhrase, start.PromptRoundID,
		start.ExpiresAt, start.Cost, start.DiscountActive}, nil
}

func handleSubmitCopyPhrase(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	var p submitParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	normalized, err := e.SubmitCopyPhrase(ctx, p.PlayerID, p.RoundID, p.Phrase)
	if err != nil {
		return nil, err
	}
	return &submitResult{Success: true, PhraseNormalized: normalized}, nil
}

func handleStartVoteRound(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	playerID, err := decodePlayer(params)
	if err != nil {
		return nil, err
	}
	start, err := e.StartVoteRound(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &struct {
		RoundID     wpid.ID   `json:"round_id"`
		PhrasesetID wpid.ID   `json:"phraseset_id"`
		PromptText  string    `json:"prompt_text"`
		Phrases     [3]string `json:"phrases"`
		ExpiresAt   time.Time `json:"expires_at"`
		Cost        int64     `json:"cost"`
	}{start.RoundID, start.PhrasesetID, start.PromptText, start.Phrases,
		start.ExpiresAt, start.Cost}, nil
}

func handleSubmitVote(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	var p struct {
		PlayerID    wpid.ID `json:"player_id"`
		PhrasesetID wpid.ID `json:"phraseset_id"`
		Phrase      string  `json:"phrase"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	result, err := e.SubmitVote(ctx, p.PlayerID, p.PhrasesetID, p.Phrase)
	if err != nil {
		return nil, err
	}
	return &struct {
		Correct        bool   `json:"correct"`
		Payout         int64  `json:"payout"`
		OriginalPhrase string `json:"original_phrase"`
		YourChoice     string `json:"your_choice"`
		NewBalance     int64  `json:"new_balance"`
	}{result.Correct, result.Payout, result.OriginalPhrase,
		result.YourChoice, result.NewBalance}, nil
}

// roundResult is the wire shape of a round snapshot.
type roundResult struct {
	RoundID   wpid.ID   `json:"round_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	Cost      int64     `json:"cost"`

	PromptText     string  `json:"prompt_text,omitempty"`
	OriginalPhrase string  `json:"original_phrase,omitempty"`
	PhrasesetID    wpid.ID `json:"phraseset_id,omitempty"`
}

func roundToResult(r *gamedb.Round) *roundResult {
	out := &roundResult{
		RoundID:   r.ID,
		Type:      string(r.Type),
		Status:    string(r.Status),
		ExpiresAt: r.ExpiresAt,
		Cost:      r.Cost,
	}
	switch r.Type {
	case gamedb.RoundPrompt:
		out.PromptText = r.Prompt.PromptText
	case gamedb.RoundCopy:
		out.OriginalPhrase = r.Copy.OriginalPhrase
	case gamedb.RoundVote:
		out.PhrasesetID = r.Vote.PhrasesetID
	}
	return out
}

func handleGetCurrentRound(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	playerID, err := decodePlayer(params)
	if err != nil {
		return nil, err
	}
	round, err := e.GetCurrentRound(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return struct{}{}, nil
	}
	return roundToResult(round), nil
}

func handleGetRoundAvailability(_ context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	playerID, err := decodePlayer(params)
	if err != nil {
		return nil, err
	}
	av, err := e.GetRoundAvailability(playerID)
	if err != nil {
		return nil, err
	}
	return &struct {
		CanPrompt          bool    `json:"can_prompt"`
		CanCopy            bool    `json:"can_copy"`
		CanVote            bool    `json:"can_vote"`
		PromptsWaiting     int     `json:"prompts_waiting"`
		PhrasesetsWaiting  int     `json:"phrasesets_waiting"`
		CopyDiscountActive bool    `json:"copy_discount_active"`
		CopyCost           int64   `json:"copy_cost"`
		CurrentRoundID     wpid.ID `json:"current_round_id,omitempty"`
	}{av.CanPrompt, av.CanCopy, av.CanVote, av.PromptsWaiting,
		av.PhrasesetsWaiting, av.CopyDiscountActive, av.CopyCost,
		av.CurrentRoundID}, nil
}

// phrasesetParams addresses a phraseset on behalf of a player.
type phrasesetParams struct {
	PlayerID    wpid.ID `json:"player_id"`
	PhrasesetID wpid.ID `json:"phraseset_id"`
}

func handleGetPhrasesetResults(_ context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	var p phrasesetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return e.GetPhrasesetResults(p.PlayerID, p.PhrasesetID)
}

func handleClaimPhrasesetPrize(ctx context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	var p phrasesetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	claim, err := e.ClaimPhrasesetPrize(ctx, p.PlayerID, p.PhrasesetID)
	if err != nil {
		return nil, err
	}
	return &struct {
		Success        bool  `json:"success"`
		Amount         int64 `json:"amount"`
		NewBalance     int64 `json:"new_balance"`
		AlreadyClaimed bool  `json:"already_claimed"`
	}{true, claim.Amount, claim.NewBalance, claim.AlreadyClaimed}, nil
}

func handleListPhrasesets(_ context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	var p struct {
		PlayerID wpid.ID `json:"player_id"`
		Role     string  `json:"role"`
		Bucket   string  `json:"bucket"`
		Limit    int     `json:"limit"`
		Offset   int     `json:"offset"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return e.ListPhrasesets(p.PlayerID, results.Role(p.Role),
		results.Bucket(p.Bucket), p.Limit, p.Offset)
}

func handleGetSummary(_ context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	playerID, err := decodePlayer(params)
	if err != nil {
		return nil, err
	}
	return e.GetSummary(playerID)
}

func handleGetUnclaimed(_ context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	playerID, err := decodePlayer(params)
	if err != nil {
		return nil, err
	}
	return e.GetUnclaimed(playerID)
}

func handleGetTransactionHistory(_ context.Context, e *engine.Engine, params json.RawMessage) (interface{}, error) {
	var p struct {
		PlayerID wpid.ID `json:"player_id"`
		Limit    int     `json:"limit"`
		Offset   int     `json:"offset"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return e.GetTransactionHistory(p.PlayerID, p.Limit, p.Offset)
}
