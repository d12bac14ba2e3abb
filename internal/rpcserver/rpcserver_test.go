// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/sheegaon/wordpool/internal/engine"
	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/phrase"
	"github.com/sheegaon/wordpool/internal/rounds"
	"github.com/sheegaon/wordpool/internal/votes"
	"github.com/sheegaon/wordpool/internal/wpid"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db := gamedb.NewMemDB()
	t.Cleanup(func() { db.Close() })

	dict, err := phrase.LoadDictionary("")
	if err != nil {
		t.Fatalf("load dictionary: %v", err)
	}
	e := engine.New(&engine.Config{
		DB:        db,
		Validator: phrase.NewValidator(phrase.DefaultConfig(), dict, nil),
	})
	if _, err := e.AddPrompt("one word for hope", "feelings"); err != nil {
		t.Fatalf("add prompt: %v", err)
	}
	return &Server{cfg: Config{Engine: e}}
}

// call dispatches a request and decodes the response through JSON, the
// same round trip a client sees.
func call(t *testing.T, s *Server, method string, params interface{}) *response {
	t.Helper()
	body := map[string]interface{}{"id": 1, "method": method}
	if params != nil {
		body["params"] = params
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return s.dispatch(context.Background(), raw)
}

func resultField(t *testing.T, resp *response, field string) interface{} {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	v, ok := m[field]
	if !ok {
		t.Fatalf("result has no field %q:\n%s", field, spew.Sdump(m))
	}
	return v
}

func TestDispatchLifecycle(t *testing.T) {
	s := testServer(t)

	resp := call(t, s, "createplayer", nil)
	if resp.Error != nil {
		t.Fatalf("createplayer: %+v", resp.Error)
	}
	playerID := resultField(t, resp, "player_id").(string)
	if !wpid.ID(playerID).Valid() {
		t.Fatalf("invalid player id %q", playerID)
	}
	if got := resultField(t, resp, "balance").(float64); got != 1000 {
		t.Fatalf("starting balance: got %v, want 1000", got)
	}

	resp = call(t, s, "startpromptround", map[string]string{
		"player_id": playerID,
	})
	if resp.Error != nil {
		t.Fatalf("startpromptround: %+v", resp.Error)
	}
	roundID := resultField(t, resp, "round_id").(string)
	if got := resultField(t, resp, "cost").(float64); got != 100 {
		t.Fatalf("prompt cost: got %v, want 100", got)
	}

	resp = call(t, s, "submitpromptphrase", map[string]string{
		"player_id": playerID,
		"round_id":  roundID,
		"phrase":    "  golden   sunset ",
	})
	if resp.Error != nil {
		t.Fatalf("submitpromptphrase: %+v", resp.Error)
	}
	if got := resultField(t, resp, "phrase_normalized").(string); got != "GOLDEN SUNSET" {
		t.Fatalf("normalized: got %q, want GOLDEN SUNSET", got)
	}

	// A retry of the submit hits a round that already left the active
	// state and is rejected distinctly from a timeout.
	resp = call(t, s, "submitpromptphrase", map[string]string{
		"player_id": playerID,
		"round_id":  roundID,
		"phrase":    "golden sunset",
	})
	if resp.Error == nil || resp.Error.Code != "wrong_round_state" {
		t.Fatalf("stale submit: got %+v, want wrong_round_state", resp.Error)
	}

	resp = call(t, s, "getroundavailability", map[string]string{
		"player_id": playerID,
	})
	if resp.Error != nil {
		t.Fatalf("getroundavailability: %+v", resp.Error)
	}
	if got := resultField(t, resp, "prompts_waiting").(float64); got != 1 {
		t.Fatalf("prompts_waiting: got %v, want 1", got)
	}

	resp = call(t, s, "gettransactionhistory", map[string]interface{}{
		"player_id": playerID,
	})
	if resp.Error != nil {
		t.Fatalf("gettransactionhistory: %+v", resp.Error)
	}
}

func TestDispatchErrors(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", "{nope", "parse_error"},
		{"unknown method", `{"id":1,"method":"mineblock"}`, "method_not_found"},
		{"missing params", `{"id":1,"method":"getplayer"}`, "internal_error"},
		{"unknown player", fmt.Sprintf(
			`{"id":1,"method":"getplayer","params":{"player_id":"%s"}}`,
			wpid.New()), "not_found"},
		{"copy with empty queue", fmt.Sprintf(
			`{"id":1,"method":"startcopyround","params":{"player_id":"%s"}}`,
			newPlayerID(t, s)), "no_prompts_available"},
		{"vote with no phrasesets", fmt.Sprintf(
			`{"id":1,"method":"startvoteround","params":{"player_id":"%s"}}`,
			newPlayerID(t, s)), "no_phrasesets_available"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp := s.dispatch(context.Background(), []byte(test.body))
			if resp.Error == nil {
				t.Fatalf("no error, result %v", resp.Result)
			}
			if resp.Error.Code != test.wantCode {
				t.Fatalf("code: got %q, want %q (%s)", resp.Error.Code,
					test.wantCode, resp.Error.Message)
			}
		})
	}
}

func newPlayerID(t *testing.T, s *Server) wpid.ID {
	t.Helper()
	player, err := s.cfg.Engine.CreatePlayer(context.Background())
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	return player.ID
}

func TestWireCodes(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ledger.ErrInsufficientBalance, "insufficient_balance"},
		{rounds.ErrAlreadyInRound, "already_in_round"},
		{rounds.ErrRoundExpired, "round_expired"},
		{rounds.ErrWrongRoundState, "wrong_round_state"},
		{votes.ErrAlreadyVoted, "already_voted"},
		{phrase.ErrTooSimilar, "phrase_too_similar"},
		{phrase.ErrSimilarityUnavailable, "external_service_unavailable"},
		{errors.New("disk on fire"), "internal_error"},
	}
	for _, test := range tests {
		if got := wireCode(test.err); got != test.want {
			t.Errorf("wireCode(%v): got %q, want %q", test.err, got, test.want)
		}
	}

	// Wrapped kinds resolve the same as bare kinds.
	wrapped := rounds.Error{Err: rounds.ErrRoundExpired, Description: "x"}
	if got := wireCode(wrapped); got != "round_expired" {
		t.Errorf("wrapped kind: got %q, want round_expired", got)
	}
}
