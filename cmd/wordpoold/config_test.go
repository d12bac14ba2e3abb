// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/sheegaon/wordpool/internal/phrase"
)

func TestDefaultConfigPhraseThresholds(t *testing.T) {
	cfg := defaultConfig()
	want := phrase.DefaultConfig()
	if got := cfg.phraseConfig(); got != want {
		t.Fatalf("default phrase config: got %+v, want %+v", got, want)
	}
}

func TestPhraseConfigOverrides(t *testing.T) {
	cfg := defaultConfig()
	cfg.PhraseMinWords = 2
	cfg.PhraseMaxWords = 7
	cfg.PhraseMaxLength = 80
	cfg.PhraseMinCharPerWord = 3
	cfg.PhraseMaxCharPerWord = 12
	cfg.SignificantWordMinLength = 5
	cfg.SimilarityThreshold = 0.9
	cfg.WordSimilarityThreshold = 0.8

	got := cfg.phraseConfig()
	want := phrase.Config{
		MinWords:                2,
		MaxWords:                7,
		MaxLength:               80,
		MinCharPerWord:          3,
		MaxCharPerWord:          12,
		SignificantMinLen:       5,
		SimilarityThreshold:     0.9,
		WordSimilarityThreshold: 0.8,
	}
	if got != want {
		t.Fatalf("phrase config overrides: got %+v, want %+v", got, want)
	}
}

func TestGameParamsOverrides(t *testing.T) {
	cfg := defaultConfig()
	cfg.PromptCost = 150
	cfg.VoteRoundSeconds = 90

	p := cfg.gameParams()
	if p.PromptCost != 150 {
		t.Errorf("prompt cost: got %d, want 150", p.PromptCost)
	}
	if got := int(p.VoteRoundDuration.Seconds()); got != 90 {
		t.Errorf("vote round duration: got %ds, want 90s", got)
	}
}
