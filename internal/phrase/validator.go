// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package phrase validates player-submitted phrases.  Validation layers
// a format and dictionary check, significant-word overlap detection
// against reference phrases, and a semantic similarity check backed by
// an external embedding service.
package phrase

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/decred/slog"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// connectingWords may appear in a phrase regardless of length and need
// not be in the dictionary.
var connectingWords = map[string]struct{}{
	"A": {},
	"I": {},
}

// Config holds the validation thresholds.
type Config struct {
	MinWords          int
	MaxWords          int
	MaxLength         int
	MinCharPerWord    int
	MaxCharPerWord    int
	SignificantMinLen int

	// SimilarityThreshold rejects copies whose embedding cosine
	// similarity against a reference phrase meets or exceeds it.
	SimilarityThreshold float64

	// WordSimilarityThreshold treats two significant words as
	// overlapping when their common-subsequence ratio meets or exceeds
	// it.
	WordSimilarityThreshold float64
}

// DefaultConfig returns the standard validation thresholds.
func DefaultConfig() Config {
	return Config{
		MinWords:                1,
		MaxWords:                5,
		MaxLength:               100,
		MinCharPerWord:          2,
		MaxCharPerWord:          15,
		SignificantMinLen:       4,
		SimilarityThreshold:     0.85,
		WordSimilarityThreshold: 0.85,
	}
}

// Validator is a long-lived phrase validator.  The dictionary is
// immutable after construction and the embedder is only contacted when a
// copy phrase is validated.
type Validator struct {
	cfg   Config
	dict  *Dictionary
	embed Embedder
}

// NewValidator returns a validator over the given dictionary.  The
// embedder may be nil, in which case semantic similarity checks are
// treated as a backend failure (copies rejected).
func NewValidator(cfg Config, dict *Dictionary, embed Embedder) *Validator {
	log.Infof("Phrase validator ready: %d dictionary words (fingerprint %s)",
		dict.Len(), dict.Fingerprint())
	return &Validator{cfg: cfg, dict: dict, embed: embed}
}

// Normalize trims the phrase, collapses interior whitespace, and
// uppercases it.  All stored and compared phrases are normalized.
func Normalize(phrase string) string {
	return strings.ToUpper(strings.Join(strings.Fields(phrase), " "))
}

// Validate checks format and dictionary membership.  It returns nil for
// a valid phrase and an ErrInvalidPhrase error carrying the reason
// otherwise.
func (v *Validator) Validate(phrase string) error {
	trimmed := strings.TrimSpace(phrase)
	if trimmed == "" {
		return makeError(ErrInvalidPhrase, "phrase cannot be empty")
	}
	if len(trimmed) > v.cfg.MaxLength {
		return makeError(ErrInvalidPhrase, fmt.Sprintf("phrase must be %d "+
			"characters or less", v.cfg.MaxLength))
	}
	for _, r := range trimmed {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isLetter && !unicode.IsSpace(r) {
			return makeError(ErrInvalidPhrase,
				"phrase must contain only letters A-Z and spaces")
		}
	}

	words := strings.Fields(trimmed)
	if len(words) < v.cfg.MinWords {
		return makeError(ErrInvalidPhrase, fmt.Sprintf("phrase must contain "+
			"at least %d word", v.cfg.MinWords))
	}
	if len(words) > v.cfg.MaxWords {
		return makeError(ErrInvalidPhrase, fmt.Sprintf("phrase must contain "+
			"at most %d words", v.cfg.MaxWords))
	}

	for _, word := range words {
		upper := strings.ToUpper(word)
		if _, ok := connectingWords[upper]; ok {
			continue
		}
		if len(word) < v.cfg.MinCharPerWord {
			return makeError(ErrInvalidPhrase, fmt.Sprintf("each word must "+
				"be at least %d characters", v.cfg.MinCharPerWord))
		}
		if len(word) > v.cfg.MaxCharPerWord {
			return makeError(ErrInvalidPhrase, fmt.Sprintf("each word must "+
				"be at most %d characters", v.cfg.MaxCharPerWord))
		}
		if !v.dict.Contains(upper) {
			return makeError(ErrInvalidPhrase,
				fmt.Sprintf("word '%s' not in dictionary", upper))
		}
	}
	return nil
}

// ValidatePrompt validates an original phrase against the prompt text
// it answers.  Semantic similarity is not checked here; with a single
// phrase there is nothing to be confused with, so an embedding outage
// never blocks prompts.
func (v *Validator) ValidatePrompt(phrase, promptText string) error {
	if err := v.Validate(phrase); err != nil {
		return err
	}
	return v.checkSignificantOverlap(phrase, []reference{
		{label: "prompt", text: promptText},
	})
}

// ValidateCopy validates a copy phrase against the original, the other
// copy if one was already submitted, and the prompt text.  An embedding
// backend failure rejects the copy; accepting unverified copies would
// let players submit phrases identical in meaning to the original.
func (v *Validator) ValidateCopy(ctx context.Context, phrase, original, otherCopy, promptText string) error {
	if err := v.Validate(phrase); err != nil {
		return err
	}

	normalized := Normalize(phrase)
	if normalized == Normalize(original) {
		return makeError(ErrDuplicatePhrase,
			"cannot submit the same phrase as original")
	}
	if otherCopy != "" && normalized == Normalize(otherCopy) {
		return makeError(ErrDuplicatePhrase,
			"cannot submit the same phrase as other copy")
	}

	refs := []reference{{label: "original phrase", text: original}}
	if otherCopy != "" {
		refs = append(refs, reference{label: "other copy", text: otherCopy})
	}
	if promptText != "" {
		refs = append(refs, reference{label: "prompt", text: promptText})
	}
	if err := v.checkSignificantOverlap(phrase, refs); err != nil {
		return err
	}

	if err := v.checkSemantic(ctx, phrase, original, "original"); err != nil {
		return err
	}
	if otherCopy != "" {
		if err := v.checkSemantic(ctx, phrase, otherCopy, "other copy"); err != nil {
			return err
		}
	}
	return nil
}

// reference is a labeled comparison phrase for overlap checks.
type reference struct {
	label string
	text  string
}

// significantWords extracts the lowercase alphabetic tokens meeting the
// significant length threshold.
func (v *Validator) significantWords(phrase string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() >= v.cfg.SignificantMinLen {
			words = append(words, strings.ToLower(cur.String()))
		}
		cur.Reset()
	}
	for _, r := range phrase {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			cur.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return words
}

func (v *Validator) checkSignificantOverlap(phrase string, refs []reference) error {
	candidate := v.significantWords(phrase)
	if len(candidate) == 0 {
		return nil
	}
	for _, ref := range refs {
		if ref.text == "" {
			continue
		}
		for _, refWord := range v.significantWords(ref.text) {
			for _, word := range candidate {
				if word == refWord {
					return makeError(ErrTooSimilar, fmt.Sprintf("cannot reuse "+
						"significant word '%s' from %s",
						strings.ToUpper(word), ref.label))
				}
				if lcsRatio(word, refWord) >= v.cfg.WordSimilarityThreshold {
					return makeError(ErrTooSimilar, fmt.Sprintf("word '%s' is "+
						"too similar to '%s' from %s", strings.ToUpper(word),
						strings.ToUpper(refWord), ref.label))
				}
			}
		}
	}
	return nil
}

func (v *Validator) checkSemantic(ctx context.Context, phrase, ref, label string) error {
	if v.embed == nil {
		return makeError(ErrSimilarityUnavailable, "unable to verify phrase "+
			"uniqueness, please try a different phrase")
	}
	similarity, err := semanticSimilarity(ctx, v.embed, phrase, ref)
	if err != nil {
		log.Warnf("Similarity check against %s failed: %v", label, err)
		return makeError(ErrSimilarityUnavailable, "unable to verify phrase "+
			"uniqueness, please try a different phrase")
	}
	if similarity >= v.cfg.SimilarityThreshold {
		return makeError(ErrTooSimilar, fmt.Sprintf("phrase too similar to "+
			"%s (similarity: %.2f, threshold: %.2f)", label, similarity,
			v.cfg.SimilarityThreshold))
	}
	return nil
}

// lcsRatio returns 2*LCS(a,b) / (len(a)+len(b)), the longest common
// subsequence length scaled to [0, 1].
func lcsRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}
