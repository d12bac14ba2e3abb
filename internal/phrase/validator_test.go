// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package phrase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

// stubEmbedder returns canned vectors keyed by lowercase text, or an
// error when failing is set.
type stubEmbedder struct {
	vectors map[string][]float64
	failing bool
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if s.failing {
		return nil, errors.New("backend down")
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, ok := s.vectors[strings.ToLower(strings.TrimSpace(text))]
		if !ok {
			// Unknown phrases embed orthogonally to everything.
			vec = []float64{0, 0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func testValidator(t *testing.T, embed Embedder) *Validator {
	t.Helper()
	dict, err := LoadDictionary("")
	if err != nil {
		t.Fatalf("load dictionary: %v", err)
	}
	return NewValidator(DefaultConfig(), dict, embed)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"freedom", "FREEDOM"},
		{"  golden   sunset  ", "GOLDEN SUNSET"},
		{"Rain\tOn  Tin\nRoof", "RAIN ON TIN ROOF"},
		{"", ""},
	}
	for _, test := range tests {
		if got := Normalize(test.in); got != test.want {
			t.Errorf("Normalize(%q): got %q, want %q", test.in, got, test.want)
		}
	}
}

func TestValidateFormat(t *testing.T) {
	v := testValidator(t, nil)
	tests := []struct {
		name    string
		phrase  string
		wantErr bool
	}{
		{"single word", "freedom", false},
		{"multi word", "golden sunset", false},
		{"connecting word allowed", "a quiet storm", false},
		{"messy whitespace", "  silver   moon ", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"digits", "route 66", true},
		{"punctuation", "don't stop", true},
		{"six words", "the old wolf and the moon", true},
		{"single letter non connecting", "x ray", true},
		{"word too long", "antidisestablishmentarian", true},
		{"not in dictionary", "flibbertigibbet", true},
		{"over max length", strings.Repeat("freedom ", 13), true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := v.Validate(test.phrase)
			if (err != nil) != test.wantErr {
				t.Fatalf("Validate(%q): got %v, wantErr %v",
					test.phrase, err, test.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPhrase) {
				t.Errorf("error kind: got %v, want ErrInvalidPhrase", err)
			}
		})
	}
}

func TestValidateNormalizeIdempotent(t *testing.T) {
	v := testValidator(t, nil)
	phrases := []string{"freedom", "  golden   sunset ", "route 66", ""}
	for _, p := range phrases {
		raw := v.Validate(p)
		normalized := v.Validate(Normalize(p))
		if (raw == nil) != (normalized == nil) {
			t.Errorf("Validate(%q)=%v but Validate(Normalize)=%v",
				p, raw, normalized)
		}
	}
}

func TestValidatePromptOverlap(t *testing.T) {
	v := testValidator(t, nil)
	tests := []struct {
		name       string
		phrase     string
		promptText string
		wantKind   error
	}{
		{"no overlap", "golden sunset", "a sound that makes you smile", nil},
		{"reuses prompt word", "a happy sound", "a sound that makes you smile",
			ErrInvalidPhrase}, // happy not in dictionary
		{"significant overlap", "wild smile", "a sound that makes you smile",
			ErrTooSimilar},
		{"short words ignored", "the sun", "that sun is bright", nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := v.ValidatePrompt(test.phrase, test.promptText)
			if test.wantKind == nil {
				if err != nil {
					t.Fatalf("ValidatePrompt: unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, test.wantKind) {
				t.Fatalf("ValidatePrompt: got %v, want %v", err, test.wantKind)
			}
		})
	}
}

func TestValidateCopy(t *testing.T) {
	// FREEDOM and LIBERTY embed near-identically; JUSTICE is distinct.
	embed := &stubEmbedder{vectors: map[string][]float64{
		"freedom": {1, 0, 0},
		"liberty": {0.99, 0.14, 0},
		"justice": {0, 1, 0},
		"wisdom":  {0.1, 0.2, 0.97},
	}}
	v := testValidator(t, embed)
	ctx := context.Background()

	tests := []struct {
		name      string
		phrase    string
		original  string
		otherCopy string
		prompt    string
		wantKind  error
	}{
		{"distinct copy accepted", "justice", "freedom", "", "one word for hope", nil},
		{"exact duplicate of original", "FREEDOM", "freedom", "", "", ErrDuplicatePhrase},
		{"exact duplicate of other copy", "justice", "freedom", "Justice", "", ErrDuplicatePhrase},
		{"semantically too close", "liberty", "freedom", "", "", ErrTooSimilar},
		{"shares significant word", "golden freedom", "freedom song", "", "", ErrTooSimilar},
		{"close to other copy", "liberty", "justice", "freedom", "", ErrTooSimilar},
		{"second copy distinct", "wisdom", "freedom", "justice", "", nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := v.ValidateCopy(ctx, test.phrase, test.original,
				test.otherCopy, test.prompt)
			if test.wantKind == nil {
				if err != nil {
					t.Fatalf("ValidateCopy: unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, test.wantKind) {
				t.Fatalf("ValidateCopy: got %v, want %v", err, test.wantKind)
			}
		})
	}
}

func TestValidateCopyEmbedderDown(t *testing.T) {
	v := testValidator(t, &stubEmbedder{failing: true})
	err := v.ValidateCopy(context.Background(), "justice", "freedom", "", "")
	if !errors.Is(err, ErrSimilarityUnavailable) {
		t.Fatalf("copy with dead embedder: got %v, want ErrSimilarityUnavailable", err)
	}

	// Prompts never consult the embedder, so they stay unaffected.
	if err := v.ValidatePrompt("justice", "one word for hope"); err != nil {
		t.Fatalf("prompt with dead embedder: %v", err)
	}
}

func TestValidateCopyNilEmbedder(t *testing.T) {
	v := testValidator(t, nil)
	err := v.ValidateCopy(context.Background(), "justice", "freedom", "", "")
	if !errors.Is(err, ErrSimilarityUnavailable) {
		t.Fatalf("copy with nil embedder: got %v, want ErrSimilarityUnavailable", err)
	}
}

func TestLCSRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"freedom", "freedom", 1},
		{"", "freedom", 0},
		{"abcd", "wxyz", 0},
		{"freedom", "freedoms", 14.0 / 15.0},
		{"smile", "smiles", 10.0 / 11.0},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s/%s", test.a, test.b), func(t *testing.T) {
			got := lcsRatio(test.a, test.b)
			if math.Abs(got-test.want) > 1e-9 {
				t.Errorf("lcsRatio(%q, %q): got %v, want %v",
					test.a, test.b, got, test.want)
			}
		})
	}
}

func TestDictionaryFingerprint(t *testing.T) {
	d1, err := LoadDictionary("")
	if err != nil {
		t.Fatalf("load dictionary: %v", err)
	}
	d2, err := LoadDictionary("")
	if err != nil {
		t.Fatalf("load dictionary: %v", err)
	}
	if d1.Fingerprint() != d2.Fingerprint() {
		t.Fatalf("fingerprint not stable: %s vs %s",
			d1.Fingerprint(), d2.Fingerprint())
	}
	if d1.Fingerprint() == "" {
		t.Fatal("empty fingerprint")
	}
	if !d1.Contains("FREEDOM") {
		t.Fatal("dictionary missing FREEDOM")
	}
	if d1.Contains("FLIBBERTIGIBBET") {
		t.Fatal("dictionary contains nonsense word")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1}, []float64{1, 0}, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := cosineSimilarity(test.a, test.b)
			if math.Abs(got-test.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}
