// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package phrase

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"lukechampine.com/blake3"
)

//go:embed data/wordlist.txt
var embeddedWordlist []byte

// Dictionary is an immutable set of uppercase words loaded once at
// startup.  The fingerprint identifies the exact wordlist a running
// process validates against, which is logged so operators can tell
// deployments apart.
type Dictionary struct {
	words       map[string]struct{}
	fingerprint string
}

// LoadDictionary reads a wordlist with one word per line from path.  An
// empty path selects the embedded default wordlist.  Blank lines are
// skipped and words are uppercased.
func LoadDictionary(path string) (*Dictionary, error) {
	raw := embeddedWordlist
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, makeError(ErrDictionary,
				fmt.Sprintf("read wordlist %s: %v", path, err))
		}
	}

	words := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		word := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if word == "" {
			continue
		}
		words[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, makeError(ErrDictionary, fmt.Sprintf("scan wordlist: %v", err))
	}
	if len(words) == 0 {
		return nil, makeError(ErrDictionary, "wordlist is empty")
	}

	sum := blake3.Sum256(raw)
	return &Dictionary{
		words:       words,
		fingerprint: hex.EncodeToString(sum[:8]),
	}, nil
}

// Contains reports whether the uppercase word is in the dictionary.
func (d *Dictionary) Contains(word string) bool {
	_, ok := d.words[word]
	return ok
}

// Len returns the number of words in the dictionary.
func (d *Dictionary) Len() int {
	return len(d.words)
}

// Fingerprint returns a short hex digest of the loaded wordlist bytes.
func (d *Dictionary) Fingerprint() string {
	return d.fingerprint
}
