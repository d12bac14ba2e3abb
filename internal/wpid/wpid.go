// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wpid provides opaque identifiers for all engine entities.
package wpid

import (
	"crypto/rand"
	"fmt"

	"github.com/decred/base58"
)

// rawLen is the number of random bytes backing an identifier.
const rawLen = 16

// ID uniquely identifies a player, round, phraseset, vote, transaction, or
// any other engine entity.  IDs are base58-encoded 128-bit random values and
// are safe to use as map keys and storage key components.
type ID string

// New returns a fresh random ID.
func New() ID {
	var buf [rawLen]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// The platform CSPRNG failing is not a recoverable condition.
		panic(fmt.Sprintf("wpid: entropy source failed: %v", err))
	}
	return ID(base58.Encode(buf[:]))
}

// Valid returns whether the ID decodes to the expected raw length.
func (id ID) Valid() bool {
	if id == "" {
		return false
	}
	return len(base58.Decode(string(id))) == rawLen
}

// String returns the string form of the ID.
func (id ID) String() string {
	return string(id)
}
