// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package votes

// ErrorKind identifies a kind of error.  It has full support for
// errors.Is and errors.As, so the caller can directly check against an
// error kind when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrAlreadyInRound indicates the player already has an active
	// round.
	ErrAlreadyInRound = ErrorKind("ErrAlreadyInRound")

	// ErrNoPhrasesetsAvailable indicates no phraseset is eligible for
	// this voter.
	ErrNoPhrasesetsAvailable = ErrorKind("ErrNoPhrasesetsAvailable")

	// ErrRoundExpired indicates the vote round's submission window has
	// closed.
	ErrRoundExpired = ErrorKind("ErrRoundExpired")

	// ErrRoundNotFound indicates the player has no active vote round on
	// the phraseset.
	ErrRoundNotFound = ErrorKind("ErrRoundNotFound")

	// ErrAlreadyVoted indicates the player has already voted on the
	// phraseset.
	ErrAlreadyVoted = ErrorKind("ErrAlreadyVoted")

	// ErrInvalidChoice indicates the submitted phrase is not one of the
	// phraseset's three phrases.
	ErrInvalidChoice = ErrorKind("ErrInvalidChoice")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a vote service error.  It has full support for
// errors.Is and errors.As, so the caller can ascertain the specific
// reason for the error by checking the underlying error kind.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}
