// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rounds

// ErrorKind identifies a kind of error.  It has full support for
// errors.Is and errors.As, so the caller can directly check against an
// error kind when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrAlreadyInRound indicates the player already has an active
	// round.
	ErrAlreadyInRound = ErrorKind("ErrAlreadyInRound")

	// ErrMaxOutstandingPrompts indicates the player has reached the
	// bound on prompts awaiting copies or votes.
	ErrMaxOutstandingPrompts = ErrorKind("ErrMaxOutstandingPrompts")

	// ErrNoPromptsEnabled indicates the prompt library has no enabled
	// entries to draw from.
	ErrNoPromptsEnabled = ErrorKind("ErrNoPromptsEnabled")

	// ErrNoPromptsAvailable indicates no queued prompt round is
	// eligible for this player.
	ErrNoPromptsAvailable = ErrorKind("ErrNoPromptsAvailable")

	// ErrRoundNotFound indicates the referenced round does not exist or
	// belongs to another player.
	ErrRoundNotFound = ErrorKind("ErrRoundNotFound")

	// ErrRoundExpired indicates the round's submission window has
	// closed.
	ErrRoundExpired = ErrorKind("ErrRoundExpired")

	// ErrWrongRoundState indicates the round is not in the state the
	// operation requires.
	ErrWrongRoundState = ErrorKind("ErrWrongRoundState")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a round coordination error.  It has full support for
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
