// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package phrase

// ErrorKind identifies a kind of error.  It has full support for
// errors.Is and errors.As, so the caller can directly check against an
// error kind when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrInvalidPhrase indicates the phrase failed format or dictionary
	// validation.  The error description carries the human-readable
	// reason.
	ErrInvalidPhrase = ErrorKind("ErrInvalidPhrase")

	// ErrDuplicatePhrase indicates a copy phrase exactly matched the
	// original or the other copy after normalization.
	ErrDuplicatePhrase = ErrorKind("ErrDuplicatePhrase")

	// ErrTooSimilar indicates the phrase shares a significant word or
	// exceeds the semantic similarity threshold against a reference
	// phrase.
	ErrTooSimilar = ErrorKind("ErrTooSimilar")

	// ErrSimilarityUnavailable indicates the embedding backend failed
	// while validating a copy, where the policy is to reject.
	ErrSimilarityUnavailable = ErrorKind("ErrSimilarityUnavailable")

	// ErrDictionary indicates the word dictionary could not be loaded.
	ErrDictionary = ErrorKind("ErrDictionary")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a phrase validation error.  It has full support for
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
