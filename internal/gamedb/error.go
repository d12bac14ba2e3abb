// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gamedb

// ErrorKind identifies a kind of error.  It has full support for
// errors.Is and errors.As, so the caller can directly check against an
// error kind when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = ErrorKind("ErrNotFound")

	// ErrExists indicates an insert collided with an existing unique row,
	// such as a second vote by the same player on the same phraseset.
	ErrExists = ErrorKind("ErrExists")

	// ErrCorrupted indicates a stored row failed to decode.
	ErrCorrupted = ErrorKind("ErrCorrupted")

	// ErrClosed indicates an operation was attempted against a database
	// that has already been shut down.
	ErrClosed = ErrorKind("ErrClosed")

	// ErrDriver indicates the underlying storage driver failed.
	ErrDriver = ErrorKind("ErrDriver")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a database error.  It has full support for errors.Is
// and errors.As, so the caller can ascertain the specific reason for the
// error by checking the underlying error kind.
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
