// Package status declares error constants returned by implementations
// of the backend Store interface.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/backend and its
// implementations.
package status

import "github.com/caskstore/cask/pkg/errors"

var (
	// Sentinel errors returned by implementations of the Store interface

	// ErrNotFound indicates that the target path holds no blob
	ErrNotFound = errors.New("not found")

	// ErrExists indicates that the path already holds a blob and the
	// write was not idempotent
	ErrExists = errors.New("exists already")

	// ErrInvalidResponse indicates that a remote store answered with
	// something the protocol does not allow
	ErrInvalidResponse = errors.New("invalid response")

	// ErrLockHeld indicates that the exclusive repository lock is
	// already taken
	ErrLockHeld = errors.New("repository lock held")

	// ErrNotSupported indicates that the backend does not support this call
	ErrNotSupported = errors.New("not supported")
)
