// Package backend defines the blob-store collaborator consumed by the
// repository: a flat namespace of paths holding opaque byte blobs.
//
// Implementations are expected to be safe for concurrent use; the
// repository performs no retries, timeouts or backoff on their behalf.
package backend

import (
	"context"

	"github.com/caskstore/cask/pkg/sgdata"
)

// Metadata describes a stored path without materializing its content.
type Metadata struct {
	Len    uint64
	IsFile bool
}

// Lock is a repository-wide lock held until released.
type Lock interface {
	Release() error
}

// Store implementations know how to persist blobs under relative paths.
//
// Typically this is something file system-like: a local directory tree,
// or a remote server exposing the same operations over HTTP.
type Store interface {
	String() string

	// Read returns the full content stored under path, or
	// status.ErrNotFound.
	Read(ctx context.Context, path string) (sgdata.SG, error)

	// Write stores data under path. When idempotent is set, an
	// already-existing path is not an error and the existing content
	// wins.
	Write(ctx context.Context, path string, data sgdata.SG, idempotent bool) error

	// List returns the paths directly under path.
	List(ctx context.Context, path string) ([]string, error)

	// ListRecursively streams batches of paths found under path into
	// out. The channel is closed when the walk completes; the returned
	// error reports a walk that could not start or finish.
	ListRecursively(ctx context.Context, path string, out chan<- []string) error

	// ReadMetadata probes a path without reading its content, or
	// returns status.ErrNotFound.
	ReadMetadata(ctx context.Context, path string) (Metadata, error)

	// Rename moves a blob. Missing source surfaces as
	// status.ErrNotFound.
	Rename(ctx context.Context, src, dst string) error

	Remove(ctx context.Context, path string) error
	RemoveDirAll(ctx context.Context, path string) error

	// LockShared takes a shared repository lock (concurrent readers).
	LockShared(ctx context.Context) (Lock, error)

	// LockExclusive takes the exclusive repository lock (single writer).
	LockExclusive(ctx context.Context) (Lock, error)
}
