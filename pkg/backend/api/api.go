// Package api holds the wire structures shared by the remote store
// client and the caskd server.
package api

// Endpoint paths and header names of the remote store protocol.
const (
	PathList            = "/list"
	PathRead            = "/read"
	PathReadMetadata    = "/read-metadata"
	PathWrite           = "/write"
	PathLockShared      = "/lock-shared"
	PathListRecursively = "/list-recursively"
	PathRemove          = "/remove"
	PathRemoveDir       = "/remove-dir"
	PathRename          = "/rename"

	// QuerySrc and QueryDst name the blob paths on POST /rename
	QuerySrc = "src"
	QueryDst = "dst"

	// HeaderPath carries the blob path on POST /write
	HeaderPath = "path"
	// HeaderHash carries the client-computed sha256 of the body on POST /write
	HeaderHash = "hash"
	// HeaderIdempotent, when "true", makes POST /write treat an existing
	// path as success; otherwise an existing path answers 409
	HeaderIdempotent = "idempotent"

	// QueryPath is the blob path query parameter on GET endpoints
	QueryPath = "path"
	// QueryLockID identifies a shared lock on DELETE /lock-shared
	QueryLockID = "lock_id"
)

// ListResponse answers GET /list; GET /list-recursively streams a
// newline-delimited sequence of these.
type ListResponse struct {
	Paths []string `json:"paths"`
}

// ReadMetadataResponse answers GET /read-metadata.
type ReadMetadataResponse struct {
	Len    uint64 `json:"len"`
	IsFile bool   `json:"is_file"`
}

// SharedLockResponse answers PUT /lock-shared with status 201.
type SharedLockResponse struct {
	LockID string `json:"lock_id"`
}
