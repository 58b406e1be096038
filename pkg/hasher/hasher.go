// Package hasher computes chunk digests over plaintext content.
package hasher

import (
	"crypto/sha256"
	"fmt"

	"github.com/caskstore/cask/pkg/chunk"
	"github.com/caskstore/cask/pkg/sgdata"
	blake2b "github.com/minio/blake2b-simd"
)

const (
	// SchemeBlake2b is the default digesting scheme.
	//
	// The implementation we use (https://github.com/minio/blake2b-simd)
	// is several times faster than MD5 or the SHA family.
	SchemeBlake2b = "blake2b"

	// SchemeSHA256 digests with the standard library sha256.
	SchemeSHA256 = "sha256"
)

// Hasher computes the digest of a chunk's plaintext.
//
// The repository uses it exclusively for the read-time corruption check
// and for naming new chunks on the write path.
type Hasher interface {
	// CalculateDigest hashes every part of data in order.
	CalculateDigest(data sgdata.SG) chunk.Digest

	// Name is the scheme name as stored in the repository config.
	Name() string
}

// ForScheme returns the Hasher for a config scheme name.
func ForScheme(scheme string) (Hasher, error) {
	switch scheme {
	case SchemeBlake2b, "":
		return Blake2b{}, nil
	case SchemeSHA256:
		return SHA256{}, nil
	default:
		return nil, fmt.Errorf("unknown hashing scheme %q", scheme)
	}
}

// Blake2b digests with blake2b truncated to the digest size.
type Blake2b struct{}

// Name of the scheme
func (Blake2b) Name() string { return SchemeBlake2b }

// CalculateDigest hashes every part of data in order
func (Blake2b) CalculateDigest(data sgdata.SG) chunk.Digest {
	h, err := blake2b.New(&blake2b.Config{Size: chunk.DigestSize})
	if err != nil {
		panic("blake2b initialization: " + err.Error())
	}
	for _, part := range data.Parts() {
		_, _ = h.Write(part)
	}
	return chunk.MustNewDigest(h.Sum(nil))
}

// SHA256 digests with the standard library sha256.
type SHA256 struct{}

// Name of the scheme
func (SHA256) Name() string { return SchemeSHA256 }

// CalculateDigest hashes every part of data in order
func (SHA256) CalculateDigest(data sgdata.SG) chunk.Digest {
	h := sha256.New()
	for _, part := range data.Parts() {
		_, _ = h.Write(part)
	}
	return chunk.MustNewDigest(h.Sum(nil))
}
