// Package crypt seals chunk ciphertext with XChaCha20-Poly1305.
//
// The chunk digest rides along as additional authenticated data, so a
// ciphertext moved under another digest's path fails authentication
// instead of decrypting to foreign plaintext.
package crypt

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/caskstore/cask/pkg/chunk"
	"github.com/caskstore/cask/pkg/sgdata"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size of the symmetric repository key in bytes.
const KeySize = chacha20poly1305.KeySize

// Overhead is the per-chunk ciphertext overhead: nonce plus AEAD tag.
const Overhead = chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// Encrypter seals chunk plaintext.
type Encrypter interface {
	Encrypt(plaintext sgdata.SG, digest chunk.Digest) (sgdata.SG, error)
}

// Decrypter opens chunk ciphertext.
type Decrypter interface {
	Decrypt(ciphertext sgdata.SG, digest chunk.Digest) (sgdata.SG, error)
}

// XChaCha implements both directions with a repository-wide key.
type XChaCha struct {
	key []byte
}

// New creates an XChaCha sealer for a 32-byte key.
func New(key []byte) (*XChaCha, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &XChaCha{key: k}, nil
}

// NewRandomKey generates a fresh repository key.
func NewRandomKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating repository key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext as nonce || ciphertext+tag, binding it to digest.
func (x *XChaCha) Encrypt(plaintext sgdata.SG, digest chunk.Digest) (sgdata.SG, error) {
	aead, err := chacha20poly1305.NewX(x.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+plaintext.Len()+aead.Overhead())
	copy(out, nonce)
	out = aead.Seal(out, nonce, plaintext.Bytes(), digest[:])
	return sgdata.FromSingle(out), nil
}

// Decrypt opens a sealed chunk; authentication failure means a wrong
// key, tampered bytes, or a ciphertext swapped under a foreign digest.
func (x *XChaCha) Decrypt(ciphertext sgdata.SG, digest chunk.Digest) (sgdata.SG, error) {
	raw := ciphertext.Bytes()
	if len(raw) < Overhead {
		return nil, fmt.Errorf("sealed chunk is %d bytes, minimum is %d", len(raw), Overhead)
	}

	aead, err := chacha20poly1305.NewX(x.key)
	if err != nil {
		return nil, err
	}

	nonce := raw[:chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, raw[chacha20poly1305.NonceSizeX:], digest[:])
	if err != nil {
		return nil, fmt.Errorf("opening sealed chunk %s: %w", digest, err)
	}
	return sgdata.FromSingle(plaintext), nil
}
