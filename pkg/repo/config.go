package repo

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/caskstore/cask/pkg/backend"
	"github.com/caskstore/cask/pkg/backend/status"
	"github.com/caskstore/cask/pkg/chunk"
	"github.com/caskstore/cask/pkg/compression"
	"github.com/caskstore/cask/pkg/crypt"
	"github.com/caskstore/cask/pkg/errors"
	"github.com/caskstore/cask/pkg/hasher"
	"github.com/caskstore/cask/pkg/sgdata"
	"github.com/docker/go-units"
	yaml "gopkg.in/yaml.v2"
)

// configPath is where the repository configuration blob lives in the
// backend.
const configPath = "config.yml"

// ErrAlreadyInitialized tells that the target store already holds a repository
var ErrAlreadyInitialized = errors.New("repository already initialized")

// ErrNotInitialized tells that the target store holds no repository
var ErrNotInitialized = errors.New("repository not initialized")

const (
	// ChunkingBuzhash selects content-defined chunking (default).
	ChunkingBuzhash = "buzhash"

	// ChunkingFixed splits the input at fixed offsets.
	ChunkingFixed = "fixed"

	// EncryptionNone leaves chunks unencrypted.
	EncryptionNone = "none"

	// EncryptionXChaCha seals chunks with XChaCha20-Poly1305.
	EncryptionXChaCha = "xchacha20poly1305"

	// DefaultFixedChunkSize is the leaf size used by the fixed splitter.
	DefaultFixedChunkSize = 2 * units.MiB
)

// ChunkingConfig selects how the write path splits incoming streams.
type ChunkingConfig struct {
	Algorithm string `yaml:"algorithm"`
	// Size is the leaf size for the fixed splitter; ignored by buzhash.
	Size int64 `yaml:"size,omitempty"`
}

// EncryptionConfig selects the chunk sealing scheme.
//
// The repository key is carried verbatim: deriving it from a
// passphrase is the key manager's concern, not this store's.
type EncryptionConfig struct {
	Type string `yaml:"type"`
	Key  string `yaml:"key,omitempty"` // base64
}

// Policy decides which data types get compressed and encrypted.
//
// Index chunks default to neither, so maintenance passes can traverse
// trees without paying for decryption.
type Policy struct {
	CompressData  bool `yaml:"compress_data"`
	EncryptData   bool `yaml:"encrypt_data"`
	CompressIndex bool `yaml:"compress_index"`
	EncryptIndex  bool `yaml:"encrypt_index"`
}

// ShouldCompress reports whether chunks of type t go through the codec.
func (p Policy) ShouldCompress(t chunk.DataType) bool {
	if t == chunk.DataTypeIndex {
		return p.CompressIndex
	}
	return p.CompressData
}

// ShouldEncrypt reports whether chunks of type t are sealed.
func (p Policy) ShouldEncrypt(t chunk.DataType) bool {
	if t == chunk.DataTypeIndex {
		return p.EncryptIndex
	}
	return p.EncryptData
}

// Config is the repository configuration blob, stored as YAML in the
// backend at init time.
type Config struct {
	Version     int              `yaml:"version"`
	Hashing     string           `yaml:"hashing"`
	Compression string           `yaml:"compression"`
	Encryption  EncryptionConfig `yaml:"encryption"`
	Chunking    ChunkingConfig   `yaml:"chunking"`
	Policy      Policy           `yaml:"policy"`
}

// DefaultConfig returns the configuration Init uses when the caller
// does not override anything: buzhash chunking, blake2b digests, zstd
// compressed data chunks, no encryption.
func DefaultConfig() Config {
	return Config{
		Version:     1,
		Hashing:     hasher.SchemeBlake2b,
		Compression: compression.SchemeZstd,
		Encryption:  EncryptionConfig{Type: EncryptionNone},
		Chunking:    ChunkingConfig{Algorithm: ChunkingBuzhash},
		Policy: Policy{
			CompressData: true,
			EncryptData:  true, // no-op while encryption type is none
		},
	}
}

func (c *Config) fillDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Hashing == "" {
		c.Hashing = hasher.SchemeBlake2b
	}
	if c.Compression == "" {
		c.Compression = compression.SchemeZstd
	}
	if c.Encryption.Type == "" {
		c.Encryption.Type = EncryptionNone
	}
	if c.Chunking.Algorithm == "" {
		c.Chunking.Algorithm = ChunkingBuzhash
	}
	if c.Chunking.Algorithm == ChunkingFixed && c.Chunking.Size == 0 {
		c.Chunking.Size = DefaultFixedChunkSize
	}
}

func (c Config) validate() error {
	switch c.Chunking.Algorithm {
	case ChunkingBuzhash:
	case ChunkingFixed:
		if c.Chunking.Size < chunk.DigestSize {
			return fmt.Errorf("fixed chunk size %d is smaller than a digest", c.Chunking.Size)
		}
	default:
		return fmt.Errorf("unknown chunking algorithm %q", c.Chunking.Algorithm)
	}
	switch c.Encryption.Type {
	case EncryptionNone, EncryptionXChaCha:
	default:
		return fmt.Errorf("unknown encryption type %q", c.Encryption.Type)
	}
	return nil
}

func writeConfig(ctx context.Context, store backend.Store, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := store.Write(ctx, configPath, sgdata.FromSingle(b), false); err != nil {
		if errors.Is(err, status.ErrExists) {
			return ErrAlreadyInitialized
		}
		return err
	}
	return nil
}

func readConfig(ctx context.Context, store backend.Store) (Config, error) {
	data, err := store.Read(ctx, configPath)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return Config{}, ErrNotInitialized
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data.Bytes(), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing repository config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c Config) encryptionKey() ([]byte, error) {
	if c.Encryption.Type != EncryptionXChaCha {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("decoding repository key: %w", err)
	}
	if len(key) != crypt.KeySize {
		return nil, fmt.Errorf("repository key has %d bytes, expected %d", len(key), crypt.KeySize)
	}
	return key, nil
}
