// Package repo implements the deduplicating, content-addressed backup
// store: objects are split into chunks named by the digest of their
// plaintext, organized into recursive index trees, and resolved back
// into byte streams through interchangeable chunk accessors.
package repo

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"

	"github.com/caskstore/cask/pkg/backend"
	"github.com/caskstore/cask/pkg/chunk"
	"github.com/caskstore/cask/pkg/compression"
	"github.com/caskstore/cask/pkg/crypt"
	"github.com/caskstore/cask/pkg/hasher"
	"go.uber.org/zap"
)

// chunkDir is the directory holding chunks inside a generation's
// namespace.
const chunkDir = "chunk"

// Repo is an open repository handle.
//
// A handle may serve multiple concurrent top-level resolutions as long
// as each uses its own accessor; the backend store is assumed safe for
// concurrent use.
type Repo struct {
	store  backend.Store
	l      *zap.Logger
	config Config

	hash      hasher.Hasher
	codec     compression.Codec
	encrypter crypt.Encrypter // nil when the repository is unencrypted
	decrypter crypt.Decrypter // nil when the repository is unencrypted
	policy    Policy

	// ascending, last entry is current
	generations []Generation
}

// Option configures an open repository handle.
type Option func(*Repo)

// Logger sets the repository logger.
func Logger(l *zap.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.l = l
		}
	}
}

// Init creates a repository in an empty store and returns an open
// handle to it. A store already holding a repository yields
// ErrAlreadyInitialized.
func Init(ctx context.Context, store backend.Store, cfg Config, opts ...Option) (*Repo, error) {
	cfg.fillDefaults()

	if cfg.Encryption.Type == EncryptionXChaCha && cfg.Encryption.Key == "" {
		key, err := crypt.NewRandomKey()
		if err != nil {
			return nil, err
		}
		cfg.Encryption.Key = base64.StdEncoding.EncodeToString(key)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := writeConfig(ctx, store, cfg); err != nil {
		return nil, err
	}

	r := &Repo{store: store, l: zap.NewNop()}
	if err := r.createGeneration(ctx, newGeneration(1)); err != nil {
		return nil, err
	}

	return Open(ctx, store, opts...)
}

// Open loads the repository configuration and generation list from
// store.
func Open(ctx context.Context, store backend.Store, opts ...Option) (*Repo, error) {
	cfg, err := readConfig(ctx, store)
	if err != nil {
		return nil, err
	}

	r := &Repo{
		store:  store,
		l:      zap.NewNop(),
		config: cfg,
		policy: cfg.Policy,
	}
	for _, apply := range opts {
		apply(r)
	}

	if r.hash, err = hasher.ForScheme(cfg.Hashing); err != nil {
		return nil, err
	}
	if r.codec, err = compression.ForScheme(cfg.Compression); err != nil {
		return nil, err
	}

	key, err := cfg.encryptionKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		sealer, err := crypt.New(key)
		if err != nil {
			return nil, err
		}
		r.encrypter = sealer
		r.decrypter = sealer
	}

	if r.generations, err = r.listGenerations(ctx); err != nil {
		return nil, err
	}
	if len(r.generations) == 0 {
		return nil, fmt.Errorf("repository holds no generation")
	}

	r.l.Debug("repository open",
		zap.String("store", store.String()),
		zap.String("hashing", r.hash.Name()),
		zap.String("compression", r.codec.Name()),
		zap.Bool("encrypted", r.decrypter != nil),
		zap.Int("generations", len(r.generations)))

	return r, nil
}

// Config returns the repository configuration as loaded at Open.
func (r *Repo) Config() Config {
	return r.config
}

// Store exposes the backing blob store.
func (r *Repo) Store() backend.Store {
	return r.store
}

// ChunkRelPath derives the storage path of a digest under a
// generation's namespace. The same (digest, generation) pair always
// yields the same path; distinct generations yield distinct paths.
func (r *Repo) ChunkRelPath(d chunk.Digest, gen Generation) string {
	hex := d.String()
	return path.Join(gen.String(), chunkDir, hex[0:2], hex[2:4], hex)
}
