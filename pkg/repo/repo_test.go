package repo

import (
	"context"
	"math/rand"
	"testing"

	"github.com/docker/go-units"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/caskstore/cask/pkg/backend"
	"github.com/caskstore/cask/pkg/backend/localfs"
)

func storeOver(fs afero.Fs) backend.Store {
	return localfs.New(fs)
}

// testRepo initializes a repository over an in-memory store, with
// chunks small enough that modest inputs split into many of them.
func testRepo(t *testing.T, mutate ...func(*Config)) (*Repo, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	cfg := DefaultConfig()
	cfg.Chunking = ChunkingConfig{Algorithm: ChunkingFixed, Size: units.KiB}
	for _, m := range mutate {
		m(&cfg)
	}

	r, err := Init(context.Background(), storeOver(fs), cfg)
	require.NoError(t, err)
	return r, fs
}

// plainPolicy turns off compression and encryption so stored blobs are
// byte-identical to their plaintext.
func plainPolicy(cfg *Config) {
	cfg.Policy = Policy{}
}

// testBytes returns deterministic pseudo-random content of size n.
func testBytes(n int) []byte {
	out := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(out)
	return out
}

func TestInitAndOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	_, err := Open(ctx, storeOver(fs))
	require.ErrorIs(t, err, ErrNotInitialized)

	r, err := Init(ctx, storeOver(fs), DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, Generation("0000000001"), r.CurrentGeneration())

	_, err = Init(ctx, storeOver(fs), DefaultConfig())
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	reopened, err := Open(ctx, storeOver(fs))
	require.NoError(t, err)
	require.Equal(t, r.Config(), reopened.Config())
}

func TestInitGeneratesEncryptionKey(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := DefaultConfig()
	cfg.Encryption.Type = EncryptionXChaCha

	r, err := Init(context.Background(), storeOver(fs), cfg)
	require.NoError(t, err)
	require.NotEmpty(t, r.Config().Encryption.Key)
}

func TestInitRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunking = ChunkingConfig{Algorithm: "rabin"}

	_, err := Init(context.Background(), storeOver(afero.NewMemMapFs()), cfg)
	require.Error(t, err)
}

func TestAdvanceGeneration(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()

	next, err := r.AdvanceGeneration(ctx)
	require.NoError(t, err)
	require.Equal(t, Generation("0000000002"), next)
	require.Equal(t, next, r.CurrentGeneration())
	require.Equal(t, []Generation{"0000000001", "0000000002"}, r.Generations())

	// a reopened repository sees both
	reopened, err := Open(ctx, r.Store())
	require.NoError(t, err)
	require.Equal(t, r.Generations(), reopened.Generations())
}
