package server

import (
	"bytes"
	"context"
	"math/rand"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/caskstore/cask/pkg/backend"
	"github.com/caskstore/cask/pkg/backend/localfs"
	"github.com/caskstore/cask/pkg/backend/remote"
	"github.com/caskstore/cask/pkg/backend/status"
	"github.com/caskstore/cask/pkg/repo"
	"github.com/caskstore/cask/pkg/sgdata"
)

func testServer(t *testing.T, opts ...Option) (backend.Store, func()) {
	t.Helper()

	srv, err := New(localfs.New(afero.NewMemMapFs()), opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(InitRouter(srv))

	store, err := remote.New(ts.URL, remote.Client(ts.Client()))
	require.NoError(t, err)
	return store, ts.Close
}

func testBytes(n int) []byte {
	out := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(out)
	return out
}

func TestStoreRoundTripOverHTTP(t *testing.T) {
	store, done := testServer(t)
	defer done()
	ctx := context.Background()

	payload := testBytes(1000)
	require.NoError(t, store.Write(ctx, "a/b/blob", sgdata.FromSingle(payload), false))

	got, err := store.Read(ctx, "a/b/blob")
	require.NoError(t, err)
	require.Equal(t, payload, got.Bytes())

	require.ErrorIs(t, store.Write(ctx, "a/b/blob", sgdata.FromSingle(payload), false), status.ErrExists)
	require.NoError(t, store.Write(ctx, "a/b/blob", sgdata.FromSingle(payload), true))

	md, err := store.ReadMetadata(ctx, "a/b/blob")
	require.NoError(t, err)
	require.True(t, md.IsFile)
	require.Equal(t, uint64(len(payload)), md.Len)

	_, err = store.Read(ctx, "a/b/nope")
	require.ErrorIs(t, err, status.ErrNotFound)
	_, err = store.ReadMetadata(ctx, "a/b/nope")
	require.ErrorIs(t, err, status.ErrNotFound)
}

func TestRenameAndRemoveOverHTTP(t *testing.T) {
	store, done := testServer(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "x/old", sgdata.FromSingle([]byte("v")), false))
	require.NoError(t, store.Rename(ctx, "x/old", "y/new"))

	_, err := store.Read(ctx, "x/old")
	require.ErrorIs(t, err, status.ErrNotFound)
	got, err := store.Read(ctx, "y/new")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got.Bytes())

	require.ErrorIs(t, store.Rename(ctx, "x/old", "y/other"), status.ErrNotFound)

	require.NoError(t, store.Remove(ctx, "y/new"))
	_, err = store.Read(ctx, "y/new")
	require.ErrorIs(t, err, status.ErrNotFound)
}

func TestListRecursivelyStreamsBatches(t *testing.T) {
	store, done := testServer(t)
	defer done()
	ctx := context.Background()

	want := map[string]bool{}
	for _, p := range []string{"g/chunk/aa/one", "g/chunk/ab/two", "g/created", "name/n1"} {
		require.NoError(t, store.Write(ctx, p, sgdata.FromSingle([]byte(p)), false))
		want[p] = false
	}

	batches := make(chan []string)
	errC := make(chan error, 1)
	go func() { errC <- store.ListRecursively(ctx, "", batches) }()
	for batch := range batches {
		for _, p := range batch {
			_, known := want[p]
			require.True(t, known, "unexpected path %q", p)
			want[p] = true
		}
	}
	require.NoError(t, <-errC)
	for p, seen := range want {
		require.True(t, seen, "path %q missing from the walk", p)
	}
}

func TestSharedLocksOverHTTP(t *testing.T) {
	store, done := testServer(t)
	defer done()
	ctx := context.Background()

	l1, err := store.LockShared(ctx)
	require.NoError(t, err)
	l2, err := store.LockShared(ctx)
	require.NoError(t, err)

	require.NoError(t, l1.Release())
	require.NoError(t, l2.Release())
	// double release: the server no longer knows the lock
	require.Error(t, l1.Release())

	_, err = store.LockExclusive(ctx)
	require.ErrorIs(t, err, status.ErrNotSupported)
}

func TestReadCacheServesRenamedChunks(t *testing.T) {
	// chunk blobs are immutable and content addressed, so a cached
	// body staying readable after its path was renamed away is
	// correct, not stale
	store, done := testServer(t, CacheSize(16))
	defer done()
	ctx := context.Background()

	payload := testBytes(64)
	require.NoError(t, store.Write(ctx, "0000000001/chunk/aa/aabb", sgdata.FromSingle(payload), false))

	got, err := store.Read(ctx, "0000000001/chunk/aa/aabb")
	require.NoError(t, err)
	require.Equal(t, payload, got.Bytes())

	got, err = store.Read(ctx, "0000000001/chunk/aa/aabb")
	require.NoError(t, err)
	require.Equal(t, payload, got.Bytes())
}

func TestRepositoryOverHTTP(t *testing.T) {
	store, done := testServer(t)
	defer done()
	ctx := context.Background()

	cfg := repo.DefaultConfig()
	cfg.Chunking = repo.ChunkingConfig{Algorithm: repo.ChunkingFixed, Size: 1024}
	r, err := repo.Init(ctx, store, cfg)
	require.NoError(t, err)

	data := testBytes(10 * 1024)
	addr, _, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, r.SaveName(ctx, "over-http", addr))

	var out bytes.Buffer
	require.NoError(t, r.Load(ctx, "over-http", &out))
	require.Equal(t, data, out.Bytes())

	results, err := r.VerifyAll(ctx)
	require.NoError(t, err)
	require.Empty(t, results.Errors)

	_, err = r.GC(ctx)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, r.Load(ctx, "over-http", &out))
	require.Equal(t, data, out.Bytes())
}
