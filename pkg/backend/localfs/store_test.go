package localfs

import (
	"context"
	"sort"
	"testing"

	"github.com/caskstore/cask/pkg/backend/status"
	"github.com/caskstore/cask/pkg/errors"
	"github.com/caskstore/cask/pkg/sgdata"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func memStore() *localFS {
	return New(afero.NewMemMapFs()).(*localFS)
}

func TestLocalFSWriteRead(t *testing.T) {
	ctx := context.Background()
	store := memStore()

	payload := sgdata.SG{[]byte("hello "), []byte("blob")}
	require.NoError(t, store.Write(ctx, "gen0/chunk/ab/cd/abcd", payload, false))

	got, err := store.Read(ctx, "gen0/chunk/ab/cd/abcd")
	require.NoError(t, err)
	require.Equal(t, []byte("hello blob"), got.Bytes())

	_, err = store.Read(ctx, "gen0/chunk/ab/cd/missing")
	require.True(t, errors.Is(err, status.ErrNotFound))
}

func TestLocalFSWriteIdempotency(t *testing.T) {
	ctx := context.Background()
	store := memStore()

	require.NoError(t, store.Write(ctx, "k", sgdata.FromSingle([]byte("first")), false))
	err := store.Write(ctx, "k", sgdata.FromSingle([]byte("second")), false)
	require.True(t, errors.Is(err, status.ErrExists))

	// idempotent write on an existing path is a no-op, existing content wins
	require.NoError(t, store.Write(ctx, "k", sgdata.FromSingle([]byte("second")), true))
	got, err := store.Read(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got.Bytes())
}

func TestLocalFSReadMetadata(t *testing.T) {
	ctx := context.Background()
	store := memStore()

	require.NoError(t, store.Write(ctx, "dir/blob", sgdata.FromSingle([]byte("12345")), false))

	md, err := store.ReadMetadata(ctx, "dir/blob")
	require.NoError(t, err)
	require.True(t, md.IsFile)
	require.Equal(t, uint64(5), md.Len)

	_, err = store.ReadMetadata(ctx, "dir/other")
	require.True(t, errors.Is(err, status.ErrNotFound))
}

func TestLocalFSRename(t *testing.T) {
	ctx := context.Background()
	store := memStore()

	require.NoError(t, store.Write(ctx, "old/gen/blob", sgdata.FromSingle([]byte("x")), false))
	require.NoError(t, store.Rename(ctx, "old/gen/blob", "new/gen/blob"))

	_, err := store.Read(ctx, "old/gen/blob")
	require.True(t, errors.Is(err, status.ErrNotFound))

	got, err := store.Read(ctx, "new/gen/blob")
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got.Bytes())

	err = store.Rename(ctx, "never/was", "wherever")
	require.True(t, errors.Is(err, status.ErrNotFound))
}

func TestLocalFSListRecursively(t *testing.T) {
	ctx := context.Background()
	store := memStore()

	want := []string{"a/1", "a/2", "a/b/3", "c/4"}
	for _, p := range want {
		require.NoError(t, store.Write(ctx, p, sgdata.FromSingle([]byte(p)), false))
	}

	out := make(chan []string)
	errC := make(chan error, 1)
	go func() {
		errC <- store.ListRecursively(ctx, "", out)
	}()

	var got []string
	for batch := range out {
		got = append(got, batch...)
	}
	require.NoError(t, <-errC)

	sort.Strings(got)
	require.Equal(t, want, got)
}

func TestLocalFSLocks(t *testing.T) {
	ctx := context.Background()
	store := memStore()

	excl, err := store.LockExclusive(ctx)
	require.NoError(t, err)

	_, err = store.LockExclusive(ctx)
	require.True(t, errors.Is(err, status.ErrLockHeld))

	require.NoError(t, excl.Release())
	excl2, err := store.LockExclusive(ctx)
	require.NoError(t, err)
	require.NoError(t, excl2.Release())

	// shared locks stack freely
	s1, err := store.LockShared(ctx)
	require.NoError(t, err)
	s2, err := store.LockShared(ctx)
	require.NoError(t, err)
	require.NoError(t, s1.Release())
	require.NoError(t, s2.Release())
}
