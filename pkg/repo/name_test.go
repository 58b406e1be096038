package repo

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()

	names, err := r.ListNames(ctx)
	require.NoError(t, err)
	require.Empty(t, names)

	data := testBytes(2 * 1024)
	addr, _, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)

	require.NoError(t, r.SaveName(ctx, "backup-2026-08-28", addr))
	require.ErrorIs(t, r.SaveName(ctx, "backup-2026-08-28", addr), ErrNameExists)

	entry, err := r.ReadName(ctx, "backup-2026-08-28")
	require.NoError(t, err)
	require.Equal(t, addr, entry.Address)
	require.False(t, entry.Written.IsZero())

	var out bytes.Buffer
	require.NoError(t, r.Load(ctx, "backup-2026-08-28", &out))
	require.Equal(t, data, out.Bytes())

	require.NoError(t, r.SaveName(ctx, "other", addr))
	names, err = r.ListNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"backup-2026-08-28", "other"}, names)

	require.NoError(t, r.RemoveName(ctx, "other"))
	require.ErrorIs(t, r.RemoveName(ctx, "other"), ErrNameNotFound)
	_, err = r.ReadName(ctx, "other")
	require.ErrorIs(t, err, ErrNameNotFound)
}

func TestNameValidation(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()

	for _, bad := range []string{"", ".", "..", "../escape", "/abs", "a/../b", ".hidden"} {
		_, err := r.ReadName(ctx, bad)
		require.Error(t, err, "name %q", bad)
	}
}
