package repo

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteDeduplicates(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()
	data := testBytes(10 * 1024)

	addr1, stats1, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.NotZero(t, stats1.ChunksNew)
	require.Zero(t, stats1.ChunksReused)

	// the identical stream costs nothing the second time
	addr2, stats2, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, addr1, addr2)
	require.Zero(t, stats2.ChunksNew)
	require.Equal(t, stats1.ChunksNew, stats2.ChunksReused)
}

func TestWritePartialOverlap(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()

	shared := testBytes(8 * 1024)
	_, _, err := r.WriteFrom(ctx, bytes.NewReader(shared))
	require.NoError(t, err)

	// fixed chunking keeps the shared prefix's chunk boundaries stable
	extended := append(append([]byte{}, shared...), testBytes(4*1024)...)
	_, stats, err := r.WriteFrom(ctx, bytes.NewReader(extended))
	require.NoError(t, err)
	require.NotZero(t, stats.ChunksReused)
	require.NotZero(t, stats.ChunksNew)
}

func TestWriteEmptyInput(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()

	addr, stats, err := r.WriteFrom(ctx, bytes.NewReader(nil))
	require.NoError(t, err)
	require.Equal(t, uint32(0), addr.IndexLevel)
	require.Equal(t, 1, stats.ChunksNew)

	var out bytes.Buffer
	require.NoError(t, r.ReadAddress(ctx, addr, &out))
	require.Zero(t, out.Len())
}

func TestWriteAfterGenerationAdvanceReusesOldChunks(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()
	data := testBytes(6 * 1024)

	_, stats1, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)

	_, err = r.AdvanceGeneration(ctx)
	require.NoError(t, err)

	// existence probes look through all generations, not just the
	// current one
	_, stats2, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.Zero(t, stats2.ChunksNew)
	require.Equal(t, stats1.ChunksNew, stats2.ChunksReused)
}

func TestObjectSize(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()
	data := testBytes(37 * 1024)

	addr, _, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, r.SaveName(ctx, "sized", addr))

	size, err := r.ObjectSize(ctx, "sized")
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), size)
}
