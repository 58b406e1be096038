package repo

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caskstore/cask/pkg/chunk"
)

func TestGCKeepsReachableDropsRest(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()

	kept := testBytes(6 * 1024)
	keptAddr, _, err := r.WriteFrom(ctx, bytes.NewReader(kept))
	require.NoError(t, err)
	require.NoError(t, r.SaveName(ctx, "kept", keptAddr))

	doomed := testBytes(7 * 1024)
	doomedAddr, _, err := r.WriteFrom(ctx, bytes.NewReader(doomed))
	require.NoError(t, err)
	require.NoError(t, r.SaveName(ctx, "doomed", doomedAddr))
	require.NoError(t, r.RemoveName(ctx, "doomed"))

	results, err := r.GC(ctx)
	require.NoError(t, err)
	require.Equal(t, Generation("0000000002"), results.Generation)
	require.Equal(t, 1, results.NamesWalked)
	require.Equal(t, []Generation{"0000000001"}, results.GenerationsRemoved)
	require.Equal(t, []Generation{"0000000002"}, r.Generations())

	var out bytes.Buffer
	require.NoError(t, r.Load(ctx, "kept", &out))
	require.Equal(t, kept, out.Bytes())

	err = r.ReadAddress(ctx, doomedAddr, io.Discard)
	require.ErrorIs(t, err, ErrChunkNotFound)
}

func TestGCSurvivesReopen(t *testing.T) {
	r, fs := testRepo(t)
	ctx := context.Background()

	data := testBytes(3 * 1024)
	addr, _, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, r.SaveName(ctx, "persists", addr))

	_, err = r.GC(ctx)
	require.NoError(t, err)

	reopened, err := Open(ctx, storeOver(fs))
	require.NoError(t, err)
	require.Equal(t, []Generation{"0000000002"}, reopened.Generations())

	var out bytes.Buffer
	require.NoError(t, reopened.Load(ctx, "persists", &out))
	require.Equal(t, data, out.Bytes())
}

func TestGCEncryptedRepositoryWithoutDataReads(t *testing.T) {
	// index chunks stay plaintext by default, so the forwarding walk
	// never needs the decrypter even when data chunks are sealed
	r, _ := testRepo(t, func(cfg *Config) {
		cfg.Encryption.Type = EncryptionXChaCha
	})
	ctx := context.Background()

	data := testBytes(9 * 1024)
	addr, _, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, r.SaveName(ctx, "sealed", addr))

	_, err = r.GC(ctx)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, r.Load(ctx, "sealed", &out))
	require.Equal(t, data, out.Bytes())
}

func TestGCAbortsOnMissingChunkBeforeDeleting(t *testing.T) {
	r, fs := testRepo(t, plainPolicy)
	ctx := context.Background()

	data := testBytes(4 * 1024)
	addr, _, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, r.SaveName(ctx, "holed", addr))

	reachable, err := r.ReachableDigests(ctx)
	require.NoError(t, err)
	var removed chunk.Digest
	for d := range reachable {
		if d != addr.Digest {
			removed = d
			require.NoError(t, fs.Remove(r.ChunkRelPath(d, r.CurrentGeneration())))
			break
		}
	}

	_, err = r.GC(ctx)
	require.ErrorIs(t, err, ErrChunkNotFound)

	// the old generation was not deleted: every chunk except the one we
	// removed ourselves is still found somewhere
	for d := range reachable {
		if d == removed {
			continue
		}
		exists, err := r.chunkExists(ctx, d)
		require.NoError(t, err)
		require.True(t, exists, "chunk %s lost by aborted gc", d)
	}
}

func TestReachableDigests(t *testing.T) {
	r, _ := testRepo(t)
	ctx := context.Background()

	data := testBytes(5 * 1024)
	addr, stats, err := r.WriteFrom(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, r.SaveName(ctx, "walked", addr))

	// an unnamed object is invisible to the walk
	_, _, err = r.WriteFrom(ctx, bytes.NewReader(testBytes(2*1024)))
	require.NoError(t, err)

	reachable, err := r.ReachableDigests(ctx)
	require.NoError(t, err)
	require.Len(t, reachable, stats.ChunksNew)
	require.Contains(t, reachable, addr.Digest)
}
