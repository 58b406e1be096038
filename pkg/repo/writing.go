package repo

import (
	"context"
	"io"

	chunker "github.com/ipfs/boxo/chunker"
	"go.uber.org/zap"

	"github.com/caskstore/cask/pkg/chunk"
	"github.com/caskstore/cask/pkg/sgdata"
)

// WriteStats summarizes one write in dedup terms.
type WriteStats struct {
	// ChunksNew counts chunks this write materialized in the store
	ChunksNew int
	// ChunksReused counts chunks that already existed
	ChunksReused int
	// BytesNew is the plaintext size of the new chunks
	BytesNew uint64
	// BytesReused is the plaintext size of the reused chunks
	BytesReused uint64
}

// WriteFrom splits src per the repository's chunking configuration,
// stores every chunk that is not already present, and returns the
// address of the resulting object.
//
// The address holds a single digest regardless of input size: inputs
// producing more than one leaf get their digest listing stored as
// index chunks, stacked until one chunk remains.
func (r *Repo) WriteFrom(ctx context.Context, src io.Reader) (chunk.DataAddress, WriteStats, error) {
	var stats WriteStats

	digests, err := r.writeLeaves(ctx, src, &stats)
	if err != nil {
		return chunk.DataAddress{}, stats, err
	}

	level := uint32(0)
	for len(digests) > 1 {
		level++
		if digests, err = r.writeIndexLevel(ctx, digests, &stats); err != nil {
			return chunk.DataAddress{}, stats, err
		}
	}

	addr := chunk.DataAddress{Digest: digests[0], IndexLevel: level}
	r.l.Debug("object written",
		zap.Stringer("digest", addr.Digest),
		zap.Uint32("level", addr.IndexLevel),
		zap.Int("chunks-new", stats.ChunksNew),
		zap.Int("chunks-reused", stats.ChunksReused))
	return addr, stats, nil
}

func (r *Repo) writeLeaves(ctx context.Context, src io.Reader, stats *WriteStats) ([]chunk.Digest, error) {
	split := r.newSplitter(src)

	var digests []chunk.Digest
	for {
		part, err := split.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		digest, err := r.storeChunk(ctx, sgdata.FromSingle(part), chunk.DataTypeData, stats)
		if err != nil {
			return nil, err
		}
		digests = append(digests, digest)
	}

	// an empty input still addresses something: one empty leaf
	if len(digests) == 0 {
		digest, err := r.storeChunk(ctx, nil, chunk.DataTypeData, stats)
		if err != nil {
			return nil, err
		}
		digests = append(digests, digest)
	}
	return digests, nil
}

func (r *Repo) newSplitter(src io.Reader) chunker.Splitter {
	if r.config.Chunking.Algorithm == ChunkingFixed {
		return chunker.NewSizeSplitter(src, r.config.Chunking.Size)
	}
	return chunker.NewBuzhash(src)
}

// maxDigestsPerIndexChunk bounds index chunk size so very large
// objects stack into multiple index levels instead of one giant chunk.
// Variable only so tests can shrink the fan-out.
var maxDigestsPerIndexChunk = 64 * 1024

// writeIndexLevel stores the digest listing as chunks of the next
// index level up and returns their digests.
func (r *Repo) writeIndexLevel(ctx context.Context, digests []chunk.Digest, stats *WriteStats) ([]chunk.Digest, error) {
	var parents []chunk.Digest
	for start := 0; start < len(digests); start += maxDigestsPerIndexChunk {
		end := start + maxDigestsPerIndexChunk
		if end > len(digests) {
			end = len(digests)
		}

		group := digests[start:end]
		content := make(sgdata.SG, 0, len(group))
		for i := range group {
			content = append(content, group[i][:])
		}

		parent, err := r.storeChunk(ctx, content, chunk.DataTypeIndex, stats)
		if err != nil {
			return nil, err
		}
		parents = append(parents, parent)
	}
	return parents, nil
}

// storeChunk hashes data, skips the write when the digest already
// exists in any generation, and otherwise seals and persists it in the
// current one.
func (r *Repo) storeChunk(ctx context.Context, data sgdata.SG, dataType chunk.DataType, stats *WriteStats) (chunk.Digest, error) {
	digest := r.hash.CalculateDigest(data)

	exists, err := r.chunkExists(ctx, digest)
	if err != nil {
		return chunk.Digest{}, err
	}
	if exists {
		stats.ChunksReused++
		stats.BytesReused += uint64(data.Len())
		return digest, nil
	}

	sealed := data
	if r.policy.ShouldCompress(dataType) {
		if sealed, err = r.codec.Compress(sealed); err != nil {
			return chunk.Digest{}, err
		}
	}
	if r.policy.ShouldEncrypt(dataType) && r.encrypter != nil {
		if sealed, err = r.encrypter.Encrypt(sealed, digest); err != nil {
			return chunk.Digest{}, err
		}
	}

	// idempotent: a concurrent writer storing the same digest is not a
	// conflict, the content is identical by construction
	err = r.store.Write(ctx, r.ChunkRelPath(digest, r.CurrentGeneration()), sealed, true)
	if err != nil {
		return chunk.Digest{}, err
	}
	stats.ChunksNew++
	stats.BytesNew += uint64(data.Len())
	return digest, nil
}

// chunkExists probes every generation, newest first, by metadata only.
func (r *Repo) chunkExists(ctx context.Context, digest chunk.Digest) (bool, error) {
	for i := len(r.generations) - 1; i >= 0; i-- {
		_, err := r.store.ReadMetadata(ctx, r.ChunkRelPath(digest, r.generations[i]))
		if err == nil {
			return true, nil
		}
	}
	return false, nil
}
