package repo

import (
	"context"

	"go.uber.org/zap"

	"github.com/caskstore/cask/pkg/chunk"
)

// GCResults summarizes a garbage collection pass.
type GCResults struct {
	// Generation is the new current generation everything live moved to
	Generation Generation
	// NamesWalked counts the names whose trees were traversed
	NamesWalked int
	// GenerationsRemoved lists the stale generations that were deleted
	GenerationsRemoved []Generation
}

// GC reclaims unreachable chunks. It opens a fresh generation, walks
// every stored name forwarding each reachable chunk into it, then
// deletes the older generations wholesale with whatever garbage they
// still hold.
//
// The walk moves data chunks by metadata probe and rename alone; only
// index chunks are materialized, for their child digests. Any walk
// error aborts the pass before anything is deleted, leaving the extra
// generation behind as harmless overhead for the next pass.
func (r *Repo) GC(ctx context.Context) (GCResults, error) {
	stale := r.Generations()

	next, err := r.AdvanceGeneration(ctx)
	if err != nil {
		return GCResults{}, err
	}
	r.l.Debug("gc started", zap.String("generation", next.String()))

	names, err := r.ListNames(ctx)
	if err != nil {
		return GCResults{}, err
	}

	acc := newGenerationUpdateChunkAccessor(r)
	rc := newReadContext(ctx, acc)
	for _, name := range names {
		entry, err := r.ReadName(ctx, name)
		if err != nil {
			return GCResults{}, err
		}
		err = rc.readRecursively(readRequest{
			addr:     entry.Address,
			dataType: chunk.DataTypeData,
			writer:   nil,
		})
		if err != nil {
			return GCResults{}, err
		}
	}

	results := GCResults{Generation: next, NamesWalked: len(names)}
	for _, gen := range stale {
		if err := r.store.RemoveDirAll(ctx, gen.String()); err != nil {
			return results, err
		}
		results.GenerationsRemoved = append(results.GenerationsRemoved, gen)
	}
	r.generations = []Generation{next}

	r.l.Debug("gc done",
		zap.Int("names-walked", results.NamesWalked),
		zap.Int("generations-removed", len(results.GenerationsRemoved)))
	return results, nil
}

// ReachableDigests walks every stored name and returns the set of
// digests reachable from them, index chunks included. Leaves are not
// materialized.
func (r *Repo) ReachableDigests(ctx context.Context) (map[chunk.Digest]struct{}, error) {
	names, err := r.ListNames(ctx)
	if err != nil {
		return nil, err
	}

	reachable := make(map[chunk.Digest]struct{})
	acc := newRecordingChunkAccessor(r, reachable)
	rc := newReadContext(ctx, acc)
	for _, name := range names {
		entry, err := r.ReadName(ctx, name)
		if err != nil {
			return nil, err
		}
		err = rc.readRecursively(readRequest{
			addr:     entry.Address,
			dataType: chunk.DataTypeData,
			writer:   nil,
		})
		if err != nil {
			return nil, err
		}
	}
	return reachable, nil
}
