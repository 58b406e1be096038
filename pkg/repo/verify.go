package repo

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/caskstore/cask/pkg/chunk"
)

// VerifyName reads back every chunk reachable from name and reports
// the chunks that failed. The walk never aborts on a bad chunk; it
// records the failure and carries on.
func (r *Repo) VerifyName(ctx context.Context, name string) (VerifyResults, error) {
	entry, err := r.ReadName(ctx, name)
	if err != nil {
		return VerifyResults{}, err
	}

	acc := newVerifyingChunkAccessor(r)
	if err := r.verifyWalk(ctx, acc, entry.Address); err != nil {
		return VerifyResults{}, err
	}
	return acc.results(), nil
}

// VerifyAll verifies every stored name over one shared visited set, so
// chunks referenced from several names are read once.
func (r *Repo) VerifyAll(ctx context.Context) (VerifyResults, error) {
	names, err := r.ListNames(ctx)
	if err != nil {
		return VerifyResults{}, err
	}

	acc := newVerifyingChunkAccessor(r)
	for _, name := range names {
		entry, err := r.ReadName(ctx, name)
		if err != nil {
			return VerifyResults{}, err
		}
		if err := r.verifyWalk(ctx, acc, entry.Address); err != nil {
			return VerifyResults{}, err
		}
	}

	results := acc.results()
	r.l.Debug("verification done",
		zap.Int("names", len(names)),
		zap.Int("chunks-scanned", results.Scanned),
		zap.Int("chunks-bad", len(results.Errors)))
	return results, nil
}

func (r *Repo) verifyWalk(ctx context.Context, acc *verifyingChunkAccessor, addr chunk.DataAddress) error {
	rc := newReadContext(ctx, acc)
	return rc.readRecursively(readRequest{
		addr:     addr,
		dataType: chunk.DataTypeData,
		// the bytes only exist to be hashed; nobody keeps them
		writer: io.Discard,
	})
}
