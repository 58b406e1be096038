package repo

import "context"

type countingWriter struct {
	n uint64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += uint64(len(p))
	return len(p), nil
}

// ObjectSize reads the object stored under name and returns its
// plaintext size in bytes. Every chunk is materialized and verified on
// the way, so the number is trustworthy but not cheap.
func (r *Repo) ObjectSize(ctx context.Context, name string) (uint64, error) {
	entry, err := r.ReadName(ctx, name)
	if err != nil {
		return 0, err
	}

	var counter countingWriter
	if err := r.ReadAddress(ctx, entry.Address, &counter); err != nil {
		return 0, err
	}
	return counter.n, nil
}
