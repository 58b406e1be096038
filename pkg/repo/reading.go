package repo

import (
	"context"
	"fmt"
	"io"

	"github.com/caskstore/cask/pkg/backend/status"
	"github.com/caskstore/cask/pkg/chunk"
	"github.com/caskstore/cask/pkg/compression"
	"github.com/caskstore/cask/pkg/crypt"
	"github.com/caskstore/cask/pkg/errors"
	"github.com/caskstore/cask/pkg/sgdata"
	"go.uber.org/zap"
)

// ErrChunkNotFound tells that a digest is absent from every known
// generation.
var ErrChunkNotFound = errors.New("chunk not found")

// CorruptionError reports that the plaintext recovered for a chunk
// does not hash back to the digest it was requested under.
type CorruptionError struct {
	Digest chunk.Digest // the digest the chunk was addressed by
	Actual chunk.Digest // what the recovered plaintext hashes to
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s corrupted, data read: %s", e.Digest, e.Actual)
}

// chunkAccessor is the capability the read path uses to materialize,
// record or promote a single chunk. The four implementations share
// the same traversal machinery and differ only in what a visit means.
type chunkAccessor interface {
	repo() *Repo

	// readChunkInto delivers the verified plaintext of digest to w.
	readChunkInto(ctx context.Context, digest chunk.Digest, dataType chunk.DataType, w io.Writer) error

	// touch records that digest was visited without materializing it.
	touch(ctx context.Context, digest chunk.Digest) error
}

// readRequest describes one resolution of a data address.
type readRequest struct {
	addr     chunk.DataAddress
	dataType chunk.DataType
	// writer receives the reconstructed bytes; nil discards them and
	// reduces leaf visits to accessor touches
	writer io.Writer
}

// readContext drives one recursive resolution over a single accessor.
type readContext struct {
	ctx context.Context
	acc chunkAccessor
}

func newReadContext(ctx context.Context, acc chunkAccessor) *readContext {
	return &readContext{ctx: ctx, acc: acc}
}

func (c *readContext) readRecursively(req readRequest) error {
	c.acc.repo().l.Debug("reading recursively",
		zap.Stringer("digest", req.addr.Digest),
		zap.Uint32("level", req.addr.IndexLevel))

	if req.addr.IndexLevel == 0 {
		return c.onData(req)
	}
	return c.onIndex(req)
}

func (c *readContext) onData(req readRequest) error {
	if req.writer == nil {
		return c.acc.touch(c.ctx, req.addr.Digest)
	}
	return c.acc.readChunkInto(c.ctx, req.addr.Digest, req.dataType, req.writer)
}

func (c *readContext) onIndex(req readRequest) error {
	translator := newIndexTranslator(c, req.writer, req.dataType, req.addr.IndexLevel-1)

	// the chunk holding the index content is itself read as an index
	// chunk; the request's data type survives for the leaves below
	err := c.acc.readChunkInto(c.ctx, req.addr.Digest, chunk.DataTypeIndex, translator)
	if err != nil {
		return err
	}
	// the completion check stays silent while unwinding from a failed
	// read above
	return translator.Close()
}

// indexTranslator re-chunks an arbitrarily split stream of index bytes
// into digest records and resolves each one as it completes.
//
// It implements io.Writer: whatever slicing the producer uses, every
// 32 consecutive bytes form one child digest at childLevel, resolved
// depth-first in stream order before the next record is even parsed.
type indexTranslator struct {
	rc         *readContext
	writer     io.Writer // forwarded to each child; may be nil
	dataType   chunk.DataType
	childLevel uint32

	// partial digest carried between writes, 0 to 31 bytes
	buf      [chunk.DigestSize]byte
	buffered int
}

func newIndexTranslator(rc *readContext, writer io.Writer, dataType chunk.DataType, childLevel uint32) *indexTranslator {
	return &indexTranslator{
		rc:         rc,
		writer:     writer,
		dataType:   dataType,
		childLevel: childLevel,
	}
}

func (t *indexTranslator) Write(p []byte) (int, error) {
	total := len(p)
	for {
		if t.buffered+len(p) < chunk.DigestSize {
			copy(t.buf[t.buffered:], p)
			t.buffered += len(p)
			return total, nil
		}

		var digest chunk.Digest
		if t.buffered == 0 {
			copy(digest[:], p[:chunk.DigestSize])
			p = p[chunk.DigestSize:]
		} else {
			needs := chunk.DigestSize - t.buffered
			copy(t.buf[t.buffered:], p[:needs])
			p = p[needs:]
			digest = t.buf
			t.buffered = 0
		}

		err := t.rc.readRecursively(readRequest{
			addr:     chunk.DataAddress{Digest: digest, IndexLevel: t.childLevel},
			dataType: t.dataType,
			writer:   t.writer,
		})
		if err != nil {
			return total - len(p), err
		}
		if len(p) == 0 {
			return total, nil
		}
	}
}

// Close enforces the re-chunking invariant: a normally completed index
// stream leaves no partial digest behind.
func (t *indexTranslator) Close() error {
	if t.buffered != 0 {
		return fmt.Errorf("truncated index content: %d trailing bytes do not form a digest", t.buffered)
	}
	return nil
}

// defaultChunkAccessor is the canonical accessor every other variant
// builds on: locate, promote, unseal, verify, deliver.
type defaultChunkAccessor struct {
	r         *Repo
	decrypter crypt.Decrypter
	codec     compression.Codec
	// ascending; the last entry is the current generation
	generations []Generation
}

func newDefaultChunkAccessor(r *Repo) *defaultChunkAccessor {
	return &defaultChunkAccessor{
		r:           r,
		decrypter:   r.decrypter,
		codec:       r.codec,
		generations: r.Generations(),
	}
}

func (a *defaultChunkAccessor) repo() *Repo { return a.r }

func (a *defaultChunkAccessor) readChunkInto(ctx context.Context, digest chunk.Digest, dataType chunk.DataType, w io.Writer) error {
	data, foundGen, err := a.findChunk(ctx, digest)
	if err != nil {
		return err
	}

	if foundGen != a.currentGeneration() {
		if err := a.promote(ctx, digest, foundGen); err != nil {
			return err
		}
	}

	if a.r.policy.ShouldEncrypt(dataType) && a.decrypter != nil {
		if data, err = a.decrypter.Decrypt(data, digest); err != nil {
			return err
		}
	}
	if a.r.policy.ShouldCompress(dataType) {
		if data, err = a.codec.Decompress(data); err != nil {
			return err
		}
	}

	actual := a.r.hash.CalculateDigest(data)
	if actual != digest {
		return &CorruptionError{Digest: digest, Actual: actual}
	}

	_, err = data.WriteTo(w)
	return err
}

func (a *defaultChunkAccessor) touch(ctx context.Context, digest chunk.Digest) error {
	return nil
}

func (a *defaultChunkAccessor) currentGeneration() Generation {
	return a.generations[len(a.generations)-1]
}

// findChunk searches generations newest to oldest; the first one
// holding the digest wins.
func (a *defaultChunkAccessor) findChunk(ctx context.Context, digest chunk.Digest) (sgdata.SG, Generation, error) {
	for i := len(a.generations) - 1; i >= 0; i-- {
		gen := a.generations[i]
		data, err := a.r.store.Read(ctx, a.r.ChunkRelPath(digest, gen))
		if err == nil {
			return data, gen, nil
		}
	}
	return nil, "", ErrChunkNotFound.Wrap(fmt.Errorf("%s", digest))
}

// promote relocates a chunk from an older generation into the current
// one. Best effort: losing the rename race to a concurrent mover is
// fine, anything else is fatal.
func (a *defaultChunkAccessor) promote(ctx context.Context, digest chunk.Digest, from Generation) error {
	src := a.r.ChunkRelPath(digest, from)
	dst := a.r.ChunkRelPath(digest, a.currentGeneration())

	err := a.r.store.Rename(ctx, src, dst)
	if err != nil && !errors.Is(err, status.ErrNotFound) {
		a.r.l.Warn("couldn't move chunk to the current generation",
			zap.String("src-path", src),
			zap.String("dst-path", dst),
			zap.Error(err))
		return err
	}
	return nil
}

// recordingChunkAccessor inserts every visited digest into a
// caller-owned set before reading. After a walk over every live name,
// the set is exactly the reachable-chunk set of a GC mark phase.
//
// The set is borrowed for the duration of the traversal; sharing it
// across concurrently running traversals needs caller-imposed mutual
// exclusion.
type recordingChunkAccessor struct {
	raw      *defaultChunkAccessor
	accessed map[chunk.Digest]struct{}
}

func newRecordingChunkAccessor(r *Repo, accessed map[chunk.Digest]struct{}) *recordingChunkAccessor {
	return &recordingChunkAccessor{
		raw:      newDefaultChunkAccessor(r),
		accessed: accessed,
	}
}

func (a *recordingChunkAccessor) repo() *Repo { return a.raw.repo() }

func (a *recordingChunkAccessor) readChunkInto(ctx context.Context, digest chunk.Digest, dataType chunk.DataType, w io.Writer) error {
	if err := a.touch(ctx, digest); err != nil {
		return err
	}
	return a.raw.readChunkInto(ctx, digest, dataType, w)
}

func (a *recordingChunkAccessor) touch(ctx context.Context, digest chunk.Digest) error {
	a.accessed[digest] = struct{}{}
	return nil
}

// ChunkError pairs a digest with the failure verifying it.
type ChunkError struct {
	Digest chunk.Digest
	Err    error
}

// VerifyResults summarizes a verification walk.
type VerifyResults struct {
	// Scanned counts distinct digests visited
	Scanned int
	// Errors lists every chunk that failed to read back
	Errors []ChunkError
}

// verifyingChunkAccessor reads every distinct chunk exactly once and
// collects failures instead of propagating them, so the walk always
// covers the whole tree.
type verifyingChunkAccessor struct {
	raw      *defaultChunkAccessor
	accessed map[chunk.Digest]struct{}
	errs     []ChunkError
	spent    bool
}

func newVerifyingChunkAccessor(r *Repo) *verifyingChunkAccessor {
	return &verifyingChunkAccessor{
		raw:      newDefaultChunkAccessor(r),
		accessed: make(map[chunk.Digest]struct{}),
	}
}

func (a *verifyingChunkAccessor) repo() *Repo { return a.raw.repo() }

func (a *verifyingChunkAccessor) readChunkInto(ctx context.Context, digest chunk.Digest, dataType chunk.DataType, w io.Writer) error {
	if a.spent {
		panic("verifying accessor used after results were taken")
	}
	if _, seen := a.accessed[digest]; seen {
		return nil
	}
	a.accessed[digest] = struct{}{}

	if err := a.raw.readChunkInto(ctx, digest, dataType, w); err != nil {
		a.errs = append(a.errs, ChunkError{Digest: digest, Err: err})
	}
	return nil
}

func (a *verifyingChunkAccessor) touch(ctx context.Context, digest chunk.Digest) error {
	return a.raw.touch(ctx, digest)
}

// results consumes the accessor; it must not be used afterwards.
func (a *verifyingChunkAccessor) results() VerifyResults {
	if a.spent {
		panic("verify results taken twice")
	}
	a.spent = true
	return VerifyResults{
		Scanned: len(a.accessed),
		Errors:  a.errs,
	}
}

// generationUpdateChunkAccessor reads chunks normally when recursion
// needs their content, but reduces touch to an existence probe plus
// promotion, forwarding reachable chunks across a generation boundary
// without decrypt, decompress or verify.
type generationUpdateChunkAccessor struct {
	raw *defaultChunkAccessor
}

func newGenerationUpdateChunkAccessor(r *Repo) *generationUpdateChunkAccessor {
	return &generationUpdateChunkAccessor{raw: newDefaultChunkAccessor(r)}
}

func (a *generationUpdateChunkAccessor) repo() *Repo { return a.raw.repo() }

func (a *generationUpdateChunkAccessor) readChunkInto(ctx context.Context, digest chunk.Digest, dataType chunk.DataType, w io.Writer) error {
	return a.raw.readChunkInto(ctx, digest, dataType, w)
}

func (a *generationUpdateChunkAccessor) touch(ctx context.Context, digest chunk.Digest) error {
	var foundGen Generation
	found := false
	for i := len(a.raw.generations) - 1; i >= 0; i-- {
		gen := a.raw.generations[i]
		_, err := a.raw.r.store.ReadMetadata(ctx, a.raw.r.ChunkRelPath(digest, gen))
		if err == nil {
			foundGen = gen
			found = true
			break
		}
	}
	if !found {
		return ErrChunkNotFound.Wrap(fmt.Errorf("%s", digest))
	}
	if foundGen != a.raw.currentGeneration() {
		return a.raw.promote(ctx, digest, foundGen)
	}
	return nil
}

// ReadAddress resolves addr and writes the reconstructed object, in
// original order, to w. A nil writer walks the tree without
// materializing leaves (existence only).
func (r *Repo) ReadAddress(ctx context.Context, addr chunk.DataAddress, w io.Writer) error {
	rc := newReadContext(ctx, newDefaultChunkAccessor(r))
	return rc.readRecursively(readRequest{
		addr:     addr,
		dataType: chunk.DataTypeData,
		writer:   w,
	})
}

// Load resolves a stored name and streams the object it names to w.
func (r *Repo) Load(ctx context.Context, name string, w io.Writer) error {
	entry, err := r.ReadName(ctx, name)
	if err != nil {
		return err
	}
	return r.ReadAddress(ctx, entry.Address, w)
}
