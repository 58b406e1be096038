// Package localfs implements the backend Store on top of a local
// file system tree (through afero, so tests may run fully in memory).
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caskstore/cask/pkg/backend"
	"github.com/caskstore/cask/pkg/backend/status"
	"github.com/caskstore/cask/pkg/sgdata"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	// staging area for atomic writes: blobs are fully written here,
	// then Rename()d into place
	putStageDir = ".put-stage"

	lockDir           = "locks"
	exclusiveLockName = "exclusive"
	sharedLockDir     = "shared"

	// read granularity for scatter/gather parts
	readPartSize = 512 * 1024

	// batch size for recursive listings
	listBatchSize = 256
)

// New creates a local file system backed blob store rooted at fs.
func New(fs afero.Fs) backend.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".cask", "objects"))
	}
	return &localFS{fs: fs}
}

// NewAtPath roots the store at an OS directory.
func NewAtPath(dir string) backend.Store {
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

type localFS struct {
	fs afero.Fs
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}

func (l *localFS) Read(ctx context.Context, path string) (sgdata.SG, error) {
	fi, err := l.fs.Stat(path)
	if err != nil || fi.IsDir() {
		return nil, status.ErrNotFound
	}
	f, err := l.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotFound
		}
		return nil, err
	}
	defer f.Close()
	return sgdata.ReadAll(f, readPartSize)
}

func (l *localFS) Write(ctx context.Context, path string, data sgdata.SG, idempotent bool) error {
	if fi, err := l.fs.Stat(path); err == nil && !fi.IsDir() {
		if idempotent {
			return nil
		}
		return status.ErrExists
	}

	// stage first, then rename into place: Rename is atomic on the
	// file systems we care about, so readers never observe a torn blob
	stageKey := filepath.Join(putStageDir, uuid.New().String())
	if err := l.fs.MkdirAll(putStageDir, 0700); err != nil {
		return fmt.Errorf("ensuring staging directory: %v", err)
	}
	target, err := l.fs.OpenFile(stageKey, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create staged blob for %q: %v", path, err)
	}
	if _, err = data.WriteTo(target); err != nil {
		target.Close()
		return fmt.Errorf("write staged blob for %q: %v", path, err)
	}
	if err = target.Close(); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err = l.fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("ensuring directories for %q: %v", path, err)
		}
	}
	return l.fs.Rename(stageKey, path)
}

func (l *localFS) List(ctx context.Context, path string) ([]string, error) {
	if path == "" {
		path = "."
	}
	infos, err := afero.ReadDir(l.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	paths := make([]string, 0, len(infos))
	for _, fi := range infos {
		paths = append(paths, filepath.Join(path, fi.Name()))
	}
	return paths, nil
}

func (l *localFS) ListRecursively(ctx context.Context, path string, out chan<- []string) error {
	defer close(out)

	if path == "" {
		path = "."
	}
	batch := make([]string, 0, listBatchSize)
	err := afero.Walk(l.fs, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			// internal bookkeeping never shows up in listings
			if p == putStageDir || p == lockDir {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, p)
		if len(batch) == listBatchSize {
			out <- batch
			batch = make([]string, 0, listBatchSize)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		out <- batch
	}
	return nil
}

func (l *localFS) ReadMetadata(ctx context.Context, path string) (backend.Metadata, error) {
	fi, err := l.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return backend.Metadata{}, status.ErrNotFound
		}
		return backend.Metadata{}, err
	}
	return backend.Metadata{
		Len:    uint64(fi.Size()),
		IsFile: !fi.IsDir(),
	}, nil
}

func (l *localFS) Rename(ctx context.Context, src, dst string) error {
	if _, err := l.fs.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return status.ErrNotFound
		}
		return err
	}
	if dir := filepath.Dir(dst); dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("ensuring directories for %q: %v", dst, err)
		}
	}
	return l.fs.Rename(src, dst)
}

func (l *localFS) Remove(ctx context.Context, path string) error {
	if err := l.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %v", path, err)
	}
	return nil
}

func (l *localFS) RemoveDirAll(ctx context.Context, path string) error {
	return l.fs.RemoveAll(path)
}

type fileLock struct {
	fs   afero.Fs
	path string
}

func (f *fileLock) Release() error {
	if err := f.fs.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *localFS) LockExclusive(ctx context.Context) (backend.Lock, error) {
	if err := l.fs.MkdirAll(lockDir, 0700); err != nil {
		return nil, err
	}
	path := filepath.Join(lockDir, exclusiveLockName)
	f, err := l.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, status.ErrLockHeld
		}
		return nil, err
	}
	if _, err = f.Write([]byte(uuid.New().String() + "\n")); err != nil {
		f.Close()
		return nil, err
	}
	if err = f.Close(); err != nil {
		return nil, err
	}
	return &fileLock{fs: l.fs, path: path}, nil
}

func (l *localFS) LockShared(ctx context.Context) (backend.Lock, error) {
	dir := filepath.Join(lockDir, sharedLockDir)
	if err := l.fs.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, uuid.New().String())
	f, err := l.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	if err = f.Close(); err != nil {
		return nil, err
	}
	return &fileLock{fs: l.fs, path: path}, nil
}
