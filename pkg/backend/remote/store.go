// Package remote implements the backend Store against a caskd server.
//
// The protocol is a thin 1:1 mapping of the Store operations onto HTTP
// endpoints; see pkg/backend/api for the shared wire structures.
package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/caskstore/cask/pkg/backend"
	"github.com/caskstore/cask/pkg/backend/api"
	"github.com/caskstore/cask/pkg/backend/status"
	"github.com/caskstore/cask/pkg/sgdata"
	"go.uber.org/zap"
)

// readPartSize is the scatter/gather granularity of downloaded bodies.
const readPartSize = 512 * 1024

// Option configures the remote store.
type Option func(*remoteStore)

// Client overrides the HTTP client (e.g. for timeouts or test transports).
func Client(c *http.Client) Option {
	return func(r *remoteStore) {
		if c != nil {
			r.client = c
		}
	}
}

// Logger overrides the store logger.
func Logger(l *zap.Logger) Option {
	return func(r *remoteStore) {
		if l != nil {
			r.l = l
		}
	}
}

// New creates a Store talking to the caskd server at serverURL.
func New(serverURL string, opts ...Option) (backend.Store, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url %q: %w", serverURL, err)
	}
	r := &remoteStore{
		base:   u,
		client: http.DefaultClient,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r, nil
}

type remoteStore struct {
	base   *url.URL
	client *http.Client
	l      *zap.Logger
}

func (r *remoteStore) String() string {
	return "remote@" + r.base.String()
}

func (r *remoteStore) endpoint(path string, query url.Values) string {
	u := *r.base
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String()
}

func (r *remoteStore) do(req *http.Request) (*http.Response, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, status.ErrInvalidResponse.Wrap(err)
	}
	return resp, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

func (r *remoteStore) Read(ctx context.Context, path string) (sgdata.SG, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.endpoint(api.PathRead, url.Values{api.QueryPath: {path}}), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.do(req)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return sgdata.ReadAll(resp.Body, readPartSize)
	case http.StatusNotFound:
		return nil, status.ErrNotFound
	default:
		return nil, status.ErrInvalidResponse.Wrap(fmt.Errorf("read %q: status %d", path, resp.StatusCode))
	}
}

func (r *remoteStore) Write(ctx context.Context, path string, data sgdata.SG, idempotent bool) error {
	body := data.Bytes()

	// the server double-checks this digest against what it receives
	sum := sha256.Sum256(body)

	r.l.Debug("remote write",
		zap.String("path", path),
		zap.Int("len", len(body)),
		zap.Bool("idempotent", idempotent))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.endpoint(api.PathWrite, nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set(api.HeaderPath, path)
	req.Header.Set(api.HeaderHash, hex.EncodeToString(sum[:]))
	req.Header.Set(api.HeaderIdempotent, strconv.FormatBool(idempotent))

	resp, err := r.do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		return status.ErrExists
	default:
		return status.ErrInvalidResponse.Wrap(fmt.Errorf("write %q: status %d", path, resp.StatusCode))
	}
}

func (r *remoteStore) List(ctx context.Context, path string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.endpoint(api.PathList, url.Values{api.QueryPath: {path}}), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.do(req)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, status.ErrInvalidResponse.Wrap(fmt.Errorf("list %q: status %d", path, resp.StatusCode))
	}

	var lr api.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, status.ErrInvalidResponse.Wrap(err)
	}
	return lr.Paths, nil
}

func (r *remoteStore) ListRecursively(ctx context.Context, path string, out chan<- []string) error {
	defer close(out)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.endpoint(api.PathListRecursively, url.Values{api.QueryPath: {path}}), nil)
	if err != nil {
		return err
	}
	resp, err := r.do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return status.ErrInvalidResponse.Wrap(fmt.Errorf("list-recursively %q: status %d", path, resp.StatusCode))
	}

	// the body is a stream of newline-delimited ListResponse batches
	dec := json.NewDecoder(resp.Body)
	for {
		var lr api.ListResponse
		if err := dec.Decode(&lr); err == io.EOF {
			return nil
		} else if err != nil {
			return status.ErrInvalidResponse.Wrap(err)
		}
		select {
		case out <- lr.Paths:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *remoteStore) ReadMetadata(ctx context.Context, path string) (backend.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.endpoint(api.PathReadMetadata, url.Values{api.QueryPath: {path}}), nil)
	if err != nil {
		return backend.Metadata{}, err
	}
	resp, err := r.do(req)
	if err != nil {
		return backend.Metadata{}, err
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		var md api.ReadMetadataResponse
		if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
			return backend.Metadata{}, status.ErrInvalidResponse.Wrap(err)
		}
		return backend.Metadata{Len: md.Len, IsFile: md.IsFile}, nil
	case http.StatusNotFound:
		return backend.Metadata{}, status.ErrNotFound
	default:
		return backend.Metadata{}, status.ErrInvalidResponse.Wrap(
			fmt.Errorf("read-metadata %q: status %d", path, resp.StatusCode))
	}
}

func (r *remoteStore) Rename(ctx context.Context, src, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.endpoint(api.PathRename, url.Values{api.QuerySrc: {src}, api.QueryDst: {dst}}), nil)
	if err != nil {
		return err
	}
	resp, err := r.do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		// promotion races surface here; the caller decides whether a
		// lost source matters
		return status.ErrNotFound
	default:
		return status.ErrInvalidResponse.Wrap(fmt.Errorf("rename %q -> %q: status %d", src, dst, resp.StatusCode))
	}
}

func (r *remoteStore) Remove(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		r.endpoint(api.PathRemove, url.Values{api.QueryPath: {path}}), nil)
	if err != nil {
		return err
	}
	resp, err := r.do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return status.ErrInvalidResponse.Wrap(fmt.Errorf("remove %q: status %d", path, resp.StatusCode))
	}
}

func (r *remoteStore) RemoveDirAll(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		r.endpoint(api.PathRemoveDir, url.Values{api.QueryPath: {path}}), nil)
	if err != nil {
		return err
	}
	resp, err := r.do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return status.ErrInvalidResponse.Wrap(fmt.Errorf("remove-dir %q: status %d", path, resp.StatusCode))
	}
	return nil
}

type remoteLock struct {
	store *remoteStore
	id    string
}

func (l *remoteLock) Release() error {
	req, err := http.NewRequest(http.MethodDelete,
		l.store.endpoint(api.PathLockShared, url.Values{api.QueryLockID: {l.id}}), nil)
	if err != nil {
		return err
	}
	resp, err := l.store.do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		l.store.l.Warn("could not release remote shared lock",
			zap.String("lock_id", l.id),
			zap.Int("status", resp.StatusCode))
		return status.ErrInvalidResponse
	}
	return nil
}

func (r *remoteStore) LockShared(ctx context.Context) (backend.Lock, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		r.endpoint(api.PathLockShared, nil), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.do(req)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return nil, status.ErrInvalidResponse.Wrap(fmt.Errorf("lock-shared: status %d", resp.StatusCode))
	}
	var lr api.SharedLockResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, status.ErrInvalidResponse.Wrap(err)
	}
	r.l.Debug("created remote shared lock", zap.String("lock_id", lr.LockID))
	return &remoteLock{store: r, id: lr.LockID}, nil
}

func (r *remoteStore) LockExclusive(ctx context.Context) (backend.Lock, error) {
	// the server serializes writers itself
	return nil, status.ErrNotSupported
}
