// Package server implements the caskd HTTP server: the remote store
// wire protocol mapped onto any backend Store.
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/caskstore/cask/pkg/backend"
	"github.com/caskstore/cask/pkg/backend/api"
	"github.com/caskstore/cask/pkg/backend/status"
	"github.com/caskstore/cask/pkg/errors"
	"github.com/caskstore/cask/pkg/sgdata"
)

// DefaultCacheSize is the default number of cached chunk bodies.
const DefaultCacheSize = 512

// Option configures the server.
type Option func(*Server)

// Logger overrides the server logger.
func Logger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.l = l
		}
	}
}

// CacheSize sets the read cache capacity in entries; zero disables it.
func CacheSize(n int) Option {
	return func(s *Server) {
		s.cacheSize = n
	}
}

// Server serves the store protocol over a single backend.
type Server struct {
	store     backend.Store
	l         *zap.Logger
	cache     *lru.Cache
	cacheSize int

	mu    sync.Mutex
	locks map[string]backend.Lock
}

// New creates a Server over store.
func New(store backend.Store, opts ...Option) (*Server, error) {
	s := &Server{
		store:     store,
		l:         zap.NewNop(),
		cacheSize: DefaultCacheSize,
		locks:     make(map[string]backend.Lock),
	}
	for _, apply := range opts {
		apply(s)
	}
	if s.cacheSize > 0 {
		var err error
		if s.cache, err = lru.New(s.cacheSize); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// InitRouter wires the protocol endpoints onto a chi router.
func InitRouter(srv *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(api.PathList, srv.HandleList())
	r.Get(api.PathListRecursively, srv.HandleListRecursively())
	r.Get(api.PathRead, srv.HandleRead())
	r.Get(api.PathReadMetadata, srv.HandleReadMetadata())
	r.Post(api.PathWrite, srv.HandleWrite())
	r.Post(api.PathRename, srv.HandleRename())
	r.Delete(api.PathRemove, srv.HandleRemove())
	r.Delete(api.PathRemoveDir, srv.HandleRemoveDir())
	r.Put(api.PathLockShared, srv.HandleLockShared())
	r.Delete(api.PathLockShared, srv.HandleUnlockShared())

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.Warn("writing response", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, status.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.l.Warn("request failed", zap.String("op", op), zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// cacheable reports whether a path may be served from the read cache.
// Only chunk blobs are immutable; everything else may be renamed or
// rewritten under the same path.
func cacheable(path string) bool {
	return strings.Contains(path, "/chunk/")
}

func (s *Server) HandleRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get(api.QueryPath)

		if s.cache != nil && cacheable(path) {
			if body, ok := s.cache.Get(path); ok {
				_, _ = w.Write(body.([]byte))
				return
			}
		}

		data, err := s.store.Read(r.Context(), path)
		if err != nil {
			s.fail(w, "read", err)
			return
		}

		if s.cache != nil && cacheable(path) {
			s.cache.Add(path, data.Bytes())
		}
		if _, err := data.WriteTo(w); err != nil {
			s.l.Warn("streaming read body", zap.String("path", path), zap.Error(err))
		}
	}
}

func (s *Server) HandleWrite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.Header.Get(api.HeaderPath)
		if path == "" {
			http.Error(w, "missing path header", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// double-check the transfer; a mismatch is logged but the blob
		// is stored anyway, repository verification decides its fate
		if claimed := r.Header.Get(api.HeaderHash); claimed != "" {
			sum := sha256.Sum256(body)
			if actual := hex.EncodeToString(sum[:]); actual != claimed {
				s.l.Warn("write body does not match its hash header",
					zap.String("path", path),
					zap.String("claimed", claimed),
					zap.String("actual", actual))
			}
		}

		idempotent := r.Header.Get(api.HeaderIdempotent) != "false"
		err = s.store.Write(r.Context(), path, sgdata.FromSingle(body), idempotent)
		if errors.Is(err, status.ErrExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			s.fail(w, "write", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paths, err := s.store.List(r.Context(), r.URL.Query().Get(api.QueryPath))
		if err != nil {
			s.fail(w, "list", err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ListResponse{Paths: paths})
	}
}

func (s *Server) HandleListRecursively() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batches := make(chan []string)
		walkErr := make(chan error, 1)
		go func() {
			walkErr <- s.store.ListRecursively(r.Context(), r.URL.Query().Get(api.QueryPath), batches)
		}()

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)
		for batch := range batches {
			if err := enc.Encode(api.ListResponse{Paths: batch}); err != nil {
				s.l.Warn("streaming list batch", zap.Error(err))
				// drain so the walker can finish
				for range batches {
				}
				break
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err := <-walkErr; err != nil {
			s.l.Warn("recursive list walk failed", zap.Error(err))
		}
	}
}

func (s *Server) HandleReadMetadata() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		md, err := s.store.ReadMetadata(r.Context(), r.URL.Query().Get(api.QueryPath))
		if err != nil {
			s.fail(w, "read-metadata", err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ReadMetadataResponse{Len: md.Len, IsFile: md.IsFile})
	}
}

func (s *Server) HandleRename() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src := r.URL.Query().Get(api.QuerySrc)
		dst := r.URL.Query().Get(api.QueryDst)
		if src == "" || dst == "" {
			http.Error(w, "missing src or dst", http.StatusBadRequest)
			return
		}
		if err := s.store.Rename(r.Context(), src, dst); err != nil {
			s.fail(w, "rename", err)
			return
		}
		if s.cache != nil {
			s.cache.Remove(src)
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) HandleRemove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get(api.QueryPath)
		if err := s.store.Remove(r.Context(), path); err != nil {
			s.fail(w, "remove", err)
			return
		}
		if s.cache != nil {
			s.cache.Remove(path)
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) HandleRemoveDir() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.RemoveDirAll(r.Context(), r.URL.Query().Get(api.QueryPath)); err != nil {
			s.fail(w, "remove-dir", err)
			return
		}
		// renames out of a purged generation leave stale entries behind
		if s.cache != nil {
			s.cache.Purge()
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) HandleLockShared() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lock, err := s.store.LockShared(r.Context())
		if err != nil {
			s.fail(w, "lock-shared", err)
			return
		}

		id := uuid.New().String()
		s.mu.Lock()
		s.locks[id] = lock
		s.mu.Unlock()

		s.l.Debug("shared lock created", zap.String("lock_id", id))
		s.writeJSON(w, http.StatusCreated, api.SharedLockResponse{LockID: id})
	}
}

func (s *Server) HandleUnlockShared() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get(api.QueryLockID)

		s.mu.Lock()
		lock, ok := s.locks[id]
		delete(s.locks, id)
		s.mu.Unlock()

		if !ok {
			http.Error(w, "unknown lock", http.StatusNotFound)
			return
		}
		if err := lock.Release(); err != nil {
			s.fail(w, "unlock-shared", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
