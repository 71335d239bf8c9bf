package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"lsmbatch/pkg/batch"
	"lsmbatch/pkg/compression"
	"lsmbatch/pkg/config"
	"lsmbatch/pkg/dberrors"
	"lsmbatch/pkg/keys"
	"lsmbatch/pkg/store"
	"lsmbatch/pkg/types"

	"github.com/go-chi/chi/v5"
)

const (
	contentTypeJSON        = "application/json"
	contentTypeText        = "text/plain; charset=utf-8"
	defaultShutdownTimeout = time.Second * 5
)

type iStoreAPI interface {
	Write(ctx context.Context, wb *batch.WriteBatch) error
	PutWithMeta(ctx context.Context, key types.Key, value types.Value, meta *batch.KeyMetaData) error
	Get(ctx context.Context, key types.Key, opts store.ReadOptions) (types.Value, error)
	Delete(ctx context.Context, key types.Key) error
	Dump(ctx context.Context) (string, error)
}

// Server exposes the store over HTTP.
type Server struct {
	store      iStoreAPI
	cfg        config.ServerConfig
	httpServer *http.Server
	URL        string
	addr       string
}

// NewServer creates a new server instance
func NewServer(st iStoreAPI, cfg config.ServerConfig) *Server {
	port := strconv.Itoa(cfg.Port)
	return &Server{
		store: st,
		cfg:   cfg,
		URL:   "http://localhost:" + port,
		addr:  ":" + port,
	}
}

// Start starts the server
func (s *Server) Start() error {
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	return nil
}

// createRouter builds chi router
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Post("/api/batch", s.handleBatch)
	r.Put("/api/keys/{key}", s.handlePut)
	r.Get("/api/keys/{key}", s.handleGet)
	r.Delete("/api/keys/{key}", s.handleDelete)
	r.Get("/api/dump", s.handleDump)

	return r
}

func (s *Server) startHTTPServer() error {
	readHeaderTimeout := s.cfg.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = time.Second
	}

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.createRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, batch.ErrCorruption), errors.Is(err, compression.ErrUnsupportedEncoding):
		status = http.StatusBadRequest
	case errors.Is(err, dberrors.ErrCountMismatch):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, dberrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrMemtableFull), errors.Is(err, store.ErrSequenceExhausted), errors.Is(err, batch.ErrSequenceOverflow):
		status = http.StatusInsufficientStorage
	case errors.Is(err, dberrors.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, NewErrorResponse(err.Error()))
}

// readBody decodes the request body according to Content-Encoding and
// enforces the configured size limit on the decoded bytes.
func (s *Server) readBody(r *http.Request) ([]byte, int, error) {
	body, err := compression.NewReader(r.Header.Get("Content-Encoding"), r.Body)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	defer body.Close()

	var src io.Reader = body
	if limit := s.cfg.MaxBatchBytes; limit > 0 {
		src = io.LimitReader(body, limit+1)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err)
	}
	if limit := s.cfg.MaxBatchBytes; limit > 0 && int64(len(data)) > limit {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("body exceeds %d bytes", limit)
	}

	return data, http.StatusOK, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

// handleBatch applies a raw encoded batch. The sequence number in the
// request header is replaced by the store.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	data, status, err := s.readBody(r)
	if err != nil {
		s.writeJSON(w, status, NewErrorResponse(err.Error()))
		return
	}

	var wb batch.WriteBatch
	rep := batch.Internals(&wb)
	if err := rep.SetContents(data); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.store.Write(r.Context(), &wb); err != nil {
		slog.Warn("Failed to apply batch", "count", wb.Count(), "bytes", len(data), "error", err)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, NewSequenceResponse(rep.Sequence()))
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}

	meta, err := metaFromQuery(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	value, status, err := s.readBody(r)
	if err != nil {
		s.writeJSON(w, status, NewErrorResponse(err.Error()))
		return
	}

	if err := s.store.PutWithMeta(r.Context(), []byte(key), value, meta); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

// metaFromQuery reads ?expiry=<unix micros> for an explicit expiry or
// ?ttl=write for a write time stamped record.
func metaFromQuery(r *http.Request) (*batch.KeyMetaData, error) {
	q := r.URL.Query()
	if raw := q.Get("expiry"); raw != "" {
		expiry, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry %q", raw)
		}
		return &batch.KeyMetaData{Kind: keys.KindPutExplicitExpiry, Expiry: expiry}, nil
	}

	switch q.Get("ttl") {
	case "":
		return nil, nil
	case "write":
		return &batch.KeyMetaData{Kind: keys.KindPutWriteTime}, nil
	default:
		return nil, fmt.Errorf("invalid ttl %q", q.Get("ttl"))
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}

	var opts store.ReadOptions
	if raw := r.URL.Query().Get("snapshot"); raw != "" {
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Invalid snapshot"))
			return
		}
		opts.Snapshot = seq
	}

	value, err := s.store.Get(r.Context(), []byte(key), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, NewValueResponse(string(value)))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}

	if err := s.store.Delete(r.Context(), []byte(key)); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	dump, err := s.store.Dump(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeText)
	if _, err := io.WriteString(w, dump); err != nil {
		slog.Warn("Failed to write dump response", "error", err)
	}
}
