// SPDX-License-Identifier: EPL-2.0

package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ik5/audconv"
	"github.com/ik5/audconv/codec"
	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/internal/metrics"
	"github.com/ik5/audconv/library"
	"github.com/ik5/audconv/spectrum"
	"github.com/ik5/audconv/storage"
)

// Converter runs one conversion.
type Converter interface {
	Convert(ctx context.Context, req *audconv.Request) (*audconv.Result, error)
}

// Library is the part of library.Library the API uses.
type Library interface {
	Save(ctx context.Context, originalFilename string, res *audconv.Result) (*storage.Record, error)
	Lookup(ctx context.Context, id string) (*storage.Record, error)
	List(ctx context.Context) ([]storage.Record, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, id string, format codec.OutputFormat) (*library.Download, error)
}

// Config contains HTTP server configuration
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	CORSOrigin      string
	Limits          audconv.Limits
	MaxConcurrent   int
	ConversionLimit time.Duration
	CodecName       string
}

// Server provides the HTTP API
type Server struct {
	server    *http.Server
	logger    *slog.Logger
	config    Config
	converter Converter
	library   Library
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	slots     chan struct{}
	startTime time.Time
	listener  net.Listener
}

// New creates the API server. gatherer serves /metrics; nil means the
// default gatherer.
func New(cfg Config, logger *slog.Logger, conv Converter, lib Library, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.Limits == (audconv.Limits{}) {
		cfg.Limits = audconv.DefaultLimits()
	}

	s := &Server{
		logger:    logger,
		config:    cfg,
		converter: conv,
		library:   lib,
		metrics:   m,
		gatherer:  gatherer,
		slots:     make(chan struct{}, cfg.MaxConcurrent),
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.withCORS(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.server.Handler }

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.withMetrics("/health", s.handleHealth))

	mux.HandleFunc("POST /api/upload_audio", s.withMetrics("/api/upload_audio", s.handleUpload))
	mux.HandleFunc("GET /api/library", s.withMetrics("/api/library", s.handleList))
	mux.HandleFunc("GET /api/library/{id}", s.withMetrics("/api/library/{id}", s.handleRecord))
	mux.HandleFunc("GET /api/download_audio", s.withMetrics("/api/download_audio", s.handleDownload))
	mux.HandleFunc("DELETE /api/delete_audio/{id}", s.withMetrics("/api/delete_audio/{id}", s.handleDelete))

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// withCORS allows the configured origin and answers preflight requests.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.config.CORSOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withMetrics wraps an HTTP handler with metrics collection
func (s *Server) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, endpoint, ww.statusCode, duration)
		}
		s.logger.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.statusCode),
			slog.Duration("duration", duration),
		)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("Starting HTTP API server",
		slog.String("address", ln.Addr().String()),
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", slog.Any("error", err))
		}
	}()

	return nil
}

// Addr returns the listening address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP API server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err),
	)
	s.writeJSON(w, status, bodyOf(err))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"codec":          s.config.CodecName,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"in_flight":      len(s.slots),
		"max_concurrent": cap(s.slots),
	})
}

type uploadResponse struct {
	ID                     string           `json:"id"`
	OriginalSpectrum       spectrum.Summary `json:"original_spectrum"`
	ProcessedSpectrum      spectrum.Summary `json:"processed_spectrum"`
	ProcessedAudioBase64   string           `json:"processed_audio_base64"`
	ProcessedAudioMimetype string           `json:"processed_audio_mimetype"`
	DownloadFilename       string           `json:"download_filename"`
	SampleRate             int              `json:"sample_rate"`
	SourceSampleRate       int              `json:"source_sample_rate"`
	BitDepth               string           `json:"bit_depth"`
	DurationSeconds        float64          `json:"duration_seconds"`
	URL                    string           `json:"url"`
	DownloadURL            string           `json:"download_url"`
}

// multipart bookkeeping on top of the file itself
const formOverhead = 1 << 20

func (s *Server) readForm(w http.ResponseWriter, r *http.Request) (audconv.Form, error) {
	var f audconv.Form

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Limits.MaxBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return f, audconv.ValidationErrors{{
				Field:   "audio_file",
				Kind:    failure.InvalidRequest,
				Message: fmt.Sprintf("file is larger than %d bytes", s.config.Limits.MaxBytes),
			}}
		}
		return f, failure.Wrap(failure.InvalidRequest, "parse upload", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f.SampleRate = r.FormValue("sample_rate")
	f.BitDepth = r.FormValue("bit_depth")
	f.Format = r.FormValue("export_format")

	file, header, err := r.FormFile("audio_file")
	if errors.Is(err, http.ErrMissingFile) {
		return f, nil
	}
	if err != nil {
		return f, failure.Wrap(failure.InvalidRequest, "parse upload", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return f, failure.Wrap(failure.InvalidRequest, "read upload", err)
	}

	f.Present = true
	f.Data = data
	f.Filename = header.Filename
	f.ContentType = header.Header.Get("Content-Type")
	return f, nil
}

// acquire waits for a conversion slot.
func (s *Server) acquire(ctx context.Context) (func(), error) {
	select {
	case s.slots <- struct{}{}:
		return func() { <-s.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	form, err := s.readForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := audconv.ParseRequest(form, s.config.Limits)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if s.config.ConversionLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ConversionLimit)
		defer cancel()
	}

	release, err := s.acquire(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer release()

	done := func(error) {}
	if s.metrics != nil {
		done = s.metrics.StartConversion(len(req.Data))
	}
	res, err := s.converter.Convert(ctx, req)
	done(err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.library.Save(ctx, req.Filename, res)
	s.recordLibrary("save", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{
		ID:                     rec.ID,
		OriginalSpectrum:       res.OriginalSpectrum,
		ProcessedSpectrum:      res.ProcessedSpectrum,
		ProcessedAudioBase64:   base64.StdEncoding.EncodeToString(res.Data),
		ProcessedAudioMimetype: res.MimeType,
		DownloadFilename:       res.DownloadFilename,
		SampleRate:             res.SampleRate,
		SourceSampleRate:       res.SourceRate,
		BitDepth:               res.BitDepth.String(),
		DurationSeconds:        res.Duration.Seconds(),
		URL:                    rec.URL,
		DownloadURL:            downloadURL(rec.ID, res.Format),
	})
}

func downloadURL(id string, f codec.OutputFormat) string {
	q := url.Values{"id": {id}, "format": {string(f)}}
	return "/api/download_audio?" + q.Encode()
}

func (s *Server) recordLibrary(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecordLibraryOperation(op, err)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.library.List(r.Context())
	s.recordLibrary("list", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []storage.Record{}
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.library.Lookup(r.Context(), r.PathValue("id"))
	s.recordLibrary("lookup", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, r, audconv.ValidationErrors{{
			Field: "id", Kind: failure.InvalidRequest, Message: "id is required",
		}})
		return
	}

	var format codec.OutputFormat
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := codec.ParseOutputFormat(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		format = f
	}

	dl, err := s.library.Export(r.Context(), id, format)
	s.recordLibrary("export", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", dl.MimeType)
	h.Set("Content-Length", strconv.Itoa(len(dl.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Data); err != nil {
		s.logger.Warn("writing download", slog.String("id", id), slog.Any("error", err))
	}
}

type deleteResponse struct {
	Deleted string `json:"deleted"`
	// Missing is "object" or "record" on a partial delete.
	Missing string     `json:"missing,omitempty"`
	Warning *errorBody `json:"warning,omitempty"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.library.Delete(r.Context(), id)
	s.recordLibrary("delete", err)

	var partial *library.PartialDeleteError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, deleteResponse{Deleted: id})
	case errors.As(err, &partial):
		warning := bodyOf(partial.Err)
		missing := "object"
		if partial.RowMissing {
			missing = "record"
		}
		s.logger.WarnContext(r.Context(), "partial delete", slog.String("id", id), slog.Any("error", err))
		s.writeJSON(w, http.StatusMultiStatus, deleteResponse{Deleted: id, Missing: missing, Warning: &warning})
	default:
		s.writeError(w, r, err)
	}
}
