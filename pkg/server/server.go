// Package server exposes the conversion queue over HTTP.
//
// Routes:
//
//	GET  /api/health              liveness and build info
//	POST /api/convert             multipart upload (field "file"), returns 202 + job
//	GET  /api/jobs                recent jobs, newest first
//	GET  /api/jobs/{id}           one job
//	GET  /api/jobs/{id}/download  the deliverable: the STL, or the original on failure
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/stampforge/pkg/buildinfo"
	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/jobs"
)

// DefaultMaxUpload is the largest accepted upload.
const DefaultMaxUpload = 20 << 20

// Config configures the HTTP server.
type Config struct {
	Addr      string // default ":8080"
	MaxUpload int64  // bytes, default DefaultMaxUpload
}

// Server is the conversion service.
type Server struct {
	queue  *jobs.Queue
	logger *log.Logger
	cfg    Config
	router chi.Router
}

// New wires the routes. The queue must already be started.
func New(q *jobs.Queue, logger *log.Logger, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{queue: q, logger: logger, cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Post("/convert", s.convert)
		r.Get("/jobs", s.listJobs)
		r.Route("/jobs/{id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Get("/download", s.download)
		})
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) {
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "upload exceeds %d bytes", s.cfg.MaxUpload))
			return
		}
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "expected a multipart upload in field \"file\""))
		return
	}
	defer file.Close()

	if err := errors.ValidateUploadFilename(header.Filename); err != nil {
		writeError(w, err)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload"))
		return
	}

	job, err := s.queue.Submit(r.Context(), header.Filename, data)
	if err != nil && job == nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := jobs.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = min(n, jobs.DefaultListLimit)
	}
	list, err := s.queue.Store().List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) (*jobs.Job, bool) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateJobID(id); err != nil {
		writeError(w, err)
		return nil, false
	}
	job, err := s.queue.Store().Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return job, true
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	if job, ok := s.job(w, r); ok {
		writeJSON(w, http.StatusOK, job)
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(w, r)
	if !ok {
		return
	}
	if !job.Status.Done() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "job is still " + string(job.Status),
			"status": string(job.Status),
		})
		return
	}

	f, err := os.Open(job.Deliverable)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeStorage, err, "open deliverable"))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeStorage, err, "stat deliverable"))
		return
	}

	name := job.DeliverableName()
	if job.Status == jobs.StatusSucceeded {
		w.Header().Set("Content-Type", "model/stl")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// =============================================================================
// Responses
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, statusFor(code), map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(code),
	})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPath, errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidImage:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeJobNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeTimeout, errors.ErrCodeUnsupported:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
