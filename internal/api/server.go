// Package api exposes the HTTP operations interface for the client.
package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/brightdata-go/internal/metrics"
	"github.com/JakeFAU/brightdata-go/internal/storage"
	"github.com/JakeFAU/brightdata-go/pkg/brightdata"
	"github.com/JakeFAU/brightdata-go/pkg/job"
	"github.com/JakeFAU/brightdata-go/pkg/normalize"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

// Jobs is the manual trigger, status and fetch surface. *brightdata.ScrapeService
// implements it.
type Jobs interface {
	Trigger(ctx context.Context, platform, method string, values []string, opts brightdata.PlatformOptions) (string, error)
	Status(ctx context.Context, jobID string) (job.State, error)
	Fetch(ctx context.Context, jobID string, shape normalize.Shape) (any, error)
}

// Zones lists the account's zones. *brightdata.Client implements it.
type Zones interface {
	ListZones(ctx context.Context, refresh bool) ([]zone.Zone, error)
}

// Options tunes the server.
type Options struct {
	// APIKey, when set, is required on every /v1 request.
	APIKey string
	// RequestTimeout bounds each request. Zero means 60 seconds.
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the client.
type Server struct {
	router chi.Router
	jobs   Jobs
	zones  Zones
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. runs may be nil,
// in which case /v1/runs answers 503.
func NewServer(jobs Jobs, zones Zones, runs storage.Ledger, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s := &Server{jobs: jobs, zones: zones, logger: logger}
	runsHandler := NewRunsHandler(runs, logger)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Get("/zones", s.listZones)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/status", s.getJobStatus)
				r.Get("/result", s.getJobResult)
			})
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", runsHandler.ListRuns)
			r.Get("/{run_id}", runsHandler.GetRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.zones.ListZones(r.Context(), true)
	if err != nil {
		s.writeUpstreamError(w, "list zones", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones, "count": len(zones)})
}

type submitJobRequest struct {
	Platform  string         `json:"platform"`
	Method    string         `json:"method"`
	URLs      []string       `json:"urls"`
	Options   map[string]any `json:"options"`
	SourceTag string         `json:"source_tag"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Platform == "" || req.Method == "" {
		writeError(w, http.StatusBadRequest, "platform and method are required")
		return
	}
	jobID, err := s.jobs.Trigger(r.Context(), req.Platform, req.Method, req.URLs, brightdata.PlatformOptions{
		Options:   req.Options,
		SourceTag: req.SourceTag,
	})
	if err != nil {
		s.writeUpstreamError(w, "trigger", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	state, err := s.jobs.Status(r.Context(), jobID)
	if err != nil {
		s.writeUpstreamError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": string(state)})
}

func (s *Server) getJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	shape := normalize.OpaqueList
	if raw := strings.TrimSpace(r.URL.Query().Get("shape")); raw != "" {
		parsed, err := normalize.ParseShape(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		shape = parsed
	}
	data, err := s.jobs.Fetch(r.Context(), jobID, shape)
	if err != nil {
		s.writeUpstreamError(w, "fetch", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "shape": shape, "data": data})
}

// writeUpstreamError maps client errors onto HTTP statuses.
func (s *Server) writeUpstreamError(w http.ResponseWriter, action string, err error) {
	var apiErr *sdkerr.APIError
	switch {
	case sdkerr.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		writeError(w, http.StatusNotFound, "job not found")
	case sdkerr.IsAuthentication(err), sdkerr.IsAPI(err), sdkerr.IsZone(err):
		s.logger.Warn(action+" failed upstream", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, action+" timed out")
	default:
		s.logger.Error(action+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, action+" failed")
	}
}

type requestIDKey struct{}

// RequestID returns the request ID stored by the server's middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("request_id", RequestID(r.Context())),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
