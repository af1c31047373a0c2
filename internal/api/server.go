package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/randmov/internal/app"
	"github.com/JakeFAU/randmov/internal/id/uuid"
	"github.com/JakeFAU/randmov/internal/metrics"
	"github.com/JakeFAU/randmov/internal/qrng"
	"github.com/JakeFAU/randmov/internal/watchlist"
)

// Service is the session surface the handlers call.
type Service interface {
	Watchlist(ctx context.Context, user string) (watchlist.Listing, error)
	Pick(ctx context.Context, user string, withDetails bool) (app.Selection, error)
	Sample(ctx context.Context, upperBound int) (qrng.Result, error)
	Details(ctx context.Context, user, slug string) (app.EntryDetails, error)
	Ready() bool
}

// Server wires HTTP handlers to the session.
type Server struct {
	router chi.Router
	svc    Service
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. A zero timeout
// disables the per-request limit.
func NewServer(svc Service, timeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(uuid.New()))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	if timeout > 0 {
		r.Use(timeoutMiddleware(timeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users/{user}", func(r chi.Router) {
			r.Get("/watchlist", s.getWatchlist)
			r.Get("/pick", s.pick)
			r.Get("/entries/{slug}", s.getDetails)
		})
		r.Get("/sample", s.sample)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.svc.Ready() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getWatchlist(w http.ResponseWriter, r *http.Request) {
	listing, err := s.svc.Watchlist(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listing)
}

func (s *Server) getDetails(w http.ResponseWriter, r *http.Request) {
	got, err := s.svc.Details(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

type pickResponse struct {
	app.Selection
	Message        string `json:"message"`
	CircuitDrawing string `json:"circuit_drawing"`
}

func (s *Server) pick(w http.ResponseWriter, r *http.Request) {
	withDetails, err := optionalBool(r, "details")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sel, err := s.svc.Pick(r.Context(), chi.URLParam(r, "user"), withDetails)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := pickResponse{
		Selection: sel,
		Message:   fmt.Sprintf("Your random movie is: %s (%s)", sel.Entry.DisplayName, sel.Entry.DetailURL),
	}
	if sel.Sample.Circuit != nil {
		resp.CircuitDrawing = sel.Sample.Circuit.Draw()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type sampleResponse struct {
	qrng.Result
	CircuitDrawing string `json:"circuit_drawing"`
}

func (s *Server) sample(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("upper_bound")
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "upper_bound is required")
		return
	}
	bound, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "upper_bound must be an integer")
		return
	}
	res, err := s.svc.Sample(r.Context(), bound)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := sampleResponse{Result: res}
	if res.Circuit != nil {
		resp.CircuitDrawing = res.Circuit.Draw()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func optionalBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return v, nil
}

// writeServiceError maps session errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"
	switch {
	case errors.Is(err, watchlist.ErrEmptyUser):
		status, msg = http.StatusBadRequest, "user is required"
	case errors.Is(err, app.ErrEmptyWatchlist):
		status, msg = http.StatusNotFound, "no entries found"
	case errors.Is(err, app.ErrEntryNotFound):
		status, msg = http.StatusNotFound, "entry not found"
	case errors.Is(err, watchlist.ErrDetailsUnavailable):
		status, msg = http.StatusBadGateway, "details unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, watchlist.ErrNetworkFault):
		status, msg = http.StatusBadGateway, "could not fetch watchlist"
	case errors.Is(err, qrng.ErrNegativeBound):
		status, msg = http.StatusBadRequest, "upper_bound must be non-negative"
	case errors.Is(err, qrng.ErrInternalFault):
		status, msg = http.StatusInternalServerError, "random generator failure"
	}
	logger := s.logger.With(zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status))
	} else {
		logger.Debug("request rejected", zap.Int("status", status))
	}
	s.writeError(w, status, msg)
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(ids *uuid.Generator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := ids.NewRequestID()
			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
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
						zap.String("request_id", requestIDFrom(r.Context())),
						zap.Any("error", rec),
					)
					writeJSON(logger, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
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

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(s.logger, w, status, payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}
