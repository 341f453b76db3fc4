// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/holomush/arcade/internal/plugin"
	"github.com/holomush/arcade/pkg/errutil"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Units is the registry surface the server needs.
type Units interface {
	ListNames() []string
	Active() (string, bool)
	SelectAndStart(ctx context.Context, name string) (string, error)
	DispatchMessage(ctx context.Context, name, input string) (string, error)
	ResetSession() (string, bool)
	Health() plugin.Health
	Inspect(name string) (plugin.EntryInfo, bool)
	LoadOrReload(ctx context.Context, name string) error
}

// RequestObserver records per-route request metrics.
type RequestObserver interface {
	ObserveRequest(route string, code int, d time.Duration)
}

// Option configures a Server.
type Option func(*Server)

// WithObserver records request metrics.
func WithObserver(o RequestObserver) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server serves the unit API.
type Server struct {
	addr       string
	units      Units
	observer   RequestObserver
	logger     *slog.Logger
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server for units listening on addr.
func NewServer(addr string, units Units, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		units:  units,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /units", s.handleListUnits)
	s.route(mux, "GET /units/{name}", s.handleInspectUnit)
	s.route(mux, "POST /units/{name}/start", s.handleStartUnit)
	s.route(mux, "POST /units/{name}/message", s.handleSendMessage)
	s.route(mux, "POST /units/{name}/reload", s.handleReloadUnit)
	s.route(mux, "POST /reset", s.handleReset)
	s.route(mux, "GET /health", s.handleHealth)

	s.handler = otelhttp.NewHandler(mux, "arcade.api")
	return s
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving. The returned channel receives a serve error, if any,
// and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.In("api").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.In("api").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.In("api").With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listen address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, h))
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if s.observer != nil {
			s.observer.ObserveRequest(route, rec.status, elapsed)
		}
		s.logger.LogAttrs(r.Context(), slog.LevelDebug, "api request",
			slog.String("route", route),
			slog.Int("status", rec.status),
			slog.Duration("duration", elapsed))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleListUnits(w http.ResponseWriter, _ *http.Request) {
	active, ok := s.units.Active()
	writeJSON(w, http.StatusOK, UnitsResponse{
		Units:  s.units.ListNames(),
		Active: optional(active, ok),
	})
}

func (s *Server) handleInspectUnit(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, ok := s.units.Inspect(name)
	if !ok {
		s.writeNotFound(w, name)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleStartUnit(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	text, err := s.units.SelectAndStart(r.Context(), name)
	if err != nil {
		s.writeError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, ReplyResponse{Message: text, Unit: name})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req MessageRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "no JSON data provided",
			Hint:  `send a JSON body such as {"input": "hello"} with Content-Type: application/json`,
		})
		return
	}

	text, err := s.units.DispatchMessage(r.Context(), name, req.Input)
	if err != nil {
		s.writeError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, ReplyResponse{Message: text, Unit: name})
}

func (s *Server) handleReloadUnit(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.units.LoadOrReload(r.Context(), name); err != nil {
		s.writeError(w, name, err)
		return
	}
	info, ok := s.units.Inspect(name)
	if !ok {
		s.writeNotFound(w, name)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	prev, ok := s.units.ResetSession()
	writeJSON(w, http.StatusOK, ResetResponse{
		Status:         "reset",
		PreviousActive: optional(prev, ok),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.units.Health()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		LoadedCount: h.LoadedCount,
		Active:      optional(h.Active, h.HasActive),
	})
}

func (s *Server) writeNotFound(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusNotFound, NotFoundResponse{
		Error:          fmt.Sprintf("unit %q not found", name),
		AvailableUnits: s.units.ListNames(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, name string, err error) {
	if d, ok := plugin.AsDiagnostic(err); ok {
		writeJSON(w, http.StatusInternalServerError, FailureResponse{
			Error:      d.Error(),
			Diagnostic: d,
		})
		return
	}
	switch errutil.Code(err) {
	case plugin.CodeNotFound:
		s.writeNotFound(w, name)
		return
	case plugin.CodeRegistryClosed:
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "registry is shutting down"})
		return
	}
	errutil.LogError(s.logger, "unexpected api error", err, "unit", name)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(v)
}
