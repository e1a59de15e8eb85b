// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/quillcms/quill/pkg/hook"
)

// ReadinessChecker returns whether the host is ready to serve plugins.
type ReadinessChecker func() bool

// Server exposes /metrics and Kubernetes-style health probes for one
// Quill host process.
type Server struct {
	addr     string
	listener net.Listener
	srv      *http.Server
	registry *prometheus.Registry
	metrics  *Metrics
	ready    ReadinessChecker
	running  atomic.Bool
}

// NewServer creates an observability server listening on addr
// ("host:port"; ":9100" binds all interfaces). The server carries its
// own Prometheus registry with runtime collectors, host metrics, and
// the hook dispatch metrics, leaving the global default registry
// untouched. A nil checker reports ready unconditionally.
func NewServer(addr string, checker ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	hook.RegisterMetrics(registry)

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
		ready:    checker,
	}
}

// Metrics returns the host metrics recorded through this server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and begins serving. The returned channel
// reports a serve failure and is closed on graceful shutdown; callers
// monitor it to detect the server dying underneath them.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	srv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv = srv

	// Buffered so the serve goroutine never blocks on send.
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		// srv is captured locally so a later Start cannot race the read.
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server. Stopping a server that is not
// running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	// CompareAndSwap closes the race with a concurrent Start between
	// reading the running flag and clearing it.
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.srv != nil {
		if err := s.srv.Shutdown(ctx); err != nil {
			// Leave the server stoppable again.
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/healthz/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if s.ready == nil || s.ready() {
			writeProbe(w, http.StatusOK, "ok")
			return
		}
		writeProbe(w, http.StatusServiceUnavailable, "not ready")
	})
	return mux
}

func writeProbe(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte(body + "\n"))
}
