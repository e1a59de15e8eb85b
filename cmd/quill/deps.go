package main

import (
	"context"

	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/plugin"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// LuaHostFactory creates the builder for lua-type plugins.
	// Default: lua.NewHost
	LuaHostFactory func() plugin.UnitBuilder
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
