// SPDX-License-Identifier: Apache-2.0

// Package fuse implements a composable tool server: a registry of typed
// components (tools, resources, resource templates, prompts) that can be
// assembled from natively registered components, components derived from an
// HTTP API description (see the mapper and openapi subpackages), and whole
// other servers mounted or imported as sub-trees.
//
// Composition preserves identity: a mounted child stays the owner of its
// components, and calls are routed back to it at dispatch time, either
// in-process (direct) or through a session-preserving caller (proxy).
// Children are unaware of their parents.
package fuse

import (
	"context"
	"fmt"
	"sync"

	"github.com/toolfuse/toolfuse/pkg/logger"
)

// LifespanFunc is a server startup or teardown hook.
type LifespanFunc func(ctx context.Context) error

// Server is one composable tool server: a registry of its own components
// plus a list of live mounts delegating to child servers.
//
// Registration and mounting are setup-phase operations; dispatch and
// enumeration are safe for concurrent use while the mount list and
// registries are quiescent or mutated only through the provided methods.
type Server struct {
	name    string
	version string

	registry *Registry

	mu     sync.RWMutex
	mounts []*Mount

	mwMu       sync.RWMutex
	middleware []Middleware

	onStart     LifespanFunc
	onStop      LifespanFunc
	hasLifespan bool
}

type serverOptions struct {
	version string
	policy  DuplicatePolicy
	onStart LifespanFunc
	onStop  LifespanFunc
}

// ServerOption configures a Server at construction.
type ServerOption func(*serverOptions)

// WithVersion sets the server version exposed to transports.
func WithVersion(version string) ServerOption {
	return func(o *serverOptions) { o.version = version }
}

// WithDuplicatePolicy sets the registry's duplicate policy. The policy is
// fixed for the server's lifetime.
func WithDuplicatePolicy(policy DuplicatePolicy) ServerOption {
	return func(o *serverOptions) { o.policy = policy }
}

// WithLifespan declares startup and teardown hooks for the server. Declaring
// a lifespan marks the server as having an observable lifecycle, which makes
// ModeProxy the default when it is mounted into a parent. Either hook may be
// nil.
func WithLifespan(start, stop LifespanFunc) ServerOption {
	return func(o *serverOptions) {
		o.onStart = start
		o.onStop = stop
	}
}

// NewServer creates an empty server.
func NewServer(name string, opts ...ServerOption) *Server {
	options := serverOptions{version: "0.0.0"}
	for _, opt := range opts {
		opt(&options)
	}
	return &Server{
		name:        name,
		version:     options.version,
		registry:    NewRegistry(options.policy),
		onStart:     options.onStart,
		onStop:      options.onStop,
		hasLifespan: options.onStart != nil || options.onStop != nil,
	}
}

// Name returns the server name.
func (s *Server) Name() string { return s.name }

// Version returns the server version.
func (s *Server) Version() string { return s.version }

// Registry returns the server's own component registry. Mounted components
// are not in it; use the List methods for the composed view.
func (s *Server) Registry() *Registry { return s.registry }

// HasLifespan reports whether the server declared startup/teardown behavior.
// This is the capability flag mount-mode selection is based on.
func (s *Server) HasLifespan() bool { return s.hasLifespan }

// Start runs the server's startup hook, if any. Transports and proxy-mode
// sessions call this before the first dispatch.
func (s *Server) Start(ctx context.Context) error {
	if s.onStart == nil {
		return nil
	}
	if err := s.onStart(ctx); err != nil {
		return fmt.Errorf("server %s startup failed: %w", s.name, err)
	}
	logger.Debugf("Server %s started", s.name)
	return nil
}

// Stop runs the server's teardown hook, if any.
func (s *Server) Stop(ctx context.Context) error {
	if s.onStop == nil {
		return nil
	}
	if err := s.onStop(ctx); err != nil {
		return fmt.Errorf("server %s teardown failed: %w", s.name, err)
	}
	logger.Debugf("Server %s stopped", s.name)
	return nil
}

// Use appends middleware to the server's dispatch path. Middleware runs for
// every invocation handled by this server, including ones delegated to
// mounted children.
func (s *Server) Use(mw ...Middleware) {
	s.mwMu.Lock()
	defer s.mwMu.Unlock()
	s.middleware = append(s.middleware, mw...)
}

// dispatch runs inv through the middleware chain into final.
func (s *Server) dispatch(ctx context.Context, inv Invocation, final Handler) (any, error) {
	s.mwMu.RLock()
	mws := s.middleware
	s.mwMu.RUnlock()
	return chainMiddleware(mws, final)(ctx, inv)
}

// AddTool registers a tool in the server's own registry.
func (s *Server) AddTool(t *Tool) error { return s.registry.AddTool(t) }

// AddResource registers a resource in the server's own registry.
func (s *Server) AddResource(r *Resource) error { return s.registry.AddResource(r) }

// AddTemplate registers a resource template in the server's own registry.
func (s *Server) AddTemplate(t *ResourceTemplate) error { return s.registry.AddTemplate(t) }

// AddPrompt registers a prompt in the server's own registry.
func (s *Server) AddPrompt(p *Prompt) error { return s.registry.AddPrompt(p) }
