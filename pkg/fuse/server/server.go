// SPDX-License-Identifier: Apache-2.0

// Package server binds a composed fuse server to MCP transports (stdio and
// streamable HTTP) through the mark3labs SDK.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/toolfuse/toolfuse/pkg/fuse"
	"github.com/toolfuse/toolfuse/pkg/logger"
)

const (
	defaultEndpointPath = "/mcp"
	defaultHost         = "127.0.0.1"

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Config holds the transport configuration.
type Config struct {
	// Host is the HTTP listen address. Defaults to 127.0.0.1.
	Host string

	// Port is the HTTP listen port.
	Port int

	// EndpointPath is the streamable HTTP endpoint path. Defaults to /mcp.
	EndpointPath string
}

// Server serves one composed fuse server over MCP transports. The exposed
// component set is the composed view snapshotted at construction; calls
// dispatch through the fuse server, so routing and middleware stay live.
type Server struct {
	src    *fuse.Server
	mcp    *server.MCPServer
	config Config
}

// New builds the transport server and registers the composed view.
func New(ctx context.Context, src *fuse.Server, cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = defaultEndpointPath
	}

	mcpServer := server.NewMCPServer(
		src.Name(),
		src.Version(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
		server.WithLogging(),
	)

	s := &Server{src: src, mcp: mcpServer, config: cfg}
	if err := s.register(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) register(ctx context.Context) error {
	tools, err := toSDKTools(ctx, s.src)
	if err != nil {
		return err
	}
	s.mcp.AddTools(tools...)

	resources, err := toSDKResources(ctx, s.src)
	if err != nil {
		return err
	}
	s.mcp.AddResources(resources...)

	templates, err := toSDKResourceTemplates(ctx, s.src)
	if err != nil {
		return err
	}
	for _, t := range templates {
		s.mcp.AddResourceTemplate(t.template, t.handler)
	}

	prompts, err := toSDKPrompts(ctx, s.src)
	if err != nil {
		return err
	}
	s.mcp.AddPrompts(prompts...)

	logger.Infof("Registered %d tools, %d resources, %d templates, %d prompts on transport",
		len(tools), len(resources), len(templates), len(prompts))
	return nil
}

// MCPServer exposes the underlying SDK server, used by in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves over stdio until ctx is canceled or stdin closes. The
// fuse server's lifecycle hooks bracket the serving period.
func (s *Server) ServeStdio(ctx context.Context) error {
	if err := s.src.Start(ctx); err != nil {
		return err
	}
	defer s.stopSource()

	logger.Infof("Serving %s over stdio", s.src.Name())
	if err := server.ServeStdio(s.mcp); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport failed: %w", err)
	}
	return nil
}

// ServeHTTP serves over streamable HTTP until ctx is canceled.
func (s *Server) ServeHTTP(ctx context.Context) error {
	if err := s.src.Start(ctx); err != nil {
		return err
	}
	defer s.stopSource()

	streamable := server.NewStreamableHTTPServer(
		s.mcp,
		server.WithEndpointPath(s.config.EndpointPath),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(s.config.EndpointPath, streamable)

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Serving %s at http://%s%s", s.src.Name(), addr, s.config.EndpointPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP transport failed: %w", err)
		}
		return nil
	}
}

func (s *Server) stopSource() {
	if err := s.src.Stop(context.Background()); err != nil {
		logger.Errorf("Server teardown failed: %v", err)
	}
}
