// SPDX-License-Identifier: Apache-2.0

// Package proxy implements session-preserving callers for mounted servers
// that live behind a protocol boundary: remote MCP servers over streamable
// HTTP or SSE, and in-process servers reached through the full client/server
// stack. All callers keep a single initialized protocol session alive across
// calls, so the target's lifecycle and session state behave as if a real
// client were attached.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/toolfuse/toolfuse/pkg/fuse"
	fuseserver "github.com/toolfuse/toolfuse/pkg/fuse/server"
	"github.com/toolfuse/toolfuse/pkg/logger"
)

const (
	clientName     = "toolfuse"
	clientVersion  = "0.1.0"
	requestTimeout = 30 * time.Second
)

// Caller is a fuse.SessionCaller backed by a mark3labs MCP client. The
// protocol session is established lazily on first use and reused until
// Close.
type Caller struct {
	name string
	dial func(ctx context.Context) (*client.Client, error)

	// onClose runs after the protocol session closes; in-process callers
	// use it to tear down the wrapped server.
	onClose func() error

	mu     sync.Mutex
	client *client.Client
}

var _ fuse.SessionCaller = (*Caller)(nil)

type remoteConfig struct {
	transportType string
	httpClient    *http.Client
}

// RemoteOption configures a remote caller.
type RemoteOption func(*remoteConfig)

// WithTransportType selects the wire transport: "streamable-http" (default)
// or "sse".
func WithTransportType(transportType string) RemoteOption {
	return func(c *remoteConfig) { c.transportType = transportType }
}

// WithHTTPClient sets the HTTP client used by the transport.
func WithHTTPClient(httpClient *http.Client) RemoteOption {
	return func(c *remoteConfig) { c.httpClient = httpClient }
}

// NewRemote creates a caller for a remote MCP server at baseURL.
func NewRemote(baseURL string, opts ...RemoteOption) (*Caller, error) {
	cfg := remoteConfig{transportType: "streamable-http"}
	for _, opt := range opts {
		opt(&cfg)
	}
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	switch cfg.transportType {
	case "streamable-http", "streamable", "sse":
	default:
		return nil, fmt.Errorf("%w: unsupported transport type %q (supported: streamable-http, sse)",
			fuse.ErrInvalidInput, cfg.transportType)
	}

	return &Caller{
		name: baseURL,
		dial: func(ctx context.Context) (*client.Client, error) {
			var (
				c   *client.Client
				err error
			)
			switch cfg.transportType {
			case "sse":
				c, err = client.NewSSEMCPClient(
					baseURL,
					transport.WithHTTPClient(httpClient),
				)
			default:
				c, err = client.NewStreamableHttpClient(
					baseURL,
					transport.WithHTTPTimeout(requestTimeout),
					transport.WithHTTPBasicClient(httpClient),
				)
			}
			if err != nil {
				return nil, fmt.Errorf("creating %s client for %s: %w", cfg.transportType, baseURL, err)
			}
			if err := c.Start(ctx); err != nil {
				return nil, fmt.Errorf("starting client connection to %s: %w", baseURL, err)
			}
			return c, nil
		},
	}, nil
}

// NewInProcess wraps a local fuse server behind the full protocol stack, so
// that calls to it run through real client/server serialization and the
// server's lifecycle hooks. Useful for exercising a composition exactly as a
// wire client would see it.
func NewInProcess(ctx context.Context, child *fuse.Server) (*Caller, error) {
	srv, err := fuseserver.New(ctx, child, fuseserver.Config{})
	if err != nil {
		return nil, fmt.Errorf("wrapping server %s: %w", child.Name(), err)
	}

	return &Caller{
		name: child.Name(),
		dial: func(ctx context.Context) (*client.Client, error) {
			if err := child.Start(ctx); err != nil {
				return nil, err
			}
			c, err := client.NewInProcessClient(srv.MCPServer())
			if err != nil {
				return nil, fmt.Errorf("creating in-process client for %s: %w", child.Name(), err)
			}
			if err := c.Start(ctx); err != nil {
				return nil, fmt.Errorf("starting in-process client for %s: %w", child.Name(), err)
			}
			return c, nil
		},
		onClose: func() error {
			return child.Stop(context.Background())
		},
	}, nil
}

// ensure establishes and initializes the protocol session once.
func (p *Caller) ensure(ctx context.Context) (*client.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}

	c, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initializing session with %s: %w", p.name, err)
	}

	logger.Debugf("Session established with %s", p.name)
	p.client = c
	return c, nil
}

// ListTools implements fuse.SessionCaller.
func (p *Caller) ListTools(ctx context.Context) ([]*fuse.Tool, error) {
	c, err := p.ensure(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools on %s: %w", p.name, err)
	}
	out := make([]*fuse.Tool, 0, len(result.Tools))
	for i := range result.Tools {
		out = append(out, fromSDKTool(&result.Tools[i]))
	}
	return out, nil
}

// ListResources implements fuse.SessionCaller.
func (p *Caller) ListResources(ctx context.Context) ([]*fuse.Resource, error) {
	c, err := p.ensure(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing resources on %s: %w", p.name, err)
	}
	out := make([]*fuse.Resource, 0, len(result.Resources))
	for i := range result.Resources {
		out = append(out, fromSDKResource(&result.Resources[i]))
	}
	return out, nil
}

// ListResourceTemplates implements fuse.SessionCaller.
func (p *Caller) ListResourceTemplates(ctx context.Context) ([]*fuse.ResourceTemplate, error) {
	c, err := p.ensure(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.ListResourceTemplates(ctx, mcp.ListResourceTemplatesRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing resource templates on %s: %w", p.name, err)
	}
	out := make([]*fuse.ResourceTemplate, 0, len(result.ResourceTemplates))
	for i := range result.ResourceTemplates {
		out = append(out, fromSDKResourceTemplate(&result.ResourceTemplates[i]))
	}
	return out, nil
}

// ListPrompts implements fuse.SessionCaller.
func (p *Caller) ListPrompts(ctx context.Context) ([]*fuse.Prompt, error) {
	c, err := p.ensure(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing prompts on %s: %w", p.name, err)
	}
	out := make([]*fuse.Prompt, 0, len(result.Prompts))
	for i := range result.Prompts {
		out = append(out, fromSDKPrompt(&result.Prompts[i]))
	}
	return out, nil
}

// CallTool implements fuse.SessionCaller.
func (p *Caller) CallTool(ctx context.Context, name string, args map[string]any) (*fuse.ToolResult, error) {
	c, err := p.ensure(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling tool %s on %s: %w", name, p.name, err)
	}
	return fromSDKToolResult(result), nil
}

// ReadResource implements fuse.SessionCaller.
func (p *Caller) ReadResource(ctx context.Context, uri string) (*fuse.ResourceContents, error) {
	c, err := p.ensure(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.ReadResource(ctx, mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: uri},
	})
	if err != nil {
		return nil, fmt.Errorf("reading resource %s on %s: %w", uri, p.name, err)
	}
	return fromSDKResourceContents(result.Contents)
}

// GetPrompt implements fuse.SessionCaller.
func (p *Caller) GetPrompt(ctx context.Context, name string, args map[string]string) (*fuse.PromptResult, error) {
	c, err := p.ensure(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.GetPrompt(ctx, mcp.GetPromptRequest{
		Params: mcp.GetPromptParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting prompt %s on %s: %w", name, p.name, err)
	}
	return fromSDKPromptResult(result), nil
}

// Close implements fuse.SessionCaller.
func (p *Caller) Close() error {
	p.mu.Lock()
	c := p.client
	p.client = nil
	p.mu.Unlock()

	var err error
	if c != nil {
		err = c.Close()
		logger.Debugf("Session with %s closed", p.name)
	}
	if p.onClose != nil {
		if closeErr := p.onClose(); err == nil {
			err = closeErr
		}
	}
	return err
}
