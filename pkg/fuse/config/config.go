// SPDX-License-Identifier: Apache-2.0

// Package config provides the YAML configuration model for a composed tool
// server and the builder that turns it into a running composition.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/toolfuse/toolfuse/pkg/fuse"
	"github.com/toolfuse/toolfuse/pkg/fuse/mapper"
	"github.com/toolfuse/toolfuse/pkg/fuse/openapi"
	"github.com/toolfuse/toolfuse/pkg/fuse/proxy"
)

// Transport type constants for remote mounts.
const (
	// TransportSSE is the Server-Sent Events transport protocol.
	TransportSSE = "sse"
	// TransportStreamableHTTP is the streamable HTTP transport protocol.
	TransportStreamableHTTP = "streamable-http"
	// TransportStdio serves the composition over stdio.
	TransportStdio = "stdio"
)

// Config is the top-level configuration of a composed server.
type Config struct {
	// Name is the server name presented to clients.
	Name string `yaml:"name"`

	// Version is the server version presented to clients.
	Version string `yaml:"version,omitempty"`

	// DuplicatePolicy is "error" (default) or "replace".
	DuplicatePolicy string `yaml:"duplicatePolicy,omitempty"`

	// Transport configures how the composition is served.
	Transport TransportConfig `yaml:"transport,omitempty"`

	// OpenAPI lists API-backed child servers, mounted in order.
	OpenAPI []OpenAPIConfig `yaml:"openapi,omitempty"`

	// Mounts lists remote child servers, mounted in order after the
	// OpenAPI children.
	Mounts []MountConfig `yaml:"mounts,omitempty"`
}

// TransportConfig selects and configures the serving transport.
type TransportConfig struct {
	// Type is "stdio" (default) or "streamable-http".
	Type string `yaml:"type,omitempty"`

	// Host is the HTTP listen address.
	Host string `yaml:"host,omitempty"`

	// Port is the HTTP listen port.
	Port int `yaml:"port,omitempty"`

	// EndpointPath is the streamable HTTP endpoint path.
	EndpointPath string `yaml:"endpointPath,omitempty"`
}

// OpenAPIConfig describes one API-backed child server.
type OpenAPIConfig struct {
	// Name names the child server.
	Name string `yaml:"name"`

	// Spec is the filesystem path of the OpenAPI document.
	Spec string `yaml:"spec"`

	// BaseURL is the API base URL the synthesized components call.
	BaseURL string `yaml:"baseUrl"`

	// Prefix namespaces the child's components in the composition.
	Prefix string `yaml:"prefix,omitempty"`

	// IncludeTags restricts extraction to operations with these tags.
	IncludeTags []string `yaml:"includeTags,omitempty"`

	// RouteMaps are the classification rules, evaluated in order before
	// the defaults.
	RouteMaps []RouteMapConfig `yaml:"routeMaps,omitempty"`
}

// RouteMapConfig is the YAML form of one classification rule.
type RouteMapConfig struct {
	// Methods is the HTTP method set; "*" or empty matches any method.
	Methods []string `yaml:"methods,omitempty"`

	// PathPattern is a full-string regex over the operation path.
	PathPattern string `yaml:"pathPattern,omitempty"`

	// Tags requires the operation to carry at least one of these tags.
	Tags []string `yaml:"tags,omitempty"`

	// Type is the assigned kind: tool, resource, resource_template or
	// exclude.
	Type string `yaml:"type"`

	// MCPTags are extra tags attached to produced components.
	MCPTags []string `yaml:"mcpTags,omitempty"`
}

// MountConfig describes one remote child server.
type MountConfig struct {
	// URL is the remote server's endpoint.
	URL string `yaml:"url"`

	// Prefix namespaces the child's components in the composition.
	Prefix string `yaml:"prefix,omitempty"`

	// TransportType is "streamable-http" (default) or "sse".
	TransportType string `yaml:"transportType,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural errors, compiling every
// route-map pattern so malformed regexes fail at load time.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch c.DuplicatePolicy {
	case "", "error", "replace":
	default:
		return fmt.Errorf("duplicatePolicy must be \"error\" or \"replace\", got %q", c.DuplicatePolicy)
	}
	switch c.Transport.Type {
	case "", TransportStdio, TransportStreamableHTTP:
	default:
		return fmt.Errorf("transport.type must be %q or %q, got %q",
			TransportStdio, TransportStreamableHTTP, c.Transport.Type)
	}

	for i, o := range c.OpenAPI {
		if o.Name == "" {
			return fmt.Errorf("openapi[%d]: name is required", i)
		}
		if o.Spec == "" {
			return fmt.Errorf("openapi[%d] (%s): spec is required", i, o.Name)
		}
		if o.BaseURL == "" {
			return fmt.Errorf("openapi[%d] (%s): baseUrl is required", i, o.Name)
		}
		for j, rm := range o.RouteMaps {
			if _, err := rm.compile(); err != nil {
				return fmt.Errorf("openapi[%d] (%s): routeMaps[%d]: %w", i, o.Name, j, err)
			}
		}
	}

	for i, m := range c.Mounts {
		if m.URL == "" {
			return fmt.Errorf("mounts[%d]: url is required", i)
		}
		switch m.TransportType {
		case "", TransportStreamableHTTP, TransportSSE:
		default:
			return fmt.Errorf("mounts[%d]: transportType must be %q or %q, got %q",
				i, TransportStreamableHTTP, TransportSSE, m.TransportType)
		}
	}
	return nil
}

func (rm *RouteMapConfig) compile() (mapper.RouteMap, error) {
	var kind mapper.MCPType
	switch rm.Type {
	case "tool":
		kind = mapper.MCPTypeTool
	case "resource":
		kind = mapper.MCPTypeResource
	case "resource_template":
		kind = mapper.MCPTypeResourceTemplate
	case "exclude":
		kind = mapper.MCPTypeExclude
	default:
		return mapper.RouteMap{}, fmt.Errorf("unknown route map type %q", rm.Type)
	}

	pattern := rm.PathPattern
	if pattern == "" {
		pattern = ".*"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return mapper.RouteMap{}, fmt.Errorf("invalid path pattern %q: %w", pattern, err)
	}

	methods := rm.Methods
	if len(methods) == 0 {
		methods = []string{"*"}
	}
	return mapper.RouteMap{
		Methods:     methods,
		PathPattern: re,
		Tags:        rm.Tags,
		MCPType:     kind,
		MCPTags:     rm.MCPTags,
	}, nil
}

func (c *Config) duplicatePolicy() fuse.DuplicatePolicy {
	if c.DuplicatePolicy == "replace" {
		return fuse.DuplicateReplace
	}
	return fuse.DuplicateError
}

// Build assembles the composition: a root server with every configured
// OpenAPI child and remote mount attached, in declaration order.
func (c *Config) Build() (*fuse.Server, error) {
	version := c.Version
	if version == "" {
		version = "0.1.0"
	}
	root := fuse.NewServer(c.Name,
		fuse.WithVersion(version),
		fuse.WithDuplicatePolicy(c.duplicatePolicy()),
	)

	for i := range c.OpenAPI {
		o := &c.OpenAPI[i]
		specData, err := os.ReadFile(o.Spec)
		if err != nil {
			return nil, fmt.Errorf("reading OpenAPI spec for %s: %w", o.Name, err)
		}
		rules := make([]mapper.RouteMap, 0, len(o.RouteMaps))
		for j := range o.RouteMaps {
			rule, err := o.RouteMaps[j].compile()
			if err != nil {
				return nil, fmt.Errorf("%s: routeMaps[%d]: %w", o.Name, j, err)
			}
			rules = append(rules, rule)
		}

		child, err := openapi.NewServer(o.Name, specData, o.BaseURL,
			openapi.WithRouteMaps(rules...),
			openapi.WithIncludeTags(o.IncludeTags...),
		)
		if err != nil {
			return nil, fmt.Errorf("building server %s: %w", o.Name, err)
		}
		root.Mount(child, fuse.WithPrefix(o.Prefix))
	}

	for i := range c.Mounts {
		m := &c.Mounts[i]
		transportType := m.TransportType
		if transportType == "" {
			transportType = TransportStreamableHTTP
		}
		caller, err := proxy.NewRemote(m.URL, proxy.WithTransportType(transportType))
		if err != nil {
			return nil, fmt.Errorf("creating caller for %s: %w", m.URL, err)
		}
		root.MountCaller(caller, fuse.WithPrefix(m.Prefix))
	}

	return root, nil
}
