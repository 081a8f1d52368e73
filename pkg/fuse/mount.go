// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"fmt"

	"github.com/toolfuse/toolfuse/pkg/logger"
)

// MountMode selects the execution semantics of a mount.
type MountMode int

const (
	// ModeAuto resolves to ModeProxy when the child declares a lifespan,
	// otherwise ModeDirect. See DefaultMountMode.
	ModeAuto MountMode = iota

	// ModeDirect delegates in-process: the parent calls into the child's
	// registry and handlers directly. No child lifecycle or session events
	// fire. Only valid when the child has no observable lifecycle.
	ModeDirect

	// ModeProxy delegates through a session-preserving caller, so the
	// child's startup/teardown hooks and stateful session behavior execute
	// normally.
	ModeProxy
)

// String implements fmt.Stringer.
func (m MountMode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeDirect:
		return "direct"
	case ModeProxy:
		return "proxy"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultMountMode is the mode selection rule: proxying is required as soon
// as the child declares observable lifecycle behavior; direct delegation is
// an optimization for children without one. Pure function of the child's
// declared capability flag.
func DefaultMountMode(child *Server) MountMode {
	if child.HasLifespan() {
		return ModeProxy
	}
	return ModeDirect
}

// Mount is a live, non-owning delegation link from a parent server to a
// child. The parent holds the mount; removing it never affects the child.
type Mount struct {
	prefix string
	mode   MountMode

	// child is the local child server. Nil for mounts created with
	// MountCaller, which only have a remote caller.
	child *Server

	// caller is the session-preserving dispatch path. Non-nil exactly when
	// mode is ModeProxy.
	caller SessionCaller
}

// Prefix returns the mount's namespace prefix ("" for unprefixed mounts).
func (m *Mount) Prefix() string { return m.prefix }

// Mode returns the mount's resolved execution mode (never ModeAuto).
func (m *Mount) Mode() MountMode { return m.mode }

// Child returns the mounted local server, or nil for remote mounts.
func (m *Mount) Child() *Server { return m.child }

type mountConfig struct {
	prefix string
	mode   MountMode
}

// MountOption configures a mount.
type MountOption func(*mountConfig)

// WithPrefix exposes the child's components under a namespace prefix:
// tool and prompt names become "prefix_name"; resource and template URIs get
// the prefix inserted with the path encoding (scheme://prefix/path).
func WithPrefix(prefix string) MountOption {
	return func(c *mountConfig) { c.prefix = prefix }
}

// WithMountMode forces a mount mode instead of the ModeAuto default.
func WithMountMode(mode MountMode) MountOption {
	return func(c *mountConfig) { c.mode = mode }
}

// Mount attaches child as a live sub-server. The child is unaware of the
// parent; its components stay resolvable through the parent as long as the
// mount is kept, and the next resolution sees whatever the child currently
// exposes.
func (s *Server) Mount(child *Server, opts ...MountOption) *Mount {
	cfg := mountConfig{mode: ModeAuto}
	for _, opt := range opts {
		opt(&cfg)
	}
	mode := cfg.mode
	if mode == ModeAuto {
		mode = DefaultMountMode(child)
	}

	m := &Mount{prefix: cfg.prefix, mode: mode, child: child}
	if mode == ModeProxy {
		m.caller = newLocalSession(child)
	}

	s.mu.Lock()
	s.mounts = append(s.mounts, m)
	s.mu.Unlock()

	logger.Debugf("Mounted server %s on %s (prefix=%q, mode=%s)", child.Name(), s.name, cfg.prefix, mode)
	return m
}

// MountCaller attaches a live remote server through its session-preserving
// caller. Remote mounts always have proxy semantics.
func (s *Server) MountCaller(caller SessionCaller, opts ...MountOption) *Mount {
	cfg := mountConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Mount{prefix: cfg.prefix, mode: ModeProxy, caller: caller}

	s.mu.Lock()
	s.mounts = append(s.mounts, m)
	s.mu.Unlock()

	logger.Debugf("Mounted remote caller on %s (prefix=%q)", s.name, cfg.prefix)
	return m
}

// Unmount removes a mount. The removal is immediate: subsequent resolutions
// no longer consider the mount, while calls already dispatched to the child
// complete or fail independently. The child itself is untouched.
func (s *Server) Unmount(m *Mount) {
	s.mu.Lock()
	removed := false
	for i, existing := range s.mounts {
		if existing == m {
			s.mounts = append(s.mounts[:i], s.mounts[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if !removed {
		logger.Warnf("Unmount on %s: mount not found", s.name)
		return
	}
	if m.caller != nil {
		if err := m.caller.Close(); err != nil {
			logger.Warnf("Closing session for unmounted server failed: %v", err)
		}
	}
}

// Mounts returns a snapshot of the current mounts in mount order.
func (s *Server) Mounts() []*Mount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Mount, len(s.mounts))
	copy(out, s.mounts)
	return out
}

// Dispatch helpers. These operate on child-side identifiers (prefix already
// stripped by the delegation router).

func (m *Mount) callTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if m.caller != nil {
		return m.caller.CallTool(ctx, name, args)
	}
	return m.child.CallTool(ctx, name, args)
}

func (m *Mount) readResource(ctx context.Context, uri string) (*ResourceContents, error) {
	if m.caller != nil {
		return m.caller.ReadResource(ctx, uri)
	}
	return m.child.ReadResource(ctx, uri)
}

func (m *Mount) getPrompt(ctx context.Context, name string, args map[string]string) (*PromptResult, error) {
	if m.caller != nil {
		return m.caller.GetPrompt(ctx, name, args)
	}
	return m.child.GetPrompt(ctx, name, args)
}

// Resolution helpers. Resolution is separated from dispatch so that routing
// never executes a handler just to probe for existence.

func (m *Mount) resolveTool(ctx context.Context, name string) (toolDispatch, error) {
	if m.caller != nil {
		tools, err := m.caller.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range tools {
			if t.Name == name {
				return func(ctx context.Context, args map[string]any) (*ToolResult, error) {
					return m.caller.CallTool(ctx, name, args)
				}, nil
			}
		}
		return nil, fmt.Errorf("%w: tool %q", ErrNotFound, name)
	}
	if _, err := m.child.resolveTool(ctx, name); err != nil {
		return nil, err
	}
	return func(ctx context.Context, args map[string]any) (*ToolResult, error) {
		return m.child.CallTool(ctx, name, args)
	}, nil
}

func (m *Mount) resolveResource(ctx context.Context, uri string) (resourceDispatch, error) {
	if m.caller != nil {
		resources, err := m.caller.ListResources(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range resources {
			if r.URI == uri {
				return func(ctx context.Context) (*ResourceContents, error) {
					return m.caller.ReadResource(ctx, uri)
				}, nil
			}
		}
		templates, err := m.caller.ListResourceTemplates(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range templates {
			if _, ok := matchURITemplate(t.URITemplate, uri); ok {
				return func(ctx context.Context) (*ResourceContents, error) {
					return m.caller.ReadResource(ctx, uri)
				}, nil
			}
		}
		return nil, fmt.Errorf("%w: resource %q", ErrNotFound, uri)
	}
	if _, err := m.child.resolveResource(ctx, uri); err != nil {
		return nil, err
	}
	return func(ctx context.Context) (*ResourceContents, error) {
		return m.child.ReadResource(ctx, uri)
	}, nil
}

func (m *Mount) resolvePrompt(ctx context.Context, name string) (promptDispatch, error) {
	if m.caller != nil {
		prompts, err := m.caller.ListPrompts(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range prompts {
			if p.Name == name {
				return func(ctx context.Context, args map[string]string) (*PromptResult, error) {
					return m.caller.GetPrompt(ctx, name, args)
				}, nil
			}
		}
		return nil, fmt.Errorf("%w: prompt %q", ErrNotFound, name)
	}
	if _, err := m.child.resolvePrompt(ctx, name); err != nil {
		return nil, err
	}
	return func(ctx context.Context, args map[string]string) (*PromptResult, error) {
		return m.child.GetPrompt(ctx, name, args)
	}, nil
}

// Enumeration helpers. The returned components are copies with their
// handlers rebound to dispatch through this mount, so the composed view is
// callable (and importable) without reaching into the child.

func (m *Mount) listTools(ctx context.Context) ([]*Tool, error) {
	var items []*Tool
	var err error
	if m.caller != nil {
		items, err = m.caller.ListTools(ctx)
	} else {
		items, err = m.child.ListTools(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*Tool, 0, len(items))
	for _, t := range items {
		childName := t.Name
		c := *t
		c.Handler = func(ctx context.Context, args map[string]any) (*ToolResult, error) {
			return m.callTool(ctx, childName, args)
		}
		out = append(out, &c)
	}
	return out, nil
}

func (m *Mount) listResources(ctx context.Context) ([]*Resource, error) {
	var items []*Resource
	var err error
	if m.caller != nil {
		items, err = m.caller.ListResources(ctx)
	} else {
		items, err = m.child.ListResources(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*Resource, 0, len(items))
	for _, r := range items {
		childURI := r.URI
		c := *r
		c.Handler = func(ctx context.Context) (*ResourceContents, error) {
			return m.readResource(ctx, childURI)
		}
		out = append(out, &c)
	}
	return out, nil
}

func (m *Mount) listTemplates(ctx context.Context) ([]*ResourceTemplate, error) {
	var items []*ResourceTemplate
	var err error
	if m.caller != nil {
		items, err = m.caller.ListResourceTemplates(ctx)
	} else {
		items, err = m.child.ListResourceTemplates(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*ResourceTemplate, 0, len(items))
	for _, t := range items {
		childTemplate := t.URITemplate
		c := *t
		c.Handler = func(ctx context.Context, params map[string]string) (*ResourceContents, error) {
			return m.readResource(ctx, expandURITemplate(childTemplate, params))
		}
		out = append(out, &c)
	}
	return out, nil
}

func (m *Mount) listPrompts(ctx context.Context) ([]*Prompt, error) {
	var items []*Prompt
	var err error
	if m.caller != nil {
		items, err = m.caller.ListPrompts(ctx)
	} else {
		items, err = m.child.ListPrompts(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*Prompt, 0, len(items))
	for _, p := range items {
		childName := p.Name
		c := *p
		c.Handler = func(ctx context.Context, args map[string]string) (*PromptResult, error) {
			return m.getPrompt(ctx, childName, args)
		}
		out = append(out, &c)
	}
	return out, nil
}
