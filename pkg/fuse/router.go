// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/toolfuse/toolfuse/pkg/fuse/uriprefix"
	"github.com/toolfuse/toolfuse/pkg/logger"
)

// Dispatchers produced by resolution. Routing resolves first and dispatches
// exactly once, so probing a mount for existence never executes a handler.
type (
	toolDispatch     func(ctx context.Context, args map[string]any) (*ToolResult, error)
	resourceDispatch func(ctx context.Context) (*ResourceContents, error)
	promptDispatch   func(ctx context.Context, args map[string]string) (*PromptResult, error)
)

// CallTool resolves and executes a tool by its name as seen from this
// server: own tools first, then prefixed mounts (the prefix is stripped
// before delegating), then unprefixed mounts in mount order.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	inv := Invocation{Kind: KindTool, Name: name, Arguments: args}
	res, err := s.dispatch(ctx, inv, func(ctx context.Context, inv Invocation) (any, error) {
		d, err := s.resolveTool(ctx, inv.Name)
		if err != nil {
			return nil, err
		}
		return d(ctx, inv.Arguments)
	})
	if err != nil {
		return nil, err
	}
	out, ok := res.(*ToolResult)
	if !ok {
		return nil, fmt.Errorf("%w: middleware returned %T, want *ToolResult", ErrInvalidInput, res)
	}
	return out, nil
}

// ReadResource resolves and reads a resource by URI: own resources, then own
// templates, then prefixed mounts, then unprefixed mounts in mount order.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContents, error) {
	inv := Invocation{Kind: KindResource, Name: uri}
	res, err := s.dispatch(ctx, inv, func(ctx context.Context, inv Invocation) (any, error) {
		d, err := s.resolveResource(ctx, inv.Name)
		if err != nil {
			return nil, err
		}
		return d(ctx)
	})
	if err != nil {
		return nil, err
	}
	out, ok := res.(*ResourceContents)
	if !ok {
		return nil, fmt.Errorf("%w: middleware returned %T, want *ResourceContents", ErrInvalidInput, res)
	}
	return out, nil
}

// GetPrompt resolves and renders a prompt by name, with the same resolution
// order as CallTool.
func (s *Server) GetPrompt(ctx context.Context, name string, args map[string]string) (*PromptResult, error) {
	invArgs := make(map[string]any, len(args))
	for k, v := range args {
		invArgs[k] = v
	}
	inv := Invocation{Kind: KindPrompt, Name: name, Arguments: invArgs}
	res, err := s.dispatch(ctx, inv, func(ctx context.Context, inv Invocation) (any, error) {
		strArgs := make(map[string]string, len(inv.Arguments))
		for k, v := range inv.Arguments {
			strArgs[k] = fmt.Sprintf("%v", v)
		}
		d, err := s.resolvePrompt(ctx, inv.Name)
		if err != nil {
			return nil, err
		}
		return d(ctx, strArgs)
	})
	if err != nil {
		return nil, err
	}
	out, ok := res.(*PromptResult)
	if !ok {
		return nil, fmt.Errorf("%w: middleware returned %T, want *PromptResult", ErrInvalidInput, res)
	}
	return out, nil
}

// wrapRouting attributes a delegation failure to the mount prefix it went
// through. Nested failures accumulate the full prefix chain; the innermost
// error stays reachable through Unwrap.
func wrapRouting(prefix string, kind ComponentKind, name string, err error) error {
	var re *RoutingError
	if errors.As(err, &re) {
		return &RoutingError{
			Kind:  re.Kind,
			Name:  re.Name,
			Chain: append([]string{prefix}, re.Chain...),
			Err:   re.Err,
		}
	}
	return &RoutingError{Kind: kind, Name: name, Chain: []string{prefix}, Err: err}
}

// skippable reports whether an unprefixed mount's resolution failure means
// "not here, try the next mount". A plain not-found is skippable; a routing
// error is not, because the child already committed to a prefix route.
func skippable(err error) bool {
	var re *RoutingError
	return errors.Is(err, ErrNotFound) && !errors.As(err, &re)
}

func (s *Server) resolveTool(ctx context.Context, name string) (toolDispatch, error) {
	if t, ok := s.registry.Tool(name); ok {
		handler := t.Handler
		return func(ctx context.Context, args map[string]any) (*ToolResult, error) {
			return handler(ctx, args)
		}, nil
	}

	for _, m := range s.Mounts() {
		if m.prefix == "" {
			continue
		}
		rest, ok := strings.CutPrefix(name, m.prefix+"_")
		if !ok {
			continue
		}
		// The prefix matched: this mount owns the name. Failures below it
		// are routing failures, not a reason to keep searching.
		d, err := m.resolveTool(ctx, rest)
		if err != nil {
			return nil, wrapRouting(m.prefix, KindTool, rest, err)
		}
		return d, nil
	}

	for _, m := range s.Mounts() {
		if m.prefix != "" {
			continue
		}
		d, err := m.resolveTool(ctx, name)
		if err == nil {
			return d, nil
		}
		if skippable(err) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: tool %q", ErrNotFound, name)
}

func (s *Server) resolveResource(ctx context.Context, uri string) (resourceDispatch, error) {
	if r, ok := s.registry.Resource(uri); ok {
		handler := r.Handler
		return func(ctx context.Context) (*ResourceContents, error) {
			return handler(ctx)
		}, nil
	}
	if t, params, ok := s.registry.MatchTemplate(uri); ok {
		handler := t.Handler
		return func(ctx context.Context) (*ResourceContents, error) {
			return handler(ctx, params)
		}, nil
	}

	for _, m := range s.Mounts() {
		if m.prefix == "" {
			continue
		}
		childURI, ok := stripResourcePrefix(uri, m.prefix)
		if !ok {
			continue
		}
		d, err := m.resolveResource(ctx, childURI)
		if err != nil {
			return nil, wrapRouting(m.prefix, KindResource, childURI, err)
		}
		return d, nil
	}

	for _, m := range s.Mounts() {
		if m.prefix != "" {
			continue
		}
		d, err := m.resolveResource(ctx, uri)
		if err == nil {
			return d, nil
		}
		if skippable(err) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: resource %q", ErrNotFound, uri)
}

// stripResourcePrefix checks uri against prefix in both supported encodings
// and returns the child-side URI on a match. A URI that does not parse
// simply does not match; format errors are reserved for the explicit prefix
// operations.
func stripResourcePrefix(uri, prefix string) (string, bool) {
	for _, format := range []uriprefix.Format{uriprefix.FormatPath, uriprefix.FormatProtocol} {
		has, err := uriprefix.Has(uri, prefix, format)
		if err != nil || !has {
			continue
		}
		childURI, err := uriprefix.Remove(uri, prefix, format)
		if err != nil {
			continue
		}
		return childURI, true
	}
	return "", false
}

func (s *Server) resolvePrompt(ctx context.Context, name string) (promptDispatch, error) {
	if p, ok := s.registry.Prompt(name); ok {
		handler := p.Handler
		return func(ctx context.Context, args map[string]string) (*PromptResult, error) {
			return handler(ctx, args)
		}, nil
	}

	for _, m := range s.Mounts() {
		if m.prefix == "" {
			continue
		}
		rest, ok := strings.CutPrefix(name, m.prefix+"_")
		if !ok {
			continue
		}
		d, err := m.resolvePrompt(ctx, rest)
		if err != nil {
			return nil, wrapRouting(m.prefix, KindPrompt, rest, err)
		}
		return d, nil
	}

	for _, m := range s.Mounts() {
		if m.prefix != "" {
			continue
		}
		d, err := m.resolvePrompt(ctx, name)
		if err == nil {
			return d, nil
		}
		if skippable(err) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: prompt %q", ErrNotFound, name)
}

// ListTools returns the composed tool view: the server's own tools plus each
// mount's view with prefixes applied. Mounts are queried in parallel; name
// collisions are won by the server's own tools, then by the earliest mount.
func (s *Server) ListTools(ctx context.Context) ([]*Tool, error) {
	own := s.registry.Tools()
	mounts := s.Mounts()

	perMount := make([][]*Tool, len(mounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range mounts {
		g.Go(func() error {
			items, err := m.listTools(gctx)
			if err != nil {
				return err
			}
			perMount[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Tool, 0, len(own))
	seen := make(map[string]bool, len(own))
	for _, t := range own {
		out = append(out, t)
		seen[t.Name] = true
	}
	for i, m := range mounts {
		for _, t := range perMount[i] {
			if m.prefix != "" {
				t.Name = m.prefix + "_" + t.Name
			}
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// ListResources returns the composed resource view, with mount prefixes
// applied to URIs using the path encoding.
func (s *Server) ListResources(ctx context.Context) ([]*Resource, error) {
	own := s.registry.Resources()
	mounts := s.Mounts()

	perMount := make([][]*Resource, len(mounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range mounts {
		g.Go(func() error {
			items, err := m.listResources(gctx)
			if err != nil {
				return err
			}
			perMount[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Resource, 0, len(own))
	seen := make(map[string]bool, len(own))
	for _, r := range own {
		out = append(out, r)
		seen[r.URI] = true
	}
	for i, m := range mounts {
		for _, r := range perMount[i] {
			if m.prefix != "" {
				prefixed, err := uriprefix.Add(r.URI, m.prefix, uriprefix.FormatPath)
				if err != nil {
					logger.Warnf("Skipping resource with unprefixable URI %q: %v", r.URI, err)
					continue
				}
				r.URI = prefixed
			}
			if seen[r.URI] {
				continue
			}
			seen[r.URI] = true
			out = append(out, r)
		}
	}
	return out, nil
}

// ListResourceTemplates returns the composed template view, with mount
// prefixes applied to URI templates using the path encoding.
func (s *Server) ListResourceTemplates(ctx context.Context) ([]*ResourceTemplate, error) {
	own := s.registry.Templates()
	mounts := s.Mounts()

	perMount := make([][]*ResourceTemplate, len(mounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range mounts {
		g.Go(func() error {
			items, err := m.listTemplates(gctx)
			if err != nil {
				return err
			}
			perMount[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*ResourceTemplate, 0, len(own))
	seen := make(map[string]bool, len(own))
	for _, t := range own {
		out = append(out, t)
		seen[t.URITemplate] = true
	}
	for i, m := range mounts {
		for _, t := range perMount[i] {
			if m.prefix != "" {
				prefixed, err := uriprefix.Add(t.URITemplate, m.prefix, uriprefix.FormatPath)
				if err != nil {
					logger.Warnf("Skipping template with unprefixable URI %q: %v", t.URITemplate, err)
					continue
				}
				t.URITemplate = prefixed
			}
			if seen[t.URITemplate] {
				continue
			}
			seen[t.URITemplate] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// ListPrompts returns the composed prompt view with mount prefixes applied.
func (s *Server) ListPrompts(ctx context.Context) ([]*Prompt, error) {
	own := s.registry.Prompts()
	mounts := s.Mounts()

	perMount := make([][]*Prompt, len(mounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range mounts {
		g.Go(func() error {
			items, err := m.listPrompts(gctx)
			if err != nil {
				return err
			}
			perMount[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Prompt, 0, len(own))
	seen := make(map[string]bool, len(own))
	for _, p := range own {
		out = append(out, p)
		seen[p.Name] = true
	}
	for i, m := range mounts {
		for _, p := range perMount[i] {
			if m.prefix != "" {
				p.Name = m.prefix + "_" + p.Name
			}
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			out = append(out, p)
		}
	}
	return out, nil
}
