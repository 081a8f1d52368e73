// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"fmt"
	"sort"
	"sync"
)

// DuplicatePolicy controls what a registry does when a component is
// registered under a name or URI that is already taken within the same kind.
// The policy is fixed for the registry's lifetime.
type DuplicatePolicy int

const (
	// DuplicateError rejects the registration with ErrConflict. Default.
	DuplicateError DuplicatePolicy = iota

	// DuplicateReplace deterministically overwrites the existing component.
	DuplicateReplace
)

// Registry owns the per-kind component collections of one server. Names and
// URIs are unique within their kind. Registration is expected during setup;
// lookups and enumeration are safe for concurrent use during serving.
type Registry struct {
	mu        sync.RWMutex
	policy    DuplicatePolicy
	tools     map[string]*Tool
	resources map[string]*Resource
	templates map[string]*ResourceTemplate
	prompts   map[string]*Prompt
}

// NewRegistry creates an empty registry with the given duplicate policy.
func NewRegistry(policy DuplicatePolicy) *Registry {
	return &Registry{
		policy:    policy,
		tools:     make(map[string]*Tool),
		resources: make(map[string]*Resource),
		templates: make(map[string]*ResourceTemplate),
		prompts:   make(map[string]*Prompt),
	}
}

// Policy returns the registry's duplicate policy.
func (r *Registry) Policy() DuplicatePolicy {
	return r.policy
}

// AddTool registers a tool under its name.
func (r *Registry) AddTool(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: tool must have a name", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists && r.policy == DuplicateError {
		return fmt.Errorf("%w: tool %q", ErrConflict, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// AddResource registers a resource under its URI.
func (r *Registry) AddResource(res *Resource) error {
	if res == nil || res.URI == "" {
		return fmt.Errorf("%w: resource must have a URI", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[res.URI]; exists && r.policy == DuplicateError {
		return fmt.Errorf("%w: resource %q", ErrConflict, res.URI)
	}
	r.resources[res.URI] = res
	return nil
}

// AddTemplate registers a resource template under its URI template.
func (r *Registry) AddTemplate(t *ResourceTemplate) error {
	if t == nil || t.URITemplate == "" {
		return fmt.Errorf("%w: resource template must have a URI template", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t.URITemplate]; exists && r.policy == DuplicateError {
		return fmt.Errorf("%w: resource template %q", ErrConflict, t.URITemplate)
	}
	r.templates[t.URITemplate] = t
	return nil
}

// AddPrompt registers a prompt under its name.
func (r *Registry) AddPrompt(p *Prompt) error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("%w: prompt must have a name", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prompts[p.Name]; exists && r.policy == DuplicateError {
		return fmt.Errorf("%w: prompt %q", ErrConflict, p.Name)
	}
	r.prompts[p.Name] = p
	return nil
}

// Tool looks up a tool by name. Disabled tools are reported as absent.
func (r *Registry) Tool(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok || t.Disabled {
		return nil, false
	}
	return t, true
}

// Resource looks up a resource by URI. Disabled resources are reported as absent.
func (r *Registry) Resource(uri string) (*Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[uri]
	if !ok || res.Disabled {
		return nil, false
	}
	return res, true
}

// Template looks up a resource template by its exact URI template string.
// Disabled templates are reported as absent.
func (r *Registry) Template(uriTemplate string) (*ResourceTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[uriTemplate]
	if !ok || t.Disabled {
		return nil, false
	}
	return t, true
}

// Prompt looks up a prompt by name. Disabled prompts are reported as absent.
func (r *Registry) Prompt(name string) (*Prompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[name]
	if !ok || p.Disabled {
		return nil, false
	}
	return p, true
}

// MatchTemplate finds the first (name-sorted) enabled template whose URI
// template matches the concrete uri, returning the extracted parameters.
func (r *Registry) MatchTemplate(uri string) (*ResourceTemplate, map[string]string, bool) {
	for _, t := range r.Templates() {
		if params, ok := matchURITemplate(t.URITemplate, uri); ok {
			return t, params, true
		}
	}
	return nil, nil, false
}

// Tools returns the enabled tools sorted by name.
func (r *Registry) Tools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if !t.Disabled {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resources returns the enabled resources sorted by URI.
func (r *Registry) Resources() []*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Resource, 0, len(r.resources))
	for _, res := range r.resources {
		if !res.Disabled {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// Templates returns the enabled resource templates sorted by URI template.
func (r *Registry) Templates() []*ResourceTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ResourceTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		if !t.Disabled {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URITemplate < out[j].URITemplate })
	return out
}

// Prompts returns the enabled prompts sorted by name.
func (r *Registry) Prompts() []*Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Prompt, 0, len(r.prompts))
	for _, p := range r.prompts {
		if !p.Disabled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
