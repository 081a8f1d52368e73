// SPDX-License-Identifier: Apache-2.0

package mapper

import (
	"fmt"

	"github.com/toolfuse/toolfuse/pkg/fuse"
	"github.com/toolfuse/toolfuse/pkg/logger"
)

// RouteMapFn overrides the rule-assigned kind for one operation. It runs
// after rule matching and before synthesis; returning the empty string keeps
// the assigned kind. Must be a pure function of its inputs.
type RouteMapFn func(op Operation, assigned MCPType) MCPType

// ComponentFn post-processes a synthesized component before registration.
// component is *fuse.Tool, *fuse.Resource or *fuse.ResourceTemplate
// depending on the operation's assigned kind; the function may mutate it
// (rename, tag, wrap the handler) in place.
type ComponentFn func(op Operation, component any)

// MappedOperation pairs an operation with its assigned kind. Excluded
// operations do not appear.
type MappedOperation struct {
	Operation Operation
	Kind      MCPType
}

// MapOperations classifies operations against the rules in order; the first
// matching rule wins. Operations matching no rule fall through to
// DefaultRouteMappings. EXCLUDE assignments drop the operation silently.
func MapOperations(ops []Operation, rules []RouteMap) []MappedOperation {
	defaults := DefaultRouteMappings()
	out := make([]MappedOperation, 0, len(ops))
	for _, op := range ops {
		kind, ok := classify(op, rules)
		if !ok {
			// The default list always has lower priority than any
			// user-supplied rule.
			kind, _ = classify(op, defaults)
		}
		if kind == MCPTypeExclude {
			logger.Debugf("Excluding operation %s %s %s", op.Method, op.Path, op.OperationID)
			continue
		}
		out = append(out, MappedOperation{Operation: op, Kind: kind})
	}
	return out
}

func classify(op Operation, rules []RouteMap) (MCPType, bool) {
	for i := range rules {
		if rules[i].matches(op) {
			return rules[i].MCPType, true
		}
	}
	return "", false
}

// Mapper turns classified operations into registered components backed by an
// HTTP requester.
type Mapper struct {
	request     RequestFunc
	rules       []RouteMap
	routeMapFn  RouteMapFn
	componentFn ComponentFn
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithRouteMaps sets the user rule list, evaluated before the defaults.
func WithRouteMaps(rules ...RouteMap) Option {
	return func(m *Mapper) { m.rules = rules }
}

// WithRouteMapFn sets the per-operation kind override hook.
func WithRouteMapFn(fn RouteMapFn) Option {
	return func(m *Mapper) { m.routeMapFn = fn }
}

// WithComponentFn sets the post-synthesis component hook.
func WithComponentFn(fn ComponentFn) Option {
	return func(m *Mapper) { m.componentFn = fn }
}

// New creates a Mapper issuing the synthesized components' HTTP calls
// through request.
func New(request RequestFunc, opts ...Option) *Mapper {
	m := &Mapper{request: request}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply classifies ops, synthesizes a component per surviving operation and
// registers each into srv. Registration stops at the first failure; prior
// components stay registered. Two operations sharing an operation id
// surface as fuse.ErrConflict here, at mapping time.
func (m *Mapper) Apply(srv *fuse.Server, ops []Operation) error {
	mapped := MapOperations(ops, m.rules)
	usedIDs := make(map[string]bool, len(mapped))
	for _, mo := range mapped {
		kind := mo.Kind
		if m.routeMapFn != nil {
			if override := m.routeMapFn(mo.Operation, kind); override != "" {
				kind = override
			}
		}
		if kind == MCPTypeExclude {
			continue
		}

		// Operation ids must be unique across kinds: the registry only
		// enforces per-kind uniqueness, and resources and templates are
		// keyed by synthesized URI rather than name.
		if usedIDs[mo.Operation.OperationID] {
			return fmt.Errorf("mapping operation %s: %w: duplicate operation id",
				mo.Operation.OperationID, fuse.ErrConflict)
		}
		usedIDs[mo.Operation.OperationID] = true

		rule := m.ruleTags(mo.Operation)
		switch kind {
		case MCPTypeTool:
			tool := m.synthesizeTool(mo.Operation, rule)
			if m.componentFn != nil {
				m.componentFn(mo.Operation, tool)
			}
			if err := srv.AddTool(tool); err != nil {
				return fmt.Errorf("mapping operation %s: %w", mo.Operation.OperationID, err)
			}
		case MCPTypeResource:
			res := m.synthesizeResource(mo.Operation, rule)
			if m.componentFn != nil {
				m.componentFn(mo.Operation, res)
			}
			if err := srv.AddResource(res); err != nil {
				return fmt.Errorf("mapping operation %s: %w", mo.Operation.OperationID, err)
			}
		case MCPTypeResourceTemplate:
			tmpl := m.synthesizeTemplate(mo.Operation, rule)
			if m.componentFn != nil {
				m.componentFn(mo.Operation, tmpl)
			}
			if err := srv.AddTemplate(tmpl); err != nil {
				return fmt.Errorf("mapping operation %s: %w", mo.Operation.OperationID, err)
			}
		default:
			return fmt.Errorf("%w: unknown component kind %q for operation %s",
				fuse.ErrInvalidInput, kind, mo.Operation.OperationID)
		}
	}
	logger.Infof("Mapped %d of %d operations into components", len(mapped), len(ops))
	return nil
}

// ruleTags returns the MCPTags of the first matching rule, so components
// carry the tags their classifying rule declared.
func (m *Mapper) ruleTags(op Operation) []string {
	for i := range m.rules {
		if m.rules[i].matches(op) {
			return m.rules[i].MCPTags
		}
	}
	return nil
}
