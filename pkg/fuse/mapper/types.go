// SPDX-License-Identifier: Apache-2.0

// Package mapper classifies HTTP API operations into server components
// using an ordered rule set and synthesizes the components' callables.
// Classification is deterministic: rules are evaluated in declaration
// order, the first match wins, and EXCLUDE drops the operation.
package mapper

import "regexp"

// MCPType is the component kind a route map assigns to a matched operation.
type MCPType string

const (
	// MCPTypeTool maps the operation to a callable tool.
	MCPTypeTool MCPType = "tool"

	// MCPTypeResource maps the operation to a static readable resource.
	MCPTypeResource MCPType = "resource"

	// MCPTypeResourceTemplate maps the operation to a parameterized
	// resource template.
	MCPTypeResourceTemplate MCPType = "resource_template"

	// MCPTypeExclude drops the operation: no component is produced and no
	// error is raised.
	MCPTypeExclude MCPType = "exclude"
)

// Param is one path or query parameter of an operation.
type Param struct {
	// Name is the parameter name as it appears in the path or query.
	Name string

	// Description documents the parameter.
	Description string

	// Schema is the parameter's JSON Schema. Nil means untyped (treated
	// as string).
	Schema map[string]any

	// Required marks the parameter as mandatory. Path parameters are
	// always required regardless of this flag.
	Required bool
}

// BodySchema describes an operation's request body.
type BodySchema struct {
	// ContentType is the body media type (normally application/json).
	ContentType string

	// Schema is the body's JSON Schema.
	Schema map[string]any

	// Required marks the body as mandatory.
	Required bool
}

// Operation is one normalized HTTP endpoint description. Immutable;
// produced by parsing an API description (see the openapi package).
type Operation struct {
	// Method is the HTTP method (GET, POST, ...).
	Method string

	// Path is the path pattern with {param} placeholders.
	Path string

	// OperationID names the operation; it becomes the component name.
	OperationID string

	// Summary is the operation's short description.
	Summary string

	// Description is the operation's long description.
	Description string

	// Tags are the operation's API tags.
	Tags []string

	// PathParams are the {param} placeholders, in path order.
	PathParams []Param

	// QueryParams are the operation's query parameters.
	QueryParams []Param

	// RequestBody is the request body description, if any.
	RequestBody *BodySchema
}

// RouteMap is one ordered classification rule: an operation matching the
// rule's method set, path pattern and tag filter is assigned the rule's
// MCPType. Rules are evaluated in declaration order; the first match wins.
type RouteMap struct {
	// Methods is the HTTP method set; "*" matches any method.
	Methods []string

	// PathPattern is matched against the operation's path pattern as a
	// full-string regex.
	PathPattern *regexp.Regexp

	// Tags, when non-empty, requires the operation to carry at least one
	// of the listed tags.
	Tags []string

	// MCPType is the assigned component kind on match.
	MCPType MCPType

	// MCPTags are extra tags attached to the synthesized component.
	MCPTags []string
}

// NewRouteMap returns a catch-all rule mapping everything to a tool.
// Narrow it with the With methods.
func NewRouteMap() *RouteMap {
	return &RouteMap{
		Methods:     []string{"*"},
		PathPattern: regexp.MustCompile(".*"),
		MCPType:     MCPTypeTool,
	}
}

// WithMethods restricts the rule to the given HTTP methods.
func (rm *RouteMap) WithMethods(methods ...string) *RouteMap {
	rm.Methods = methods
	return rm
}

// WithPathPattern restricts the rule to paths matching the regex pattern.
func (rm *RouteMap) WithPathPattern(pattern string) *RouteMap {
	rm.PathPattern = regexp.MustCompile(pattern)
	return rm
}

// WithTags restricts the rule to operations carrying at least one of the
// given tags.
func (rm *RouteMap) WithTags(tags ...string) *RouteMap {
	rm.Tags = tags
	return rm
}

// WithMCPType sets the component kind this rule assigns.
func (rm *RouteMap) WithMCPType(mcpType MCPType) *RouteMap {
	rm.MCPType = mcpType
	return rm
}

// WithMCPTags attaches extra tags to components produced by this rule.
func (rm *RouteMap) WithMCPTags(tags ...string) *RouteMap {
	rm.MCPTags = tags
	return rm
}

// matches reports whether the rule applies to the operation.
func (rm *RouteMap) matches(op Operation) bool {
	methodOK := false
	for _, m := range rm.Methods {
		if m == "*" || m == op.Method {
			methodOK = true
			break
		}
	}
	if !methodOK {
		return false
	}

	// Full-string match: a pattern that only matches a substring does not
	// classify the operation.
	loc := rm.PathPattern.FindStringIndex(op.Path)
	if loc == nil || loc[0] != 0 || loc[1] != len(op.Path) {
		return false
	}

	if len(rm.Tags) == 0 {
		return true
	}
	for _, want := range rm.Tags {
		for _, have := range op.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}
