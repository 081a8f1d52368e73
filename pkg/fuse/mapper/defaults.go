// SPDX-License-Identifier: Apache-2.0

package mapper

import "regexp"

// paramPathPattern matches any path carrying a {param} placeholder.
const paramPathPattern = `.*\{.*\}.*`

// DefaultRouteMappings is the fallback classification, applied after every
// user-supplied rule failed to match: operations with a path parameter
// become resource templates, everything else a tool.
func DefaultRouteMappings() []RouteMap {
	return []RouteMap{
		{
			Methods:     []string{"*"},
			PathPattern: regexp.MustCompile(paramPathPattern),
			MCPType:     MCPTypeResourceTemplate,
		},
		{
			Methods:     []string{"*"},
			PathPattern: regexp.MustCompile(".*"),
			MCPType:     MCPTypeTool,
		},
	}
}

// SemanticRouteMappings classifies GETs as readables and everything else as
// tools: GET with path parameters becomes a resource template, plain GET a
// resource, any other method a tool.
func SemanticRouteMappings() []RouteMap {
	return []RouteMap{
		{
			Methods:     []string{"GET"},
			PathPattern: regexp.MustCompile(paramPathPattern),
			MCPType:     MCPTypeResourceTemplate,
		},
		{
			Methods:     []string{"GET"},
			PathPattern: regexp.MustCompile(".*"),
			MCPType:     MCPTypeResource,
		},
		{
			Methods:     []string{"*"},
			PathPattern: regexp.MustCompile(".*"),
			MCPType:     MCPTypeTool,
		},
	}
}

// ResourceOnlyMappings exposes GETs as readables and drops everything else.
func ResourceOnlyMappings() []RouteMap {
	return []RouteMap{
		{
			Methods:     []string{"GET"},
			PathPattern: regexp.MustCompile(paramPathPattern),
			MCPType:     MCPTypeResourceTemplate,
		},
		{
			Methods:     []string{"GET"},
			PathPattern: regexp.MustCompile(".*"),
			MCPType:     MCPTypeResource,
		},
		{
			Methods:     []string{"*"},
			PathPattern: regexp.MustCompile(".*"),
			MCPType:     MCPTypeExclude,
		},
	}
}

// ToolOnlyMappings exposes every operation as a tool.
func ToolOnlyMappings() []RouteMap {
	return []RouteMap{
		{
			Methods:     []string{"*"},
			PathPattern: regexp.MustCompile(".*"),
			MCPType:     MCPTypeTool,
		},
	}
}

// ExcludeByPattern builds a rule dropping every operation whose path matches
// the pattern, for use ahead of broader rules.
func ExcludeByPattern(pattern string) RouteMap {
	return RouteMap{
		Methods:     []string{"*"},
		PathPattern: regexp.MustCompile(pattern),
		MCPType:     MCPTypeExclude,
	}
}
