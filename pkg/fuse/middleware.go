// SPDX-License-Identifier: Apache-2.0

package fuse

import "context"

// Invocation describes one call crossing a server's dispatch boundary.
// Middleware sees every tool call, resource read and prompt render, including
// calls that end up delegated to mounted child servers.
type Invocation struct {
	// Kind is the component kind being invoked.
	Kind ComponentKind

	// Name is the identifier as received by this server (prefixes intact).
	Name string

	// Arguments are the call arguments. Nil for plain resource reads.
	Arguments map[string]any
}

// Handler is the dispatch continuation middleware wraps. The result is
// *ToolResult, *ResourceContents or *PromptResult depending on the
// invocation kind.
type Handler func(ctx context.Context, inv Invocation) (any, error)

// Middleware decorates the dispatch path of a server. Middleware must call
// next to continue dispatch and must not swallow errors it does not own.
type Middleware func(next Handler) Handler

// chainMiddleware wraps final with the middleware in declaration order: the
// first middleware added sees the invocation first.
func chainMiddleware(mws []Middleware, final Handler) Handler {
	h := final
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
