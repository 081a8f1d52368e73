// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors shared across the fuse subpackages. Check with errors.Is;
// the structured types below additionally support errors.As.

var (
	// ErrNotFound indicates a lookup failure for a component at call time.
	// Wrapping errors name the kind and identifier that failed to resolve.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate component name or URI registered in
	// the same registry and kind. Raised at registration time, never at
	// call time.
	ErrConflict = errors.New("component already registered")

	// ErrUpstream indicates an HTTP-backed component received a non-2xx or
	// otherwise invalid response. The concrete error is *UpstreamError.
	ErrUpstream = errors.New("upstream call failed")

	// ErrRouting indicates a mount prefix matched but the owning child
	// failed to resolve the remainder. The concrete error is *RoutingError.
	ErrRouting = errors.New("routing failed")

	// ErrInvalidInput indicates invalid caller-supplied parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// UpstreamError reports a failed HTTP call made on behalf of a synthesized
// component. It is distinct from ErrNotFound so callers can tell "doesn't
// exist" from "exists but failed".
type UpstreamError struct {
	// StatusCode is the HTTP status returned by the upstream API.
	StatusCode int

	// Body is the raw response body, kept for diagnosis.
	Body []byte
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream call failed: status %d: %s", e.StatusCode, truncate(e.Body, 512))
}

// Is reports ErrUpstream so errors.Is(err, ErrUpstream) matches.
func (*UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// RoutingError reports a resolution that entered one or more mounts by
// prefix but could not resolve further. Chain holds every prefix traversed,
// outermost first, for diagnosis of nested mount misconfiguration.
type RoutingError struct {
	// Kind is the component kind that was being resolved.
	Kind ComponentKind

	// Name is the identifier as received by the failing server.
	Name string

	// Chain is the list of mount prefixes traversed before the failure.
	Chain []string

	// Err is the child's error, unchanged.
	Err error
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing failed for %s %q (prefix chain: %s): %v",
		e.Kind, e.Name, strings.Join(e.Chain, " -> "), e.Err)
}

// Unwrap exposes the child's error for errors.Is/As.
func (e *RoutingError) Unwrap() error {
	return e.Err
}

// Is reports ErrRouting so errors.Is(err, ErrRouting) matches.
func (*RoutingError) Is(target error) bool {
	return target == ErrRouting
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
