// SPDX-License-Identifier: Apache-2.0

// Package middleware provides ready-made dispatch middleware for fuse
// servers.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/toolfuse/toolfuse/pkg/fuse"
)

// Logging returns middleware that logs every invocation crossing the
// server's dispatch boundary: a debug line when processing starts and an
// info (or warn, on failure) line with the duration when it completes.
// A nil log uses slog.Default().
func Logging(log *slog.Logger) fuse.Middleware {
	if log == nil {
		log = slog.Default()
	}
	return func(next fuse.Handler) fuse.Handler {
		return func(ctx context.Context, inv fuse.Invocation) (any, error) {
			log.DebugContext(ctx, "Processing request",
				"kind", string(inv.Kind),
				"name", inv.Name,
			)
			start := time.Now()
			result, err := next(ctx, inv)
			elapsed := time.Since(start)

			if err != nil {
				log.WarnContext(ctx, "Request failed",
					"kind", string(inv.Kind),
					"name", inv.Name,
					"duration_ms", elapsed.Milliseconds(),
					"error", err.Error(),
				)
				return result, err
			}
			log.InfoContext(ctx, "Request completed",
				"kind", string(inv.Kind),
				"name", inv.Name,
				"duration_ms", elapsed.Milliseconds(),
			)
			return result, nil
		}
	}
}

// AuthorizeFunc decides whether an invocation may proceed. Returning an
// error blocks dispatch and surfaces the error to the caller.
type AuthorizeFunc func(ctx context.Context, inv fuse.Invocation) error

// Authorize returns middleware wrapping the invoke path with a capability
// check. The server itself takes no stance on identity; the check is a
// pass-through decorator supplied by the embedding application.
func Authorize(check AuthorizeFunc) fuse.Middleware {
	return func(next fuse.Handler) fuse.Handler {
		return func(ctx context.Context, inv fuse.Invocation) (any, error) {
			if err := check(ctx, inv); err != nil {
				return nil, fmt.Errorf("authorization denied for %s %q: %w", inv.Kind, inv.Name, err)
			}
			return next(ctx, inv)
		}
	}
}
