// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolfuse/toolfuse/pkg/fuse"
)

func newTestServer(t *testing.T) *fuse.Server {
	t.Helper()
	srv := fuse.NewServer("test")
	require.NoError(t, srv.AddTool(&fuse.Tool{
		Name: "echo",
		Handler: func(_ context.Context, _ map[string]any) (*fuse.ToolResult, error) {
			return &fuse.ToolResult{Content: fuse.NewTextContent("ok")}, nil
		},
	}))
	require.NoError(t, srv.AddTool(&fuse.Tool{
		Name: "boom",
		Handler: func(_ context.Context, _ map[string]any) (*fuse.ToolResult, error) {
			return nil, errors.New("kaput")
		},
	}))
	return srv
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv := newTestServer(t)
	srv.Use(Logging(log))

	_, err := srv.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Processing request")
	assert.Contains(t, out, "Request completed")
	assert.Contains(t, out, "name=echo")
	assert.Contains(t, out, "kind=tool")
	assert.Contains(t, out, "duration_ms=")
}

func TestLoggingMiddlewareFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv := newTestServer(t)
	srv.Use(Logging(log))

	_, err := srv.CallTool(context.Background(), "boom", nil)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "Request failed")
	assert.Contains(t, out, "kaput")
	assert.NotContains(t, out, "Request completed")
}

func TestAuthorizeMiddleware(t *testing.T) {
	t.Parallel()

	denied := errors.New("no capability")
	srv := newTestServer(t)
	srv.Use(Authorize(func(_ context.Context, inv fuse.Invocation) error {
		if inv.Name == "boom" {
			return denied
		}
		return nil
	}))

	_, err := srv.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "boom", nil)
	require.ErrorIs(t, err, denied)
	assert.Contains(t, err.Error(), "authorization denied")
}
