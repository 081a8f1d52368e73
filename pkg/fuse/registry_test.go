// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textTool(name, reply string) *Tool {
	return &Tool{
		Name:        name,
		Description: name + " tool",
		InputSchema: map[string]any{"type": "object"},
		Handler: func(_ context.Context, _ map[string]any) (*ToolResult, error) {
			return &ToolResult{Content: NewTextContent(reply)}, nil
		},
	}
}

func staticResource(uri, data string) *Resource {
	return &Resource{
		URI:      uri,
		MimeType: "text/plain",
		Handler: func(_ context.Context) (*ResourceContents, error) {
			return &ResourceContents{Data: []byte(data), MimeType: "text/plain"}, nil
		},
	}
}

func TestRegistryDuplicatePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  DuplicatePolicy
		wantErr bool
	}{
		{name: "error policy rejects duplicate", policy: DuplicateError, wantErr: true},
		{name: "replace policy overwrites", policy: DuplicateReplace, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRegistry(tt.policy)
			require.NoError(t, r.AddTool(textTool("echo", "first")))

			err := r.AddTool(textTool("echo", "second"))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrConflict)
				return
			}
			require.NoError(t, err)

			got, ok := r.Tool("echo")
			require.True(t, ok)
			res, err := got.Handler(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, "second", res.Content[0].Text)
		})
	}
}

func TestRegistryRejectsUnnamedComponents(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DuplicateError)
	assert.ErrorIs(t, r.AddTool(&Tool{}), ErrInvalidInput)
	assert.ErrorIs(t, r.AddResource(&Resource{}), ErrInvalidInput)
	assert.ErrorIs(t, r.AddTemplate(&ResourceTemplate{}), ErrInvalidInput)
	assert.ErrorIs(t, r.AddPrompt(&Prompt{}), ErrInvalidInput)
}

func TestRegistryDisabledComponentsAreInvisible(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DuplicateError)
	tool := textTool("hidden", "nope")
	tool.Disabled = true
	require.NoError(t, r.AddTool(tool))

	_, ok := r.Tool("hidden")
	assert.False(t, ok)
	assert.Empty(t, r.Tools())

	// Still registered: re-adding under DuplicateError conflicts.
	assert.ErrorIs(t, r.AddTool(textTool("hidden", "other")), ErrConflict)
}

func TestRegistryEnumerationIsSorted(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DuplicateError)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.AddTool(textTool(name, name)))
	}

	tools := r.Tools()
	require.Len(t, tools, 3)
	assert.Equal(t, "alpha", tools[0].Name)
	assert.Equal(t, "mid", tools[1].Name)
	assert.Equal(t, "zeta", tools[2].Name)
}

func TestRegistryMatchTemplate(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DuplicateError)
	require.NoError(t, r.AddTemplate(&ResourceTemplate{
		URITemplate: "weather://forecast/{city}/{day}",
		Handler: func(_ context.Context, params map[string]string) (*ResourceContents, error) {
			return &ResourceContents{Data: []byte(params["city"] + "/" + params["day"])}, nil
		},
	}))

	tmpl, params, ok := r.MatchTemplate("weather://forecast/berlin/tuesday")
	require.True(t, ok)
	assert.Equal(t, "weather://forecast/{city}/{day}", tmpl.URITemplate)
	assert.Equal(t, map[string]string{"city": "berlin", "day": "tuesday"}, params)

	_, _, ok = r.MatchTemplate("weather://forecast/berlin")
	assert.False(t, ok, "partial match must not resolve")
	_, _, ok = r.MatchTemplate("weather://forecast/berlin/tuesday/extra")
	assert.False(t, ok, "trailing segments must not resolve")
}
