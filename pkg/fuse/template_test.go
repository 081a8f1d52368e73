// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchURITemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		template   string
		uri        string
		wantParams map[string]string
		wantMatch  bool
	}{
		{
			name:       "single parameter",
			template:   "data://users/{id}",
			uri:        "data://users/42",
			wantParams: map[string]string{"id": "42"},
			wantMatch:  true,
		},
		{
			name:       "multiple parameters",
			template:   "repo://{owner}/{name}/readme",
			uri:        "repo://octo/hello/readme",
			wantParams: map[string]string{"owner": "octo", "name": "hello"},
			wantMatch:  true,
		},
		{
			name:      "parameter cannot span segments",
			template:  "data://users/{id}",
			uri:       "data://users/42/posts",
			wantMatch: false,
		},
		{
			name:      "literal mismatch",
			template:  "data://users/{id}",
			uri:       "data://accounts/42",
			wantMatch: false,
		},
		{
			name:      "template without parameters is exact",
			template:  "data://config",
			uri:       "data://config",
			wantParams: map[string]string{},
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params, ok := matchURITemplate(tt.template, tt.uri)
			require.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, tt.wantParams, params)
			}
		})
	}
}

func TestExpandURITemplate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "data://users/42",
		expandURITemplate("data://users/{id}", map[string]string{"id": "42"}))
	assert.Equal(t, "repo://octo/{name}",
		expandURITemplate("repo://{owner}/{name}", map[string]string{"owner": "octo"}),
		"unknown placeholders stay intact")
}
