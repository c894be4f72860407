// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import "testing"

func TestResourceTemplateExpand(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   map[string]string
		want     string
	}{
		{
			name:     "single variable",
			template: "file:///{id}.txt",
			values:   map[string]string{"id": "42"},
			want:     "file:///42.txt",
		},
		{
			name:     "multiple variables",
			template: "https://example.com/{owner}/{repo}",
			values:   map[string]string{"owner": "golang", "repo": "go"},
			want:     "https://example.com/golang/go",
		},
		{
			name:     "missing variable expands to empty",
			template: "file:///{id}.txt",
			values:   nil,
			want:     "file:///.txt",
		},
		{
			name:     "space is percent-encoded",
			template: "search://{query}",
			values:   map[string]string{"query": "a b"},
			want:     "search://a%20b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &ResourceTemplate{URITemplate: tt.template}
			got, err := rt.Expand(tt.values)
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResourceTemplateExpandInvalidTemplate(t *testing.T) {
	rt := &ResourceTemplate{URITemplate: "file:///{unterminated"}
	if _, err := rt.Expand(nil); err == nil {
		t.Fatal("Expand succeeded on an unterminated template expression")
	}
}
