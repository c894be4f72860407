// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func fakeListTools(pages [][]*Tool) func(context.Context, *ListToolsParams) (*ListToolsResult, error) {
	return func(_ context.Context, p *ListToolsParams) (*ListToolsResult, error) {
		idx := 0
		if p.Cursor != "" {
			idx = int(p.Cursor[0] - 'a')
		}
		res := &ListToolsResult{Tools: pages[idx]}
		if idx+1 < len(pages) {
			res.NextCursor = string(rune('a' + idx + 1))
		}
		return res, nil
	}
}

func TestListAll(t *testing.T) {
	pages := [][]*Tool{
		{{Name: "a"}, {Name: "b"}},
		{{Name: "c"}},
	}
	got, err := listAll(context.Background(), fakeListTools(pages), &ListToolsParams{}, func(r *ListToolsResult) []*Tool { return r.Tools })
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tool := range got {
		names = append(names, tool.Name)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumerateStopsEarly(t *testing.T) {
	pages := [][]*Tool{
		{{Name: "a"}, {Name: "b"}},
		{{Name: "c"}},
	}
	var names []string
	for tool, err := range enumerate(context.Background(), fakeListTools(pages), &ListToolsParams{}, func(r *ListToolsResult) []*Tool { return r.Tools }) {
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, tool.Name)
		if tool.Name == "b" {
			break
		}
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumeratePropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	call := func(context.Context, *ListToolsParams) (*ListToolsResult, error) { return nil, wantErr }
	var gotErr error
	for _, err := range enumerate(context.Background(), call, &ListToolsParams{}, func(r *ListToolsResult) []*Tool { return r.Tools }) {
		gotErr = err
	}
	if !errors.Is(gotErr, wantErr) {
		t.Errorf("got %v, want %v", gotErr, wantErr)
	}
}
