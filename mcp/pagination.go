// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the pagination driver used by every List* client
// method: repeatedly calling the server with an opaque cursor until it
// stops returning one.

package mcp

import (
	"context"
	"iter"
)

// page issues a single paginated call, threading cursor into req before
// the call and reading nextCursor out of the result afterward.
func page[P paginatedParams, R paginatedResult](ctx context.Context, call func(context.Context, P) (R, error), req P, cursor string) (R, string, error) {
	*req.cursorPtr() = cursor
	res, err := call(ctx, req)
	if err != nil {
		var zero R
		return zero, "", err
	}
	return res, *res.nextCursorPtr(), nil
}

// listAll gathers every item across all pages into a single slice,
// following nextCursor until the server stops returning one. get extracts
// the page's items from its result.
func listAll[P paginatedParams, R paginatedResult, T any](ctx context.Context, call func(context.Context, P) (R, error), req P, get func(R) []T) ([]T, error) {
	var all []T
	cursor := ""
	for {
		res, next, err := page(ctx, call, req, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, get(res)...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

// enumerate returns a lazy, single-pass iterator over every item across all
// pages, fetching each page only as the consumer advances past the
// previous one's items. It is not restartable: ranging over the same
// returned sequence twice issues the requests again, from the first page.
//
// If a page request fails, the error is surfaced as the final yielded pair
// (zero value, err), and iteration stops.
func enumerate[P paginatedParams, R paginatedResult, T any](ctx context.Context, call func(context.Context, P) (R, error), req P, get func(R) []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		cursor := ""
		for {
			res, next, err := page(ctx, call, req, cursor)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range get(res) {
				if !yield(item, nil) {
					return
				}
			}
			if next == "" {
				return
			}
			cursor = next
		}
	}
}
