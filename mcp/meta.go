// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"maps"

	internaljson "github.com/mark3labs/mcp-core-go/internal/json"
)

// progressTokenKey is the reserved key under which a progress token travels
// inside a request's _meta object.
const progressTokenKey = "progressToken"

// Meta holds the contents of a request or result's "_meta" field: an
// arbitrary JSON object that may additionally carry a progress token. It is
// embedded by value in every Params and Result type.
//
// On the wire, ProgressToken (if set) is merged into Data under the
// "progressToken" key; Data's own "progressToken" entry, if present, is
// shadowed by the typed field.
type Meta struct {
	Data          map[string]any
	ProgressToken any // string or int64
}

// GetMeta returns the flattened view of m used for marshaling and for
// progress-token lookups: Data with ProgressToken folded in.
func (m Meta) GetMeta() map[string]any {
	if m.ProgressToken == nil {
		return m.Data
	}
	out := make(map[string]any, len(m.Data)+1)
	maps.Copy(out, m.Data)
	out[progressTokenKey] = m.ProgressToken
	return out
}

// SetMeta replaces Data, leaving ProgressToken untouched.
func (m *Meta) SetMeta(data map[string]any) { m.Data = data }

// setProgressTokenField is promoted to every type that embeds Meta by
// value, giving setProgressToken a uniform way to mutate it.
func (m *Meta) setProgressTokenField(t any) { m.ProgressToken = t }

func (m Meta) MarshalJSON() ([]byte, error) {
	flat := m.GetMeta()
	if flat == nil {
		return []byte("{}"), nil
	}
	return internaljson.Marshal(flat)
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := internaljson.Unmarshal(data, &raw); err != nil {
		return err
	}
	if tok, ok := raw[progressTokenKey]; ok {
		m.ProgressToken = tok
		delete(raw, progressTokenKey)
	}
	if len(raw) == 0 {
		raw = nil
	}
	m.Data = raw
	return nil
}

// getProgressToken reads the progress token off of any value that embeds
// Meta, via its promoted GetMeta method.
func getProgressToken(p interface{ GetMeta() map[string]any }) any {
	return p.GetMeta()[progressTokenKey]
}

// setProgressToken sets the progress token on any value whose embedded Meta
// is addressable, via its promoted setProgressTokenField method.
func setProgressToken(p interface{ setProgressTokenField(any) }, t any) {
	p.setProgressTokenField(t)
}

// Params is implemented by every request parameter type. GetProgressToken
// and SetProgressToken give the session uniform access to the _meta
// progress token without a type switch over every params type.
type Params interface {
	isParams()
	GetProgressToken() any
	SetProgressToken(any)
}

// Result is implemented by every request result type.
type Result interface {
	isResult()
}

// paginatedParams is implemented by request params that carry a pagination
// cursor (see pagination.go).
type paginatedParams interface {
	cursorPtr() *string
}

// paginatedResult is implemented by results that carry a next-page cursor.
type paginatedResult interface {
	nextCursorPtr() *string
}
