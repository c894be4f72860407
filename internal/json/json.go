// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package json wraps the module's JSON encoding so the rest of the tree
// never imports encoding/json directly. Swapping the implementation here
// (we use segmentio/encoding/json, a drop-in accelerated replacement) changes
// every wire encode/decode in the module at once.
package json

import (
	"bytes"
	"encoding/json"

	segmentjson "github.com/segmentio/encoding/json"
)

// RawMessage is an alias so callers can build types against this package
// without also importing encoding/json.
type RawMessage = json.RawMessage

func Marshal(v any) ([]byte, error) {
	return segmentjson.Marshal(v)
}

// Unmarshal decodes data into v, matching JSON keys to struct fields
// case-sensitively.
func Unmarshal(data []byte, v any) error {
	dec := segmentjson.NewDecoder(bytes.NewReader(data))
	dec.DontMatchCaseInsensitiveStructFields()
	return dec.Decode(v)
}

