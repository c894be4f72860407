// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 implements the JSON-RPC 2.0 message model used to carry
// MCP requests, responses, and notifications over a transport.
package jsonrpc2

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-core-go/internal/mcpgodebug"
)

// relaxedJSONRPC, set via MCPGODEBUG=relaxedjsonrpc=1, disables the
// case-smuggling defenses in StrictUnmarshal for peers that turn out to
// send technically-invalid-but-common JSON (e.g. duplicate keys differing
// only in case from a misbehaving proxy).
var relaxedJSONRPC = mcpgodebug.Value("relaxedjsonrpc") == "1"

// ID is a JSON-RPC request identifier. The zero ID is invalid; use
// StringID or Int64ID to construct one.
//
// An ID is comparable and may be used as a map key.
type ID struct {
	name   string
	number int64
	valid  bool
}

// StringID returns a new ID with a string value.
func StringID(s string) ID { return ID{name: s, valid: true} }

// Int64ID returns a new ID with an int64 value.
func Int64ID(n int64) ID { return ID{number: n, valid: true} }

// IsValid reports whether the ID is a valid identifier (not the zero value).
func (id ID) IsValid() bool { return id.valid }

// Raw returns the underlying value of the ID, either a string or an int64,
// or nil if the ID is invalid.
func (id ID) Raw() any {
	if !id.valid {
		return nil
	}
	if id.name != "" {
		return id.name
	}
	return id.number
}

func (id ID) String() string {
	if id.name != "" {
		return id.name
	}
	return fmt.Sprintf("%d", id.number)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.valid {
		return []byte("null"), nil
	}
	if id.name != "" {
		return json.Marshal(id.name)
	}
	return json.Marshal(id.number)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ID{}
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID{name: s, valid: true}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("jsonrpc2.ID: invalid id %s: %w", data, err)
	}
	*id = ID{number: n, valid: true}
	return nil
}

// wireVersion is the JSON-RPC version tag, always present on every wire
// message this package produces.
const wireVersion = "2.0"

// WireError is the JSON-RPC error object, returned in a Response whose call
// failed.
type WireError struct {
	// Code is an error code indicating the type of failure.
	Code int64 `json:"code"`
	// Message is a short description of the error.
	Message string `json:"message"`
	// Data is optional structured data further describing the error.
	Data json.RawMessage `json:"data,omitempty"`
}

func (e *WireError) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// NewError builds a *WireError with the given code and message.
func NewError(code int64, message string) *WireError {
	return &WireError{Code: code, Message: message}
}

// Request is an outgoing or incoming JSON-RPC call. If ID is the zero value,
// the Request is a notification: it carries no response.
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

// IsCall reports whether the request expects a response.
func (r *Request) IsCall() bool { return r.ID.IsValid() }

// Response is a JSON-RPC response to a Request with a matching ID. Exactly
// one of Result or Error is set.
type Response struct {
	ID     ID
	Result json.RawMessage
	Error  *WireError
}

// wireRequest and wireResponse are the literal wire encodings; Request and
// Response hide the jsonrpc version tag and the Result/Error disjunction
// behind a friendlier Go shape.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
}

// Message is any of *Request, *Response, or Batch.
type Message interface {
	// marshal is unexported: only this package's Message implementations
	// participate in encoding/decoding.
	marshal() ([]byte, error)
}

func (r *Request) marshal() ([]byte, error) {
	w := wireRequest{JSONRPC: wireVersion, Method: r.Method, Params: r.Params}
	if r.ID.IsValid() {
		id := r.ID
		w.ID = &id
	}
	return json.Marshal(w)
}

func (r *Response) marshal() ([]byte, error) {
	id := r.ID
	w := wireResponse{JSONRPC: wireVersion, ID: &id, Result: r.Result, Error: r.Error}
	return json.Marshal(w)
}

// Batch is an ordered sequence of Requests and/or Responses, corresponding
// to a JSON-RPC batch array. Per the wire contract, a batch is only ever
// emitted when the caller explicitly builds one; it is always accepted on
// decode, since a peer may send one unprompted.
type Batch []Message

func (b Batch) marshal() ([]byte, error) {
	parts := make([]json.RawMessage, len(b))
	for i, m := range b {
		data, err := m.marshal()
		if err != nil {
			return nil, err
		}
		parts[i] = data
	}
	return json.Marshal(parts)
}

// EncodeMessage marshals m to its wire form.
func EncodeMessage(m Message) ([]byte, error) {
	return m.marshal()
}

// DecodeMessage unmarshals a single non-batch JSON-RPC object into a
// *Request or *Response, inferring the kind from the shape of the object:
// the presence of "method" indicates a Request, its absence a Response.
func DecodeMessage(data []byte) (Message, error) {
	var peek struct {
		Method *string `json:"method"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("jsonrpc2: decoding message: %w", err)
	}
	if peek.Method != nil {
		var w wireRequest
		if err := unmarshalWire(data, &w); err != nil {
			return nil, fmt.Errorf("jsonrpc2: decoding request: %w", err)
		}
		req := &Request{Method: w.Method, Params: w.Params}
		if w.ID != nil {
			req.ID = *w.ID
		}
		return req, nil
	}
	var w wireResponse
	if err := unmarshalWire(data, &w); err != nil {
		return nil, fmt.Errorf("jsonrpc2: decoding response: %w", err)
	}
	resp := &Response{Result: w.Result, Error: w.Error}
	if w.ID != nil {
		resp.ID = *w.ID
	}
	return resp, nil
}

// DecodeAny unmarshals a JSON-RPC message that may be either a single
// object or a batch array. This is the entry point transports use to turn
// one framed unit of bytes (one ndjson line, one SSE "message" event) into
// zero or more dispatchable Messages.
func DecodeAny(data []byte) ([]Message, error) {
	trimmed := trimLeadingSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("jsonrpc2: decoding batch: %w", err)
		}
		if len(raws) == 0 {
			return nil, fmt.Errorf("jsonrpc2: empty batch")
		}
		msgs := make([]Message, len(raws))
		for i, raw := range raws {
			m, err := DecodeMessage(raw)
			if err != nil {
				return nil, err
			}
			msgs[i] = m
		}
		return msgs, nil
	}
	m, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	return []Message{m}, nil
}

func unmarshalWire(data []byte, v any) error {
	if relaxedJSONRPC {
		return json.Unmarshal(data, v)
	}
	return StrictUnmarshal(data, v)
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return b[i:]
		}
	}
	return b[i:]
}
