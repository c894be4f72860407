// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"errors"

	"github.com/mark3labs/mcp-core-go/internal/jsonrpc2"
)

// RPCError is a JSON-RPC level error returned by a peer in response to a
// request. Use [errors.As] to recover one from an error returned by a
// Session call.
type RPCError = jsonrpc2.WireError

// Standard JSON-RPC error codes, re-exported for callers that want to
// inspect or construct an [RPCError].
const (
	CodeParseError     = jsonrpc2.CodeParseError
	CodeInvalidRequest = jsonrpc2.CodeInvalidRequest
	CodeMethodNotFound = jsonrpc2.CodeMethodNotFound
	CodeInvalidParams  = jsonrpc2.CodeInvalidParams
	CodeInternalError  = jsonrpc2.CodeInternalError
)

// ErrConnectionClosed is returned, possibly wrapped, from calls and
// notifications made after the session's transport has closed, and from
// in-flight calls that were pending when the transport closed.
var ErrConnectionClosed = errors.New("connection closed")

// ErrSessionClosing is returned by new outbound calls issued after
// [Session.Close] has been invoked.
var ErrSessionClosing = errors.New("session is closing")

// ErrInvalidArgument is returned, possibly wrapped, when a [ClientSession]
// method rejects its arguments before any wire activity: nil params, an
// empty or whitespace-only name/URI, or a [CompleteReference] that fails
// [CompleteReference.Validate].
var ErrInvalidArgument = errors.New("invalid argument")
