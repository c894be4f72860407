// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file holds the request types the client receives from a connected
// server: sampling, roots, and elicitation calls. Requests that travel the
// other way (tools/call, prompts/get, and the rest of the client->server
// surface) are plain method calls on [Session] and [Client]; there is no
// server-side dispatch in this module.

package mcp

import "context"

// ClientRequest wraps an inbound request the session is handling on behalf
// of the local peer (that is, a request the connected server sent to us).
// Session and Params are populated before the registered handler runs.
type ClientRequest[P Params] struct {
	Session *Session
	Params  P
}

// Progress reports progress on the request being handled, using the
// progress token the server attached to its params, if any.
//
// An error is returned if sending progress failed. If the server's request
// carried no progress token, the error is [ErrNoProgressToken].
func (r *ClientRequest[P]) Progress(ctx context.Context, msg string, progress, total float64) error {
	token := r.Params.GetProgressToken()
	if token == nil {
		return ErrNoProgressToken
	}
	return r.Session.NotifyProgress(ctx, &ProgressNotificationParams{
		Message:       msg,
		ProgressToken: token,
		Progress:      progress,
		Total:         total,
	})
}

type (
	// CreateMessageRequest is a sampling/createMessage request from the
	// server, handled by [Handlers.CreateMessage].
	CreateMessageRequest = ClientRequest[*CreateMessageParams]
	// ElicitRequest is an elicitation/create request from the server,
	// handled by [Handlers.Elicit].
	ElicitRequest = ClientRequest[*ElicitParams]
	// ListRootsRequest is a roots/list request from the server, handled by
	// [Handlers.ListRoots].
	ListRootsRequest = ClientRequest[*ListRootsParams]
)
