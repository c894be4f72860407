// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Client is the typed façade over [Session]: it performs the
// initialize/initialized handshake and exposes every client->server MCP
// operation as a plain Go method, with pagination-driven *All and Enumerate*
// variants for every listing endpoint.

package mcp

import (
	"context"
	"fmt"
	"iter"
	"log"
	"strings"
)

// latestProtocolVersion is the version of MCP this client speaks. It's sent
// in the initialize request; the server may negotiate down to one it
// supports.
const latestProtocolVersion = "2025-06-18"

// Client is a reusable MCP client identity: it can open any number of
// [ClientSession]s, each over its own [Transport].
type Client struct {
	impl *Implementation
	opts ClientOptions
}

// ClientOptions configures a [Client].
type ClientOptions struct {
	// Capabilities advertises what this client supports. A nil Capabilities
	// is equivalent to &ClientCapabilities{}: no roots, no sampling, no
	// elicitation.
	Capabilities *ClientCapabilities
	// Handlers services requests and notifications the server sends to this
	// client: sampling/createMessage, roots/list, elicitation/create, and
	// the various list_changed/message/updated notifications.
	Handlers *Handlers
	// MaxConcurrency bounds how many of the server's requests this client
	// handles concurrently. Zero means unlimited.
	MaxConcurrency int
	// ErrorLog receives internal, non-fatal errors. Defaults to [log.Default].
	ErrorLog *log.Logger
}

// NewClient returns a Client that identifies itself to servers as impl.
func NewClient(impl *Implementation, opts *ClientOptions) *Client {
	c := &Client{impl: impl}
	if opts != nil {
		c.opts = *opts
	}
	return c
}

// ClientSession is a live, initialized connection to one MCP server.
type ClientSession struct {
	*Session
	// InitializeResult is the server's response to the initialize request
	// that established this session, including its capabilities and
	// negotiated protocol version.
	InitializeResult *InitializeResult
}

// Connect establishes t, performs the initialize/initialized handshake, and
// returns a ready-to-use ClientSession. If the handshake fails, the
// underlying session is closed before Connect returns.
func (c *Client) Connect(ctx context.Context, t Transport) (*ClientSession, error) {
	session, err := Connect(ctx, t, &SessionOptions{
		Handlers:       c.opts.Handlers,
		MaxConcurrency: c.opts.MaxConcurrency,
		ErrorLog:       c.opts.ErrorLog,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp: connect: %w", err)
	}

	caps := c.opts.Capabilities
	if caps == nil {
		caps = &ClientCapabilities{}
	}
	initResult := new(InitializeResult)
	initParams := &InitializeParams{
		Capabilities:    caps,
		ClientInfo:      c.impl,
		ProtocolVersion: latestProtocolVersion,
	}
	if err := session.Call(ctx, methodInitialize, initParams, initResult, nil); err != nil {
		session.Close()
		return nil, fmt.Errorf("mcp: initialize: %w", err)
	}
	if err := session.Notify(ctx, notificationInitialized, &InitializedParams{}); err != nil {
		session.Close()
		return nil, fmt.Errorf("mcp: initialized: %w", err)
	}

	return &ClientSession{Session: session, InitializeResult: initResult}, nil
}

// requireNonBlank rejects a caller-supplied name/URI/argument before any
// wire activity: empty and whitespace-only values are never valid on the
// wire, so there's no reason to round-trip them to the server first.
func requireNonBlank(value, what string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, what)
	}
	return nil
}

// Ping sends a ping and waits for the server's response.
func (cs *ClientSession) Ping(ctx context.Context) error {
	return cs.Call(ctx, methodPing, &PingParams{}, nil, nil)
}

// ListTools lists one page of tools. A nil params starts from the first
// page.
func (cs *ClientSession) ListTools(ctx context.Context, params *ListToolsParams) (*ListToolsResult, error) {
	if params == nil {
		params = &ListToolsParams{}
	}
	res := new(ListToolsResult)
	if err := cs.Call(ctx, methodListTools, params, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// ListAllTools gathers every tool across all pages.
func (cs *ClientSession) ListAllTools(ctx context.Context) ([]*Tool, error) {
	return listAll(ctx, cs.ListTools, &ListToolsParams{}, func(r *ListToolsResult) []*Tool { return r.Tools })
}

// EnumerateTools returns a lazy, single-pass iterator over every tool,
// fetching each page only as the consumer advances past the previous one.
func (cs *ClientSession) EnumerateTools(ctx context.Context) iter.Seq2[*Tool, error] {
	return enumerate(ctx, cs.ListTools, &ListToolsParams{}, func(r *ListToolsResult) []*Tool { return r.Tools })
}

// CallTool invokes a tool by name. If progress is non-nil, it receives
// progress notifications from the server for as long as the call remains
// pending.
func (cs *ClientSession) CallTool(ctx context.Context, params *CallToolParams, progress ProgressHandler) (*CallToolResult, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params must not be nil", ErrInvalidArgument)
	}
	if err := requireNonBlank(params.Name, "name"); err != nil {
		return nil, err
	}
	res := new(CallToolResult)
	if err := cs.Call(ctx, methodCallTool, params, res, progress); err != nil {
		return nil, err
	}
	return res, nil
}

// ListPrompts lists one page of prompts. A nil params starts from the first
// page.
func (cs *ClientSession) ListPrompts(ctx context.Context, params *ListPromptsParams) (*ListPromptsResult, error) {
	if params == nil {
		params = &ListPromptsParams{}
	}
	res := new(ListPromptsResult)
	if err := cs.Call(ctx, methodListPrompts, params, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// ListAllPrompts gathers every prompt across all pages.
func (cs *ClientSession) ListAllPrompts(ctx context.Context) ([]*Prompt, error) {
	return listAll(ctx, cs.ListPrompts, &ListPromptsParams{}, func(r *ListPromptsResult) []*Prompt { return r.Prompts })
}

// EnumeratePrompts returns a lazy, single-pass iterator over every prompt.
func (cs *ClientSession) EnumeratePrompts(ctx context.Context) iter.Seq2[*Prompt, error] {
	return enumerate(ctx, cs.ListPrompts, &ListPromptsParams{}, func(r *ListPromptsResult) []*Prompt { return r.Prompts })
}

// GetPrompt resolves a prompt by name, rendering its arguments.
func (cs *ClientSession) GetPrompt(ctx context.Context, params *GetPromptParams) (*GetPromptResult, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params must not be nil", ErrInvalidArgument)
	}
	if err := requireNonBlank(params.Name, "name"); err != nil {
		return nil, err
	}
	res := new(GetPromptResult)
	if err := cs.Call(ctx, methodGetPrompt, params, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// ListResources lists one page of resources. A nil params starts from the
// first page.
func (cs *ClientSession) ListResources(ctx context.Context, params *ListResourcesParams) (*ListResourcesResult, error) {
	if params == nil {
		params = &ListResourcesParams{}
	}
	res := new(ListResourcesResult)
	if err := cs.Call(ctx, methodListResources, params, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// ListAllResources gathers every resource across all pages.
func (cs *ClientSession) ListAllResources(ctx context.Context) ([]*Resource, error) {
	return listAll(ctx, cs.ListResources, &ListResourcesParams{}, func(r *ListResourcesResult) []*Resource { return r.Resources })
}

// EnumerateResources returns a lazy, single-pass iterator over every
// resource.
func (cs *ClientSession) EnumerateResources(ctx context.Context) iter.Seq2[*Resource, error] {
	return enumerate(ctx, cs.ListResources, &ListResourcesParams{}, func(r *ListResourcesResult) []*Resource { return r.Resources })
}

// ReadResource fetches the contents of a resource by URI.
func (cs *ClientSession) ReadResource(ctx context.Context, params *ReadResourceParams) (*ReadResourceResult, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params must not be nil", ErrInvalidArgument)
	}
	if err := requireNonBlank(params.URI, "uri"); err != nil {
		return nil, err
	}
	res := new(ReadResourceResult)
	if err := cs.Call(ctx, methodReadResource, params, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// ListResourceTemplates lists one page of resource templates. A nil params
// starts from the first page.
func (cs *ClientSession) ListResourceTemplates(ctx context.Context, params *ListResourceTemplatesParams) (*ListResourceTemplatesResult, error) {
	if params == nil {
		params = &ListResourceTemplatesParams{}
	}
	res := new(ListResourceTemplatesResult)
	if err := cs.Call(ctx, methodListResourceTemplates, params, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// ListAllResourceTemplates gathers every resource template across all pages.
func (cs *ClientSession) ListAllResourceTemplates(ctx context.Context) ([]*ResourceTemplate, error) {
	return listAll(ctx, cs.ListResourceTemplates, &ListResourceTemplatesParams{}, func(r *ListResourceTemplatesResult) []*ResourceTemplate {
		return r.ResourceTemplates
	})
}

// EnumerateResourceTemplates returns a lazy, single-pass iterator over
// every resource template.
func (cs *ClientSession) EnumerateResourceTemplates(ctx context.Context) iter.Seq2[*ResourceTemplate, error] {
	return enumerate(ctx, cs.ListResourceTemplates, &ListResourceTemplatesParams{}, func(r *ListResourceTemplatesResult) []*ResourceTemplate {
		return r.ResourceTemplates
	})
}

// Subscribe asks the server to send resources/updated notifications for
// uri.
func (cs *ClientSession) Subscribe(ctx context.Context, uri string) error {
	if err := requireNonBlank(uri, "uri"); err != nil {
		return err
	}
	return cs.Call(ctx, methodSubscribe, &SubscribeParams{URI: uri}, nil, nil)
}

// Unsubscribe cancels a previous Subscribe for uri.
func (cs *ClientSession) Unsubscribe(ctx context.Context, uri string) error {
	if err := requireNonBlank(uri, "uri"); err != nil {
		return err
	}
	return cs.Call(ctx, methodUnsubscribe, &UnsubscribeParams{URI: uri}, nil, nil)
}

// Complete requests completion suggestions for a prompt or resource
// template argument.
func (cs *ClientSession) Complete(ctx context.Context, params *CompleteParams) (*CompleteResult, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params must not be nil", ErrInvalidArgument)
	}
	if err := requireNonBlank(params.Argument.Name, "argument name"); err != nil {
		return nil, err
	}
	if err := params.Ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	res := new(CompleteResult)
	if err := cs.Call(ctx, methodComplete, params, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// SetLoggingLevel asks the server to send notifications/message for log
// entries at level or more severe.
func (cs *ClientSession) SetLoggingLevel(ctx context.Context, level LoggingLevel) error {
	if err := requireNonBlank(string(level), "level"); err != nil {
		return err
	}
	return cs.Call(ctx, methodSetLevel, &SetLoggingLevelParams{Level: level}, nil, nil)
}

// SetLoggingLevelFromSeverity is [ClientSession.SetLoggingLevel] for
// callers whose own logging uses a generic [Severity] scale rather than
// the MCP LoggingLevel enum; it converts via [LoggingLevelFromSeverity]
// before sending.
func (cs *ClientSession) SetLoggingLevelFromSeverity(ctx context.Context, severity Severity) error {
	return cs.SetLoggingLevel(ctx, LoggingLevelFromSeverity(severity))
}
