// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Session implements request/response correlation, the progress and
// cancellation subprotocols, and bounded-parallelism dispatch of inbound
// requests, over a single [Connection]. It underlies [Client]; most callers
// reach it through the Client façade rather than directly.

package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	internaljson "github.com/mark3labs/mcp-core-go/internal/json"
	"github.com/mark3labs/mcp-core-go/internal/jsonrpc2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Handlers groups the callbacks a Session invokes for requests and
// notifications sent by the connected peer. A nil CreateMessage, ListRoots,
// or Elicit answers that method with a "method not found" error; a nil
// notification callback silently drops the notification.
type Handlers struct {
	// CreateMessage handles an inbound sampling/createMessage request: the
	// server asking this client to sample from an LLM on its behalf.
	CreateMessage func(context.Context, *CreateMessageRequest) (*CreateMessageResult, error)
	// ListRoots handles an inbound roots/list request.
	ListRoots func(context.Context, *ListRootsRequest) (*ListRootsResult, error)
	// Elicit handles an inbound elicitation/create request.
	Elicit func(context.Context, *ElicitRequest) (*ElicitResult, error)

	LoggingMessage      func(*LoggingMessageParams)
	PromptListChanged   func(*PromptListChangedParams)
	ResourceListChanged func(*ResourceListChangedParams)
	ResourceUpdated     func(*ResourceUpdatedNotificationParams)
	ToolListChanged     func(*ToolListChangedParams)
}

// SessionOptions configures [Connect].
type SessionOptions struct {
	// Handlers services inbound requests and notifications from the peer. A
	// nil Handlers is equivalent to &Handlers{}: every inbound request other
	// than ping fails with "method not found", and every notification other
	// than progress and cancellation is dropped.
	Handlers *Handlers
	// MaxConcurrency bounds how many inbound requests are dispatched to
	// Handlers concurrently. Zero means unlimited.
	MaxConcurrency int
	// ErrorLog receives internal, non-fatal errors: a malformed inbound
	// notification, a failed response write. Defaults to [log.Default].
	ErrorLog *log.Logger
}

// ProgressHandler receives progress notifications for a single call, for as
// long as that call remains pending.
type ProgressHandler func(*ProgressNotificationParams)

type pendingCall struct {
	resultCh chan callResult
	progress ProgressHandler
}

type callResult struct {
	result internaljson.RawMessage
	err    error
}

// Session is a correlated, bidirectional JSON-RPC connection to one peer.
// Outbound calls are made with [Session.Call] and [Session.Notify]; inbound
// calls and notifications are dispatched to the [Handlers] supplied at
// construction.
type Session struct {
	conn Connection
	opts SessionOptions
	sem  *semaphore.Weighted

	nextID int64

	mu            sync.Mutex
	pending       map[jsonrpc2.ID]*pendingCall
	progressSinks map[any]*pendingCall

	inFlightMu sync.Mutex
	inFlight   map[jsonrpc2.ID]context.CancelFunc

	handlers  errgroup.Group
	readDone  chan struct{}
	closeOnce sync.Once
	closing   atomic.Bool
}

// Connect establishes t and returns a Session bound to it. The caller
// should arrange to call [Session.Close] (directly, or via a [ClientSession])
// when finished with it.
func Connect(ctx context.Context, t Transport, opts *SessionOptions) (*Session, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, err
	}
	s := &Session{
		conn:          conn,
		pending:       make(map[jsonrpc2.ID]*pendingCall),
		progressSinks: make(map[any]*pendingCall),
		inFlight:      make(map[jsonrpc2.ID]context.CancelFunc),
		readDone:      make(chan struct{}),
	}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.Handlers == nil {
		s.opts.Handlers = &Handlers{}
	}
	if s.opts.ErrorLog == nil {
		s.opts.ErrorLog = log.Default()
	}
	if s.opts.MaxConcurrency > 0 {
		s.sem = semaphore.NewWeighted(int64(s.opts.MaxConcurrency))
	}
	if ls, ok := conn.(logSetter); ok {
		ls.setErrorLog(s.opts.ErrorLog.Printf)
	}
	go s.readLoop()
	return s, nil
}

func (s *Session) logf(format string, args ...any) {
	s.opts.ErrorLog.Printf(format, args...)
}

func (s *Session) newID() jsonrpc2.ID {
	n := atomic.AddInt64(&s.nextID, 1)
	return jsonrpc2.Int64ID(n)
}

// Call issues a request and waits for its response, unmarshaling the result
// into result (which may be nil if the caller doesn't need it).
//
// If progress is non-nil, a progress token is attached to params (via
// [Params.SetProgressToken]) and progress is invoked for every
// notifications/progress the peer sends referencing it, for as long as the
// call remains pending.
//
// If ctx is cancelled before the response arrives, Call makes a
// best-effort attempt to notify the peer with notifications/cancelled and
// returns ctx.Err().
func (s *Session) Call(ctx context.Context, method string, params Params, result Result, progress ProgressHandler) error {
	if s.closing.Load() {
		return ErrSessionClosing
	}
	id := s.newID()
	var token any
	if progress != nil {
		token = randText()
		params.SetProgressToken(token)
	}
	raw, err := internaljson.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	pc := &pendingCall{resultCh: make(chan callResult, 1), progress: progress}
	s.mu.Lock()
	s.pending[id] = pc
	if token != nil {
		s.progressSinks[token] = pc
	}
	s.mu.Unlock()
	defer s.removePending(id, token)

	if err := s.conn.Write(ctx, &jsonrpc2.Request{ID: id, Method: method, Params: raw}); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}

	select {
	case res := <-pc.resultCh:
		if res.err != nil {
			return res.err
		}
		if result != nil && len(res.result) > 0 {
			if err := internaljson.Unmarshal(res.result, result); err != nil {
				return fmt.Errorf("unmarshaling result: %w", err)
			}
		}
		return nil
	case <-ctx.Done():
		s.sendCancelled(id, ctx.Err())
		return ctx.Err()
	case <-s.readDone:
		return ErrConnectionClosed
	}
}

func (s *Session) removePending(id jsonrpc2.ID, token any) {
	s.mu.Lock()
	delete(s.pending, id)
	if token != nil {
		delete(s.progressSinks, token)
	}
	s.mu.Unlock()
}

// sendCancelled makes one best-effort attempt to tell the peer that id was
// abandoned. Its own failure isn't reported: by the time this runs, the
// caller of Call already has ctx.Err() to act on.
func (s *Session) sendCancelled(id jsonrpc2.ID, reason error) {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Notify(ctx, "notifications/cancelled", &CancelledParams{RequestID: id.Raw(), Reason: msg})
}

// Notify sends a fire-and-forget notification: no response is expected or
// awaited.
func (s *Session) Notify(ctx context.Context, method string, params Params) error {
	raw, err := internaljson.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}
	if err := s.conn.Write(ctx, &jsonrpc2.Request{Method: method, Params: raw}); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return nil
}

// NotifyProgress sends a notifications/progress to the peer. Most callers
// reach this through [ClientRequest.Progress] rather than directly.
func (s *Session) NotifyProgress(ctx context.Context, p *ProgressNotificationParams) error {
	return s.Notify(ctx, "notifications/progress", p)
}

// Close closes the underlying connection and waits for any inbound
// handlers already running to finish. Calls still pending are resolved
// with an error wrapping [ErrConnectionClosed]; their handler scopes are
// cancelled.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		err = s.conn.Close()
		s.cancelAllInFlight()
		s.handlers.Wait()
	})
	return err
}

// Wait blocks until the session's connection is closed, whether by
// [Session.Close] or by the peer.
func (s *Session) Wait() error {
	<-s.readDone
	return nil
}

func (s *Session) readLoop() {
	defer close(s.readDone)
	for {
		msg, err := s.conn.Read(context.Background())
		if err != nil {
			s.failAllPending(err)
			s.cancelAllInFlight()
			return
		}
		switch m := msg.(type) {
		case *jsonrpc2.Response:
			s.handleResponse(m)
		case *jsonrpc2.Request:
			if m.IsCall() {
				s.handleIncomingCall(m)
			} else {
				s.handleIncomingNotification(m)
			}
		}
	}
}

func (s *Session) failAllPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[jsonrpc2.ID]*pendingCall)
	s.progressSinks = make(map[any]*pendingCall)
	s.mu.Unlock()
	for _, pc := range pending {
		select {
		case pc.resultCh <- callResult{err: fmt.Errorf("%w: %v", ErrConnectionClosed, err)}:
		default:
		}
	}
}

// cancelAllInFlight cancels the context of every inbound handler goroutine
// still running, per the transport-closure contract: handler scopes don't
// outlive the connection that delivered their request.
func (s *Session) cancelAllInFlight() {
	s.inFlightMu.Lock()
	inFlight := s.inFlight
	s.inFlight = make(map[jsonrpc2.ID]context.CancelFunc)
	s.inFlightMu.Unlock()
	for _, cancel := range inFlight {
		cancel()
	}
}

func (s *Session) handleResponse(resp *jsonrpc2.Response) {
	s.mu.Lock()
	pc, ok := s.pending[resp.ID]
	s.mu.Unlock()
	if !ok {
		s.logf("mcp: dropping response for unknown request id %v", resp.ID)
		return
	}
	var err error
	if resp.Error != nil {
		err = resp.Error
	}
	select {
	case pc.resultCh <- callResult{result: resp.Result, err: err}:
	default:
	}
}

func (s *Session) handleIncomingNotification(req *jsonrpc2.Request) {
	h := s.opts.Handlers
	switch req.Method {
	case "notifications/progress":
		var p ProgressNotificationParams
		if err := internaljson.Unmarshal(req.Params, &p); err != nil {
			s.logf("mcp: malformed progress notification: %v", err)
			return
		}
		s.mu.Lock()
		pc, ok := s.progressSinks[p.ProgressToken]
		s.mu.Unlock()
		if ok && pc.progress != nil {
			pc.progress(&p)
		}
	case "notifications/cancelled":
		var p CancelledParams
		if err := internaljson.Unmarshal(req.Params, &p); err != nil {
			s.logf("mcp: malformed cancelled notification: %v", err)
			return
		}
		s.cancelInFlight(p.RequestID)
	case "notifications/message":
		invokeHandler(h.LoggingMessage, req, s)
	case "notifications/prompts/list_changed":
		invokeHandler(h.PromptListChanged, req, s)
	case "notifications/resources/list_changed":
		invokeHandler(h.ResourceListChanged, req, s)
	case "notifications/resources/updated":
		invokeHandler(h.ResourceUpdated, req, s)
	case "notifications/tools/list_changed":
		invokeHandler(h.ToolListChanged, req, s)
	default:
		s.logf("mcp: unhandled notification %q", req.Method)
	}
}

// invokeHandler decodes req.Params into a fresh *T and, if fn is non-nil,
// calls it. It exists so the uniform shape of the list_changed-style
// notification handlers isn't repeated at every call site.
func invokeHandler[T any](fn func(*T), req *jsonrpc2.Request, s *Session) {
	if fn == nil {
		return
	}
	p := new(T)
	if len(req.Params) > 0 {
		if err := internaljson.Unmarshal(req.Params, p); err != nil {
			s.logf("mcp: malformed %s notification: %v", req.Method, err)
			return
		}
	}
	fn(p)
}

func (s *Session) cancelInFlight(rawID any) {
	id, ok := toJSONRPCID(rawID)
	if !ok {
		return
	}
	s.inFlightMu.Lock()
	cancel, ok := s.inFlight[id]
	s.inFlightMu.Unlock()
	if ok {
		cancel()
	}
}

// toJSONRPCID converts the dynamically-typed requestId carried by a
// notifications/cancelled notification (decoded from JSON as a string or
// float64) back into the comparable jsonrpc2.ID this session used as a map
// key when it issued or received that request.
func toJSONRPCID(raw any) (jsonrpc2.ID, bool) {
	switch v := raw.(type) {
	case string:
		return jsonrpc2.StringID(v), true
	case float64:
		return jsonrpc2.Int64ID(int64(v)), true
	case int64:
		return jsonrpc2.Int64ID(v), true
	case int:
		return jsonrpc2.Int64ID(int64(v)), true
	default:
		return jsonrpc2.ID{}, false
	}
}

// handleIncomingCall dispatches req in its own goroutine, so the read loop
// stays free to keep servicing responses (which may be exactly what
// unblocks the handler) and cancellation notices for other in-flight
// calls. Admission to the bounded-concurrency pool happens inside the
// goroutine, not before it's spawned, so an unbounded number of calls may
// be in flight waiting for a semaphore slot without blocking the loop.
func (s *Session) handleIncomingCall(req *jsonrpc2.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	s.inFlightMu.Lock()
	s.inFlight[req.ID] = cancel
	s.inFlightMu.Unlock()

	s.handlers.Go(func() error {
		defer func() {
			s.inFlightMu.Lock()
			delete(s.inFlight, req.ID)
			s.inFlightMu.Unlock()
			cancel()
		}()

		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer s.sem.Release(1)
		}

		result, rpcErr := s.dispatchCall(ctx, req)
		if ctx.Err() != nil {
			// Cancelled while being handled: the cancellation subprotocol
			// requires no response at all, successful or otherwise.
			return nil
		}

		resp := &jsonrpc2.Response{ID: req.ID}
		if rpcErr != nil {
			var wireErr *jsonrpc2.WireError
			if !errors.As(rpcErr, &wireErr) {
				wireErr = jsonrpc2.NewError(jsonrpc2.CodeInternalError, rpcErr.Error())
			}
			resp.Error = wireErr
		} else {
			resp.Result = result
		}
		writeCtx, cancelWrite := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelWrite()
		if err := s.conn.Write(writeCtx, resp); err != nil {
			s.logf("mcp: writing response for %v: %v", req.ID, err)
		}
		return nil
	})
}

func (s *Session) dispatchCall(ctx context.Context, req *jsonrpc2.Request) (_ internaljson.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("mcp: handler for %s panicked: %v", req.Method, r)
			err = jsonrpc2.NewError(jsonrpc2.CodeInternalError, fmt.Sprintf("handler panicked: %v", r))
		}
	}()
	h := s.opts.Handlers
	switch req.Method {
	case "ping":
		return internaljson.Marshal(struct{}{})
	case "sampling/createMessage":
		if h.CreateMessage == nil {
			return nil, methodNotFound(req.Method)
		}
		p := new(CreateMessageParams)
		if err := decodeParams(req.Params, p); err != nil {
			return nil, err
		}
		res, err := h.CreateMessage(ctx, &ClientRequest[*CreateMessageParams]{Session: s, Params: p})
		if err != nil {
			return nil, err
		}
		return internaljson.Marshal(res)
	case "roots/list":
		if h.ListRoots == nil {
			return nil, methodNotFound(req.Method)
		}
		p := new(ListRootsParams)
		if err := decodeParams(req.Params, p); err != nil {
			return nil, err
		}
		res, err := h.ListRoots(ctx, &ClientRequest[*ListRootsParams]{Session: s, Params: p})
		if err != nil {
			return nil, err
		}
		return internaljson.Marshal(res)
	case "elicitation/create":
		if h.Elicit == nil {
			return nil, methodNotFound(req.Method)
		}
		p := new(ElicitParams)
		if err := decodeParams(req.Params, p); err != nil {
			return nil, err
		}
		res, err := h.Elicit(ctx, &ClientRequest[*ElicitParams]{Session: s, Params: p})
		if err != nil {
			return nil, err
		}
		return internaljson.Marshal(res)
	default:
		return nil, methodNotFound(req.Method)
	}
}

func decodeParams(raw internaljson.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := internaljson.Unmarshal(raw, v); err != nil {
		return jsonrpc2.NewError(jsonrpc2.CodeInvalidParams, err.Error())
	}
	return nil
}

func methodNotFound(method string) error {
	return jsonrpc2.NewError(jsonrpc2.CodeMethodNotFound, fmt.Sprintf("method not found: %s", method))
}
