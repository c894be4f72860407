// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the classic (pre-streamable-HTTP) SSE transport: a
// server holds a single long-lived GET connection open as an event stream,
// first telling the client where to POST its outgoing messages, then
// relaying the server's own messages as further events.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-core-go/internal/jsonrpc2"
	"github.com/mark3labs/mcp-core-go/internal/util"
)

type sseEvent struct {
	name string
	data []byte
}

func writeSSEEvent(w io.Writer, evt sseEvent) error {
	var buf bytes.Buffer
	if evt.name != "" {
		fmt.Fprintf(&buf, "event: %s\n", evt.name)
	}
	for _, line := range strings.Split(string(evt.data), "\n") {
		fmt.Fprintf(&buf, "data: %s\n", line)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return err
}

// sseEventReader parses an SSE byte stream into discrete events, reading the
// "event" and "data" fields (the only fields this module's peers emit).
type sseEventReader struct {
	sc   *bufio.Scanner
	name string
	data bytes.Buffer
}

func newSSEEventReader(r io.Reader) *sseEventReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), DefaultMaxLineLength)
	return &sseEventReader{sc: sc}
}

// next reads lines up to and including the blank line terminating an SSE
// event, returning the assembled event.
func (r *sseEventReader) next() (sseEvent, error) {
	r.name = ""
	r.data.Reset()
	sawField := false
	for r.sc.Scan() {
		line := r.sc.Text()
		if line == "" {
			if sawField {
				data := bytes.TrimSuffix(r.data.Bytes(), []byte("\n"))
				return sseEvent{name: r.name, data: data}, nil
			}
			continue // ignore leading blank lines
		}
		sawField = true
		switch {
		case strings.HasPrefix(line, "event:"):
			r.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			r.data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			r.data.WriteByte('\n')
		case strings.HasPrefix(line, ":"):
			// comment, ignore
		}
	}
	if err := r.sc.Err(); err != nil {
		return sseEvent{}, err
	}
	return sseEvent{}, io.EOF
}

// DefaultSSEQueueSize is the default capacity of an SSE connection's
// outbound queue. A capacity of 1 is the teacher's own default: it means a
// slow consumer applies backpressure to the very next send rather than
// buffering unboundedly, at the cost of a writer blocking on a full queue.
const DefaultSSEQueueSize = 1

// SSEClientTransport connects to an MCP server exposed as a classic SSE
// endpoint: a GET request opens the event stream, whose first event names
// the URL the client should POST its own messages to.
type SSEClientTransport struct {
	// Endpoint is the URL of the SSE GET endpoint.
	Endpoint string
	// HTTPClient is used for both the GET and subsequent POSTs. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

func (t *SSEClientTransport) httpClient() *http.Client {
	if t.HTTPClient != nil {
		return t.HTTPClient
	}
	return http.DefaultClient
}

func (t *SSEClientTransport) Connect(ctx context.Context) (Connection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := t.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("sse transport: connecting to %s: %w", t.Endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("sse transport: %s: unexpected status %s", t.Endpoint, resp.Status)
	}

	reader := newSSEEventReader(resp.Body)
	first, err := reader.next()
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("sse transport: reading endpoint event: %w", err)
	}
	if first.name != "endpoint" {
		resp.Body.Close()
		return nil, fmt.Errorf("sse transport: first event was %q, want \"endpoint\"", first.name)
	}
	postURL, err := resolveSSEEndpoint(t.Endpoint, string(first.data))
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	conn := &sseClientConn{
		postURL:    postURL,
		httpClient: t.httpClient(),
		body:       resp.Body,
		reader:     reader,
		incoming:   make(chan jsonrpc2.Message, DefaultSSEQueueSize),
		done:       make(chan struct{}),
		logf:       log.Printf,
	}
	go conn.readLoop()
	return conn, nil
}

func resolveSSEEndpoint(base, endpoint string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("sse transport: invalid base URL: %w", err)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("sse transport: invalid endpoint URL %q: %w", endpoint, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

type sseClientConn struct {
	postURL    string
	httpClient *http.Client
	body       io.ReadCloser
	reader     *sseEventReader
	incoming   chan jsonrpc2.Message
	readErr    error
	done       chan struct{}
	closeOnce  sync.Once

	logMu sync.Mutex
	logf  func(string, ...any)
}

// setErrorLog implements logSetter. readLoop is started from Connect before
// the caller has a chance to call this, so logf is guarded by logMu rather
// than set once at construction.
func (c *sseClientConn) setErrorLog(logf func(string, ...any)) {
	c.logMu.Lock()
	c.logf = logf
	c.logMu.Unlock()
}

func (c *sseClientConn) log(format string, args ...any) {
	c.logMu.Lock()
	logf := c.logf
	c.logMu.Unlock()
	logf(format, args...)
}

func (c *sseClientConn) readLoop() {
	defer close(c.incoming)
	for {
		evt, err := c.reader.next()
		if err != nil {
			if err != io.EOF {
				c.readErr = err
			}
			return
		}
		if evt.name != "message" {
			continue
		}
		msgs, err := jsonrpc2.DecodeAny(evt.data)
		if err != nil {
			c.log("mcp: sse: dropping malformed message event: %v", err)
			continue
		}
		for _, msg := range msgs {
			select {
			case c.incoming <- msg:
			case <-c.done:
				return
			}
		}
	}
}

func (c *sseClientConn) Read(ctx context.Context) (jsonrpc2.Message, error) {
	select {
	case msg, ok := <-c.incoming:
		if !ok {
			if c.readErr != nil {
				return nil, c.readErr
			}
			return nil, io.EOF
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *sseClientConn) Write(ctx context.Context, msg jsonrpc2.Message) error {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.postURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sse transport: posting message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sse transport: posting message: unexpected status %s", resp.Status)
	}
	return nil
}

func (c *sseClientConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.body.Close()
}

// SSEServerTransport serves a classic SSE endpoint for a single connected
// client: a GET opens the stream and receives the "endpoint" event naming
// MessageURL; a POST to MessageURL delivers one client message at a time.
//
// Unlike StdioTransport and SSEClientTransport, this is a server-side
// transport: it exists so this module's tests can
// exercise the client transport against a real HTTP round trip without an
// external MCP server.
type SSEServerTransport struct {
	// MessageURL is the URL the client should POST messages to. It is
	// included verbatim in the "endpoint" event, so it must already be
	// correct from the client's point of view (absolute, or resolved
	// against the GET request's URL).
	MessageURL string
	// QueueSize bounds the outbound queue depth. Zero means
	// [DefaultSSEQueueSize].
	QueueSize int
	// AllowRemote permits connections from non-loopback addresses. By
	// default, ServeHTTP rejects them: this transport has no auth of its
	// own, and a classic SSE endpoint bound to a non-loopback interface is
	// an open relay for whoever can reach it.
	AllowRemote bool

	mu   sync.Mutex
	conn *sseServerConn
}

// ServeHTTP implements http.Handler for the GET (event stream) and POST
// (incoming message) legs of the session.
func (t *SSEServerTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !t.AllowRemote && !util.IsLoopback(r.RemoteAddr) {
		http.Error(w, "sse transport: refusing non-loopback connection", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodGet:
		t.serveStream(w, r)
	case http.MethodPost:
		t.servePost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (t *SSEServerTransport) serveStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	queueSize := t.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultSSEQueueSize
	}
	conn := &sseServerConn{
		incoming: make(chan jsonrpc2.Message, queueSize),
		outgoing: make(chan jsonrpc2.Message, queueSize),
		done:     make(chan struct{}),
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := writeSSEEvent(w, sseEvent{name: "endpoint", data: []byte(t.MessageURL)}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case msg := <-conn.outgoing:
			data, err := jsonrpc2.EncodeMessage(msg)
			if err != nil {
				continue
			}
			if err := writeSSEEvent(w, sseEvent{name: "message", data: data}); err != nil {
				conn.Close()
				return
			}
		case <-r.Context().Done():
			conn.Close()
			return
		case <-conn.done:
			return
		}
	}
}

func (t *SSEServerTransport) servePost(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		http.Error(w, "no active event stream", http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, DefaultMaxLineLength))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}
	msg, err := jsonrpc2.DecodeMessage(data)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	select {
	case conn.incoming <- msg:
		w.WriteHeader(http.StatusAccepted)
	case <-conn.done:
		http.Error(w, "stream closed", http.StatusGone)
	}
}

func (t *SSEServerTransport) Connect(ctx context.Context) (Connection, error) {
	// The GET handler constructs the connection as the stream opens; a
	// caller wanting a Connection directly (tests, in-process wiring) uses
	// the returned conn once serveStream has run at least once.
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, fmt.Errorf("sse transport: no client has connected yet")
	}
	return t.conn, nil
}

type sseServerConn struct {
	incoming chan jsonrpc2.Message
	outgoing chan jsonrpc2.Message
	done     chan struct{}
	once     sync.Once
}

func (c *sseServerConn) Read(ctx context.Context) (jsonrpc2.Message, error) {
	select {
	case msg, ok := <-c.incoming:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-c.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *sseServerConn) Write(ctx context.Context, msg jsonrpc2.Message) error {
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *sseServerConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
