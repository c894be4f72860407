// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-core-go/internal/jsonrpc2"
)

func TestNDJSONFramerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	framer := newNDJSONFramer(0)
	w := framer.Writer(&buf)
	ctx := context.Background()

	if err := w.Write(ctx, &jsonrpc2.Request{ID: jsonrpc2.Int64ID(1), Method: "ping"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write(ctx, &jsonrpc2.Response{ID: jsonrpc2.Int64ID(1), Result: []byte(`{}`)}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := framer.Reader(&buf)
	msg1, err := r.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	req, ok := msg1.(*jsonrpc2.Request)
	if !ok || req.Method != "ping" {
		t.Errorf("got %#v, want a ping request", msg1)
	}

	msg2, err := r.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, ok := msg2.(*jsonrpc2.Response); !ok {
		t.Errorf("got %#v, want a Response", msg2)
	}

	if _, err := r.Read(ctx); err != io.EOF {
		t.Errorf("got %v, want io.EOF", err)
	}
}

func TestNDJSONFramerSkipsBlankLines(t *testing.T) {
	r := newNDJSONFramer(0).Reader(strings.NewReader("\n\n" + `{"jsonrpc":"2.0","method":"ping"}` + "\n"))
	msg, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if req := msg.(*jsonrpc2.Request); req.Method != "ping" {
		t.Errorf("got method %q, want ping", req.Method)
	}
}

func TestNDJSONFramerDecodesBatch(t *testing.T) {
	line := `[{"jsonrpc":"2.0","method":"a"},{"jsonrpc":"2.0","method":"b"}]` + "\n"
	r := newNDJSONFramer(0).Reader(strings.NewReader(line))
	ctx := context.Background()

	first, err := r.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	second, err := r.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if first.(*jsonrpc2.Request).Method != "a" || second.(*jsonrpc2.Request).Method != "b" {
		t.Errorf("got methods %q, %q, want a, b", first.(*jsonrpc2.Request).Method, second.(*jsonrpc2.Request).Method)
	}
}

func TestNDJSONFramerDropsOverlongLineAndContinues(t *testing.T) {
	huge := strings.Repeat("x", 64) + "\n"
	ok := `{"jsonrpc":"2.0","method":"ping"}` + "\n"
	r := newNDJSONFramer(48).Reader(strings.NewReader(huge + ok))
	msg, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v, want the overlong line dropped and the next line returned", err)
	}
	if req := msg.(*jsonrpc2.Request); req.Method != "ping" {
		t.Errorf("got method %q, want ping", req.Method)
	}
}

func TestNDJSONFramerDropsMalformedLineAndContinues(t *testing.T) {
	malformed := `{not json` + "\n"
	ok := `{"jsonrpc":"2.0","method":"ping"}` + "\n"
	r := newNDJSONFramer(0).Reader(strings.NewReader(malformed + ok))
	msg, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v, want the malformed line dropped and the next line returned", err)
	}
	if req := msg.(*jsonrpc2.Request); req.Method != "ping" {
		t.Errorf("got method %q, want ping", req.Method)
	}
}

func TestInMemoryTransportRoundTrip(t *testing.T) {
	clientTransport, serverTransport := newInMemoryTransports()
	ctx := context.Background()

	client, err := clientTransport.Connect(ctx)
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	defer client.Close()
	server, err := serverTransport.Connect(ctx)
	if err != nil {
		t.Fatalf("server Connect: %v", err)
	}
	defer server.Close()

	if err := client.Write(ctx, &jsonrpc2.Request{ID: jsonrpc2.Int64ID(1), Method: "tools/list"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	msg, err := server.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if req := msg.(*jsonrpc2.Request); req.Method != "tools/list" {
		t.Errorf("got method %q, want tools/list", req.Method)
	}

	client.Close()
	if _, err := server.Read(ctx); err == nil {
		t.Error("Read succeeded after the peer closed its side")
	}
}

// TestStdioTransportEchoRoundTrip exercises StdioTransport's subprocess
// plumbing and ndjson framing against `cat`, which mirrors every line it
// receives back to its own stdout verbatim.
func TestStdioTransportEchoRoundTrip(t *testing.T) {
	tport := &StdioTransport{Command: "cat"}
	conn, err := tport.Connect(context.Background())
	if err != nil {
		t.Skipf("cat not available: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sent := &jsonrpc2.Request{ID: jsonrpc2.Int64ID(7), Method: "ping"}
	if err := conn.Write(ctx, sent); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	req, ok := got.(*jsonrpc2.Request)
	if !ok || req.Method != "ping" || req.ID.Raw() != int64(7) {
		t.Errorf("got %#v, want an echoed ping request with id 7", got)
	}
}

func TestStdioTransportCloseIsIdempotent(t *testing.T) {
	tport := &StdioTransport{Command: "cat", ShutdownTimeout: 100 * time.Millisecond}
	conn, err := tport.Connect(context.Background())
	if err != nil {
		t.Skipf("cat not available: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
