// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	internaljson "github.com/mark3labs/mcp-core-go/internal/json"
	"github.com/mark3labs/mcp-core-go/internal/jsonrpc2"
)

// newSessionPair wires two Sessions together over an in-memory transport,
// acting as a client and a server end of the same connection. Either side's
// options may be nil.
func newSessionPair(t *testing.T, clientOpts, serverOpts *SessionOptions) (client, server *Session) {
	t.Helper()
	clientTransport, serverTransport := newInMemoryTransports()
	client, err := Connect(context.Background(), clientTransport, clientOpts)
	if err != nil {
		t.Fatalf("connecting client: %v", err)
	}
	server, err = Connect(context.Background(), serverTransport, serverOpts)
	if err != nil {
		t.Fatalf("connecting server: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

// newSessionAndPeer connects a Session to the raw other end of an in-memory
// transport, for tests that read and write the peer's messages by hand.
func newSessionAndPeer(t *testing.T) (client *Session, peer Connection) {
	t.Helper()
	clientTransport, serverTransport := newInMemoryTransports()
	peer, err := serverTransport.Connect(context.Background())
	if err != nil {
		t.Fatalf("connecting peer: %v", err)
	}
	client, err = Connect(context.Background(), clientTransport, nil)
	if err != nil {
		t.Fatalf("connecting client: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		peer.Close()
	})
	return client, peer
}

func respondOnce(t *testing.T, peer Connection, build func(*jsonrpc2.Request) jsonrpc2.Message) {
	t.Helper()
	go func() {
		msg, err := peer.Read(context.Background())
		if err != nil {
			return
		}
		req, ok := msg.(*jsonrpc2.Request)
		if !ok {
			return
		}
		resp := build(req)
		if resp != nil {
			peer.Write(context.Background(), resp)
		}
	}()
}

func TestCallRoundTrip(t *testing.T) {
	client, server := newSessionAndPeer(t)
	respondOnce(t, server, func(req *jsonrpc2.Request) jsonrpc2.Message {
		if req.Method != "tools/list" {
			t.Errorf("got method %q, want tools/list", req.Method)
		}
		raw, _ := internaljson.Marshal(&ListToolsResult{Tools: []*Tool{{Name: "echo"}}})
		return &jsonrpc2.Response{ID: req.ID, Result: raw}
	})

	res := new(ListToolsResult)
	if err := client.Call(context.Background(), "tools/list", &ListToolsParams{}, res, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(res.Tools) != 1 || res.Tools[0].Name != "echo" {
		t.Errorf("got %+v, want one tool named echo", res.Tools)
	}
}

func TestCallPropagatesRPCError(t *testing.T) {
	client, server := newSessionAndPeer(t)
	respondOnce(t, server, func(req *jsonrpc2.Request) jsonrpc2.Message {
		return &jsonrpc2.Response{ID: req.ID, Error: jsonrpc2.NewError(jsonrpc2.CodeInvalidParams, "bad params")}
	})

	err := client.Call(context.Background(), "tools/call", &CallToolParams{Name: "x"}, nil, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("got %v, want an *RPCError", err)
	}
	if rpcErr.Code != CodeInvalidParams {
		t.Errorf("got code %d, want %d", rpcErr.Code, CodeInvalidParams)
	}
}

func TestCallContextCancelSendsCancelled(t *testing.T) {
	client, server := newSessionAndPeer(t)

	cancelled := make(chan *CancelledParams, 1)
	go func() {
		for {
			msg, err := server.Read(context.Background())
			if err != nil {
				return
			}
			req, ok := msg.(*jsonrpc2.Request)
			if !ok {
				continue
			}
			if req.Method == "notifications/cancelled" {
				var p CancelledParams
				if err := internaljson.Unmarshal(req.Params, &p); err == nil {
					cancelled <- &p
				}
				return
			}
			// The call itself is never answered, so it's ctx cancellation
			// (not a response) that ends Call below.
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := client.Call(ctx, "tools/call", &CallToolParams{Name: "slow"}, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	select {
	case p := <-cancelled:
		if p.RequestID == nil {
			t.Error("cancelled notification carried no requestId")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notifications/cancelled")
	}
}

func TestInboundSamplingDispatchedToHandler(t *testing.T) {
	called := make(chan *CreateMessageParams, 1)
	clientOpts := &SessionOptions{
		Handlers: &Handlers{
			CreateMessage: func(ctx context.Context, req *CreateMessageRequest) (*CreateMessageResult, error) {
				called <- req.Params
				return NewTextSamplingResult("test-model", Role("assistant"), "hello"), nil
			},
		},
	}
	_, server := newSessionPair(t, clientOpts, nil)

	res := new(CreateMessageResult)
	if err := server.Call(context.Background(), "sampling/createMessage", &CreateMessageParams{MaxTokens: 16}, res, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Model != "test-model" {
		t.Errorf("got model %q, want test-model", res.Model)
	}
	select {
	case p := <-called:
		if p.MaxTokens != 16 {
			t.Errorf("got MaxTokens %d, want 16", p.MaxTokens)
		}
	default:
		t.Error("handler was never invoked")
	}
}

func TestInboundCallMethodNotFound(t *testing.T) {
	client, _ := newSessionPair(t, nil, nil)

	err := client.Call(context.Background(), "sampling/createMessage", &CreateMessageParams{MaxTokens: 1}, new(CreateMessageResult), nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("got %v, want an *RPCError", err)
	}
	if rpcErr.Code != CodeMethodNotFound {
		t.Errorf("got code %d, want %d", rpcErr.Code, CodeMethodNotFound)
	}
}

func TestProgressRoutedWhilePending(t *testing.T) {
	client, server := newSessionAndPeer(t)

	go func() {
		msg, err := server.Read(context.Background())
		if err != nil {
			return
		}
		req := msg.(*jsonrpc2.Request)
		var p CallToolParams
		internaljson.Unmarshal(req.Params, &p)
		token := p.GetMeta()[progressTokenKey]

		progressRaw, _ := internaljson.Marshal(&ProgressNotificationParams{ProgressToken: token, Progress: 0.5})
		server.Write(context.Background(), &jsonrpc2.Request{Method: "notifications/progress", Params: progressRaw})

		time.Sleep(10 * time.Millisecond)
		raw, _ := internaljson.Marshal(&CallToolResult{})
		server.Write(context.Background(), &jsonrpc2.Response{ID: req.ID, Result: raw})
	}()

	var got []float64
	progress := func(p *ProgressNotificationParams) { got = append(got, p.Progress) }
	if err := client.Call(context.Background(), "tools/call", &CallToolParams{Name: "x"}, new(CallToolResult), progress); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(got) != 1 || got[0] != 0.5 {
		t.Errorf("got progress %v, want [0.5]", got)
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	client, server := newSessionAndPeer(t)

	// Drain the request on the server side without ever responding, then
	// close the client out from under the pending Call.
	go func() {
		server.Read(context.Background())
	}()

	done := make(chan error, 1)
	go func() {
		done <- client.Call(context.Background(), "tools/call", &CallToolParams{Name: "x"}, nil, nil)
	}()
	time.Sleep(20 * time.Millisecond)
	client.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("got %v, want ErrConnectionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Call did not return after Close")
	}
}
