// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"errors"
	"testing"

	internaljson "github.com/mark3labs/mcp-core-go/internal/json"
	"github.com/mark3labs/mcp-core-go/internal/jsonrpc2"
)

// fakeServer answers calls read from conn by method name, looping until conn
// is closed. The initialize handshake is handled automatically unless the
// caller supplies its own "initialize" entry.
type fakeServer struct {
	conn     Connection
	handlers map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError)
}

func newFakeServer(t *testing.T, conn Connection, handlers map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError)) *fakeServer {
	t.Helper()
	fs := &fakeServer{conn: conn, handlers: handlers}
	if _, ok := fs.handlers["initialize"]; !ok {
		if fs.handlers == nil {
			fs.handlers = map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){}
		}
		fs.handlers["initialize"] = func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			raw, _ := internaljson.Marshal(&InitializeResult{
				Capabilities:    &ServerCapabilities{},
				ProtocolVersion: latestProtocolVersion,
				ServerInfo:      &Implementation{Name: "fake-server", Version: "0.0.1"},
			})
			return raw, nil
		}
	}
	go fs.run()
	return fs
}

func (fs *fakeServer) run() {
	for {
		msg, err := fs.conn.Read(context.Background())
		if err != nil {
			return
		}
		req, ok := msg.(*jsonrpc2.Request)
		if !ok || !req.IsCall() {
			continue
		}
		h, ok := fs.handlers[req.Method]
		if !ok {
			fs.conn.Write(context.Background(), &jsonrpc2.Response{
				ID:    req.ID,
				Error: jsonrpc2.NewError(jsonrpc2.CodeMethodNotFound, "no handler for "+req.Method),
			})
			continue
		}
		result, wireErr := h(req)
		fs.conn.Write(context.Background(), &jsonrpc2.Response{ID: req.ID, Result: result, Error: wireErr})
	}
}

func result(v any) internaljson.RawMessage {
	raw, err := internaljson.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// newTestClientSession connects a Client over an in-memory transport to a
// fakeServer answering the given per-method handlers, on top of the default
// initialize handshake.
func newTestClientSession(t *testing.T, handlers map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError)) *ClientSession {
	t.Helper()
	clientTransport, serverTransport := newInMemoryTransports()
	serverConn, err := serverTransport.Connect(context.Background())
	if err != nil {
		t.Fatalf("connecting fake server: %v", err)
	}
	newFakeServer(t, serverConn, handlers)

	client := NewClient(&Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(context.Background(), clientTransport)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		cs.Close()
		serverConn.Close()
	})
	return cs
}

func TestClientConnectHandshake(t *testing.T) {
	cs := newTestClientSession(t, nil)
	if cs.InitializeResult.ServerInfo.Name != "fake-server" {
		t.Errorf("got server name %q, want fake-server", cs.InitializeResult.ServerInfo.Name)
	}
	if cs.InitializeResult.ProtocolVersion != latestProtocolVersion {
		t.Errorf("got protocol version %q, want %q", cs.InitializeResult.ProtocolVersion, latestProtocolVersion)
	}
}

func TestClientConnectRejectsFailedHandshake(t *testing.T) {
	clientTransport, serverTransport := newInMemoryTransports()
	serverConn, err := serverTransport.Connect(context.Background())
	if err != nil {
		t.Fatalf("connecting fake server: %v", err)
	}
	newFakeServer(t, serverConn, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"initialize": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			return nil, jsonrpc2.NewError(jsonrpc2.CodeInternalError, "no thanks")
		},
	})
	t.Cleanup(func() { serverConn.Close() })

	client := NewClient(&Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	if _, err := client.Connect(context.Background(), clientTransport); err == nil {
		t.Fatal("Connect succeeded despite a failing initialize response")
	}
}

func TestClientPing(t *testing.T) {
	cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"ping": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			return result(&struct{}{}), nil
		},
	})
	if err := cs.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestClientListToolsAndCallTool(t *testing.T) {
	cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"tools/list": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			return result(&ListToolsResult{Tools: []*Tool{{Name: "echo"}}}), nil
		},
		"tools/call": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			var p CallToolParams
			internaljson.Unmarshal(req.Params, &p)
			if p.Name != "echo" {
				t.Errorf("got tool name %q, want echo", p.Name)
			}
			return result(&CallToolResult{Content: []Content{&TextContent{Text: "hi"}}}), nil
		},
	})

	tools, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools.Tools) != 1 || tools.Tools[0].Name != "echo" {
		t.Fatalf("got %+v, want one tool named echo", tools.Tools)
	}

	res, err := cs.CallTool(context.Background(), &CallToolParams{Name: "echo"}, nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("got %d content blocks, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(*TextContent)
	if !ok || text.Text != "hi" {
		t.Errorf("got %+v, want text content \"hi\"", res.Content[0])
	}
}

func TestClientListAllToolsPaginates(t *testing.T) {
	pages := [][]*Tool{
		{{Name: "a"}, {Name: "b"}},
		{{Name: "c"}},
	}
	cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"tools/list": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			var p ListToolsParams
			internaljson.Unmarshal(req.Params, &p)
			idx := 0
			if p.Cursor != "" {
				idx = 1
			}
			res := &ListToolsResult{Tools: pages[idx]}
			if idx < len(pages)-1 {
				res.NextCursor = "page2"
			}
			return result(res), nil
		},
	})

	all, err := cs.ListAllTools(context.Background())
	if err != nil {
		t.Fatalf("ListAllTools: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d tools, want 3", len(all))
	}

	var names []string
	for tool, err := range cs.EnumerateTools(context.Background()) {
		if err != nil {
			t.Fatalf("EnumerateTools: %v", err)
		}
		names = append(names, tool.Name)
	}
	if len(names) != 3 || names[2] != "c" {
		t.Fatalf("got %v, want [a b c]", names)
	}
}

func TestClientGetPrompt(t *testing.T) {
	cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"prompts/list": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			return result(&ListPromptsResult{Prompts: []*Prompt{{Name: "greet"}}}), nil
		},
		"prompts/get": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			var p GetPromptParams
			internaljson.Unmarshal(req.Params, &p)
			return result(&GetPromptResult{
				Messages: []*PromptMessage{{Role: "user", Content: &TextContent{Text: "hello " + p.Arguments["name"]}}},
			}), nil
		},
	})

	prompts, err := cs.ListPrompts(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListPrompts: %v", err)
	}
	if len(prompts.Prompts) != 1 || prompts.Prompts[0].Name != "greet" {
		t.Fatalf("got %+v, want one prompt named greet", prompts.Prompts)
	}

	res, err := cs.GetPrompt(context.Background(), &GetPromptParams{Name: "greet", Arguments: map[string]string{"name": "world"}})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	text, ok := res.Messages[0].Content.(*TextContent)
	if !ok || text.Text != "hello world" {
		t.Errorf("got %+v, want \"hello world\"", res.Messages[0].Content)
	}
}

func TestClientResourcesAndTemplates(t *testing.T) {
	cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"resources/list": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			return result(&ListResourcesResult{Resources: []*Resource{{URI: "file:///a.txt", Name: "a"}}}), nil
		},
		"resources/read": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			return result(&ReadResourceResult{Contents: []*ResourceContents{{URI: "file:///a.txt", Text: "contents"}}}), nil
		},
		"resources/templates/list": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			return result(&ListResourceTemplatesResult{ResourceTemplates: []*ResourceTemplate{{Name: "by-id", URITemplate: "file:///{id}.txt"}}}), nil
		},
		"resources/subscribe":   func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) { return result(&struct{}{}), nil },
		"resources/unsubscribe": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) { return result(&struct{}{}), nil },
	})

	resources, err := cs.ListResources(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources.Resources) != 1 || resources.Resources[0].URI != "file:///a.txt" {
		t.Fatalf("got %+v, want one resource", resources.Resources)
	}

	read, err := cs.ReadResource(context.Background(), &ReadResourceParams{URI: "file:///a.txt"})
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}
	if len(read.Contents) != 1 || read.Contents[0].Text != "contents" {
		t.Fatalf("got %+v, want contents", read.Contents)
	}

	templates, err := cs.ListResourceTemplates(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListResourceTemplates: %v", err)
	}
	if len(templates.ResourceTemplates) != 1 {
		t.Fatalf("got %d templates, want 1", len(templates.ResourceTemplates))
	}
	expanded, err := templates.ResourceTemplates[0].Expand(map[string]string{"id": "42"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if expanded != "file:///42.txt" {
		t.Errorf("got %q, want file:///42.txt", expanded)
	}

	if err := cs.Subscribe(context.Background(), "file:///a.txt"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := cs.Unsubscribe(context.Background(), "file:///a.txt"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
}

func TestClientComplete(t *testing.T) {
	cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"completion/complete": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			return result(&CompleteResult{Completion: CompletionResultDetails{Values: []string{"foo", "foobar"}}}), nil
		},
	})

	res, err := cs.Complete(context.Background(), &CompleteParams{
		Ref:      &CompleteReference{Type: "ref/prompt", Name: "greet"},
		Argument: CompleteParamsArgument{Name: "name", Value: "fo"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(res.Completion.Values) != 2 {
		t.Fatalf("got %v, want 2 completions", res.Completion.Values)
	}
}

func TestClientSetLoggingLevel(t *testing.T) {
	cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"logging/setLevel": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			var p SetLoggingLevelParams
			internaljson.Unmarshal(req.Params, &p)
			if p.Level != "warning" {
				t.Errorf("got level %q, want warning", p.Level)
			}
			return result(&struct{}{}), nil
		},
	})
	if err := cs.SetLoggingLevel(context.Background(), "warning"); err != nil {
		t.Fatalf("SetLoggingLevel: %v", err)
	}
}

func TestClientPreconditionsRejectBlankArgumentsBeforeWireActivity(t *testing.T) {
	cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"tools/call":           func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) { panic("no wire activity expected") },
		"prompts/get":          func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) { panic("no wire activity expected") },
		"resources/read":       func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) { panic("no wire activity expected") },
		"resources/subscribe":  func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) { panic("no wire activity expected") },
		"completion/complete":  func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) { panic("no wire activity expected") },
		"logging/setLevel":     func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) { panic("no wire activity expected") },
	})
	ctx := context.Background()

	if _, err := cs.CallTool(ctx, &CallToolParams{Name: "  "}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("CallTool: got %v, want ErrInvalidArgument", err)
	}
	if _, err := cs.GetPrompt(ctx, &GetPromptParams{Name: ""}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("GetPrompt: got %v, want ErrInvalidArgument", err)
	}
	if _, err := cs.ReadResource(ctx, &ReadResourceParams{URI: "\t"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ReadResource: got %v, want ErrInvalidArgument", err)
	}
	if err := cs.Subscribe(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Subscribe: got %v, want ErrInvalidArgument", err)
	}
	if err := cs.Unsubscribe(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Unsubscribe: got %v, want ErrInvalidArgument", err)
	}
	if err := cs.SetLoggingLevel(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetLoggingLevel: got %v, want ErrInvalidArgument", err)
	}
	if _, err := cs.Complete(ctx, &CompleteParams{
		Ref:      &CompleteReference{Type: "ref/prompt", Name: "greet"},
		Argument: CompleteParamsArgument{Name: ""},
	}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Complete (blank argument name): got %v, want ErrInvalidArgument", err)
	}
	if _, err := cs.Complete(ctx, &CompleteParams{
		Ref:      &CompleteReference{Type: "ref/prompt", Name: "greet", URI: "file:///x"},
		Argument: CompleteParamsArgument{Name: "a"},
	}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Complete (invalid reference): got %v, want ErrInvalidArgument", err)
	}
}

func TestSetLoggingLevelFromSeverityConvertsThroughFixedTable(t *testing.T) {
	cases := map[Severity]LoggingLevel{
		SeverityTrace:    LoggingLevelDebug,
		SeverityDebug:    LoggingLevelDebug,
		SeverityInfo:     LoggingLevelInfo,
		SeverityWarn:     LoggingLevelWarning,
		SeverityError:    LoggingLevelError,
		SeverityCritical: LoggingLevelCritical,
		SeverityNone:     LoggingLevelEmergency,
	}
	for severity, want := range cases {
		var got LoggingLevel
		cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
			"logging/setLevel": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
				var p SetLoggingLevelParams
				internaljson.Unmarshal(req.Params, &p)
				got = p.Level
				return result(&struct{}{}), nil
			},
		})
		if err := cs.SetLoggingLevelFromSeverity(context.Background(), severity); err != nil {
			t.Fatalf("SetLoggingLevelFromSeverity(%q): %v", severity, err)
		}
		if got != want {
			t.Errorf("SetLoggingLevelFromSeverity(%q): got level %q, want %q", severity, got, want)
		}
	}
}

func TestClientCallToolPropagatesError(t *testing.T) {
	cs := newTestClientSession(t, map[string]func(*jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError){
		"tools/call": func(req *jsonrpc2.Request) (internaljson.RawMessage, *jsonrpc2.WireError) {
			return nil, jsonrpc2.NewError(jsonrpc2.CodeInvalidParams, "unknown tool")
		},
	})
	_, err := cs.CallTool(context.Background(), &CallToolParams{Name: "missing"}, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("got %v, want an *RPCError", err)
	}
	if rpcErr.Code != CodeInvalidParams {
		t.Errorf("got code %d, want %d", rpcErr.Code, CodeInvalidParams)
	}
}
