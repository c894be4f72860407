// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-core-go/internal/jsonrpc2"
)

// A Transport connects a [Session] to a peer. Connect is called once, at
// session construction; it establishes whatever is needed (a subprocess, an
// HTTP round trip, an in-memory pipe) and returns a live [Connection].
type Transport interface {
	Connect(ctx context.Context) (Connection, error)
}

// A Connection is a framed, bidirectional channel for jsonrpc2 messages. A
// single goroutine should call Read in a loop; Write may be called
// concurrently with Read and with itself.
//
// Read returns io.EOF once the peer has cleanly closed its side, and any
// other error if the connection broke unexpectedly. Close is idempotent.
type Connection interface {
	Read(ctx context.Context) (jsonrpc2.Message, error)
	Write(ctx context.Context, msg jsonrpc2.Message) error
	Close() error
}

// A Framer turns a byte stream into a sequence of framed jsonrpc2 messages
// and back. It is the seam between wire encoding (newline-delimited JSON
// for stdio, SSE "message" events for SSE) and the Connection that uses it.
type Framer interface {
	Reader(r io.Reader) Reader
	Writer(w io.Writer) Writer
}

// A Reader reads one framed message at a time.
type Reader interface {
	Read(ctx context.Context) (jsonrpc2.Message, error)
}

// logSetter is implemented by a Reader (or a Connection wrapping one) able
// to report malformed, dropped frames somewhere other than [log.Default].
// [Connect] sets it, when present, once a Session's ErrorLog default has
// been resolved and before the read loop starts.
type logSetter interface {
	setErrorLog(logf func(string, ...any))
}

// A Writer writes one framed message at a time.
type Writer interface {
	Write(ctx context.Context, msg jsonrpc2.Message) error
}

// DefaultMaxLineLength bounds a single ndjson line, guarding against an
// unbounded buffer growth if a peer never sends a newline.
const DefaultMaxLineLength = 1 << 20 // 1 MiB

// ndjsonFramer implements newline-delimited JSON framing: one message (or
// JSON-RPC batch array) per line.
type ndjsonFramer struct {
	maxLineLength int
}

func newNDJSONFramer(maxLineLength int) *ndjsonFramer {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	return &ndjsonFramer{maxLineLength: maxLineLength}
}

func (f *ndjsonFramer) Reader(r io.Reader) Reader {
	initial := 4096
	if f.maxLineLength < initial {
		initial = f.maxLineLength
	}
	return &ndjsonReader{
		br:   bufio.NewReaderSize(r, initial),
		max:  f.maxLineLength,
		logf: log.Printf,
	}
}

func (f *ndjsonFramer) Writer(w io.Writer) Writer {
	return &ndjsonWriter{w: w}
}

// errLineTooLong reports a line exceeding an ndjsonReader's configured
// maximum. It is recoverable: the reader has already consumed the
// offending line up to its terminating newline and is positioned to read
// the next one.
var errLineTooLong = errors.New("ndjson: line exceeds maximum length")

// ndjsonReader reads one line at a time, decoding it into either a single
// message or, if the caller built a batch, a queue of messages drained
// before the next underlying read. A line that overruns the configured
// maximum, or that fails to decode as JSON-RPC, is logged and skipped
// rather than treated as a fatal transport error; only a genuine error
// from the underlying stream is returned from Read.
type ndjsonReader struct {
	br  *bufio.Reader
	max int

	mu    sync.Mutex
	queue []jsonrpc2.Message
	logf  func(string, ...any)
}

func (r *ndjsonReader) setErrorLog(logf func(string, ...any)) {
	r.mu.Lock()
	r.logf = logf
	r.mu.Unlock()
}

func (r *ndjsonReader) Read(ctx context.Context) (jsonrpc2.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.queue) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		line, err := r.readLine()
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				r.logf("mcp: ndjson: dropping line exceeding %d bytes", r.max)
				continue
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("ndjson: reading line: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		msgs, err := jsonrpc2.DecodeAny(append([]byte(nil), line...))
		if err != nil {
			r.logf("mcp: ndjson: dropping malformed line: %v", err)
			continue
		}
		r.queue = msgs
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

// readLine returns the next newline-terminated line, without the trailing
// newline. A line longer than r.max is fully consumed, so the stream
// resyncs at the next newline, and reported as errLineTooLong rather than
// as a hard read failure.
func (r *ndjsonReader) readLine() ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := r.br.ReadSlice('\n')
		if len(chunk) > 0 && !tooLong {
			if len(line)+len(chunk) > r.max {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch {
		case err == nil:
			if tooLong {
				return nil, errLineTooLong
			}
			return bytes.TrimSuffix(line, []byte("\n")), nil
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && len(line) > 0 && !tooLong:
			return line, nil
		case tooLong:
			return nil, errLineTooLong
		default:
			return nil, err
		}
	}
}

type ndjsonWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func (w *ndjsonWriter) Write(ctx context.Context, msg jsonrpc2.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("ndjson: encoding message: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	_, err = w.w.Write([]byte("\n"))
	return err
}

// pipeConnection adapts a framed io.ReadWriteCloser into a Connection.
type pipeConnection struct {
	reader Reader
	writer Writer
	closer io.Closer
	once   sync.Once
}

func (c *pipeConnection) Read(ctx context.Context) (jsonrpc2.Message, error) {
	return c.reader.Read(ctx)
}

func (c *pipeConnection) Write(ctx context.Context, msg jsonrpc2.Message) error {
	return c.writer.Write(ctx, msg)
}

func (c *pipeConnection) Close() error {
	var err error
	c.once.Do(func() { err = c.closer.Close() })
	return err
}

func (c *pipeConnection) setErrorLog(logf func(string, ...any)) {
	if s, ok := c.reader.(logSetter); ok {
		s.setErrorLog(logf)
	}
}

// inMemoryTransport connects to one end of an in-process net.Pipe, framed
// as ndjson. It exists for tests that want a real Session/Connection
// round trip without a subprocess or a listening socket.
type inMemoryTransport struct {
	conn net.Conn
}

func (t *inMemoryTransport) Connect(ctx context.Context) (Connection, error) {
	framer := newNDJSONFramer(0)
	return &pipeConnection{
		reader: framer.Reader(t.conn),
		writer: framer.Writer(t.conn),
		closer: t.conn,
	}, nil
}

// newInMemoryTransports returns a connected pair of transports, suitable
// for wiring a Session directly to a test peer within the same process.
func newInMemoryTransports() (client, server Transport) {
	c1, c2 := net.Pipe()
	return &inMemoryTransport{conn: c1}, &inMemoryTransport{conn: c2}
}

// StdioTransport launches an MCP server as a subprocess and speaks
// newline-delimited JSON over its stdin/stdout, per the external stdio
// framing contract.
type StdioTransport struct {
	// Command is the executable to run.
	Command string
	// Args are passed to the subprocess.
	Args []string
	// Env, if non-nil, replaces the subprocess's environment entirely (as
	// with [exec.Cmd.Env]). A nil Env inherits the current process's
	// environment.
	Env []string
	// Dir is the subprocess's working directory. Empty means the current
	// directory.
	Dir string
	// Stderr, if non-nil, receives the subprocess's stderr stream, line by
	// line, for the lifetime of the connection.
	Stderr io.Writer
	// ShutdownTimeout bounds how long Close waits for the subprocess to
	// exit after its stdin is closed before sending it a kill signal.
	// Zero means 5 seconds.
	ShutdownTimeout time.Duration
	// MaxLineLength bounds a single ndjson line. Zero means
	// [DefaultMaxLineLength].
	MaxLineLength int
}

func (t *StdioTransport) Connect(ctx context.Context) (Connection, error) {
	cmd := exec.Command(t.Command, t.Args...)
	cmd.Dir = t.Dir
	if t.Env != nil {
		cmd.Env = t.Env
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdio transport: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdio transport: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stdio transport: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("stdio transport: starting %s: %w", t.Command, err)
	}

	go forwardStderr(stderr, t.Stderr)

	framer := newNDJSONFramer(t.MaxLineLength)
	shutdownTimeout := t.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &stdioConnection{
		cmd:             cmd,
		stdin:           stdin,
		reader:          framer.Reader(stdout),
		writer:          framer.Writer(stdin),
		shutdownTimeout: shutdownTimeout,
	}, nil
}

func forwardStderr(r io.Reader, dst io.Writer) {
	if dst == nil {
		dst = os.Stderr
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fmt.Fprintln(dst, sc.Text())
	}
}

type stdioConnection struct {
	cmd             *exec.Cmd
	stdin           io.Closer
	reader          Reader
	writer          Writer
	shutdownTimeout time.Duration
	closeOnce       sync.Once
	closeErr        error
}

func (c *stdioConnection) Read(ctx context.Context) (jsonrpc2.Message, error) {
	return c.reader.Read(ctx)
}

func (c *stdioConnection) Write(ctx context.Context, msg jsonrpc2.Message) error {
	return c.writer.Write(ctx, msg)
}

func (c *stdioConnection) setErrorLog(logf func(string, ...any)) {
	if s, ok := c.reader.(logSetter); ok {
		s.setErrorLog(logf)
	}
}

// Close closes the subprocess's stdin, giving it a chance to exit on its
// own, then waits up to shutdownTimeout before killing it.
func (c *stdioConnection) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()
		done := make(chan error, 1)
		go func() { done <- c.cmd.Wait() }()
		select {
		case err := <-done:
			c.closeErr = err
		case <-time.After(c.shutdownTimeout):
			_ = c.cmd.Process.Kill()
			<-done
			c.closeErr = fmt.Errorf("stdio transport: %s did not exit within %s, killed", c.cmd.Path, c.shutdownTimeout)
		}
	})
	return c.closeErr
}
