package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// StdioTransport connects to a local MCP server over stdin/stdout of a child
// process started on first use.
//
// Messages are framed as single-line JSON (one JSON-RPC message per line).
type StdioTransport struct {
	Command string
	Args    []string
	Env     []string

	// Stderr receives the server's stderr. Nil discards it.
	Stderr io.Writer
	Logger *slog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	conn *StreamTransport
}

var _ Transport = (*StdioTransport)(nil)

// Start launches the server process if it is not running yet.
func (t *StdioTransport) Start() error {
	_, err := t.connection()
	return err
}

func (t *StdioTransport) connection() (*StreamTransport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	if t.Command == "" {
		return nil, fmt.Errorf("mcp: stdio transport command is required")
	}
	cmd := exec.Command(t.Command, t.Args...)
	if len(t.Env) > 0 {
		cmd.Env = append([]string(nil), t.Env...)
	}
	cmd.Stderr = t.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, err
	}

	t.cmd = cmd
	t.conn = NewStreamTransport(stdout, stdin, t.Logger)
	return t.conn, nil
}

func (t *StdioTransport) Call(ctx context.Context, req json.RawMessage) (json.RawMessage, error) {
	c, err := t.connection()
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, req)
}

func (t *StdioTransport) Notify(ctx context.Context, msg json.RawMessage) error {
	c, err := t.connection()
	if err != nil {
		return err
	}
	return c.Notify(ctx, msg)
}

// Close closes the server's stdin and stops the process.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cmd == nil {
		return nil
	}
	_ = t.conn.Close()
	_ = t.cmd.Process.Kill()
	_ = t.cmd.Wait()
	t.cmd = nil
	t.conn = nil
	return nil
}

// StreamTransport speaks line-delimited JSON-RPC over an arbitrary reader and
// writer pair. Responses are matched to pending calls by id; lines that are
// not responses to a pending call are dropped.
type StreamTransport struct {
	w   io.Writer
	log *slog.Logger

	wmu sync.Mutex
	bw  *bufio.Writer

	mu      sync.Mutex
	pending map[int64]chan rpcResponse
	err     error

	closed chan struct{}
	once   sync.Once
}

var _ Transport = (*StreamTransport)(nil)

// NewStreamTransport starts reading responses from r. If w is an io.Closer it
// is closed by Close.
func NewStreamTransport(r io.Reader, w io.Writer, log *slog.Logger) *StreamTransport {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	t := &StreamTransport{
		w:       w,
		log:     log,
		bw:      bufio.NewWriter(w),
		pending: map[int64]chan rpcResponse{},
		closed:  make(chan struct{}),
	}
	go t.readLoop(bufio.NewReader(r))
	return t
}

func (t *StreamTransport) readLoop(br *bufio.Reader) {
	for {
		line, err := br.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			t.dispatch(line)
		}
		if err != nil {
			if err == io.EOF {
				err = ErrClosed
			}
			t.fail(err)
			return
		}
	}
}

func (t *StreamTransport) dispatch(line []byte) {
	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		t.log.Debug("mcp: dropping non-JSON line", "line", string(line), "err", err)
		return
	}
	if resp.ID == nil {
		t.log.Debug("mcp: dropping message without id", "line", string(line))
		return
	}

	t.mu.Lock()
	ch := t.pending[*resp.ID]
	delete(t.pending, *resp.ID)
	t.mu.Unlock()
	if ch == nil {
		t.log.Debug("mcp: dropping response for unknown id", "id", *resp.ID)
		return
	}
	ch <- resp
}

func (t *StreamTransport) fail(err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.closed)
	})
}

func (t *StreamTransport) Call(ctx context.Context, req json.RawMessage) (json.RawMessage, error) {
	var parsed rpcRequest
	if err := json.Unmarshal(req, &parsed); err != nil {
		return nil, err
	}
	if parsed.ID == nil {
		return nil, fmt.Errorf("mcp: request %q has no id", parsed.Method)
	}
	id := *parsed.ID

	ch := make(chan rpcResponse, 1)
	t.mu.Lock()
	if t.err != nil {
		err := t.err
		t.mu.Unlock()
		return nil, err
	}
	t.pending[id] = ch
	t.mu.Unlock()

	if err := t.write(req); err != nil {
		t.forget(id)
		return nil, err
	}

	select {
	case <-ctx.Done():
		t.forget(id)
		return nil, ctx.Err()
	case <-t.closed:
		t.forget(id)
		return nil, t.closeErr()
	case resp := <-ch:
		return json.Marshal(resp)
	}
}

func (t *StreamTransport) Notify(ctx context.Context, msg json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.closed:
		return t.closeErr()
	default:
	}
	return t.write(msg)
}

func (t *StreamTransport) write(msg []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := t.bw.Write(msg); err != nil {
		return err
	}
	if err := t.bw.WriteByte('\n'); err != nil {
		return err
	}
	return t.bw.Flush()
}

func (t *StreamTransport) forget(id int64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

func (t *StreamTransport) closeErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	return ErrClosed
}

func (t *StreamTransport) Close() error {
	t.fail(ErrClosed)
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
