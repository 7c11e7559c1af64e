package toolbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	enclavemcp "github.com/agentscript/sentinel-enclave/pkg/mcp"
)

// Bridge forwards __safe_callTool invocations to a real upstream MCP tool
// server as tools/call JSON-RPC requests, satisfying v8sandbox.ToolHandler
// structurally (CallTool(ctx, name, args) (any, error)).
//
// Calls are serialized: the sandbox only ever has one __safe_callTool
// synchronously in flight at a time (host functions block the single
// isolate thread, so even prelude.go's parallel() resolves its promises one
// host round trip after another), so one pending request at a time is
// enough — there is no need to correlate concurrent in-flight requests by
// JSON-RPC ID the way a multiplexing client would.
type Bridge struct {
	transport transport

	mu      sync.Mutex
	stdin   io.Writer
	scanner *bufio.Scanner

	nextID atomic.Int64

	started bool
}

// NewCommandBridge builds a Bridge that spawns command as an MCP stdio
// server subprocess.
func NewCommandBridge(command string, args []string) *Bridge {
	return &Bridge{transport: newStdioTransport(command, args)}
}

// NewHTTPBridge builds a Bridge that forwards tool calls to a remote MCP
// server over HTTP.
func NewHTTPBridge(endpoint string, timeout time.Duration) *Bridge {
	return &Bridge{transport: newHTTPTransport(endpoint, timeout)}
}

// Start launches the underlying transport. Must be called once before the
// first CallTool.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("toolbridge: already started")
	}
	stdin, stdout, err := b.transport.Start(ctx)
	if err != nil {
		return err
	}
	b.stdin = stdin
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, scannerInitialBufSize), scannerMaxBufSize)
	b.scanner = scanner
	b.started = true
	return nil
}

// Close tears down the underlying transport.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	return b.transport.Close()
}

// CallTool sends name/args upstream as a tools/call request and waits for
// the matching response, decoding its result into a plain Go value.
func (b *Bridge) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil, fmt.Errorf("toolbridge: not started")
	}

	id, err := jsonrpc.MakeID(float64(b.nextID.Add(1)))
	if err != nil {
		return nil, fmt.Errorf("toolbridge: make request id: %w", err)
	}

	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, fmt.Errorf("toolbridge: marshal params: %w", err)
	}

	req := &jsonrpc.Request{ID: id, Method: "tools/call", Params: params}

	encoded, err := enclavemcp.EncodeMessage(req)
	if err != nil {
		return nil, fmt.Errorf("toolbridge: encode request: %w", err)
	}

	if _, err := b.stdin.Write(append(encoded, '\n')); err != nil {
		return nil, fmt.Errorf("toolbridge: write request: %w", err)
	}

	type scanResult struct {
		line []byte
		err  error
	}
	lines := make(chan scanResult, 1)
	go func() {
		if b.scanner.Scan() {
			line := append([]byte(nil), b.scanner.Bytes()...)
			lines <- scanResult{line: line}
			return
		}
		err := b.scanner.Err()
		if err == nil {
			err = fmt.Errorf("toolbridge: upstream closed the connection")
		}
		lines <- scanResult{err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-lines:
		if res.err != nil {
			return nil, res.err
		}
		return decodeToolResult(res.line)
	}
}

func decodeToolResult(raw []byte) (any, error) {
	decoded, err := enclavemcp.DecodeMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("toolbridge: decode response: %w", err)
	}
	resp, ok := decoded.(*jsonrpc.Response)
	if !ok {
		return nil, fmt.Errorf("toolbridge: expected a response, got %T", decoded)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("toolbridge: upstream tool error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	var value any
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &value); err != nil {
			return nil, fmt.Errorf("toolbridge: unmarshal result: %w", err)
		}
	}
	return value, nil
}
