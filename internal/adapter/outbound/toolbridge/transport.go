// Package toolbridge implements v8sandbox.ToolHandler by forwarding
// mediated tool calls to a real upstream MCP tool server, over either a
// spawned stdio subprocess or a remote HTTP endpoint.
package toolbridge

import (
	"context"
	"io"
)

// transport is the narrow connection port a Bridge drives: start the
// connection, get back a stdin/stdout pipe pair framed as
// newline-delimited JSON-RPC messages, and tear it down on Close.
//
// This mirrors the teacher's outbound.MCPClient port exactly; httpTransport
// and stdioTransport below are adapted from the teacher's HTTPClient and
// StdioClient, narrowed to the tools/call-only traffic this bridge needs.
type transport interface {
	Start(ctx context.Context) (stdin io.WriteCloser, stdout io.ReadCloser, err error)
	Wait() error
	Close() error
}
