// Package mcp provides MCP message types and JSON-RPC codec utilities
// used to forward mediated tool calls to an upstream MCP tool server.
package mcp

import (
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Direction indicates which way a message is flowing across the tool
// bridge's JSON-RPC connection.
type Direction int

const (
	// ToUpstream indicates a message flowing from the guard to the
	// upstream MCP tool server (a tools/call request).
	ToUpstream Direction = iota
	// FromUpstream indicates a message flowing from the upstream MCP
	// tool server back to the guard (a tools/call response).
	FromUpstream
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case ToUpstream:
		return "guard->upstream"
	case FromUpstream:
		return "upstream->guard"
	default:
		return "unknown"
	}
}

// Message wraps a decoded JSON-RPC message with bridge metadata. It stores
// both the raw bytes (for logging/audit) and the decoded message (for
// inspection).
type Message struct {
	// Raw contains the original bytes of the message.
	Raw []byte

	// Direction indicates whether this message is flowing to or from the
	// upstream tool server.
	Direction Direction

	// Decoded contains the parsed JSON-RPC message. The concrete type is
	// either *jsonrpc.Request or *jsonrpc.Response.
	Decoded jsonrpc.Message

	// Timestamp records when the message was observed by the bridge.
	Timestamp time.Time

	// ParsedParams contains the parsed params from a JSON-RPC request.
	// Set by ParseParams() for reuse across callers. Nil if not a request
	// or parsing failed.
	ParsedParams map[string]interface{}
}

// IsRequest returns true if the message is a JSON-RPC request.
func (m *Message) IsRequest() bool {
	if m.Decoded == nil {
		return false
	}
	_, ok := m.Decoded.(*jsonrpc.Request)
	return ok
}

// IsResponse returns true if the message is a JSON-RPC response.
func (m *Message) IsResponse() bool {
	if m.Decoded == nil {
		return false
	}
	_, ok := m.Decoded.(*jsonrpc.Response)
	return ok
}

// Method returns the method name if this is a request, empty string otherwise.
func (m *Message) Method() string {
	if m.Decoded == nil {
		return ""
	}
	req, ok := m.Decoded.(*jsonrpc.Request)
	if !ok {
		return ""
	}
	return req.Method
}

// IsToolCall returns true if this is a tools/call request.
func (m *Message) IsToolCall() bool {
	return m.Method() == "tools/call"
}

// Request returns the underlying Request if this is a request message.
// Returns nil if this is not a request.
func (m *Message) Request() *jsonrpc.Request {
	if m.Decoded == nil {
		return nil
	}
	req, _ := m.Decoded.(*jsonrpc.Request)
	return req
}

// Response returns the underlying Response if this is a response message.
// Returns nil if this is not a response.
func (m *Message) Response() *jsonrpc.Response {
	if m.Decoded == nil {
		return nil
	}
	resp, _ := m.Decoded.(*jsonrpc.Response)
	return resp
}

// ParseParams parses the request params and stores in ParsedParams. Safe
// to call multiple times (no-op if already parsed). Returns the parsed
// params or nil if not a request or parsing fails.
func (m *Message) ParseParams() map[string]interface{} {
	if m.ParsedParams != nil {
		return m.ParsedParams
	}

	req := m.Request()
	if req == nil || req.Params == nil {
		return nil
	}

	var params map[string]interface{}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil
	}

	m.ParsedParams = params
	return params
}

// RawID extracts the request ID from the raw message bytes as
// json.RawMessage. The SDK's jsonrpc.ID type doesn't marshal correctly
// through interface{}, so the ID is extracted directly from the raw JSON.
// Returns nil if no ID is found or if the message is not a request.
func (m *Message) RawID() json.RawMessage {
	if m.Raw == nil {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(m.Raw, &raw); err != nil {
		return nil
	}

	return raw["id"]
}
