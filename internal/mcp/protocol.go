// JSON-RPC envelope types.

package mcp

import (
	"bytes"
	"encoding/json"
)

// ProtocolVersion is the MCP revision the server speaks.
const ProtocolVersion = "2024-11-05"

// ServerName is reported in the initialize response.
const ServerName = "pxmcp"

// Request is an incoming JSON-RPC request. JSONRPC and Method are pointers so
// that a missing member can be told apart from an empty one.
type Request struct {
	JSONRPC *string         `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC response. Errors are reported inside
// Result, never as a JSON-RPC error member.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

// parseRequest decodes one line. It returns false when the line is not a
// usable request.
func parseRequest(line []byte) (*Request, bool) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, false
	}
	if req.JSONRPC == nil || req.Method == nil {
		return nil, false
	}
	return &req, true
}

// isNotification reports whether the request expects no response.
func (r *Request) isNotification() bool {
	return isNull(r.ID)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type callParams struct {
	Name      string
	HasName   bool
	Arguments map[string]any
}

// parseCallParams extracts tools/call params. Numbers are kept as
// json.Number. ok is false when params is absent or null.
func parseCallParams(raw json.RawMessage) (p callParams, ok bool) {
	if isNull(raw) {
		return p, false
	}
	var v any
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return p, false
	}
	obj, _ := v.(map[string]any)
	p.Name, p.HasName = obj["name"].(string)
	if args, isObj := obj["arguments"].(map[string]any); isObj {
		p.Arguments = args
	} else {
		p.Arguments = map[string]any{}
	}
	return p, true
}
