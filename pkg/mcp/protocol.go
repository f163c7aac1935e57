// Package mcp implements a client for the Terraform MCP (Model Context
// Protocol) server: a subprocess speaking line-delimited JSON-RPC 2.0 over
// its standard input/output streams.
package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
)

const protocolVersion = "2024-11-05"

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"` // nil for notifications
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is a JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ToolInfo describes one tool exposed by the server.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// toolCallParams is the payload for tools/call.
type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// toolResult is the shape of a tools/call result.
type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// extractText flattens a tools/call result into its text payload. Falls back
// to the raw JSON when the result carries no text content.
func extractText(raw json.RawMessage) (string, bool, error) {
	var result toolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", false, fmt.Errorf("malformed tool result: %w", err)
	}

	var sb strings.Builder
	for i := range result.Content {
		if result.Content[i].Type == "text" {
			sb.WriteString(result.Content[i].Text)
		}
	}
	text := sb.String()
	if text == "" {
		text = string(raw)
	}
	return text, result.IsError, nil
}

// ExecError is the single error type surfaced for any subprocess channel
// failure: launch, handshake, protocol, or tool-reported errors. The retry
// layer treats them all uniformly.
type ExecError struct {
	Op  string
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("mcp %s: %v", e.Op, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func execErr(op string, err error) *ExecError {
	return &ExecError{Op: op, Err: err}
}
