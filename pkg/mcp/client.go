package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"infraops/pkg/config"
	"infraops/pkg/logx"
)

// maxDeadRespawns is how many consecutive dead-session discoveries we
// tolerate before abandoning persistent mode for the process lifetime.
const maxDeadRespawns = 3

// Client invokes the Terraform MCP server subprocess. Two lifecycle modes:
//
//   - ephemeral: a fresh subprocess per call, torn down unconditionally after
//     the call completes
//   - persistent: one long-lived subprocess reused across calls, probed for
//     liveness and respawned before reuse; repeated exits trigger automatic
//     fallback to ephemeral mode
//
// Calls are serialized internally: the protocol channel is a single pipe
// pair and cannot carry interleaved requests from different domains.
type Client struct {
	cfg    config.MCPConfig
	logger *logx.Logger

	// callCh serializes access to the persistent session across domains.
	callCh chan struct{}

	persistent     *session
	deadRespawns   int
	forceEphemeral bool
}

// NewClient creates an MCP client for the configured subprocess.
func NewClient(cfg *config.MCPConfig) *Client {
	c := &Client{
		cfg:    *cfg,
		logger: logx.NewLogger("mcp"),
		callCh: make(chan struct{}, 1),
	}
	c.callCh <- struct{}{}
	return c
}

// CallTool invokes one engine tool and returns its text payload. Every
// failure mode (launch, handshake, protocol, tool error) surfaces as
// *ExecError for the retry layer.
func (c *Client) CallTool(ctx context.Context, tool string, args map[string]any) (string, error) {
	select {
	case <-c.callCh:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { c.callCh <- struct{}{} }()

	if c.cfg.Persistent && !c.forceEphemeral {
		return c.callPersistent(tool, args)
	}
	return c.callEphemeral(tool, args)
}

// Ping verifies the engine subprocess is alive and reachable.
func (c *Client) Ping(ctx context.Context) (string, error) {
	return c.CallTool(ctx, "ping", map[string]any{})
}

// ListTools returns the tool descriptors exposed by the engine subprocess.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	select {
	case <-c.callCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { c.callCh <- struct{}{} }()

	run := func(s *session) ([]ToolInfo, error) {
		raw, err := s.call("tools/list", map[string]any{})
		if err != nil {
			return nil, execErr("tools/list", err)
		}
		var result struct {
			Tools []ToolInfo `json:"tools"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, execErr("tools/list", err)
		}
		return result.Tools, nil
	}

	if c.cfg.Persistent && !c.forceEphemeral {
		s, err := c.ensurePersistent()
		if err != nil {
			return nil, err
		}
		return run(s)
	}

	s, err := startSession(&c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	defer s.close()
	return run(s)
}

func (c *Client) callEphemeral(tool string, args map[string]any) (string, error) {
	s, err := startSession(&c.cfg, c.logger)
	if err != nil {
		return "", err
	}
	defer s.close()
	return callOn(s, tool, args)
}

func (c *Client) callPersistent(tool string, args map[string]any) (string, error) {
	s, err := c.ensurePersistent()
	if err != nil {
		if c.forceEphemeral {
			c.logger.Warn("persistent session unavailable, using ephemeral subprocess")
			return c.callEphemeral(tool, args)
		}
		return "", err
	}

	out, err := callOn(s, tool, args)
	if err != nil && !s.alive() {
		// The process died mid-call; drop the handle so the next call
		// respawns instead of writing into a dead pipe.
		c.persistent = nil
	}
	return out, err
}

// ensurePersistent returns a live persistent session, respawning a dead one.
// After maxDeadRespawns consecutive failures the client flips to ephemeral
// mode permanently.
func (c *Client) ensurePersistent() (*session, error) {
	if c.persistent != nil {
		if c.persistent.alive() {
			c.deadRespawns = 0
			return c.persistent, nil
		}
		c.logger.Warn("persistent engine subprocess exited, respawning")
		c.persistent.close()
		c.persistent = nil
		c.deadRespawns++
	}

	if c.deadRespawns >= maxDeadRespawns {
		c.forceEphemeral = true
		c.logger.Warn("persistent subprocess exited %d times, falling back to ephemeral mode", c.deadRespawns)
		return nil, execErr("respawn", fmt.Errorf("persistent mode abandoned after %d dead sessions", c.deadRespawns))
	}

	s, err := startSession(&c.cfg, c.logger)
	if err != nil {
		c.deadRespawns++
		if c.deadRespawns >= maxDeadRespawns {
			c.forceEphemeral = true
			c.logger.Warn("persistent subprocess failed to start %d times, falling back to ephemeral mode", c.deadRespawns)
		}
		return nil, err
	}
	c.persistent = s
	return s, nil
}

// Close tears down the persistent session, if any.
func (c *Client) Close() {
	<-c.callCh
	defer func() { c.callCh <- struct{}{} }()
	if c.persistent != nil {
		c.persistent.close()
		c.persistent = nil
	}
}

// callOn runs tools/call on a session and unwraps the result payload.
func callOn(s *session, tool string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := s.call("tools/call", toolCallParams{Name: tool, Arguments: args})
	if err != nil {
		return "", execErr("tools/call "+tool, err)
	}

	text, isError, err := extractText(raw)
	if err != nil {
		return "", execErr("tools/call "+tool, err)
	}
	if isError {
		return "", execErr("tools/call "+tool, errors.New(text))
	}
	return text, nil
}
