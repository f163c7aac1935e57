package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"

	"infraops/pkg/config"
	"infraops/pkg/logx"
)

// session is one running MCP server subprocess with an initialized protocol
// channel. Sessions are single-threaded: the owner must serialize calls.
type session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	nextID atomic.Int64
	exited chan struct{} // closed when the process exits
	logger *logx.Logger
}

// startSession launches the configured subprocess, wires its pipes, and
// performs the MCP initialize handshake. Stderr is streamed to the logger so
// engine output stays out of the protocol channel.
func startSession(cfg *config.MCPConfig, logger *logx.Logger) (*session, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)

	env := os.Environ()
	if cfg.CredentialsFile != "" {
		env = append(env, "AWS_SHARED_CREDENTIALS_FILE="+cfg.CredentialsFile)
	}
	if cfg.TerraformDir != "" {
		env = append(env, "TERRAFORM_DIR="+cfg.TerraformDir)
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, execErr("launch", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, execErr("launch", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, execErr("launch", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, execErr("launch", err)
	}

	s := &session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		exited: make(chan struct{}),
		logger: logger,
	}

	go s.drainStderr(stderr)
	go func() {
		_ = cmd.Wait()
		close(s.exited)
	}()

	if err := s.handshake(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.logger.Debug("engine: %s", scanner.Text())
	}
}

// alive reports whether the subprocess is still running.
func (s *session) alive() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// close tears the subprocess down unconditionally.
func (s *session) close() {
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	<-s.exited
}

// handshake performs initialize plus the initialized notification.
func (s *session) handshake() error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "infraops",
			"version": "1.0.0",
		},
	}
	if _, err := s.call("initialize", params); err != nil {
		return execErr("handshake", err)
	}
	if err := s.notify("notifications/initialized"); err != nil {
		return execErr("handshake", err)
	}
	return nil
}

// call issues one request and blocks until its response arrives. An in-flight
// call runs to completion; cancellation is handled above this layer.
func (s *session) call(method string, params any) (json.RawMessage, error) {
	id := s.nextID.Add(1)
	req := rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}
	if err := s.write(&req); err != nil {
		return nil, err
	}

	for {
		line, err := s.stdout.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("malformed response line: %w", err)
		}

		// Servers may interleave notifications; skip anything that is
		// not the response to our request.
		var respID int64
		if len(resp.ID) == 0 || json.Unmarshal(resp.ID, &respID) != nil || respID != id {
			continue
		}

		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// notify sends a request without an ID and expects no response.
func (s *session) notify(method string) error {
	return s.write(&rpcRequest{JSONRPC: "2.0", Method: method})
}

func (s *session) write(req *rpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.stdin.Write(data); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}
