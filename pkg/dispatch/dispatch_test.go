package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"infraops/pkg/tools"
)

type staticTool struct {
	name   string
	result string
	err    error
	calls  int
}

func (s *staticTool) Name() string        { return s.name }
func (s *staticTool) Description() string { return "static test tool" }

func (s *staticTool) Exec(context.Context, map[string]any) (string, error) {
	s.calls++
	return s.result, s.err
}

type captureRecorder struct {
	tool string
	err  error
}

func (c *captureRecorder) RecordDispatch(tool string, err error, _ time.Duration) {
	c.tool, c.err = tool, err
}

func TestDispatchRunsHandler(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &staticTool{name: "greet", result: "hello"}
	registry.MustRegister(tool)

	d := New(registry, nil, nil)
	out, err := d.Dispatch(context.Background(), tools.Intent{Tool: "greet"})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if out != "hello" || tool.calls != 1 {
		t.Errorf("handler not invoked correctly: out=%q calls=%d", out, tool.calls)
	}
}

func TestDispatchUnknownToolFailsClosed(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &staticTool{name: "greet"}
	registry.MustRegister(tool)

	d := New(registry, nil, nil)
	_, err := d.Dispatch(context.Background(), tools.Intent{Tool: "doesNotExist"})

	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
	if unknown.Tool != "doesNotExist" {
		t.Errorf("unexpected tool in error: %s", unknown.Tool)
	}
	if tool.calls != 0 {
		t.Error("no handler should run for an unknown tool")
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	registry := tools.NewRegistry()
	handlerErr := errors.New("terraform apply failed")
	registry.MustRegister(&staticTool{name: "flaky", err: handlerErr})

	rec := &captureRecorder{}
	d := New(registry, rec, nil)

	_, err := d.Dispatch(context.Background(), tools.Intent{Tool: "flaky"})
	if !errors.Is(err, handlerErr) {
		t.Errorf("expected handler error to propagate, got %v", err)
	}
	if rec.tool != "flaky" || rec.err == nil {
		t.Errorf("recorder not notified of failure: %+v", rec)
	}
}

func TestRequiresConfirmation(t *testing.T) {
	destructive := []string{
		tools.ToolCreateS3Bucket,
		tools.ToolDestroyS3Bucket,
		tools.ToolCreateEC2Instance,
		tools.ToolDestroyEC2Instance,
		tools.ToolCreateLambdaFunction,
		tools.ToolDestroyLambdaFunction,
		tools.ToolBatchCreate,
	}
	for _, name := range destructive {
		if !RequiresConfirmation(tools.Intent{Tool: name}) {
			t.Errorf("%s must require confirmation", name)
		}
	}

	safe := []string{tools.ToolEcho, tools.ToolPing, tools.ToolGetLogs, tools.ToolGetMetrics,
		tools.ToolGetTickets, tools.ToolCreateTicket, tools.ToolCheckHealth}
	for _, name := range safe {
		if RequiresConfirmation(tools.Intent{Tool: name}) {
			t.Errorf("%s must not require confirmation", name)
		}
	}
}

func TestConfirmationPromptIncludesArgs(t *testing.T) {
	prompt := ConfirmationPrompt(tools.Intent{
		Tool: tools.ToolDestroyS3Bucket,
		Args: map[string]any{"bucket_name": "old-logs"},
	})
	if !strings.Contains(prompt, tools.ToolDestroyS3Bucket) || !strings.Contains(prompt, "bucket_name=old-logs") {
		t.Errorf("prompt missing detail: %s", prompt)
	}
}
