// Package dispatch executes routed intents against the tool registry and
// decides which intents need explicit user confirmation first.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"infraops/pkg/logx"
	"infraops/pkg/tools"
)

// UnknownToolError marks an intent naming a tool absent from the registry.
// Dispatch fails closed: no handler runs.
type UnknownToolError struct {
	Tool string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Tool)
}

// Recorder receives one observation per dispatched tool execution.
type Recorder interface {
	RecordDispatch(tool string, err error, elapsed time.Duration)
}

// Auditor persists an execution record. Audit failures are logged, never
// propagated; the tool result already happened.
type Auditor interface {
	RecordExecution(ctx context.Context, tool string, args map[string]any, result string, execErr error) error
}

// Dispatcher resolves intents to registered handlers.
type Dispatcher struct {
	registry *tools.Registry
	recorder Recorder
	auditor  Auditor
	logger   *logx.Logger
}

// New builds a dispatcher. recorder and auditor may be nil.
func New(registry *tools.Registry, recorder Recorder, auditor Auditor) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		recorder: recorder,
		auditor:  auditor,
		logger:   logx.NewLogger("dispatch"),
	}
}

// Dispatch runs the intent's tool and returns its textual result. Handler
// errors propagate unchanged so callers can distinguish validation failures
// from execution failures.
func (d *Dispatcher) Dispatch(ctx context.Context, intent tools.Intent) (string, error) {
	tool, ok := d.registry.Get(intent.Tool)
	if !ok {
		return "", &UnknownToolError{Tool: intent.Tool}
	}

	start := time.Now()
	result, err := tool.Exec(ctx, intent.Args)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Warn("tool %s failed after %s: %v", intent.Tool, elapsed.Round(time.Millisecond), err)
	} else {
		d.logger.Info("tool %s completed in %s", intent.Tool, elapsed.Round(time.Millisecond))
	}

	if d.recorder != nil {
		d.recorder.RecordDispatch(intent.Tool, err, elapsed)
	}
	if d.auditor != nil {
		if auditErr := d.auditor.RecordExecution(ctx, intent.Tool, intent.Args, result, err); auditErr != nil {
			d.logger.Error("audit write for %s failed: %v", intent.Tool, auditErr)
		}
	}
	return result, err
}
