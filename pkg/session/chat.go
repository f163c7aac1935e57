// Package session carries conversations in and results out. It owns the
// two-phase confirmation flow end to end: free text becomes an intent, the
// intent is either executed or held for confirmation, and the caller echoes
// held intents back with an explicit confirmation flag.
package session

import (
	"context"
	"encoding/json"
	"errors"

	"infraops/pkg/dispatch"
	"infraops/pkg/logx"
	"infraops/pkg/router"
	"infraops/pkg/tools"
)

// Inbound is either a phase-1 message or a phase-2 confirmation. The two
// shapes are distinguished by which fields are present.
type Inbound struct {
	Message       *string       `json:"message,omitempty"`
	Intent        *tools.Intent `json:"intent,omitempty"`
	UserConfirmed bool          `json:"userConfirmed,omitempty"`
}

// Outbound is exactly one of a reply, a confirmation request, or an error.
type Outbound struct {
	Reply             string        `json:"reply,omitempty"`
	NeedsConfirmation bool          `json:"needsConfirmation,omitempty"`
	Intent            *tools.Intent `json:"intent,omitempty"`
	Message           string        `json:"message,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// Observer receives routing and session lifecycle events, for metrics. All
// methods may be called concurrently.
type Observer interface {
	RecordRoute(source router.Source)
	SessionOpened()
	SessionClosed()
}

// Service orchestrates routing, confirmation, and dispatch for one inbound
// message at a time. It holds no per-conversation state: a pending intent
// lives only in the response round-tripped through the client.
type Service struct {
	router     *router.Router
	dispatcher *dispatch.Dispatcher
	observer   Observer
	logger     *logx.Logger
}

// NewService builds the chat service. observer may be nil.
func NewService(rt *router.Router, d *dispatch.Dispatcher, observer Observer) *Service {
	return &Service{
		router:     rt,
		dispatcher: d,
		observer:   observer,
		logger:     logx.NewLogger("session"),
	}
}

// HandleRaw decodes one wire message and produces exactly one response.
// Malformed input yields an error response, never a dropped connection.
func (s *Service) HandleRaw(ctx context.Context, raw []byte) Outbound {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil || (in.Message == nil && in.Intent == nil) {
		return Outbound{Error: "Invalid message format"}
	}
	return s.Handle(ctx, in)
}

// Handle processes one decoded message.
func (s *Service) Handle(ctx context.Context, in Inbound) Outbound {
	if in.Intent != nil {
		return s.handleConfirmation(ctx, in)
	}
	return s.handleMessage(ctx, *in.Message)
}

// handleMessage is phase 1: route, then execute or hold.
func (s *Service) handleMessage(ctx context.Context, message string) Outbound {
	intent, source := s.router.Route(ctx, message)
	if s.observer != nil {
		s.observer.RecordRoute(source)
	}
	s.logger.Info("routed %q to %s (source=%s)", message, intent.Tool, source)

	if dispatch.RequiresConfirmation(intent) {
		return Outbound{
			NeedsConfirmation: true,
			Intent:            &intent,
			Message:           dispatch.ConfirmationPrompt(intent),
		}
	}
	return s.execute(ctx, intent)
}

// handleConfirmation is phase 2: the caller echoes the held intent back. The
// payload is re-validated rather than trusted verbatim, since nothing was
// stored server-side to compare it against.
func (s *Service) handleConfirmation(ctx context.Context, in Inbound) Outbound {
	if !in.UserConfirmed {
		return Outbound{Error: "confirmation required: resend with userConfirmed set to true"}
	}
	if in.Intent.Tool == "" {
		return Outbound{Error: "intent is missing a tool name"}
	}
	intent := *in.Intent
	if intent.Args == nil {
		intent.Args = map[string]any{}
	}
	return s.execute(ctx, intent)
}

func (s *Service) execute(ctx context.Context, intent tools.Intent) Outbound {
	result, err := s.dispatcher.Dispatch(ctx, intent)
	if err != nil {
		var unknown *dispatch.UnknownToolError
		var invalid *tools.ValidationError
		switch {
		case errors.As(err, &unknown):
			return Outbound{Error: unknown.Error()}
		case errors.As(err, &invalid):
			return Outbound{Error: invalid.Error()}
		default:
			return Outbound{Error: "tool execution failed: " + err.Error()}
		}
	}
	return Outbound{Reply: result}
}
