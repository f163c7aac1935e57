package session

import (
	"context"
	"strings"
	"sync"
	"testing"

	"infraops/pkg/dispatch"
	"infraops/pkg/locker"
	"infraops/pkg/router"
	"infraops/pkg/tools"
)

type recordingInvoker struct {
	mu    sync.Mutex
	calls []string
	reply string
	err   error
}

func (r *recordingInvoker) Invoke(_ context.Context, _ locker.Domain, tool string, _ map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tool)
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

func (r *recordingInvoker) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestService(t *testing.T, inv *recordingInvoker) *Service {
	t.Helper()
	registry := tools.NewRegistry()
	registry.MustRegister(&tools.EchoTool{})
	registry.MustRegister(tools.NewPingTool(inv))
	registry.MustRegister(tools.NewCreateS3BucketTool(inv))
	registry.MustRegister(tools.NewDestroyS3BucketTool(inv))

	rt := router.New(registry, nil)
	d := dispatch.New(registry, nil, nil)
	return NewService(rt, d, nil)
}

func TestPhaseOneSafeToolExecutesImmediately(t *testing.T) {
	s := newTestService(t, &recordingInvoker{})
	out := s.HandleRaw(context.Background(), []byte(`{"message": "echo hello"}`))
	if out.Error != "" || out.NeedsConfirmation {
		t.Fatalf("unexpected response: %+v", out)
	}
	if out.Reply != "echo hello" {
		t.Errorf("expected echoed text, got %q", out.Reply)
	}
}

func TestPhaseOneDestructiveToolHeld(t *testing.T) {
	inv := &recordingInvoker{reply: "bucket created"}
	s := newTestService(t, inv)

	out := s.HandleRaw(context.Background(), []byte(`{"message": "create an S3 bucket named demo-assets"}`))
	if !out.NeedsConfirmation {
		t.Fatalf("expected confirmation request, got %+v", out)
	}
	if out.Intent == nil || out.Intent.Tool != tools.ToolCreateS3Bucket {
		t.Fatalf("held intent wrong: %+v", out.Intent)
	}
	if out.Intent.Args["bucket_name"] != "demo-assets" {
		t.Errorf("held args wrong: %+v", out.Intent.Args)
	}
	if out.Message == "" {
		t.Error("confirmation request needs a human-readable message")
	}
	if inv.callCount() != 0 {
		t.Error("nothing may execute before confirmation")
	}
}

func TestPhaseTwoRoundTrip(t *testing.T) {
	inv := &recordingInvoker{reply: "bucket created"}
	s := newTestService(t, inv)

	// Phase 1 holds the intent.
	held := s.HandleRaw(context.Background(), []byte(`{"message": "create an S3 bucket named demo-assets"}`))
	if held.Intent == nil {
		t.Fatalf("no held intent: %+v", held)
	}

	// Phase 2 echoes it back confirmed.
	out := s.Handle(context.Background(), Inbound{Intent: held.Intent, UserConfirmed: true})
	if out.Error != "" {
		t.Fatalf("confirmed execution failed: %s", out.Error)
	}
	if out.Reply != "bucket created" {
		t.Errorf("unexpected reply %q", out.Reply)
	}
	if inv.callCount() != 1 || inv.calls[0] != "create_s3_bucket" {
		t.Errorf("engine not called as proposed: %v", inv.calls)
	}
}

func TestPhaseTwoRequiresExplicitFlag(t *testing.T) {
	inv := &recordingInvoker{}
	s := newTestService(t, inv)

	intent := &tools.Intent{Tool: tools.ToolDestroyS3Bucket, Args: map[string]any{"bucket_name": "x"}}

	out := s.Handle(context.Background(), Inbound{Intent: intent})
	if out.Error == "" {
		t.Error("missing userConfirmed must be rejected")
	}
	out = s.Handle(context.Background(), Inbound{Intent: intent, UserConfirmed: false})
	if out.Error == "" {
		t.Error("userConfirmed=false must be rejected")
	}
	if inv.callCount() != 0 {
		t.Error("nothing may execute without confirmation")
	}
}

func TestPhaseTwoUnknownToolFailsClosed(t *testing.T) {
	s := newTestService(t, &recordingInvoker{})
	out := s.Handle(context.Background(), Inbound{
		Intent:        &tools.Intent{Tool: "doesNotExist"},
		UserConfirmed: true,
	})
	if !strings.Contains(out.Error, "unknown tool") {
		t.Errorf("expected unknown tool error, got %+v", out)
	}
}

func TestMalformedMessages(t *testing.T) {
	s := newTestService(t, &recordingInvoker{})
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{}`),
		[]byte(`{"unrelated": true}`),
		[]byte(`42`),
	}
	for _, raw := range cases {
		out := s.HandleRaw(context.Background(), raw)
		if out.Error != "Invalid message format" {
			t.Errorf("HandleRaw(%s) = %+v, want protocol error", raw, out)
		}
	}
}

func TestToolFailureBecomesErrorReply(t *testing.T) {
	inv := &recordingInvoker{err: context.DeadlineExceeded}
	s := newTestService(t, inv)

	out := s.HandleRaw(context.Background(), []byte(`{"message": "ping"}`))
	if out.Error == "" || out.Reply != "" {
		t.Errorf("expected error reply, got %+v", out)
	}
}
