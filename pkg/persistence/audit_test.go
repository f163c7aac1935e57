package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndReadBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	args := map[string]any{"bucket_name": "demo-assets", "aws_region": "us-east-1"}
	if err := store.RecordExecution(ctx, "createS3Bucket", args, "bucket created", nil); err != nil {
		t.Fatalf("RecordExecution failed: %v", err)
	}
	if err := store.RecordExecution(ctx, "ping", nil, "", errors.New("engine down")); err != nil {
		t.Fatalf("RecordExecution failed: %v", err)
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	var create, ping *AuditEntry
	for i := range entries {
		switch entries[i].Tool {
		case "createS3Bucket":
			create = &entries[i]
		case "ping":
			ping = &entries[i]
		}
	}
	if create == nil || ping == nil {
		t.Fatalf("missing entries: %+v", entries)
	}
	if !strings.Contains(create.Args, "demo-assets") {
		t.Errorf("args not serialized: %s", create.Args)
	}
	if create.Error != "" || create.Result != "bucket created" {
		t.Errorf("unexpected create entry: %+v", create)
	}
	if ping.Error != "engine down" {
		t.Errorf("error not recorded: %+v", ping)
	}
	if create.ID == ping.ID || create.ID == "" {
		t.Errorf("entries need distinct non-empty IDs: %q vs %q", create.ID, ping.ID)
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.RecordExecution(ctx, "echo", map[string]any{"i": i}, "ok", nil); err != nil {
			t.Fatalf("RecordExecution failed: %v", err)
		}
	}

	entries, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected limit of 3, got %d", len(entries))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := first.RecordExecution(context.Background(), "echo", nil, "hi", nil); err != nil {
		t.Fatalf("RecordExecution failed: %v", err)
	}
	_ = first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer second.Close()

	entries, err := second.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("data should survive reopen, got %d entries", len(entries))
	}
}
