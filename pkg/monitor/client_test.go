package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/logs":
			_, _ = w.Write([]byte(`{"logs":[{"resource_id":"` + r.URL.Query().Get("resource_id") + `"}]}`))
		case r.URL.Path == "/tickets" && r.Method == http.MethodPost:
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"t-1","title":"` + payload["title"] + `"}`))
		case r.URL.Path == "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, NewClient(server.URL, 5*time.Second)
}

func TestGetLogsPassesResourceID(t *testing.T) {
	_, client := newTestServer(t)

	out, err := client.GetLogs(context.Background(), "res_vm_001")
	if err != nil {
		t.Fatalf("GetLogs failed: %v", err)
	}
	if !strings.Contains(out, "res_vm_001") {
		t.Errorf("expected resource id echoed, got %s", out)
	}
}

func TestCreateTicket(t *testing.T) {
	_, client := newTestServer(t)

	out, err := client.CreateTicket(context.Background(), "disk full", "node-3 at 95%")
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if !strings.Contains(out, "disk full") {
		t.Errorf("expected ticket title echoed, got %s", out)
	}
}

func TestHealth(t *testing.T) {
	_, client := newTestServer(t)

	out, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("unexpected health payload %s", out)
	}
}

func TestErrorStatusSurfacesImmediately(t *testing.T) {
	_, client := newTestServer(t)

	_, err := client.GetMetrics(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestUnreachableService(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := client.GetTickets(context.Background())
	if err == nil {
		t.Fatal("expected error for unreachable service")
	}
}
