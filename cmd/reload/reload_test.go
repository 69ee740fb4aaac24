package reload

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"rag-keeper/internal/models"
	"rag-keeper/internal/rpc"
	"rag-keeper/services"
)

func TestReloadServerConfig(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/keeper/api/v1/reload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(models.ErrorResponse{Code: "config.reload_failed", Error: "bad file"})
			return
		}
		json.NewEncoder(w).Encode(services.ReconcileResult{Added: []string{"worker"}, Removed: []string{"old"}})
	}))
	defer server.Close()

	client := rpc.NewHTTPClient(&rpc.HTTPConfig{Network: "tcp", Timeout: 5 * time.Second, BaseURL: server.URL})
	defer client.Close()

	result, err := reloadServerConfig(client)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	var buf bytes.Buffer
	printResult(&buf, result)
	out := buf.String()
	if !strings.Contains(out, "added:   worker") || !strings.Contains(out, "removed: old") || strings.Contains(out, "updated") {
		t.Errorf("unexpected output:\n%s", out)
	}

	fail.Store(true)
	if _, err := reloadServerConfig(client); err == nil || !strings.Contains(err.Error(), "config.reload_failed") {
		t.Errorf("expected config.reload_failed, got %v", err)
	}
}

func TestPrintResultNothingChanged(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, services.ReconcileResult{})
	if !strings.Contains(buf.String(), "nothing changed") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
