package logs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rag-keeper/internal/models"
	"rag-keeper/internal/rpc"
)

func TestFetchTail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/keeper/api/v1/processes/rag-backend/logs" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(models.ErrorResponse{Code: "process.notexist", Error: "no such process"})
			return
		}
		if r.URL.Query().Get("stream") != "err" || r.URL.Query().Get("lines") != "2" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(models.LogTail{
			Name:   "rag-backend",
			Stream: "err",
			File:   "/tmp/rag-backend-error.log",
			Lines:  []string{"Traceback", "KeyError: 'AWS_REGION'"},
		})
	}))
	defer server.Close()

	client := rpc.NewHTTPClient(&rpc.HTTPConfig{Network: "tcp", Timeout: 5 * time.Second, BaseURL: server.URL})
	defer client.Close()

	tail, err := fetchTail(client, "rag-backend", "err", 2)
	if err != nil {
		t.Fatalf("fetchTail failed: %v", err)
	}
	var buf bytes.Buffer
	printTail(&buf, tail)
	want := "==> /tmp/rag-backend-error.log <==\nTraceback\nKeyError: 'AWS_REGION'\n"
	if buf.String() != want {
		t.Errorf("printTail = %q, want %q", buf.String(), want)
	}

	_, err = fetchTail(client, "missing", "out", 10)
	if err == nil || !strings.Contains(err.Error(), "process.notexist") {
		t.Errorf("expected process.notexist error, got %v", err)
	}
}
