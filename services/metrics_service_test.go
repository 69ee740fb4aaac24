package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"rag-keeper/internal/config"
	"rag-keeper/internal/models"
)

func TestObserveEvent(t *testing.T) {
	starts := processStarts.WithLabelValues("metrics-app")
	exits := processExits.WithLabelValues("metrics-app", "exit")
	failed := processExits.WithLabelValues("metrics-app", "start_failed")
	startsBefore := testutil.ToFloat64(starts)
	exitsBefore := testutil.ToFloat64(exits)
	failedBefore := testutil.ToFloat64(failed)

	ObserveEvent(models.Event{Type: models.EventStart, Name: "metrics-app"})
	ObserveEvent(models.Event{Type: models.EventStop, Name: "metrics-app"})
	ObserveEvent(models.Event{Type: models.EventExit, Name: "metrics-app"})
	ObserveEvent(models.Event{Type: models.EventStartFailed, Name: "metrics-app"})

	if got := testutil.ToFloat64(starts) - startsBefore; got != 1 {
		t.Errorf("starts delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exits) - exitsBefore; got != 1 {
		t.Errorf("exits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 1 {
		t.Errorf("start_failed delta = %v, want 1", got)
	}
}

func TestRequestCounters(t *testing.T) {
	requests, errs := GetTotalRequestCount(), GetTotalErrorCount()
	IncrementRequestCount("/healthz")
	IncrementRequestCount("/healthz")
	IncrementErrorCount("/healthz")
	RecordRequestDuration("/healthz", 0.01)

	if GetTotalRequestCount() != requests+2 || GetTotalErrorCount() != errs+1 {
		t.Errorf("totals = %d/%d", GetTotalRequestCount(), GetTotalErrorCount())
	}
}

func TestProcessCollector(t *testing.T) {
	pm := NewProcessManager([]config.AppSpec{{Name: "frontend"}, {Name: "rag-backend"}}, nil)
	reg := prometheus.NewRegistry()
	if err := registerCollector(reg, NewProcessCollector(pm)); err != nil {
		t.Fatal(err)
	}
	// 重复注册替换旧的collector
	if err := registerCollector(reg, NewProcessCollector(pm)); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}

	expected := `
# HELP keeper_process_up 1 when the managed process is running
# TYPE keeper_process_up gauge
keeper_process_up{name="frontend",status="stopped"} 0
keeper_process_up{name="rag-backend",status="stopped"} 0
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "keeper_process_up"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(NewProcessCollector(pm)); n != 6 {
		t.Errorf("collected %d metrics, want 6", n)
	}
}

func TestPushMetrics(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case got <- r.Method + " " + r.URL.Path:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "keeper_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	cfg := config.MetricsConfig{Pushgateway: srv.URL, Job: "rag-keeper", PushInterval: 1}
	if err := PushMetrics(cfg, reg); err != nil {
		t.Fatalf("PushMetrics failed: %v", err)
	}
	select {
	case req := <-got:
		if req != "PUT /metrics/job/rag-keeper" {
			t.Errorf("unexpected request %q", req)
		}
	case <-time.After(time.Second):
		t.Fatal("pushgateway received nothing")
	}
}
