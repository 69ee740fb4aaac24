package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"rag-keeper/internal/models"
)

func testEvent(name string, t models.EventType) models.Event {
	return models.Event{
		ID:         uuid.New().String(),
		Type:       t,
		Name:       name,
		Status:     models.StatusRunning,
		OccurredAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// blockingSink 在release关闭前阻塞Send
type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []models.Event
	closed  bool
}

func (s *blockingSink) Send(_ context.Context, e models.Event) error {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, e)
	return nil
}

func (s *blockingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type failingSink struct{}

func (failingSink) Send(context.Context, models.Event) error { return errors.New("boom") }
func (failingSink) Close() error                             { return nil }

func TestRecorderDeliversToEverySink(t *testing.T) {
	mem := NewMemorySink(10)
	other := NewMemorySink(10)
	r := NewRecorder(16, failingSink{}, mem, other)

	for i := 0; i < 5; i++ {
		r.Record(testEvent("rag-backend", models.EventStart))
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n := len(mem.Events("rag-backend", 0)); n != 5 {
		t.Errorf("memory sink got %d events, want 5", n)
	}
	if n := len(other.Events("rag-backend", 0)); n != 5 {
		t.Errorf("second sink got %d events, want 5", n)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	r := NewRecorder(2, sink)

	// 第一个事件被worker取走后阻塞在Send，缓冲区再放2个
	r.Record(testEvent("a", models.EventStart))
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.Record(testEvent("a", models.EventExit))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}
	if r.Dropped() == 0 {
		t.Error("expected dropped events")
	}

	close(sink.release)
	r.Close()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if !sink.closed {
		t.Error("sink was not closed")
	}
	if int64(len(sink.got))+r.Dropped() != 11 {
		t.Errorf("delivered %d + dropped %d != 11", len(sink.got), r.Dropped())
	}
}

func TestRecorderRecordAfterClose(t *testing.T) {
	r := NewRecorder(4)
	r.Close()
	r.Record(testEvent("late", models.EventStop))
	if err := r.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestMemorySinkKeepsRecent(t *testing.T) {
	m := NewMemorySink(3)
	ctx := context.Background()
	for _, typ := range []models.EventType{models.EventStart, models.EventExit, models.EventRestart, models.EventStart, models.EventStop} {
		m.Send(ctx, testEvent("frontend", typ))
	}
	m.Send(ctx, testEvent("other", models.EventStart))

	got := m.Events("frontend", 0)
	if len(got) != 3 {
		t.Fatalf("kept %d events, want 3", len(got))
	}
	if got[0].Type != models.EventRestart || got[2].Type != models.EventStop {
		t.Errorf("unexpected order: %v %v %v", got[0].Type, got[1].Type, got[2].Type)
	}
	if last := m.Events("frontend", 1); len(last) != 1 || last[0].Type != models.EventStop {
		t.Errorf("limit 1 returned %+v", last)
	}
	m.Forget("frontend")
	if len(m.Events("frontend", 0)) != 0 {
		t.Error("Forget kept events")
	}
	if len(m.Events("other", 0)) != 1 {
		t.Error("events of another process were lost")
	}
}

func TestFileSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history", "events.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	first := testEvent("rag-backend", models.EventStart)
	second := testEvent("rag-backend", models.EventExit)
	second.ExitCode = 3
	sink.Send(context.Background(), first)
	sink.Send(context.Background(), second)
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var got []models.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e models.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %q is not JSON: %v", scanner.Text(), err)
		}
		got = append(got, e)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ExitCode != 3 {
		t.Errorf("unexpected events: %+v", got)
	}
}

func TestPostgresSink(t *testing.T) {
	dsn := os.Getenv("KEEPER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KEEPER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	sink, err := NewPostgresSink(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresSink failed: %v", err)
	}
	defer sink.Close()

	name := "pg-test-" + uuid.NewString()
	start := testEvent(name, models.EventStart)
	exit := testEvent(name, models.EventExit)
	exit.OccurredAt = start.OccurredAt.Add(time.Second)
	exit.ExitCode = 1
	for _, e := range []models.Event{start, exit, start} {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	got, err := sink.Recent(ctx, name, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2 (duplicate ids are ignored)", len(got))
	}
	if got[0].ID != start.ID || got[1].Type != models.EventExit || got[1].ExitCode != 1 {
		t.Errorf("unexpected rows: %+v", got)
	}
	sink.pool.Exec(ctx, `DELETE FROM keeper_process_events WHERE name = $1`, name)
}
