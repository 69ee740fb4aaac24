package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rag-keeper/internal/config"
)

func TestTailFile(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 1; i <= 3000; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	path := filepath.Join(dir, "big.log")
	os.WriteFile(path, []byte(b.String()), 0644)

	tests := []struct {
		name  string
		n     int
		first string
		count int
	}{
		{"few lines", 3, "line 2998", 3},
		{"crosses chunks", 2000, "line 1001", 2000},
		{"more than the file", 5000, "line 1", 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tailFile(path, tt.n)
			if err != nil {
				t.Fatalf("tailFile failed: %v", err)
			}
			if len(got) != tt.count || got[0] != tt.first || got[len(got)-1] != "line 3000" {
				t.Errorf("got %d lines, first %q last %q", len(got), got[0], got[len(got)-1])
			}
		})
	}

	noNewline := filepath.Join(dir, "partial.log")
	os.WriteFile(noNewline, []byte("a\nb\npartial"), 0644)
	got, _ := tailFile(noNewline, 2)
	if strings.Join(got, ",") != "b,partial" {
		t.Errorf("got %q", got)
	}

	empty := filepath.Join(dir, "empty.log")
	os.WriteFile(empty, nil, 0644)
	if got, err := tailFile(empty, 10); err != nil || len(got) != 0 {
		t.Errorf("empty file: %q %v", got, err)
	}
}

func TestLogServiceTail(t *testing.T) {
	dir := t.TempDir()
	spec := config.AppSpec{
		Name:      "rag-backend",
		OutFile:   filepath.Join(dir, "out.log"),
		ErrorFile: filepath.Join(dir, "err.log"),
	}
	os.WriteFile(spec.OutFile, []byte("started\nserving\n"), 0644)
	ls := NewLogService(NewProcessManager([]config.AppSpec{spec}, nil))

	tail, err := ls.Tail("rag-backend", "", 0)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if tail.Stream != StreamOut || tail.File != spec.OutFile || strings.Join(tail.Lines, ",") != "started,serving" {
		t.Errorf("unexpected tail: %+v", tail)
	}

	// error_file还没创建
	tail, err = ls.Tail("rag-backend", StreamErr, 10)
	if err != nil || len(tail.Lines) != 0 || tail.File != spec.ErrorFile {
		t.Errorf("missing file: %+v %v", tail, err)
	}

	if _, err := ls.Tail("rag-backend", "both", 10); !errors.Is(err, ErrInvalidStream) {
		t.Errorf("expected ErrInvalidStream, got %v", err)
	}
	if _, err := ls.Tail("ghost", StreamOut, 10); !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("expected ErrProcessNotFound, got %v", err)
	}
}
