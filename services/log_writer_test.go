package services

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rag-keeper/internal/config"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
}

func TestTimestampWriterPrefixesCompleteLines(t *testing.T) {
	var buf bytes.Buffer
	w := newTimestampWriter(&buf, "")
	w.now = fixedClock

	w.Write([]byte("first line\nsecond "))
	if got := buf.String(); got != "2025-03-04T05:06:07: first line\n" {
		t.Fatalf("unexpected output after first write: %q", got)
	}

	w.Write([]byte("half\r\nthird"))
	w.Flush()

	want := "2025-03-04T05:06:07: first line\n" +
		"2025-03-04T05:06:07: second half\n" +
		"2025-03-04T05:06:07: third\n"
	if buf.String() != want {
		t.Errorf("got %q\nwant %q", buf.String(), want)
	}
}

func TestTimestampWriterCustomLayout(t *testing.T) {
	var buf bytes.Buffer
	w := newTimestampWriter(&buf, "15:04")
	w.now = fixedClock
	w.Write([]byte("hello\n"))
	if buf.String() != "05:06: hello\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestTimestampWriterSplitsLongLines(t *testing.T) {
	var buf bytes.Buffer
	w := newTimestampWriter(&buf, "15:04")
	w.now = fixedClock

	chunk := strings.Repeat("x", 1000)
	for i := 0; i < 70; i++ {
		w.Write([]byte(chunk))
	}
	if len(w.buffer) >= maxLineLength {
		t.Fatalf("buffer grew to %d bytes", len(w.buffer))
	}
	first := "05:06: " + strings.Repeat("x", maxLineLength) + "\n"
	if buf.String() != first {
		t.Fatalf("expected one split line of %d bytes, got %d bytes", len(first), buf.Len())
	}

	w.Write([]byte("\n"))
	rest := 70*1000 - maxLineLength
	want := first + "05:06: " + strings.Repeat("x", rest) + "\n"
	if buf.String() != want {
		t.Errorf("tail line has %d bytes, want %d", buf.Len()-len(first), len(want)-len(first))
	}
}

func TestOpenOutputsSeparatesStreams(t *testing.T) {
	dir := t.TempDir()
	spec := &config.AppSpec{
		Name:      "rag-backend",
		OutFile:   filepath.Join(dir, "logs", "backend-out.log"),
		ErrorFile: filepath.Join(dir, "logs", "backend-error.log"),
	}
	o, err := openOutputs(spec)
	if err != nil {
		t.Fatalf("openOutputs failed: %v", err)
	}
	o.stdout.Write([]byte("to stdout\n"))
	o.stderr.Write([]byte("to stderr\n"))
	if err := o.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	out, _ := os.ReadFile(spec.OutFile)
	errOut, _ := os.ReadFile(spec.ErrorFile)
	if string(out) != "to stdout\n" {
		t.Errorf("out_file = %q", out)
	}
	if string(errOut) != "to stderr\n" {
		t.Errorf("error_file = %q", errOut)
	}
}

func TestOpenOutputsAppendsWithTimestamps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merged.log")
	if err := os.WriteFile(path, []byte("previous run\n"), 0644); err != nil {
		t.Fatal(err)
	}
	spec := &config.AppSpec{Name: "merged", OutFile: path, ErrorFile: path, Time: true}

	o, err := openOutputs(spec)
	if err != nil {
		t.Fatalf("openOutputs failed: %v", err)
	}
	if len(o.files) != 1 {
		t.Errorf("expected a shared descriptor, got %d files", len(o.files))
	}
	o.stdout.Write([]byte("out line\n"))
	o.stderr.Write([]byte("partial err"))
	o.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 3 || lines[0] != "previous run" {
		t.Fatalf("unexpected content: %q", data)
	}
	if !strings.HasSuffix(lines[1], ": out line") || !strings.HasSuffix(lines[2], ": partial err") {
		t.Errorf("lines not prefixed: %q", lines[1:])
	}
}
