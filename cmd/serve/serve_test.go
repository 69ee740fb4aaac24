package serve

import (
	"os"
	"path/filepath"
	"testing"

	"rag-keeper/internal/config"
)

func TestBuildOptions(t *testing.T) {
	dir := t.TempDir()

	opts, addr, err := buildOptions(dir, "5173", 0)
	if err != nil {
		t.Fatalf("buildOptions failed: %v", err)
	}
	if addr != ":5173" {
		t.Errorf("addr = %q, want :5173", addr)
	}
	if opts.Root != dir {
		t.Errorf("root = %q, want %q", opts.Root, dir)
	}
	if opts.Page.Title != config.DefaultTitle {
		t.Errorf("title = %q, want default", opts.Page.Title)
	}

	_, addr, err = buildOptions(dir, "", 5174)
	if err != nil || addr != ":5174" {
		t.Errorf("-p: addr = %q, err = %v", addr, err)
	}

	file := filepath.Join(dir, "index.html")
	if err := os.WriteFile(file, []byte("<html></html>"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := buildOptions(file, "", 8080); err == nil {
		t.Error("expected error for a file")
	}
	if _, _, err := buildOptions(filepath.Join(dir, "missing"), "", 8080); err == nil {
		t.Error("expected error for a missing directory")
	}
	if _, _, err := buildOptions(dir, "70000", 0); err == nil {
		t.Error("expected error for an invalid port")
	}
}
