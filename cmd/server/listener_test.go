//go:build unix

package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateListeners(t *testing.T) {
	dir, err := os.MkdirTemp("", "keeper")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "keeper.sock")
	// 残留的socket文件
	os.WriteFile(socket, nil, 0600)

	listeners, err := CreateListeners([]ListenAddr{
		{Network: "tcp", Address: "127.0.0.1:0"},
		{Network: "unix", Address: socket},
		{Network: "tcp", Address: "not-an-address"},
	})
	if err == nil {
		t.Error("expected error for the invalid address")
	}
	if len(listeners) != 2 {
		t.Fatalf("created %d listeners, want 2", len(listeners))
	}
	for _, l := range listeners {
		l.Close()
	}
	if !IsUnixSocketSupported() {
		t.Error("unix sockets are supported on unix")
	}
}
