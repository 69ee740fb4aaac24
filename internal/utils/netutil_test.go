package utils

import (
	"net"
	"testing"
)

func TestCheckAddrAvailable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()

	if err := CheckAddrAvailable(addr); err == nil {
		t.Errorf("expected %s to be reported busy", addr)
	}
	l.Close()
	if err := CheckAddrAvailable(addr); err != nil {
		t.Errorf("expected %s to be free after close: %v", addr, err)
	}
	if err := CheckAddrAvailable("no-port"); err == nil {
		t.Error("expected an error for an address without port")
	}
}
