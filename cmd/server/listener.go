package server

import (
	"net"
	"os"
	"path/filepath"
	"runtime"

	"rag-keeper/internal/logger"
)

type ListenAddr struct {
	Network string
	Address string
}

/**
 * Test if the system supports Unix socket network type
 * @returns {bool} Returns true if Unix socket is supported, false otherwise
 * @description
 * - Always true outside Windows
 * - On Windows a temporary socket is created and removed
 */
func IsUnixSocketSupported() bool {
	if runtime.GOOS != "windows" {
		return true
	}
	testSocketPath := filepath.Join(os.TempDir(), "rag_keeper_test.sock")
	os.Remove(testSocketPath)

	listener, err := net.Listen("unix", testSocketPath)
	if err != nil {
		return false
	}
	listener.Close()
	os.Remove(testSocketPath)
	return true
}

/**
 * Create listeners for the control API
 * @param {[]ListenAddr} addrs - Addresses to listen on
 * @returns {[]net.Listener} Listeners that could be created
 * @returns {error} Last creation error, nil when all succeeded
 * @description
 * - A stale unix socket file left by a crashed keeper is removed first
 * - Failing addresses are logged and skipped
 */
func CreateListeners(addrs []ListenAddr) ([]net.Listener, error) {
	var listeners []net.Listener
	var lastErr error
	for _, addr := range addrs {
		if addr.Network == "unix" {
			if err := os.Remove(addr.Address); err != nil && !os.IsNotExist(err) {
				logger.Errorf("Failed to remove existing socket file: %v", err)
				lastErr = err
				continue
			}
		}
		l, err := net.Listen(addr.Network, addr.Address)
		if err != nil {
			logger.Errorf("Failed to create listener on %s://%s: %v", addr.Network, addr.Address, err)
			lastErr = err
			continue
		}
		if addr.Network == "unix" {
			// 只允许本用户访问控制接口
			os.Chmod(addr.Address, 0600)
		}
		listeners = append(listeners, l)
	}
	return listeners, lastErr
}
