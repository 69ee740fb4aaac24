package utils

import (
	"fmt"
	"net"
	"time"
)

/**
 * Check that nothing is already listening on a TCP address
 * @param {string} addr - host:port, an empty host means localhost
 * @returns {error} Error when a connection to the address succeeds
 */
func CheckAddrAvailable(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), time.Second)
	if err != nil {
		// 连接失败，说明端口可用
		return nil
	}
	conn.Close()
	return fmt.Errorf("address %s is already in use", addr)
}
