//go:build !linux && !darwin

package socket

import "net"

// setNoDelay falls back to the stdlib on platforms without a raw-conn
// specialization (windows and anything else).
func setNoDelay(conn *net.TCPConn) error {
	return conn.SetNoDelay(true)
}
