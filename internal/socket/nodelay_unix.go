//go:build linux || darwin

package socket

import (
	"net"

	"golang.org/x/sys/unix"
)

// setNoDelay disables Nagle's algorithm via a raw syscall control, mirroring
// the teacher's platform-control pattern (setsockopt through a RawConn)
// rather than the stdlib's SetNoDelay, so the option is set with the same
// explicitness the teacher used for SO_REUSEPORT.
func setNoDelay(conn *net.TCPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockoptErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockoptErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockoptErr
}
