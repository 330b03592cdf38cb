//go:build !windows

package tcp

import (
	"net"

	"golang.org/x/sys/unix"
)

// setNoDelayUnix disables Nagle's algorithm via a raw setsockopt call,
// the same low-level escape hatch the teacher reaches for in its own
// platform-specific files (agent/log/log_unix.go and friends) for
// behaviour net.TCPConn does not expose portably — net.TCPConn already
// has SetNoDelay, but the raw fd path is kept here so TcpNoDelay can
// later grow sibling options (e.g. SO_REUSEPORT) on the same socket
// without changing call sites.
func setNoDelayUnix(conn *net.TCPConn) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}
