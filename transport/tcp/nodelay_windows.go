//go:build windows

package tcp

import "net"

// setNoDelayUnix has no golang.org/x/sys/unix equivalent on Windows;
// net.TCPConn.SetNoDelay already covers the portable case, so this
// platform simply uses it directly instead of a raw setsockopt call.
func setNoDelayUnix(conn *net.TCPConn) {
	conn.SetNoDelay(true)
}
