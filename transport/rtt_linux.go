//go:build linux

package transport

import (
	"errors"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// kernelRTT reads TCP_INFO and returns the kernel's smoothed RTT for the
// connection. Advisory only; the measured latency comes from the probe
// phase, not from here.
func kernelRTT(conn net.Conn) (time.Duration, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return 0, errors.New("not a TCP connection")
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var info *unix.TCPInfo
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		info, sockErr = unix.GetsockoptTCPInfo(int(fd), unix.IPPROTO_TCP, unix.TCP_INFO)
	})
	if err != nil {
		return 0, err
	}
	if sockErr != nil {
		return 0, sockErr
	}
	return time.Duration(info.Rtt) * time.Microsecond, nil
}
