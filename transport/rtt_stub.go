//go:build !linux

package transport

import (
	"errors"
	"net"
	"time"
)

func kernelRTT(conn net.Conn) (time.Duration, error) {
	return 0, errors.New("kernel RTT not supported on this platform")
}
