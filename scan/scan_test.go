package scan

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"
)

func TestRunFindsLoopbackListener(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "cannot bind listener")
	defer l.Close()
	_, portStr, err := net.SplitHostPort(l.Addr().String())
	rtx.Must(err, "cannot split addr")
	port, err := strconv.Atoi(portStr)
	rtx.Must(err, "cannot parse port")

	// Keep the accepted sockets from piling up while the scan probes.
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	hosts, err := Run(context.Background(), "127.0.0.1/32", uint16(port), 4, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(hosts) != 1 || hosts[0].Addr != "127.0.0.1" {
		t.Fatalf("hosts = %+v, want exactly 127.0.0.1", hosts)
	}
	if hosts[0].RTT <= 0 {
		t.Errorf("connect RTT = %v, want > 0", hosts[0].RTT)
	}
}

func TestRunClosedPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "cannot bind listener")
	_, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	l.Close()

	hosts, err := Run(context.Background(), "127.0.0.1/32", uint16(port), 4, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(hosts) != 0 {
		t.Fatalf("hosts = %+v, want none for a closed port", hosts)
	}
}

func TestRunRejectsBadCIDR(t *testing.T) {
	if _, err := Run(context.Background(), "not-a-cidr", 5000, 0, 0); err == nil {
		t.Fatal("expected an error for a malformed CIDR")
	}
}

func TestHostAddrs(t *testing.T) {
	tests := []struct {
		cidr string
		want int
	}{
		{"192.168.1.0/30", 2},  // network and broadcast excluded
		{"192.168.1.0/31", 2},  // point-to-point, both usable
		{"192.168.1.5/32", 1},  // single host
		{"172.20.10.0/28", 14}, // the original lab subnet
	}
	for _, tt := range tests {
		prefix := netip.MustParsePrefix(tt.cidr)
		if got := len(hostAddrs(prefix)); got != tt.want {
			t.Errorf("hostAddrs(%s) = %d addrs, want %d", tt.cidr, got, tt.want)
		}
	}
}
