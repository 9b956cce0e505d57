// Package scan discovers benchmark peers: it connect-scans a CIDR for hosts
// with the benchmark port open, using a bounded worker pool.
package scan

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultWorkers = 64
	DefaultTimeout = 500 * time.Millisecond
)

// Host is one discovered peer.
type Host struct {
	Addr string
	// RTT is the time the TCP connect took, a rough proximity signal.
	RTT time.Duration
}

// Run scans every host address in cidr for an open TCP port and returns the
// hosts that accepted, sorted by address. workers and timeout fall back to
// the package defaults when zero.
func Run(ctx context.Context, cidr string, port uint16, workers int, timeout time.Duration) ([]Host, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	addrs := hostAddrs(prefix)
	log.Debug("scanning", "cidr", prefix, "hosts", len(addrs), "port", port)

	jobs := make(chan netip.Addr)
	resCh := make(chan Host, len(addrs))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range jobs {
				if h, ok := probe(addr, port, timeout); ok {
					resCh <- h
				}
			}
		}()
	}

	for _, addr := range addrs {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- addr:
		}
	}
	close(jobs)
	wg.Wait()
	close(resCh)

	found := make([]Host, 0, len(resCh))
	for h := range resCh {
		found = append(found, h)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Addr < found[j].Addr })
	return found, nil
}

func probe(addr netip.Addr, port uint16, timeout time.Duration) (Host, bool) {
	target := net.JoinHostPort(addr.String(), strconv.Itoa(int(port)))
	begin := time.Now()
	conn, err := net.DialTimeout("tcp", target, timeout)
	if err != nil {
		return Host{}, false
	}
	rtt := time.Since(begin)
	conn.Close()
	log.Debug("found peer", "addr", target, "rtt", rtt)
	return Host{Addr: addr.String(), RTT: rtt}, true
}

// hostAddrs expands a prefix into its host addresses, excluding the network
// and broadcast addresses of IPv4 prefixes shorter than /31.
func hostAddrs(prefix netip.Prefix) []netip.Addr {
	prefix = prefix.Masked()
	var addrs []netip.Addr
	first := prefix.Addr()
	skipEdges := first.Is4() && prefix.Bits() < 31
	for addr := first; prefix.Contains(addr); addr = addr.Next() {
		addrs = append(addrs, addr)
	}
	if skipEdges && len(addrs) > 2 {
		addrs = addrs[1 : len(addrs)-1]
	}
	return addrs
}
