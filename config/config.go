// Package config parses and validates the command line into the immutable
// per-run configuration consumed by the engines. It is glue: the core never
// reads flags itself.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caleb-hansolo/lanbench/bench"
	"github.com/caleb-hansolo/lanbench/stats"
)

// Defaults for optional settings.
const (
	DefaultDuration       = 10 * time.Second
	DefaultChunk          = "64K"
	DefaultProbes         = 10
	DefaultConnectTimeout = 5 * time.Second
)

// Config is the resolved startup configuration: the run parameters plus the
// output/display glue the core does not own.
type Config struct {
	Run bench.RunConfig

	// Discover, when non-empty, selects scan mode instead of a run.
	Discover string

	JSON   bool
	LiveUI bool
	Debug  bool
}

// Load parses args (not including the program name). It returns a usage
// error when the combination of flags does not describe exactly one
// supported mode of operation.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("lanbench", flag.ContinueOnError)

	receiver := fs.Bool("receiver", false, "run as receiver (accept one connection)")
	sender := fs.Bool("sender", false, "run as sender (connect and drive the run)")
	host := fs.String("host", "", "receiver address (sender) or bind address (receiver)")
	port := fs.Int("port", 0, "TCP port (required)")
	bytesStr := fs.String("bytes", "", "byte-bound run volume, e.g. 10M (sender)")
	duration := fs.Duration("duration", 0, "time-bound run length (sender)")
	chunk := fs.String("chunk", DefaultChunk, "chunk size per transport call (sender)")
	probes := fs.Int("rtt", DefaultProbes, "latency probe round trips before the transfer, 0 disables")
	connectTimeout := fs.Duration("connect-timeout", DefaultConnectTimeout, "sender connect timeout")
	acceptTimeout := fs.Duration("accept-timeout", 0, "receiver accept timeout, 0 waits forever")
	discover := fs.String("discover", "", "scan the given CIDR for listening receivers and exit")
	jsonOut := fs.Bool("json", false, "report the result as JSON on stdout")
	liveUI := fs.Bool("ui", false, "show a live display during the run")
	debug := fs.Bool("debug", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Discover: *discover,
		JSON:     *jsonOut,
		LiveUI:   *liveUI,
		Debug:    *debug,
	}

	if *port <= 0 || *port > 65535 {
		return nil, fmt.Errorf("a port between 1 and 65535 is required, got %d", *port)
	}
	cfg.Run.Port = uint16(*port)
	cfg.Run.Host = *host

	if cfg.Discover != "" {
		if *receiver || *sender {
			return nil, errors.New("--discover cannot be combined with a role")
		}
		return cfg, nil
	}

	if *receiver == *sender {
		return nil, errors.New("exactly one of --sender or --receiver is required")
	}

	if *sender {
		cfg.Run.Role = bench.RoleSender
		if *host == "" {
			return nil, errors.New("--host is required for the sender")
		}
	} else {
		cfg.Run.Role = bench.RoleReceiver
	}

	if *bytesStr != "" && *duration > 0 {
		return nil, errors.New("--bytes and --duration are mutually exclusive")
	}
	switch {
	case *bytesStr != "":
		n, err := stats.UnitToNumber(*bytesStr)
		if err != nil {
			return nil, fmt.Errorf("--bytes: %w", err)
		}
		cfg.Run.Bytes = n
	case *duration > 0:
		cfg.Run.Duration = *duration
	default:
		cfg.Run.Duration = DefaultDuration
	}

	chunkSize, err := stats.UnitToNumber(*chunk)
	if err != nil || chunkSize == 0 {
		return nil, fmt.Errorf("--chunk: invalid chunk size %q", *chunk)
	}
	cfg.Run.ChunkSize = int(chunkSize)

	if *probes < 0 {
		return nil, errors.New("--rtt must be non-negative")
	}
	cfg.Run.Probes = *probes
	cfg.Run.ConnectTimeout = *connectTimeout
	cfg.Run.AcceptTimeout = *acceptTimeout
	return cfg, nil
}
