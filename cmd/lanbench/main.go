// Command lanbench measures point-to-point network throughput and latency
// between two hosts. One process runs with --receiver and waits for a
// connection; the other runs with --sender and drives the measurement.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/rtx"

	"github.com/caleb-hansolo/lanbench/bench"
	"github.com/caleb-hansolo/lanbench/config"
	"github.com/caleb-hansolo/lanbench/receiver"
	"github.com/caleb-hansolo/lanbench/report"
	"github.com/caleb-hansolo/lanbench/scan"
	"github.com/caleb-hansolo/lanbench/sender"
	"github.com/caleb-hansolo/lanbench/stats"
	"github.com/caleb-hansolo/lanbench/ui"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "lanbench: %v\n", err)
		os.Exit(2)
	}

	log.SetReportTimestamp(true)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("interrupted, shutting down")
		cancel()
	}()

	if cfg.Discover != "" {
		runDiscover(ctx, cfg)
		return
	}

	var reporter report.Reporter = report.Human{W: os.Stdout}
	if cfg.JSON {
		reporter = report.JSON{W: os.Stdout}
	}

	var monitor *ui.Monitor
	var onSample stats.SampleFunc
	if cfg.LiveUI {
		title := fmt.Sprintf("lanbench %s %s", cfg.Run.Role, cfg.Run.DialAddr())
		monitor = ui.NewMonitor(title)
		if err := monitor.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "lanbench: %v\n", err)
			os.Exit(2)
		}
		onSample = monitor.Sample
		go func() {
			select {
			case <-monitor.Interrupted():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	var result *stats.RunResult
	var runErr error
	switch cfg.Run.Role {
	case bench.RoleReceiver:
		r := receiver.New(cfg.Run, receiver.WithSampleFunc(onSample))
		if runErr = r.Listen(); runErr == nil {
			log.Info("waiting for sender", "addr", r.Addr())
			result, runErr = r.Run(ctx)
		}
	case bench.RoleSender:
		s := sender.New(cfg.Run, sender.WithSampleFunc(onSample))
		log.Info("starting run", "peer", cfg.Run.DialAddr())
		result, runErr = s.Run(ctx)
	}

	if monitor != nil {
		monitor.Stop()
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "lanbench: run failed: %v\n", runErr)
		if kind := bench.KindOf(runErr); kind != bench.KindUnknown {
			log.Error("run failed", "kind", kind)
		}
		os.Exit(1)
	}

	rtx.Must(reporter.Report(result), "failed to write report")
}

func runDiscover(ctx context.Context, cfg *config.Config) {
	hosts, err := scan.Run(ctx, cfg.Discover, cfg.Run.Port, 0, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lanbench: discover failed: %v\n", err)
		os.Exit(1)
	}
	if len(hosts) == 0 {
		fmt.Printf("no listeners found in %s on port %d\n", cfg.Discover, cfg.Run.Port)
		return
	}
	for _, h := range hosts {
		fmt.Printf("%s\tport %d open\tconnect %s\n",
			h.Addr, cfg.Run.Port, stats.DurationToString(h.RTT))
	}
}
