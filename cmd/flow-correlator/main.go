package main

import (
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/engine/manager"
	"TraceCorrelator/internal/model"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitNoSamples = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	traceDir := flag.String("trace-dir", "", "directory holding the <node>.txt traces (overrides correlator.trace_dir)")
	workers := flag.Int("workers", 0, "number of correlation workers (overrides correlator.num_workers)")
	verbose := flag.Bool("verbose", false, "log per-flow tallies and skipped records")
	partition := flag.String("partition", "", "process only partition i of n flows, as i/n")
	runID := flag.String("run-id", "", "run id shared by all partitions of one run")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return exitFailure
	}
	if err := applyFlags(cfg, *traceDir, *workers, *verbose, *partition, *runID); err != nil {
		log.Printf("Invalid flags: %v", err)
		return exitFailure
	}

	// 2. Initialize the manager and its writers
	mgr, err := manager.NewManager(cfg)
	if err != nil {
		log.Printf("Failed to create manager: %v", err)
		return exitFailure
	}
	defer mgr.Close()
	log.Printf("Correlating %d flows (partition %d/%d) from '%s'...",
		mgr.Flows(), cfg.Correlator.Partition.Index, cfg.Correlator.Partition.Count, cfg.Correlator.TraceDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Run one pass and write the report
	report, err := mgr.Run(ctx)
	if err != nil {
		log.Printf("Correlation failed: %v", err)
		return exitFailure
	}
	if err := mgr.WriteReport(report); err != nil {
		log.Printf("Failed to write report: %v", err)
		return exitFailure
	}

	if _, err := report.Totals.AverageDelay(); errors.Is(err, model.ErrNoMatchedSamples) {
		log.Printf("Run %s: no data packet could be matched, average delay is undefined.", report.RunID)
		return exitNoSamples
	}
	return exitOK
}

// applyFlags overrides config values with the command-line flags that were set.
func applyFlags(cfg *config.Config, traceDir string, workers int, verbose bool, partition, runID string) error {
	cc := &cfg.Correlator
	if traceDir != "" {
		cc.TraceDir = traceDir
	}
	if workers > 0 {
		cc.NumWorkers = workers
	}
	if verbose {
		cc.Verbose = true
	}
	if runID != "" {
		cc.RunID = runID
	}
	if partition != "" {
		p, err := parsePartition(partition)
		if err != nil {
			return err
		}
		cc.Partition = p
	}
	return cfg.Validate()
}

func parsePartition(s string) (model.Partition, error) {
	var p model.Partition
	if n, err := fmt.Sscanf(s, "%d/%d", &p.Index, &p.Count); err != nil || n != 2 {
		return model.Partition{}, fmt.Errorf("partition %q is not of the form i/n", s)
	}
	if p.Count <= 0 || p.Index < 0 || p.Index >= p.Count {
		return model.Partition{}, fmt.Errorf("partition %q out of range", s)
	}
	return p, nil
}
