package main

import (
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/engine/impl/report"
	"TraceCorrelator/internal/model"
	"TraceCorrelator/internal/probe"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	log.Println("Starting ns-collector...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Merged runs are printed in the text report format
	collector := probe.NewCollector(cfg.Collector.ExpectedPartitions, func(r *model.Report) {
		log.Printf("Run %s complete.", r.RunID)
		if err := report.WriteText(os.Stdout, r.Totals); err != nil {
			log.Printf("Failed to print run %s: %v", r.RunID, err)
		}
	})

	// 3. Subscribe to partial reports
	subscriber, err := probe.NewSubscriber(cfg.Collector.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer subscriber.Close()

	if err := subscriber.Start(collector.Add); err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	// 4. Wait for a shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Printf("Shutdown signal received, %d runs still incomplete.", collector.Pending())
}
