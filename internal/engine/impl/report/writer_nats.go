package report

import (
	"TraceCorrelator/internal/codec"
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/model"
	"TraceCorrelator/internal/probe"
	"fmt"
	"log"
)

// NATSWriter publishes the mergeable totals of a report so that a collector can
// combine the partitions of a run.
type NATSWriter struct {
	pub *probe.Publisher
}

// NewNATSWriter connects a publisher for the given subject.
func NewNATSWriter(cfg config.NATSConfig) (model.Writer, error) {
	pub, err := probe.NewPublisher(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSWriter{pub: pub}, nil
}

func (w *NATSWriter) Name() string {
	return "nats"
}

func (w *NATSWriter) Write(report *model.Report) error {
	if err := w.pub.Publish(codec.Partial(report)); err != nil {
		return fmt.Errorf("failed to publish partial report: %w", err)
	}
	log.Printf("Published partition %d/%d of run '%s'", report.Partition.Index, report.Partition.Count, report.RunID)
	return nil
}

// Close drains the NATS connection.
func (w *NATSWriter) Close() error {
	return w.pub.Close()
}
