package report

import (
	"TraceCorrelator/internal/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SummaryData holds the metadata for a report snapshot, internal to the writer.
type SummaryData struct {
	RunID         string          `json:"run_id"`
	Partition     model.Partition `json:"partition"`
	TotalFlows    int64           `json:"total_flows"`
	TotalSent     int64           `json:"total_sent"`
	TotalReceived int64           `json:"total_received"`
	Lost          int64           `json:"lost"`
	DataSent      int64           `json:"data_sent"`
	DataReceived  int64           `json:"data_received"`
	DataLost      int64           `json:"data_lost"`
	DelaySamples  int64           `json:"delay_samples"`
	AverageDelay  *float64        `json:"average_delay"`
	Malformed     int64           `json:"malformed"`
	Unmatched     int64           `json:"unmatched"`
	Timestamp     string          `json:"timestamp"`
}

// GobWriter writes per-flow results in gob format plus a JSON summary.
type GobWriter struct {
	rootPath string
}

// NewGobWriter creates a new writer rooted at rootPath.
func NewGobWriter(rootPath string) model.Writer {
	return &GobWriter{rootPath: rootPath}
}

func (w *GobWriter) Name() string {
	return "gob"
}

// Write creates <root>/<timestamp>/<run id>/ holding flows.gob and summary.json.
func (w *GobWriter) Write(report *model.Report) error {
	// 1. Create timestamped directory
	timestamp := report.GeneratedAt.Format("2006-01-02_15-04-05")
	runDir := filepath.Join(w.rootPath, timestamp, report.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// 2. Write the flow results
	flowsPath := filepath.Join(runDir, "flows.gob")
	file, err := os.Create(flowsPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", flowsPath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(report.Flows); err != nil {
		return fmt.Errorf("failed to encode flows to gob for file '%s': %w", flowsPath, err)
	}

	// 3. Write summary file
	t := report.Totals
	summary := SummaryData{
		RunID:         report.RunID,
		Partition:     report.Partition,
		TotalFlows:    t.Flows,
		TotalSent:     t.TotalSent(),
		TotalReceived: t.TotalReceived(),
		Lost:          t.Lost(),
		DataSent:      t.DataSent,
		DataReceived:  t.DataReceived,
		DataLost:      t.DataLost(),
		DelaySamples:  t.MatchedDelayCount,
		Malformed:     t.Malformed,
		Unmatched:     t.Unmatched,
		Timestamp:     report.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if avg, err := t.AverageDelay(); err == nil {
		summary.AverageDelay = &avg
	}

	summaryFilePath := filepath.Join(runDir, "summary.json")
	summaryFile, err := os.Create(summaryFilePath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	return nil
}
