package report

import (
	"TraceCorrelator/internal/model"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleReport() *model.Report {
	flows := []model.FlowResult{
		{
			Pair:  model.FlowPair{Sender: 55, Receiver: 0},
			Tally: model.PerFlowTally{DataSent: 10, DataReceived: 9, AckSent: 9, AckReceived: 8},
			Delay: model.DelayStats{Sum: 2.25, Count: 9},
		},
		{
			Pair:  model.FlowPair{Sender: 9, Receiver: 70},
			Tally: model.PerFlowTally{DataSent: 4, DataReceived: 4, AckSent: 4, AckReceived: 4},
			Delay: model.DelayStats{Sum: 0.25, Count: 1},
		},
	}
	var totals model.GlobalTotals
	for _, f := range flows {
		totals.Add(f)
	}
	return &model.Report{
		RunID:       "test-run",
		GeneratedAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		Partition:   model.Partition{Index: 0, Count: 1},
		Totals:      totals,
		Flows:       flows,
	}
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextWriterTo(&buf).Write(sampleReport()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := "27 25 2\n14 13 1\n0.25\n"
	if buf.String() != want {
		t.Errorf("Expected report %q, got %q", want, buf.String())
	}
}

func TestTextWriter_NoSamples(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, model.GlobalTotals{}); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if want := "0 0 0\n0 0 0\nn/a\n"; buf.String() != want {
		t.Errorf("Expected report %q, got %q", want, buf.String())
	}
}

func TestTextWriter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.txt")
	if err := NewTextWriter(path).Write(sampleReport()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if string(data) != "27 25 2\n14 13 1\n0.25\n" {
		t.Errorf("Unexpected file content %q", data)
	}
}

func TestGobWriter(t *testing.T) {
	tmpDir := t.TempDir()
	report := sampleReport()

	if err := NewGobWriter(tmpDir).Write(report); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, "2024-05-01_12-30-00", "test-run")

	// Verify summary content
	summaryBytes, err := os.ReadFile(filepath.Join(runDir, "summary.json"))
	if err != nil {
		t.Fatalf("Failed to read summary.json: %v", err)
	}
	var summary SummaryData
	if err := json.Unmarshal(summaryBytes, &summary); err != nil {
		t.Fatalf("Failed to unmarshal summary.json: %v", err)
	}
	if summary.TotalFlows != 2 || summary.Lost != 2 || summary.DataLost != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if summary.AverageDelay == nil || *summary.AverageDelay != 0.25 {
		t.Errorf("Expected average delay 0.25, got %v", summary.AverageDelay)
	}

	// Verify gob file content
	gobFile, err := os.Open(filepath.Join(runDir, "flows.gob"))
	if err != nil {
		t.Fatalf("Failed to open flows.gob: %v", err)
	}
	defer gobFile.Close()

	var decoded []model.FlowResult
	if err := gob.NewDecoder(gobFile).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode gob file: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != report.Flows[0] {
		t.Errorf("Decoded flows do not match. Got: %+v", decoded)
	}
}
