package manager

import (
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/engine/correlator"
	"TraceCorrelator/internal/engine/loader"
	"TraceCorrelator/internal/metrics"
	"TraceCorrelator/internal/model"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// traceSet builds tcpdump-style trace files in a temp dir.
type traceSet struct {
	dir   string
	lines map[int][]string
}

func newTraceSet(t *testing.T) *traceSet {
	return &traceSet{dir: t.TempDir(), lines: make(map[int][]string)}
}

func addr(node int) string {
	return fmt.Sprintf("1.1.%d.2", node+1)
}

// data records a data packet from sender to receiver at node `at`.
func (s *traceSet) data(at, sender, receiver int, ts float64, seq int) {
	s.lines[at] = append(s.lines[at], fmt.Sprintf(
		"%.6f IP %s.49153 > %s.50000: Flags [.], seq %d:%d, ack 1, win 65535, length 536",
		ts, addr(sender), addr(receiver), seq, seq+536))
}

// ack records an acknowledgement from receiver to sender at node `at`.
func (s *traceSet) ack(at, sender, receiver int, ts float64, seq int) {
	s.lines[at] = append(s.lines[at], fmt.Sprintf(
		"%.6f IP %s.50000 > %s.49153: Flags [.], ack %d, win 65535, length 0",
		ts, addr(receiver), addr(sender), seq))
}

func (s *traceSet) write(t *testing.T, nodes ...int) {
	t.Helper()
	for _, n := range nodes {
		content := strings.Join(s.lines[n], "\n")
		if content != "" {
			content += "\n"
		}
		if err := os.WriteFile(filepath.Join(s.dir, fmt.Sprintf("%d.txt", n)), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write trace %d: %v", n, err)
		}
	}
}

func testConfig(dir string, flows []model.FlowPair) *config.Config {
	cfg := &config.Config{Correlator: config.CorrelatorConfig{
		TraceDir:   dir,
		NumWorkers: 4,
		Flows:      flows,
	}}
	cfg.ApplyDefaults()
	return cfg
}

func newManager(t *testing.T, cfg *config.Config) *Manager {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Invalid test config: %v", err)
	}
	m, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return m
}

// buildSimulation writes traces for two flows: 1->0 and 2->3.
//
// Flow 1->0: 5 data sent, 4 received (delay 0.010 each), 4 acks sent, 3 received.
// Flow 2->3: 3 data sent, 3 received (delay 0.020 each), 3 acks sent, 3 received.
func buildSimulation(t *testing.T) *traceSet {
	s := newTraceSet(t)
	for i := 0; i < 5; i++ {
		ts := 1.0 + float64(i)*0.1
		seq := 1 + i*536
		s.data(1, 1, 0, ts, seq)
		if i == 2 {
			continue // lost on the way
		}
		s.data(0, 1, 0, ts+0.010, seq)
		s.ack(0, 1, 0, ts+0.011, seq+536)
		if i != 4 {
			s.ack(1, 1, 0, ts+0.021, seq+536)
		}
	}
	for i := 0; i < 3; i++ {
		ts := 2.0 + float64(i)*0.1
		seq := 1 + i*536
		s.data(2, 2, 3, ts, seq)
		s.data(3, 2, 3, ts+0.020, seq)
		s.ack(3, 2, 3, ts+0.021, seq+536)
		s.ack(2, 2, 3, ts+0.041, seq+536)
	}
	// Noise: a flow that is not declared, and a non-IP line.
	s.data(0, 5, 0, 3.0, 1)
	s.lines[1] = append(s.lines[1], "3.100000 ARP, Request who-has 1.1.1.2 tell 1.1.2.2, length 28")
	s.write(t, 0, 1, 2, 3)
	return s
}

var simulationFlows = []model.FlowPair{{Sender: 1, Receiver: 0}, {Sender: 2, Receiver: 3}}

func TestManager_Run(t *testing.T) {
	s := buildSimulation(t)
	m := newManager(t, testConfig(s.dir, simulationFlows))

	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	totals := report.Totals
	if totals.DataSent != 8 || totals.DataReceived != 7 {
		t.Errorf("Expected data 8/7, got %d/%d", totals.DataSent, totals.DataReceived)
	}
	if totals.AckSent != 7 || totals.AckReceived != 6 {
		t.Errorf("Expected acks 7/6, got %d/%d", totals.AckSent, totals.AckReceived)
	}
	if totals.TotalSent() != 15 || totals.TotalReceived() != 13 || totals.Lost() != 2 {
		t.Errorf("Unexpected combined totals: %d %d %d", totals.TotalSent(), totals.TotalReceived(), totals.Lost())
	}

	avg, err := totals.AverageDelay()
	if err != nil {
		t.Fatalf("AverageDelay failed: %v", err)
	}
	want := (4*0.010 + 3*0.020) / 7
	if math.Abs(avg-want) > 1e-9 {
		t.Errorf("Expected average delay %v, got %v", want, avg)
	}

	if len(report.Flows) != 2 || report.Flows[0].Pair != simulationFlows[0] {
		t.Errorf("Flow results not in declaration order: %+v", report.Flows)
	}
	if report.RunID == "" {
		t.Error("Expected a generated run id")
	}
}

func TestManager_Idempotent(t *testing.T) {
	s := buildSimulation(t)
	m := newManager(t, testConfig(s.dir, simulationFlows))

	first, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if first.Totals != second.Totals {
		t.Errorf("Runs differ: %+v vs %+v", first.Totals, second.Totals)
	}
}

func TestManager_PartitionsMergeToWhole(t *testing.T) {
	s := buildSimulation(t)

	whole, err := newManager(t, testConfig(s.dir, simulationFlows)).Run(context.Background())
	if err != nil {
		t.Fatalf("Whole run failed: %v", err)
	}

	var parts []model.GlobalTotals
	for i := 0; i < 2; i++ {
		cfg := testConfig(s.dir, simulationFlows)
		cfg.Correlator.Partition = model.Partition{Index: i, Count: 2}
		m := newManager(t, cfg)
		if m.Flows() != 1 {
			t.Fatalf("Partition %d should hold 1 flow, got %d", i, m.Flows())
		}
		report, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("Partition %d failed: %v", i, err)
		}
		parts = append(parts, report.Totals)
	}

	merged := correlator.Merge(parts...)
	if merged.TotalSent() != whole.Totals.TotalSent() ||
		merged.TotalReceived() != whole.Totals.TotalReceived() ||
		merged.Lost() != whole.Totals.Lost() {
		t.Errorf("Merged partitions %+v differ from whole %+v", merged, whole.Totals)
	}
}

func TestManager_MissingTraceIsFatal(t *testing.T) {
	s := buildSimulation(t)
	flows := append([]model.FlowPair{}, simulationFlows...)
	flows = append(flows, model.FlowPair{Sender: 9, Receiver: 0})

	_, err := newManager(t, testConfig(s.dir, flows)).Run(context.Background())
	if !errors.Is(err, loader.ErrTraceNotFound) {
		t.Fatalf("Expected ErrTraceNotFound, got %v", err)
	}
	var traceErr *loader.TraceError
	if !errors.As(err, &traceErr) || traceErr.Node != 9 {
		t.Errorf("Expected the error to name node 9, got %v", err)
	}
}

func TestManager_EmptyTraces(t *testing.T) {
	s := newTraceSet(t)
	s.write(t, 0, 1)

	report, err := newManager(t, testConfig(s.dir, []model.FlowPair{{Sender: 1, Receiver: 0}})).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Totals.TotalSent() != 0 || report.Totals.TotalReceived() != 0 || report.Totals.Lost() != 0 {
		t.Errorf("Expected zero totals, got %+v", report.Totals)
	}
	if _, err := report.Totals.AverageDelay(); !errors.Is(err, model.ErrNoMatchedSamples) {
		t.Errorf("Expected ErrNoMatchedSamples, got %v", err)
	}
}

func TestManager_MalformedRecords(t *testing.T) {
	s := newTraceSet(t)
	s.data(1, 1, 0, 1.0, 1)
	s.data(0, 1, 0, 1.5, 1)
	s.lines[0] = append(s.lines[0], "1.600000 IP 1.1.2.2.49153 > 1.1.1.2.50000: Flags [R]")
	s.write(t, 0, 1)

	cfg := testConfig(s.dir, []model.FlowPair{{Sender: 1, Receiver: 0}})
	cfg.Correlator.Verbose = true
	report, err := newManager(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Totals.DataReceived != 2 || report.Totals.Malformed != 1 {
		t.Errorf("Expected 2 received and 1 malformed, got %+v", report.Totals)
	}
	if avg, err := report.Totals.AverageDelay(); err != nil || math.Abs(avg-0.5) > 1e-9 {
		t.Errorf("Expected average delay 0.5, got %v (%v)", avg, err)
	}
}

func TestManager_Canceled(t *testing.T) {
	s := buildSimulation(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newManager(t, testConfig(s.dir, simulationFlows)).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestManager_Metrics(t *testing.T) {
	s := buildSimulation(t)
	m := newManager(t, testConfig(s.dir, simulationFlows))

	flowsBefore := testutil.ToFloat64(metrics.FlowsProcessed)
	okBefore := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(metrics.StatusOK))
	failedBefore := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(metrics.StatusFailed))

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := testutil.ToFloat64(metrics.FlowsProcessed) - flowsBefore; got != 2 {
		t.Errorf("Expected 2 flows processed, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(metrics.StatusOK)) - okBefore; got != 1 {
		t.Errorf("Expected 1 successful run, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.LastLost); got != 2 {
		t.Errorf("Expected last lost 2, got %v", got)
	}

	missing := testConfig(t.TempDir(), simulationFlows)
	if _, err := newManager(t, missing).Run(context.Background()); err == nil {
		t.Fatal("Expected a run over missing traces to fail")
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(metrics.StatusFailed)) - failedBefore; got != 1 {
		t.Errorf("Expected 1 failed run, got %v", got)
	}
}

type recordingWriter struct {
	name    string
	fail    bool
	reports []*model.Report
}

func (w *recordingWriter) Name() string { return w.name }

func (w *recordingWriter) Write(r *model.Report) error {
	w.reports = append(w.reports, r)
	if w.fail {
		return errors.New("boom")
	}
	return nil
}

func TestManager_WriteReport(t *testing.T) {
	ok := &recordingWriter{name: "ok"}
	bad := &recordingWriter{name: "bad", fail: true}
	m, err := New(testConfig(t.TempDir(), simulationFlows), []model.Writer{ok, bad})
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	report := &model.Report{RunID: "r"}
	err = m.WriteReport(report)
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("Expected the failing writer to be reported, got %v", err)
	}
	if len(ok.reports) != 1 || ok.reports[0] != report {
		t.Error("Healthy writer did not receive the report")
	}
}
