package manager

import (
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/engine/correlator"
	_ "TraceCorrelator/internal/engine/impl/report" // Registers report writers
	"TraceCorrelator/internal/engine/loader"
	"TraceCorrelator/internal/factory"
	"TraceCorrelator/internal/metrics"
	"TraceCorrelator/internal/model"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// job is one flow of the partition together with its precomputed signatures.
type job struct {
	pair model.FlowPair
	sig  model.Signatures
}

// Manager runs correlation passes over a fixed flow list and fans reports out to writers.
type Manager struct {
	jobs       []job
	loader     *loader.Loader
	numWorkers int
	verbose    bool
	runID      string
	partition  model.Partition
	writers    []model.Writer
}

// NewManager creates a Manager and the enabled writers of the config.
func NewManager(cfg *config.Config) (*Manager, error) {
	writers, err := factory.CreateWriters(cfg)
	if err != nil {
		return nil, err
	}
	m, err := New(cfg, writers)
	if err != nil {
		closeWriters(writers)
		return nil, err
	}
	return m, nil
}

// New creates a Manager that reports to the given writers.
func New(cfg *config.Config, writers []model.Writer) (*Manager, error) {
	cc := cfg.Correlator
	addressing := cfg.Addressing()

	var jobs []job
	for i, pair := range cc.Flows {
		if !cc.Partition.Includes(i) {
			continue
		}
		sig, err := addressing.Signatures(pair)
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", pair, err)
		}
		jobs = append(jobs, job{pair: pair, sig: sig})
	}

	numWorkers := cc.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &Manager{
		jobs:       jobs,
		loader:     loader.New(cc.TraceDir, cc.FilePattern),
		numWorkers: numWorkers,
		verbose:    cc.Verbose,
		runID:      cc.RunID,
		partition:  cc.Partition,
		writers:    writers,
	}, nil
}

// Run performs one correlation pass over the traces. Every run parses the traces
// afresh. The first missing or unreadable trace aborts the run.
func (m *Manager) Run(ctx context.Context) (*model.Report, error) {
	start := time.Now()
	report, err := m.run(ctx)
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RunsTotal.WithLabelValues(metrics.StatusFailed).Inc()
		return nil, err
	}
	metrics.RunsTotal.WithLabelValues(metrics.StatusOK).Inc()
	metrics.LastLost.Set(float64(report.Totals.Lost()))
	if avg, err := report.Totals.AverageDelay(); err == nil {
		metrics.LastAverageDelay.Set(avg)
	}
	log.Printf("Correlated %d flows in %s.", len(report.Flows), time.Since(start))
	return report, nil
}

func (m *Manager) run(parent context.Context) (*model.Report, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cache := loader.NewCache(m.loader)
	results := make([]model.FlowResult, len(m.jobs))
	jobChannel := make(chan int)

	var (
		failOnce sync.Once
		firstErr error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	var workerWg sync.WaitGroup
	workerWg.Add(m.numWorkers)
	for i := 0; i < m.numWorkers; i++ {
		go m.worker(ctx, cache, jobChannel, results, fail, &workerWg)
	}

feed:
	for i := range m.jobs {
		select {
		case jobChannel <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobChannel)
	workerWg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	var stats struct{ lines, events, ignored int64 }
	for _, tr := range cache.Loaded() {
		stats.lines += tr.Stats.Lines
		stats.events += tr.Stats.Events
		stats.ignored += tr.Stats.Ignored
	}
	metrics.TraceEvents.Add(float64(stats.events))

	totals := correlator.Fold(results)
	if m.verbose {
		log.Printf("Read %d lines (%d packet records, %d ignored), %d malformed and %d unmatched records skipped for delay.",
			stats.lines, stats.events, stats.ignored, totals.Malformed, totals.Unmatched)
	}

	runID := m.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	return &model.Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Partition:   m.partition,
		Totals:      totals,
		Flows:       results,
	}, nil
}

func (m *Manager) worker(ctx context.Context, cache *loader.Cache, jobChannel <-chan int, results []model.FlowResult, fail func(error), wg *sync.WaitGroup) {
	defer wg.Done()
	for i := range jobChannel {
		if ctx.Err() != nil {
			continue // drain after a failure
		}
		res, err := m.correlate(cache, m.jobs[i])
		if err != nil {
			fail(err)
			continue
		}
		results[i] = res
	}
}

// correlate matches one flow against the cached traces of its two nodes.
func (m *Manager) correlate(cache *loader.Cache, j job) (model.FlowResult, error) {
	sender, err := cache.Get(j.pair.Sender)
	if err != nil {
		return model.FlowResult{}, fmt.Errorf("flow %s: %w", j.pair, err)
	}
	receiver, err := cache.Get(j.pair.Receiver)
	if err != nil {
		return model.FlowResult{}, fmt.Errorf("flow %s: %w", j.pair, err)
	}

	res := correlator.MatchFlow(j.pair, j.sig, sender.Events, receiver.Events)

	metrics.FlowsProcessed.Inc()
	metrics.MalformedRecords.Add(float64(res.Malformed))
	metrics.UnmatchedRecords.Add(float64(res.Unmatched))
	if m.verbose {
		log.Printf("Flow %s [%s]: data %d/%d ack %d/%d, %d delay samples, %d malformed, %d unmatched",
			j.pair, j.sig.Data, res.Tally.DataSent, res.Tally.DataReceived, res.Tally.AckSent, res.Tally.AckReceived,
			res.Delay.Count, res.Malformed, res.Unmatched)
	}
	return res, nil
}

// WriteReport hands the report to every writer concurrently. Writer failures are
// logged and returned joined; they never change the report.
func (m *Manager) WriteReport(report *model.Report) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	wg.Add(len(m.writers))

	for _, writer := range m.writers {
		go func(w model.Writer) {
			defer wg.Done()
			if err := w.Write(report); err != nil {
				log.Printf("Error writing report with writer %s: %v", w.Name(), err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
				mu.Unlock()
			}
		}(writer)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Writers returns the writers reports are fanned out to.
func (m *Manager) Writers() []model.Writer {
	return m.writers
}

// Flows returns the number of flows handled by this manager's partition.
func (m *Manager) Flows() int {
	return len(m.jobs)
}

// Close releases writers holding connections.
func (m *Manager) Close() {
	closeWriters(m.writers)
	log.Println("Manager stopped.")
}

func closeWriters(writers []model.Writer) {
	for _, w := range writers {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Printf("Error closing writer %s: %v", w.Name(), err)
			}
		}
	}
}
