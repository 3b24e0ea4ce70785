package probe

import (
	"TraceCorrelator/internal/codec"
	"TraceCorrelator/internal/model"
	"log"
	"sync"
)

// pendingRun gathers the partitions received so far for one run id.
type pendingRun struct {
	count int
	parts map[int]model.GlobalTotals
}

// Collector merges partial reports of the same run. Once every partition of a
// run has arrived, the merged report is passed to the completion callback and
// the run is forgotten. It is safe for concurrent use.
type Collector struct {
	expected   int
	onComplete func(*model.Report)

	mu   sync.Mutex
	runs map[string]*pendingRun
}

// NewCollector creates a collector. expected is used when a partial does not
// announce its partition count.
func NewCollector(expected int, onComplete func(*model.Report)) *Collector {
	if expected <= 0 {
		expected = 1
	}
	return &Collector{expected: expected, onComplete: onComplete, runs: make(map[string]*pendingRun)}
}

// Add records a partial report. Duplicate partitions are ignored.
func (c *Collector) Add(p codec.PartialReport) {
	c.mu.Lock()

	run, ok := c.runs[p.RunID]
	if !ok {
		count := p.Partition.Count
		if count <= 0 {
			count = c.expected
		}
		run = &pendingRun{count: count, parts: make(map[int]model.GlobalTotals)}
		c.runs[p.RunID] = run
	}
	if p.Partition.Index < 0 || p.Partition.Index >= run.count {
		c.mu.Unlock()
		log.Printf("Ignoring partition %d of run %s: outside [0, %d)", p.Partition.Index, p.RunID, run.count)
		return
	}
	if _, dup := run.parts[p.Partition.Index]; dup {
		c.mu.Unlock()
		log.Printf("Ignoring duplicate partition %d of run %s", p.Partition.Index, p.RunID)
		return
	}
	run.parts[p.Partition.Index] = p.Totals
	log.Printf("Run %s: received partition %d (%d/%d)", p.RunID, p.Partition.Index, len(run.parts), run.count)

	if len(run.parts) < run.count {
		c.mu.Unlock()
		return
	}

	delete(c.runs, p.RunID)
	var totals model.GlobalTotals
	for i := 0; i < run.count; i++ {
		totals.Merge(run.parts[i])
	}
	c.mu.Unlock()

	c.onComplete(&model.Report{
		RunID:       p.RunID,
		GeneratedAt: p.GeneratedAt,
		Partition:   model.Partition{Index: 0, Count: 1},
		Totals:      totals,
	})
}

// Pending returns the number of runs still waiting for partitions.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}
