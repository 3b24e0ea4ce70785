package model

import (
	"errors"
	"time"
)

// ErrNoMatchedSamples is returned when an average delay is requested but no
// received data packet could be paired with its send record.
var ErrNoMatchedSamples = errors.New("no matched delay samples")

// ErrRunNotFound is returned when no stored report belongs to the requested run.
var ErrRunNotFound = errors.New("run not found")

// PerFlowTally counts the packets of one flow seen on each side.
type PerFlowTally struct {
	DataSent     int64 `json:"data_sent"`
	DataReceived int64 `json:"data_received"`
	AckSent      int64 `json:"ack_sent"`
	AckReceived  int64 `json:"ack_received"`
}

// DelayStats accumulates one-way delay samples.
type DelayStats struct {
	Sum   float64 `json:"sum"`
	Count int64   `json:"count"`
}

// FlowResult is the outcome of correlating a single flow.
type FlowResult struct {
	Pair      FlowPair     `json:"pair"`
	Tally     PerFlowTally `json:"tally"`
	Delay     DelayStats   `json:"delay"`
	Malformed int64        `json:"malformed"` // matched records skipped for delay
	Unmatched int64        `json:"unmatched"` // received data records with no send record
}

// GlobalTotals are running sums over a set of flows.
// Add and Merge are plain additions, so folding order only affects float rounding.
type GlobalTotals struct {
	Flows             int64   `json:"flows"`
	DataSent          int64   `json:"data_sent"`
	DataReceived      int64   `json:"data_received"`
	AckSent           int64   `json:"ack_sent"`
	AckReceived       int64   `json:"ack_received"`
	MatchedDelayCount int64   `json:"matched_delay_count"`
	CumulativeDelay   float64 `json:"cumulative_delay"`
	Malformed         int64   `json:"malformed"`
	Unmatched         int64   `json:"unmatched"`
}

// Add folds one flow result into the totals.
func (t *GlobalTotals) Add(r FlowResult) {
	t.Flows++
	t.DataSent += r.Tally.DataSent
	t.DataReceived += r.Tally.DataReceived
	t.AckSent += r.Tally.AckSent
	t.AckReceived += r.Tally.AckReceived
	t.MatchedDelayCount += r.Delay.Count
	t.CumulativeDelay += r.Delay.Sum
	t.Malformed += r.Malformed
	t.Unmatched += r.Unmatched
}

// Merge folds another set of totals into t.
func (t *GlobalTotals) Merge(o GlobalTotals) {
	t.Flows += o.Flows
	t.DataSent += o.DataSent
	t.DataReceived += o.DataReceived
	t.AckSent += o.AckSent
	t.AckReceived += o.AckReceived
	t.MatchedDelayCount += o.MatchedDelayCount
	t.CumulativeDelay += o.CumulativeDelay
	t.Malformed += o.Malformed
	t.Unmatched += o.Unmatched
}

// TotalSent is data plus acknowledgements sent.
func (t GlobalTotals) TotalSent() int64 { return t.DataSent + t.AckSent }

// TotalReceived is data plus acknowledgements received.
func (t GlobalTotals) TotalReceived() int64 { return t.AckReceived + t.DataReceived }

// Lost may be negative when duplicates are received.
func (t GlobalTotals) Lost() int64 { return t.TotalSent() - t.TotalReceived() }

func (t GlobalTotals) DataLost() int64 { return t.DataSent - t.DataReceived }

// AverageDelay returns the mean one-way delay in seconds.
func (t GlobalTotals) AverageDelay() (float64, error) {
	if t.MatchedDelayCount == 0 {
		return 0, ErrNoMatchedSamples
	}
	return t.CumulativeDelay / float64(t.MatchedDelayCount), nil
}

// Partition selects the subset of the flow list handled by one run.
type Partition struct {
	Index int `yaml:"index" json:"index"`
	Count int `yaml:"count" json:"count"`
}

// Includes reports whether the flow at position i belongs to the partition.
func (p Partition) Includes(i int) bool {
	if p.Count <= 1 {
		return true
	}
	return i%p.Count == p.Index
}

// Report is the result of one correlation run.
type Report struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Partition   Partition    `json:"partition"`
	Totals      GlobalTotals `json:"totals"`
	Flows       []FlowResult `json:"flows,omitempty"`
}

// Flow returns the result of the given pair, if the report contains it.
func (r *Report) Flow(p FlowPair) (FlowResult, bool) {
	for _, f := range r.Flows {
		if f.Pair == p {
			return f, true
		}
	}
	return FlowResult{}, false
}
