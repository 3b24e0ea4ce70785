package codec

import (
	"TraceCorrelator/internal/model"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Counts travel as protobuf number values (float64), which are exact up to 2^53.

// PartialReport is the part of a report needed to merge runs of disjoint partitions.
type PartialReport struct {
	RunID       string
	GeneratedAt time.Time
	Partition   model.Partition
	Totals      model.GlobalTotals
}

// Partial extracts the mergeable part of a report.
func Partial(r *model.Report) PartialReport {
	return PartialReport{RunID: r.RunID, GeneratedAt: r.GeneratedAt, Partition: r.Partition, Totals: r.Totals}
}

// TotalsToStruct converts totals, including the derived loss and delay figures.
// average_delay is null when no samples matched.
func TotalsToStruct(t model.GlobalTotals) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"flows":               structpb.NewNumberValue(float64(t.Flows)),
		"data_sent":           structpb.NewNumberValue(float64(t.DataSent)),
		"data_received":       structpb.NewNumberValue(float64(t.DataReceived)),
		"ack_sent":            structpb.NewNumberValue(float64(t.AckSent)),
		"ack_received":        structpb.NewNumberValue(float64(t.AckReceived)),
		"matched_delay_count": structpb.NewNumberValue(float64(t.MatchedDelayCount)),
		"cumulative_delay":    structpb.NewNumberValue(t.CumulativeDelay),
		"malformed":           structpb.NewNumberValue(float64(t.Malformed)),
		"unmatched":           structpb.NewNumberValue(float64(t.Unmatched)),
		"total_sent":          structpb.NewNumberValue(float64(t.TotalSent())),
		"total_received":      structpb.NewNumberValue(float64(t.TotalReceived())),
		"lost":                structpb.NewNumberValue(float64(t.Lost())),
		"data_lost":           structpb.NewNumberValue(float64(t.DataLost())),
		"average_delay":       structpb.NewNullValue(),
	}
	if avg, err := t.AverageDelay(); err == nil {
		fields["average_delay"] = structpb.NewNumberValue(avg)
	}
	return &structpb.Struct{Fields: fields}
}

// TotalsFromStruct reads back the raw sums written by TotalsToStruct; derived
// fields are ignored and recomputed by the caller.
func TotalsFromStruct(s *structpb.Struct) (model.GlobalTotals, error) {
	var t model.GlobalTotals
	ints := map[string]*int64{
		"flows":               &t.Flows,
		"data_sent":           &t.DataSent,
		"data_received":       &t.DataReceived,
		"ack_sent":            &t.AckSent,
		"ack_received":        &t.AckReceived,
		"matched_delay_count": &t.MatchedDelayCount,
		"malformed":           &t.Malformed,
		"unmatched":           &t.Unmatched,
	}
	for name, dst := range ints {
		v, ok := s.GetFields()[name]
		if !ok {
			return model.GlobalTotals{}, fmt.Errorf("missing field %q", name)
		}
		*dst = int64(v.GetNumberValue())
	}
	v, ok := s.GetFields()["cumulative_delay"]
	if !ok {
		return model.GlobalTotals{}, fmt.Errorf("missing field %q", "cumulative_delay")
	}
	t.CumulativeDelay = v.GetNumberValue()
	return t, nil
}

// PartialToStruct encodes a partial report.
func PartialToStruct(p PartialReport) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"run_id":          structpb.NewStringValue(p.RunID),
		"generated_at":    structpb.NewStringValue(p.GeneratedAt.UTC().Format(time.RFC3339Nano)),
		"partition_index": structpb.NewNumberValue(float64(p.Partition.Index)),
		"partition_count": structpb.NewNumberValue(float64(p.Partition.Count)),
		"totals":          structpb.NewStructValue(TotalsToStruct(p.Totals)),
	}}
}

// PartialFromStruct decodes a partial report.
func PartialFromStruct(s *structpb.Struct) (PartialReport, error) {
	f := s.GetFields()
	runID := f["run_id"].GetStringValue()
	if runID == "" {
		return PartialReport{}, fmt.Errorf("partial report has no run_id")
	}
	generatedAt, err := time.Parse(time.RFC3339Nano, f["generated_at"].GetStringValue())
	if err != nil {
		return PartialReport{}, fmt.Errorf("invalid generated_at: %w", err)
	}
	totalsStruct := f["totals"].GetStructValue()
	if totalsStruct == nil {
		return PartialReport{}, fmt.Errorf("partial report %s has no totals", runID)
	}
	totals, err := TotalsFromStruct(totalsStruct)
	if err != nil {
		return PartialReport{}, fmt.Errorf("partial report %s: %w", runID, err)
	}
	return PartialReport{
		RunID:       runID,
		GeneratedAt: generatedAt,
		Partition: model.Partition{
			Index: int(f["partition_index"].GetNumberValue()),
			Count: int(f["partition_count"].GetNumberValue()),
		},
		Totals: totals,
	}, nil
}

// FlowToStruct converts one flow result for API responses.
func FlowToStruct(r model.FlowResult) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"sender":        structpb.NewNumberValue(float64(r.Pair.Sender)),
		"receiver":      structpb.NewNumberValue(float64(r.Pair.Receiver)),
		"data_sent":     structpb.NewNumberValue(float64(r.Tally.DataSent)),
		"data_received": structpb.NewNumberValue(float64(r.Tally.DataReceived)),
		"ack_sent":      structpb.NewNumberValue(float64(r.Tally.AckSent)),
		"ack_received":  structpb.NewNumberValue(float64(r.Tally.AckReceived)),
		"delay_samples": structpb.NewNumberValue(float64(r.Delay.Count)),
		"delay_sum":     structpb.NewNumberValue(r.Delay.Sum),
		"malformed":     structpb.NewNumberValue(float64(r.Malformed)),
		"unmatched":     structpb.NewNumberValue(float64(r.Unmatched)),
		"average_delay": structpb.NewNullValue(),
	}
	if r.Delay.Count > 0 {
		fields["average_delay"] = structpb.NewNumberValue(r.Delay.Sum / float64(r.Delay.Count))
	}
	return &structpb.Struct{Fields: fields}
}
