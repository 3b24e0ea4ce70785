package codec

import (
	"TraceCorrelator/internal/model"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestPartialWireFormat(t *testing.T) {
	in := PartialReport{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Partition:   model.Partition{Index: 1, Count: 3},
		Totals: model.GlobalTotals{
			Flows: 12, DataSent: 1000, DataReceived: 990, AckSent: 980, AckReceived: 975,
			MatchedDelayCount: 985, CumulativeDelay: 4.925, Malformed: 2, Unmatched: 3,
		},
	}

	data, err := proto.Marshal(PartialToStruct(in))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	out, err := PartialFromStruct(&s)
	if err != nil {
		t.Fatalf("PartialFromStruct failed: %v", err)
	}

	if out.RunID != in.RunID || out.Partition != in.Partition || out.Totals != in.Totals || !out.GeneratedAt.Equal(in.GeneratedAt) {
		t.Errorf("Decoded partial %+v differs from %+v", out, in)
	}
	if got := s.GetFields()["totals"].GetStructValue().GetFields()["lost"].GetNumberValue(); got != 25 {
		t.Errorf("Expected derived lost 25, got %v", got)
	}
}

func TestTotalsToStruct_NoSamples(t *testing.T) {
	s := TotalsToStruct(model.GlobalTotals{})
	if _, ok := s.GetFields()["average_delay"].GetKind().(*structpb.Value_NullValue); !ok {
		t.Errorf("Expected null average_delay, got %v", s.GetFields()["average_delay"])
	}
}

func TestPartialFromStruct_MissingRunID(t *testing.T) {
	s := PartialToStruct(PartialReport{GeneratedAt: time.Now()})
	if _, err := PartialFromStruct(s); err == nil {
		t.Error("Expected an error for a partial without run_id")
	}
}
