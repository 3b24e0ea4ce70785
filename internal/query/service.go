package query

import (
	"TraceCorrelator/internal/codec"
	"TraceCorrelator/internal/engine/loader"
	"TraceCorrelator/internal/model"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service runs correlations on demand and serves the latest report.
type Service struct {
	correlator model.Correlator
	history    Querier // optional, nil when no ClickHouse writer is configured
	onReport   func(*model.Report)

	mu     sync.Mutex // serializes correlation runs
	latest *model.Report
	rw     sync.RWMutex
}

// NewService creates a query service. history may be nil. onReport, when set, is
// called with every successful report after it becomes the latest one.
func NewService(correlator model.Correlator, history Querier, onReport func(*model.Report)) *Service {
	return &Service{correlator: correlator, history: history, onReport: onReport}
}

// Correlate runs one correlation pass and stores its report as the latest.
func (s *Service) Correlate(ctx context.Context) (*model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.correlator.Run(ctx)
	if err != nil {
		return nil, err
	}

	s.rw.Lock()
	s.latest = report
	s.rw.Unlock()

	if s.onReport != nil {
		s.onReport(report)
	}
	return report, nil
}

// Latest returns the most recent report, or nil before the first run.
func (s *Service) Latest() *model.Report {
	s.rw.RLock()
	defer s.rw.RUnlock()
	return s.latest
}

// Router builds the HTTP routes of the service.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/correlate", s.correlateHandler).Methods("POST")
	r.HandleFunc("/api/v1/report", s.reportHandler).Methods("GET")
	r.HandleFunc("/api/v1/flows/{sender:[0-9]+}/{receiver:[0-9]+}", s.flowHandler).Methods("GET")
	r.HandleFunc("/api/v1/runs/{run_id}", s.runHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Service) correlateHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.Correlate(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, loader.ErrTraceNotFound) {
			status = http.StatusNotFound
		}
		log.Printf("Correlation failed: %v", err)
		http.Error(w, fmt.Sprintf("correlation failed: %v", err), status)
		return
	}
	writeProto(w, reportToStruct(report))
}

func (s *Service) reportHandler(w http.ResponseWriter, r *http.Request) {
	report := s.Latest()
	if report == nil {
		http.Error(w, "no report available yet", http.StatusNotFound)
		return
	}
	writeProto(w, reportToStruct(report))
}

func (s *Service) flowHandler(w http.ResponseWriter, r *http.Request) {
	report := s.Latest()
	if report == nil {
		http.Error(w, "no report available yet", http.StatusNotFound)
		return
	}

	vars := mux.Vars(r)
	sender, err := strconv.Atoi(vars["sender"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid sender: %v", err), http.StatusBadRequest)
		return
	}
	receiver, err := strconv.Atoi(vars["receiver"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid receiver: %v", err), http.StatusBadRequest)
		return
	}

	pair := model.FlowPair{Sender: sender, Receiver: receiver}
	flow, ok := report.Flow(pair)
	if !ok {
		http.Error(w, fmt.Sprintf("flow %s is not part of the latest report", pair), http.StatusNotFound)
		return
	}
	writeProto(w, codec.FlowToStruct(flow))
}

func (s *Service) runHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "run history requires an enabled clickhouse or bolt writer", http.StatusNotImplemented)
		return
	}

	runID := mux.Vars(r)["run_id"]
	totals, err := s.history.RunTotals(r.Context(), runID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, fmt.Sprintf("failed to query run: %v", err), status)
		return
	}

	writeProto(w, &structpb.Struct{Fields: map[string]*structpb.Value{
		"run_id": structpb.NewStringValue(runID),
		"totals": structpb.NewStructValue(codec.TotalsToStruct(totals)),
	}})
}

// reportToStruct renders the partial view of a report plus its per-flow results.
func reportToStruct(report *model.Report) *structpb.Struct {
	s := codec.PartialToStruct(codec.Partial(report))
	flows := make([]*structpb.Value, 0, len(report.Flows))
	for _, f := range report.Flows {
		flows = append(flows, structpb.NewStructValue(codec.FlowToStruct(f)))
	}
	s.Fields["flows"] = structpb.NewListValue(&structpb.ListValue{Values: flows})
	return s
}

func writeProto(w http.ResponseWriter, m proto.Message) {
	jsonBytes, err := protojson.Marshal(m)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
