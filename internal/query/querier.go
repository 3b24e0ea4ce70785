package query

import (
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/model"
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Querier defines the interface for querying stored correlation results.
// RunTotals returns model.ErrRunNotFound for unknown runs.
type Querier interface {
	RunTotals(ctx context.Context, runID string) (model.GlobalTotals, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// RunTotals sums the stored flows of a run across all of its partitions.
// Re-running a partition under the same run id stores its flows twice; only the
// latest row per (partition, flow) is counted.
func (q *clickhouseQuerier) RunTotals(ctx context.Context, runID string) (model.GlobalTotals, error) {
	const statement = `
		SELECT
			count() AS FlowCount,
			sum(LatestDataSent), sum(LatestDataReceived), sum(LatestAckSent), sum(LatestAckReceived),
			sum(LatestDelaySamples), sum(LatestDelaySum), sum(LatestMalformed), sum(LatestUnmatched)
		FROM (
			SELECT
				argMax(DataSent, Timestamp) AS LatestDataSent,
				argMax(DataReceived, Timestamp) AS LatestDataReceived,
				argMax(AckSent, Timestamp) AS LatestAckSent,
				argMax(AckReceived, Timestamp) AS LatestAckReceived,
				argMax(DelaySamples, Timestamp) AS LatestDelaySamples,
				argMax(DelaySum, Timestamp) AS LatestDelaySum,
				argMax(Malformed, Timestamp) AS LatestMalformed,
				argMax(Unmatched, Timestamp) AS LatestUnmatched
			FROM flow_loss
			WHERE RunID = ?
			GROUP BY PartitionIndex, Sender, Receiver
		)
	`

	var (
		flows                                        uint64
		dataSent, dataReceived, ackSent, ackReceived uint64
		samples, malformed, unmatched                uint64
		delaySum                                     float64
	)
	row := q.conn.QueryRow(ctx, statement, runID)
	if err := row.Scan(&flows, &dataSent, &dataReceived, &ackSent, &ackReceived, &samples, &delaySum, &malformed, &unmatched); err != nil {
		return model.GlobalTotals{}, fmt.Errorf("failed to scan run totals: %w", err)
	}
	if flows == 0 {
		return model.GlobalTotals{}, fmt.Errorf("%w: %s", model.ErrRunNotFound, runID)
	}

	return model.GlobalTotals{
		Flows:             int64(flows),
		DataSent:          int64(dataSent),
		DataReceived:      int64(dataReceived),
		AckSent:           int64(ackSent),
		AckReceived:       int64(ackReceived),
		MatchedDelayCount: int64(samples),
		CumulativeDelay:   delaySum,
		Malformed:         int64(malformed),
		Unmatched:         int64(unmatched),
	}, nil
}
