package report

import (
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/model"
	"context"
	"fmt"
	"log"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS flow_loss (
    Timestamp      DateTime,
    RunID          String,
    PartitionIndex UInt32,
    PartitionCount UInt32,
    Sender         UInt32,
    Receiver       UInt32,
    DataSent       UInt64,
    DataReceived   UInt64,
    AckSent        UInt64,
    AckReceived    UInt64,
    DelaySamples   UInt64,
    DelaySum       Float64,
    Malformed      UInt64,
    Unmatched      UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, Sender, Receiver);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
// Each flow of a report becomes one row, so run totals are plain SUMs.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter creates a new ClickHouse writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
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

func (w *ClickHouseWriter) Name() string {
	return "clickhouse"
}

// Write inserts the flow results of a report into the flow_loss table.
func (w *ClickHouseWriter) Write(report *model.Report) error {
	if len(report.Flows) == 0 {
		return nil // Nothing to write
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO flow_loss")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, flow := range report.Flows {
		err = batch.Append(
			report.GeneratedAt,
			report.RunID,
			uint32(report.Partition.Index),
			uint32(report.Partition.Count),
			uint32(flow.Pair.Sender),
			uint32(flow.Pair.Receiver),
			uint64(flow.Tally.DataSent),
			uint64(flow.Tally.DataReceived),
			uint64(flow.Tally.AckSent),
			uint64(flow.Tally.AckReceived),
			uint64(flow.Delay.Count),
			flow.Delay.Sum,
			uint64(flow.Malformed),
			uint64(flow.Unmatched),
		)
		if err != nil {
			return fmt.Errorf("failed to append flow to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d flows to ClickHouse for run '%s'", len(report.Flows), report.RunID)
	return nil
}

// Close closes the ClickHouse connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
