package trace

import (
	"TraceCorrelator/internal/engine/protocol"
	"TraceCorrelator/internal/model"
	"bufio"
	"errors"
	"io"
	"os"
)

// maxLineSize bounds a single trace line.
const maxLineSize = 1 << 20

// Stats describes what a Reader saw in a trace.
type Stats struct {
	Lines     int64 // every line read
	Events    int64 // lines with an endpoint pair
	Malformed int64 // events without a usable timestamp or sequence id
	Ignored   int64 // lines without an endpoint pair
}

// Reader reads decoded packet records from a text trace.
type Reader struct {
	r      io.Reader
	closer io.Closer
}

// NewReader opens the trace file at the given path.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{r: f, closer: f}, nil
}

// NewReaderFrom wraps an already open stream.
func NewReaderFrom(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Close closes the underlying file, if the Reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadEvents reads the whole trace and returns its events in file order.
// Lines without an endpoint pair are counted and skipped.
func (r *Reader) ReadEvents() ([]model.TraceEvent, Stats, error) {
	var (
		events []model.TraceEvent
		stats  Stats
	)

	scanner := bufio.NewScanner(r.r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		stats.Lines++
		ev, err := protocol.ParseLine(scanner.Text())
		if err != nil {
			if errors.Is(err, protocol.ErrNoEndpoints) {
				stats.Ignored++
				continue
			}
			return nil, stats, err
		}
		if ev.Malformed {
			stats.Malformed++
		}
		stats.Events++
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, err
	}

	return events, stats, nil
}
