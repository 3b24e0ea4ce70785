package report

import (
	"TraceCorrelator/internal/model"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// TextWriter writes the classic three-line report:
//
//	totalSent totalReceived lost
//	dataSent dataReceived dataLost
//	averageDelay
type TextWriter struct {
	path string
	out  io.Writer
}

// NewTextWriter creates a text writer. An empty path writes to stdout.
func NewTextWriter(path string) model.Writer {
	return &TextWriter{path: path, out: os.Stdout}
}

// NewTextWriterTo creates a text writer on an arbitrary stream.
func NewTextWriterTo(out io.Writer) model.Writer {
	return &TextWriter{out: out}
}

func (w *TextWriter) Name() string {
	return "text"
}

func (w *TextWriter) Write(report *model.Report) error {
	if w.path == "" {
		return WriteText(w.out, report.Totals)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create report file '%s': %w", w.path, err)
	}
	defer file.Close()

	if err := WriteText(file, report.Totals); err != nil {
		return err
	}
	log.Printf("Successfully wrote report to %s\n", w.path)
	return file.Close()
}

// WriteText renders totals in the three-line format. The delay line reads "n/a"
// when no delay sample matched.
func WriteText(out io.Writer, t model.GlobalTotals) error {
	delay := "n/a"
	avg, err := t.AverageDelay()
	switch {
	case err == nil:
		delay = strconv.FormatFloat(avg, 'g', -1, 64)
	case !errors.Is(err, model.ErrNoMatchedSamples):
		return err
	}

	_, err = fmt.Fprintf(out, "%d %d %d\n%d %d %d\n%s\n",
		t.TotalSent(), t.TotalReceived(), t.Lost(),
		t.DataSent, t.DataReceived, t.DataLost(),
		delay)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
