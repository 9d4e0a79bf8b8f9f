package positional

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	grailerrors "github.com/grailbio/base/errors"
)

// StageCounters is the per-step item count the optional CSV side output
// records, one snapshot per pipeline exhaustion or failure.
type StageCounters struct {
	SupportNodes   int
	Aggregates     int
	PathNodes      int
	Collapsed      int
	Simplified     int
	ContigsEmitted int
	LiveEvidence   int
}

func directionName(d Direction) string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Exporter writes the optional per-pipeline CSV side output: one file per
// (referenceIndex, direction), opened at pipeline start and closed on
// exhaustion or failure. Uses github.com/grailbio/base/errors.Once to
// aggregate an operation error with a deferred Close error into a single
// return value.
type Exporter struct {
	f        *os.File
	w        *csv.Writer
	closeErr grailerrors.Once
}

// NewExporter opens positional-<contigName>-<direction>.csv under dir.
func NewExporter(dir, contigName string, direction Direction) (*Exporter, error) {
	name := fmt.Sprintf("positional-%s-%s.csv", contigName, directionName(direction))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, newError(ErrKindResourceFailure, err, "export: opening", name)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"stage", "count"}); err != nil {
		f.Close()
		return nil, newError(ErrKindResourceFailure, err, "export: writing header for", name)
	}
	return &Exporter{f: f, w: w}, nil
}

// WriteCounters appends one row per stage counter. Failures are
// ResourceFailure: logged by the caller at debug and otherwise non-fatal to
// the pipeline.
func (e *Exporter) WriteCounters(c StageCounters) error {
	rows := [][]string{
		{"support_nodes", strconv.Itoa(c.SupportNodes)},
		{"aggregates", strconv.Itoa(c.Aggregates)},
		{"path_nodes", strconv.Itoa(c.PathNodes)},
		{"collapsed", strconv.Itoa(c.Collapsed)},
		{"simplified", strconv.Itoa(c.Simplified)},
		{"contigs_emitted", strconv.Itoa(c.ContigsEmitted)},
		{"live_evidence", strconv.Itoa(c.LiveEvidence)},
	}
	for _, row := range rows {
		if err := e.w.Write(row); err != nil {
			return newError(ErrKindResourceFailure, err, "export: writing row")
		}
	}
	return nil
}

// Close flushes and closes the underlying file, aggregating both potential
// failure points into a single error via errors.Once.
func (e *Exporter) Close() error {
	e.w.Flush()
	e.closeErr.Set(e.w.Error())
	e.closeErr.Set(e.f.Close())
	if err := e.closeErr.Err(); err != nil {
		return newError(ErrKindResourceFailure, err, "export: closing")
	}
	return nil
}
