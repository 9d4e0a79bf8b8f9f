package positional

import (
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/log"
)

// countingSupport, countingAggregate and countingPath wrap a stage and
// tally how many items it has emitted, for export.go's per-pipeline
// StageCounters snapshot. One shape covers all three narrow interfaces
// since each just forwards Next and bumps a shared counter.
type countingSupport struct {
	upstream supportSource
	count    *int
}

func (c countingSupport) Next() (SupportNode, error) {
	n, err := c.upstream.Next()
	if err == nil {
		*c.count++
	}
	return n, err
}

type countingAggregate struct {
	upstream aggregateSource
	count    *int
}

func (c countingAggregate) Next() (KmerNode, error) {
	n, err := c.upstream.Next()
	if err == nil {
		*c.count++
	}
	return n, err
}

type countingPath struct {
	upstream pathSource
	count    *int
}

func (c countingPath) Next() (KmerPathNode, error) {
	n, err := c.upstream.Next()
	if err == nil {
		*c.count++
	}
	return n, err
}

// ContigNamer maps a reference index to the name the driver logs and uses
// for the optional CSV export's file name; a nil ContigNamer falls back to
// the decimal reference index.
type ContigNamer func(referenceIndex int) string

// Driver is the outer loop: it advances a perContigGate across reference
// indices, building and tearing down one complete pipeline per contig, and
// dispatches failures per its strict/recovery rule. One Driver handles a
// single assembly direction; a caller wanting both directions runs two
// Drivers over independent Sources (see cmd/bio-assemble).
type Driver struct {
	gate         *perContigGate
	direction    Direction
	config       Config
	recoveryMode bool
	exportDir    string
	namer        ContigNamer

	referenceIndex int
	tracker        *EvidenceTracker
	root           *PathNodeStage
	assembler      *ContigAssembler
	exporter       *Exporter
	counters       StageCounters

	justRecovered bool
}

// NewDriver builds a Driver over upstream, which must already be restricted
// to one assembly direction (wrap with &DirectionFilter{Upstream: ...} if
// the evidence source is not direction-pure). exportDir enables the
// per-contig CSV side output when non-empty; recoveryMode selects recovery
// dispatch for a failed contig instead of propagating the failure to the
// caller.
func NewDriver(upstream Source, direction Direction, config Config, recoveryMode bool, exportDir string, namer ContigNamer) *Driver {
	if namer == nil {
		namer = func(ri int) string { return strconv.Itoa(ri) }
	}
	return &Driver{
		gate:         newPerContigGate(upstream, 0),
		direction:    direction,
		config:       config,
		recoveryMode: recoveryMode,
		exportDir:    exportDir,
		namer:        namer,
	}
}

// Next returns the next assembled Contig across every reference index the
// underlying evidence stream covers, or io.EOF once it is exhausted.
func (d *Driver) Next() (Contig, error) {
	for {
		if d.assembler == nil {
			ok, err := d.ensurePipeline()
			if err != nil {
				return Contig{}, err
			}
			if !ok {
				return Contig{}, io.EOF
			}
		}
		c, err := d.assembler.Next()
		if err == nil {
			d.counters.ContigsEmitted++
			return c, nil
		}
		if err == io.EOF {
			d.closePipeline()
			d.justRecovered = false
			continue
		}

		// Every classified failure is recoverable once recovery mode is on:
		// the driver's job is to keep producing contigs for the reference
		// indices that do assemble cleanly, not to pick and choose among
		// failure kinds.
		_, known := KindOf(err)
		recoverable := known
		if !d.recoveryMode || !recoverable || d.justRecovered {
			d.closePipeline()
			return Contig{}, err
		}

		log.Error.Printf("positional: contig %s failed, recovering: %v", d.namer(d.referenceIndex), err)
		d.closePipeline()
		d.drainCurrentContig()

		// Two-phase recovery: the attempt below is made unconditionally,
		// exactly once. If the next contig it opens fails in turn, that failure
		// is reported as-is on the next loop iteration with justRecovered
		// already set, rather than triggering a second recovery.
		d.justRecovered = true
		ok, err2 := d.ensurePipeline()
		if err2 != nil {
			return Contig{}, err2
		}
		if !ok {
			return Contig{}, io.EOF
		}
	}
}

// ensurePipeline opens the pipeline for the next reference index the gate
// can see, or reports ok=false if the evidence stream is exhausted.
func (d *Driver) ensurePipeline() (bool, error) {
	refIdx, ok := d.gate.peekNextReferenceIndex()
	if !ok {
		return false, nil
	}
	if err := d.openPipeline(refIdx); err != nil {
		return false, err
	}
	return true, nil
}

// openPipeline builds a fresh tracker and the full stage chain for
// referenceIndex, wiring CollapseStage/SimplifyStage in when
// MaxBaseMismatchForCollapse makes collapsing meaningful, and the optional
// CheckingStage interceptors when Config.SanityCheckGraph is set.
func (d *Driver) openPipeline(referenceIndex int) error {
	if err := d.config.Validate(); err != nil {
		return err
	}
	d.referenceIndex = referenceIndex
	d.gate.referenceIndex = referenceIndex
	d.tracker = NewEvidenceTracker()
	d.counters = StageCounters{}

	var support supportSource = NewSupportNodeStage(d.gate, d.config, d.tracker)
	if d.config.SanityCheckGraph {
		support = NewCheckingSupportStage(support, d.tracker)
	}
	support = countingSupport{upstream: support, count: &d.counters.SupportNodes}

	var agg aggregateSource = NewAggregateStage(support, d.tracker)
	if d.config.SanityCheckGraph {
		agg = NewCheckingAggregateStage(agg)
	}
	agg = countingAggregate{upstream: agg, count: &d.counters.Aggregates}

	root := NewPathNodeStage(agg, d.config, d.tracker)
	d.root = root

	var tail pathSource = countingPath{upstream: root, count: &d.counters.PathNodes}

	if d.config.MaxBaseMismatchForCollapse > 0 {
		tail = countingPath{
			upstream: NewCollapseStage(tail, root, d.config, d.tracker),
			count:    &d.counters.Collapsed,
		}
		tail = countingPath{
			upstream: NewSimplifyStage(tail, root, d.config, d.tracker),
			count:    &d.counters.Simplified,
		}
	}
	if d.config.SanityCheckGraph {
		tail = NewCheckingPathStage(tail, d.tracker)
	}

	d.assembler = NewContigAssembler(tail, root, d.config, d.tracker, referenceIndex, d.direction)

	if d.exportDir != "" {
		exp, err := NewExporter(d.exportDir, d.namer(referenceIndex), d.direction)
		if err != nil {
			log.Debug.Printf("positional: export disabled for contig %s: %v", d.namer(referenceIndex), err)
		} else {
			d.exporter = exp
		}
	}
	return nil
}

// closePipeline writes the final StageCounters snapshot (if export is
// configured) and tears down the current pipeline's state.
func (d *Driver) closePipeline() {
	if d.exporter != nil {
		d.counters.LiveEvidence = d.tracker.LiveEvidenceCount()
		if err := d.exporter.WriteCounters(d.counters); err != nil {
			log.Debug.Printf("positional: export write failed for contig %s: %v", d.namer(d.referenceIndex), err)
		}
		if err := d.exporter.Close(); err != nil {
			log.Debug.Printf("positional: export close failed for contig %s: %v", d.namer(d.referenceIndex), err)
		}
		d.exporter = nil
	}
	d.assembler = nil
	d.root = nil
	d.tracker = nil
}

// drainCurrentContig discards every remaining evidence record belonging to
// the contig the gate is currently restricted to, so the next
// ensurePipeline call starts cleanly at the following reference index.
func (d *Driver) drainCurrentContig() {
	for {
		if _, err := d.gate.Next(); err != nil {
			return
		}
	}
}

// String names a Driver for log lines that don't have a contig in scope
// yet (e.g. construction-time warnings).
func (d *Driver) String() string {
	return fmt.Sprintf("Driver(direction=%s)", directionName(d.direction))
}
