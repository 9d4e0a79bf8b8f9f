package positional

import "io"

// Direction is the breakend orientation: forward means the novel sequence
// continues to the right of the anchor, backward means it continues to the
// left.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

// Kind distinguishes the two evidence types: a soft-clipped read anchored
// to the reference, or a discordant read-pair anchor.
type Kind uint8

const (
	SoftClip Kind = iota
	PairAnchor
)

// EvidenceID identifies an Evidence record stably for the lifetime of a
// single pipeline; it is the key the EvidenceTracker uses.
type EvidenceID uint32

// Evidence is a single piece of input: a soft-clip or discordant read-pair
// record, positioned and oriented against the reference.
type Evidence struct {
	ID             EvidenceID
	ReferenceIndex int
	// Start, End is the evidence's positional support interval: the
	// genomic range its kmers may occupy.
	Start, End Pos
	Direction  Direction
	Kind       Kind
	ReadBases  []byte
	BaseQuals  []byte
	// AnchorLength is the number of bases (from the read's reference-
	// anchored side) that align to the reference; SupportNodeStage uses it
	// to decide which kmer offsets are reference-flagged.
	AnchorLength int
}

// Interval returns the evidence's support interval.
func (e *Evidence) Interval() Interval { return newInterval(e.Start, e.End) }

// Source is a position-sorted evidence iterator: the sole input to the
// pipeline. Implementations must yield records ordered by (ReferenceIndex,
// Start); SupportNodeStage.Next returns a MalformedInput *Error when Start
// decreases from one record to the next. ReferenceIndex order is not checked
// there.
//
// Next returns io.EOF (not wrapped) when the source is exhausted.
type Source interface {
	Next() (*Evidence, error)
}

// SliceSource adapts a pre-built slice of Evidence into a Source, for tests
// and small-scale driving code.
type SliceSource struct {
	items []*Evidence
	pos   int
}

// NewSliceSource returns a Source that yields items in order.
func NewSliceSource(items []*Evidence) *SliceSource {
	return &SliceSource{items: items}
}

func (s *SliceSource) Next() (*Evidence, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	ev := s.items[s.pos]
	s.pos++
	return ev, nil
}

// DirectionFilter wraps a Source, dropping evidence that does not match
// direction. A nil direction pointer passes everything through.
type DirectionFilter struct {
	Upstream  Source
	Direction *Direction
}

func (f *DirectionFilter) Next() (*Evidence, error) {
	for {
		ev, err := f.Upstream.Next()
		if err != nil {
			return nil, err
		}
		if f.Direction == nil || ev.Direction == *f.Direction {
			return ev, nil
		}
	}
}

// perContigGate restricts an upstream Source to a single reference index,
// reporting io.EOF once the upstream advances past it. It never consumes
// the first out-of-contig record silently -- the caller must retrieve it
// via peekNextReferenceIndex to start the next pipeline.
type perContigGate struct {
	upstream       Source
	referenceIndex int
	peeked         *Evidence
	peekErr        error
	havePeek       bool
}

func newPerContigGate(upstream Source, referenceIndex int) *perContigGate {
	return &perContigGate{upstream: upstream, referenceIndex: referenceIndex}
}

func (g *perContigGate) fill() {
	if !g.havePeek {
		g.peeked, g.peekErr = g.upstream.Next()
		g.havePeek = true
	}
}

// Next returns the next Evidence within referenceIndex, or io.EOF once the
// upstream is exhausted or has moved to a different reference index.
func (g *perContigGate) Next() (*Evidence, error) {
	g.fill()
	if g.peekErr != nil {
		return nil, g.peekErr
	}
	if g.peeked.ReferenceIndex != g.referenceIndex {
		return nil, io.EOF
	}
	ev := g.peeked
	g.havePeek = false
	g.peeked = nil
	return ev, nil
}

// peekNextReferenceIndex looks past the current contig without consuming,
// returning ok=false if the upstream is exhausted.
func (g *perContigGate) peekNextReferenceIndex() (int, bool) {
	g.fill()
	if g.peekErr != nil {
		return 0, false
	}
	return g.peeked.ReferenceIndex, true
}
