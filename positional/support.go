package positional

import "io"

// SupportNode is a single (evidence, kmerOffset) -> (kmer, weight,
// positionInterval, referenceFlag) tuple. It is the smallest unit
// SupportNodeStage produces.
type SupportNode struct {
	Kmer      Kmer
	Weight    int
	Interval  Interval
	Reference bool
	Evidence  EvidenceID
}

// qualityEpsilon is the small constant subtracted from each base quality
// before flooring at 1, in the per-kmer weight formula sum(max(1, q_b -
// epsilon)). Kept at 0 here: the evidence-extraction collaborator is
// expected to have already rescaled qualities, so this stage does not need
// a second adjustment.
const qualityEpsilon = 0

// SupportNodeStage converts a position-sorted, per-contig Evidence stream
// into a SupportNode stream sorted by Interval.Start across the *entire*
// contig, not just within one evidence's own occurrences. Two evidences can
// overlap -- a later-starting read's earliest kmer can still land genomically
// before an earlier-starting read's later kmers -- so a node computed from
// one evidence is held in buf until every evidence still to come is
// guaranteed to start at or past it.
type SupportNodeStage struct {
	upstream Source
	k        int
	config   Config
	derived  Derived
	tracker  *EvidenceTracker

	nextID    EvidenceID
	lastStart Pos

	// buf holds every computed SupportNode not yet known to be safe to
	// release, kept sorted by (Interval.Start, Kmer) at all times.
	buf []SupportNode
	// releaseBefore is the Start of the most recently pulled evidence: since
	// evidence arrives with non-decreasing Start and every node a future
	// evidence can produce has Interval.Start >= that evidence's Start, a
	// buffered node with Interval.Start < releaseBefore can never be beaten
	// by anything still upstream. In practice buf never holds more than
	// Derived.MaxEvidenceSupportIntervalWidth positions' worth of nodes.
	releaseBefore Pos
	eof           bool
	pendingErr    error
}

// NewSupportNodeStage builds a SupportNodeStage reading from upstream.
func NewSupportNodeStage(upstream Source, config Config, tracker *EvidenceTracker) *SupportNodeStage {
	return &SupportNodeStage{
		upstream:  upstream,
		k:         config.K,
		config:    config,
		derived:   config.Derive(),
		tracker:   tracker,
		lastStart: Pos(minInt64),
	}
}

const minInt64 = -1 << 62

// Next returns the next SupportNode in global Interval.Start order, or
// io.EOF once the evidence stream is exhausted and buf has drained. It
// returns a *Error with ErrKindMalformedInput if the upstream evidence is
// not sorted by Start within the contig.
func (s *SupportNodeStage) Next() (SupportNode, error) {
	for {
		if len(s.buf) > 0 && (s.eof || s.buf[0].Interval.Start < s.releaseBefore) {
			n := s.buf[0]
			s.buf = s.buf[1:]
			return n, nil
		}
		if s.eof {
			if s.pendingErr != nil {
				err := s.pendingErr
				s.pendingErr = nil
				return SupportNode{}, err
			}
			return SupportNode{}, io.EOF
		}
		ev, ok := s.advance()
		if !ok {
			continue
		}
		s.releaseBefore = ev.Start
		s.merge(s.computeNodes(ev))
	}
}

// advance pulls the next evidence from upstream, assigning it a stable
// EvidenceID and skipping it entirely if it is a pair-anchor and the
// configuration disables those. ok is false once the stream ends or a
// malformed-order error has been recorded in s.pendingErr; either way s.eof
// is set so Next starts draining buf.
func (s *SupportNodeStage) advance() (*Evidence, bool) {
	for {
		ev, err := s.upstream.Next()
		if err != nil {
			s.eof = true
			return nil, false
		}
		if ev.Kind == PairAnchor && !s.config.IncludePairAnchors {
			continue
		}
		if ev.Start < s.lastStart {
			s.pendingErr = newError(ErrKindMalformedInput, nil,
				"evidence stream out of order: start", ev.Start, "after", s.lastStart)
			s.eof = true
			return nil, false
		}
		s.lastStart = ev.Start
		ev.ID = s.nextID
		s.nextID++
		s.tracker.RegisterEvidence(ev)
		return ev, true
	}
}

// computeNodes returns every SupportNode ev contributes, sorted by
// (interval start, kmer).
func (s *SupportNodeStage) computeNodes(ev *Evidence) []SupportNode {
	var out []SupportNode
	readLen := len(ev.ReadBases)
	k := s.k
	if readLen < k {
		return out
	}
	ignoreEnd := 0
	if ev.Kind == PairAnchor {
		ignoreEnd = s.config.PairAnchorMismatchIgnoreEndBases
	}
	lastOffset := readLen - k
	for i := 0; i <= lastOffset; i++ {
		if i < ignoreEnd || i > lastOffset-ignoreEnd {
			continue // skip: spans ignored end-bases of a pair anchor
		}
		km, ok := EncodeKmer(ev.ReadBases[i:i+k], k)
		if !ok {
			continue // ambiguous base in this window: skip
		}
		weight := 0
		for b := 0; b < k; b++ {
			q := 0
			if i+b < len(ev.BaseQuals) {
				q = int(ev.BaseQuals[i+b])
			}
			adj := q - qualityEpsilon
			if adj < 1 {
				adj = 1
			}
			weight += adj
		}
		reference := isAnchorOffset(ev, i, lastOffset, k)
		iv := s.kmerInterval(ev, i)
		out = append(out, SupportNode{
			Kmer:      km,
			Weight:    weight,
			Interval:  iv,
			Reference: reference,
			Evidence:  ev.ID,
		})
	}
	sortSupportNodes(out)
	return out
}

// merge folds fresh (already sorted) into s.buf, keeping s.buf sorted.
func (s *SupportNodeStage) merge(fresh []SupportNode) {
	if len(fresh) == 0 {
		return
	}
	if len(s.buf) == 0 {
		s.buf = fresh
		return
	}
	merged := make([]SupportNode, 0, len(s.buf)+len(fresh))
	i, j := 0, 0
	for i < len(s.buf) && j < len(fresh) {
		if lessSupportNode(fresh[j], s.buf[i]) {
			merged = append(merged, fresh[j])
			j++
		} else {
			merged = append(merged, s.buf[i])
			i++
		}
	}
	merged = append(merged, s.buf[i:]...)
	merged = append(merged, fresh[j:]...)
	s.buf = merged
}

// kmerInterval computes the positional uncertainty carried by the kmer
// occurrence starting at read offset i within ev. A soft-clip's alignment is
// exact, so it carries none: a single-position interval at the kmer's
// genomic start. A pair-anchor's placement is only known up to the
// concordant fragment-size range, so its interval widens to
// MaxKmerSupportIntervalWidth positions.
func (s *SupportNodeStage) kmerInterval(ev *Evidence, i int) Interval {
	start := ev.Start + Pos(i)
	if ev.Kind != PairAnchor {
		return Interval{start, start}
	}
	width := Pos(s.derived.MaxKmerSupportIntervalWidth)
	if width < 1 {
		width = 1
	}
	return Interval{start, start + width - 1}
}

// isAnchorOffset decides whether the kmer starting at offset i falls inside
// ev's reference-anchored run: the first run offsets (forward evidence, the
// breakend is to its right) or the last run offsets (backward evidence, the
// breakend is to its left), where run grows with ev.AnchorLength so chained
// reference KmerPathNodes can span more than one kmer, per spec.md's
// anchorAssemblyLength gate. Evidence with no anchor at all (AnchorLength ==
// 0) never produces a reference-flagged kmer; any anchor at all guarantees
// at least one, even when AnchorLength is shorter than a full kmer.
func isAnchorOffset(ev *Evidence, offset, lastOffset, k int) bool {
	if ev.AnchorLength <= 0 {
		return false
	}
	run := ev.AnchorLength - k + 1
	if run < 1 {
		run = 1
	}
	if run > lastOffset+1 {
		run = lastOffset + 1
	}
	if ev.Direction == Forward {
		return offset < run
	}
	return offset >= lastOffset-run+1
}

func sortSupportNodes(nodes []SupportNode) {
	// Insertion sort: the slice is small (bounded by read length) and
	// already nearly sorted since offsets are generated in order; stable
	// and allocation-free.
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && lessSupportNode(nodes[j], nodes[j-1]); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

func lessSupportNode(a, b SupportNode) bool {
	if a.Interval.Start != b.Interval.Start {
		return a.Interval.Start < b.Interval.Start
	}
	return a.Kmer < b.Kmer
}
