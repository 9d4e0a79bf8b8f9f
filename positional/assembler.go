package positional

import (
	"io"
	"sort"
)

// Contig is a linear chain of KmerPathNodes selected for emission, carrying
// its reconstructed sequence and the output fields external collaborators
// need to turn it into an alignment record.
type Contig struct {
	ReferenceIndex int
	Direction      Direction
	// Anchored reports whether the contig could be rooted at a
	// reference-flagged anchor within the window. An unanchored contig is
	// still emitted, with AnchorPosition left at its zero value.
	Anchored              bool
	AnchorPosition        Pos
	BaseCalls             []byte
	BaseQuals             []byte
	AnchoredBaseCount     int
	SupportingEvidenceIDs []EvidenceID
}

// adjacencySource is the read side of PathNodeStage's adjacency map that
// ContigAssembler needs for graph traversal.
type adjacencySource interface {
	SuccessorsOf(id NodeID) []NodeID
	PredecessorsOf(id NodeID) []NodeID
	Detach(id NodeID)
}

// ContigAssembler drives the assembly proper: it maintains a sliding window
// of KmerPathNodes, repeatedly extracts the best-scoring non-reference
// contig anchored to the reference, emits it, then releases the evidence it
// consumed.
type ContigAssembler struct {
	upstream       pathSource
	adj            adjacencySource
	tracker        *EvidenceTracker
	config         Config
	derived        Derived
	referenceIndex int
	direction      Direction

	win           *windowStore
	upstreamDone  bool
	lastAnchorEnd Pos

	out    []Contig
	outIdx int
	done   bool
}

// NewContigAssembler builds a ContigAssembler reading from upstream (the
// tail of the pipeline: PathNodeStage, or CollapseStage/SimplifyStage if
// configured). adj must be the *PathNodeStage at the root of the chain --
// CollapseStage and SimplifyStage mutate its adjacency in place, so it
// stays authoritative regardless of how many stages sit between it and
// upstream.
func NewContigAssembler(upstream pathSource, adj adjacencySource, config Config, tracker *EvidenceTracker, referenceIndex int, direction Direction) *ContigAssembler {
	return &ContigAssembler{
		upstream:       upstream,
		adj:            adj,
		tracker:        tracker,
		config:         config,
		derived:        config.Derive(),
		referenceIndex: referenceIndex,
		direction:      direction,
		win:            newWindowStore(),
	}
}

func (a *ContigAssembler) Next() (Contig, error) {
	for {
		if a.outIdx < len(a.out) {
			c := a.out[a.outIdx]
			a.outIdx++
			return c, nil
		}
		if a.done {
			return Contig{}, io.EOF
		}
		if err := a.fillWindow(); err != nil {
			return Contig{}, err
		}
		c, ok := a.assembleBest()
		if ok {
			a.out = []Contig{c}
			a.outIdx = 0
			a.evict()
			continue
		}
		if a.upstreamDone {
			a.done = true
			continue
		}
		// No contig could be assembled yet and there's more input: pull
		// further before giving up on this round.
		if err := a.pullOne(); err != nil {
			return Contig{}, err
		}
	}
}

// fillWindow pulls from upstream until the window's stable region extends
// far enough past the last emitted anchor to guarantee any contig rooted
// there has seen all the evidence it ever will.
func (a *ContigAssembler) fillWindow() error {
	threshold := Pos(a.derived.MaxEvidenceSupportIntervalWidth + a.config.AnchorLength)
	for !a.upstreamDone {
		front, ok := a.win.frontierStart()
		if ok && front-a.lastAnchorEnd >= threshold {
			return nil
		}
		if err := a.pullOne(); err != nil {
			return err
		}
	}
	return nil
}

func (a *ContigAssembler) pullOne() error {
	n, err := a.upstream.Next()
	if err == io.EOF {
		a.upstreamDone = true
		return nil
	}
	if err != nil {
		return err
	}
	a.win.insert(n)
	return nil
}

// candidate is one scored walk through the window: an optional anchor node
// followed by a maximal chain of non-reference nodes.
type candidate struct {
	anchorID NodeID
	anchored bool
	chain    []NodeID // non-reference nodes, in emission order
	score    int
}

// assembleBest finds the highest-scoring candidate currently extractable
// from the window, or ok=false if none qualifies yet.
func (a *ContigAssembler) assembleBest() (Contig, bool) {
	var best *candidate
	for _, id := range a.win.ascending() {
		n, ok := a.win.get(id)
		if !ok || !n.Reference || n.Length() < a.config.AnchorLength {
			continue
		}
		c := a.walkFromAnchor(id)
		if c == nil {
			continue
		}
		if best == nil || c.score > best.score || (c.score == best.score && c.anchorID < best.anchorID) {
			best = c
		}
	}
	if best == nil {
		best = a.bestUnanchored()
	}
	if best == nil {
		return Contig{}, false
	}
	return a.materialize(best), true
}

// walkFromAnchor extends from anchorID into its non-reference continuation
// (successors for a forward pipeline, predecessors for backward), stopping
// at a branch, a reference node, or the edge of the window. Returns nil if
// the anchor has no non-reference continuation in the window at all.
func (a *ContigAssembler) walkFromAnchor(anchorID NodeID) *candidate {
	var chain []NodeID
	cur := anchorID
	for {
		next, ok := a.singleNeighbor(cur)
		if !ok {
			break
		}
		n, ok := a.win.get(next)
		if !ok || n.Reference {
			break
		}
		chain = append(chain, next)
		cur = next
	}
	if len(chain) == 0 {
		return nil
	}
	return &candidate{anchorID: anchorID, anchored: true, chain: chain, score: a.scoreChain(chain)}
}

// singleNeighbor returns the sole successor (forward pipelines) or
// predecessor (backward pipelines) of id, if there is exactly one.
func (a *ContigAssembler) singleNeighbor(id NodeID) (NodeID, bool) {
	var ids []NodeID
	if a.direction == Forward {
		ids = a.adj.SuccessorsOf(id)
	} else {
		ids = a.adj.PredecessorsOf(id)
	}
	if len(ids) != 1 {
		return 0, false
	}
	return ids[0], true
}

func (a *ContigAssembler) scoreChain(chain []NodeID) int {
	total := 0
	for _, id := range chain {
		if n, ok := a.win.get(id); ok {
			total += sumWeights(n.Weights)
		}
	}
	return total
}

// bestUnanchored finds the highest-weight maximal non-reference chain that
// has no reachable reference anchor in the window at all; it is emitted
// anyway, unanchored. The walk here follows genomic adjacency
// (predecessor/successor in the graph sense) rather than assembly direction,
// since a chain's left-to-right order is a property of position, not of
// which breakend direction is being assembled.
func (a *ContigAssembler) bestUnanchored() *candidate {
	visited := map[NodeID]bool{}
	var best *candidate
	for _, id := range a.win.ascending() {
		if visited[id] {
			continue
		}
		n, ok := a.win.get(id)
		if !ok || n.Reference {
			continue
		}
		head := id
		for {
			preds := a.adj.PredecessorsOf(head)
			if len(preds) != 1 {
				break
			}
			pn, ok := a.win.get(preds[0])
			if !ok || pn.Reference {
				break
			}
			head = preds[0]
		}
		if visited[head] {
			continue
		}
		var chain []NodeID
		cur := head
		for {
			visited[cur] = true
			chain = append(chain, cur)
			succs := a.adj.SuccessorsOf(cur)
			if len(succs) != 1 {
				break
			}
			nn, ok := a.win.get(succs[0])
			if !ok || nn.Reference {
				break
			}
			cur = succs[0]
		}
		c := &candidate{anchored: false, chain: chain, score: a.scoreChain(chain)}
		if best == nil || c.score > best.score {
			best = c
		}
	}
	return best
}

// materialize builds the output Contig for a chosen candidate: reconstructs
// bases/quals from the merged kmer chain and looks up the anchored base
// count from the representative evidence backing the anchor.
func (a *ContigAssembler) materialize(c *candidate) Contig {
	var mergedKmers []Kmer
	var mergedWeights []int
	anchoredCount := 0
	appendNode := func(id NodeID) {
		n, _ := a.win.get(id)
		mergedKmers = append(mergedKmers, n.Kmers...)
		mergedWeights = append(mergedWeights, n.Weights...)
	}

	switch {
	case c.anchored && a.direction == Forward:
		// Anchor is genomically left of the tail: anchor, then chain in
		// walk order (walk order is already left-to-right successors).
		appendNode(c.anchorID)
		for _, id := range c.chain {
			appendNode(id)
		}
	case c.anchored:
		// Backward: the tail precedes the anchor, and c.chain was built by
		// walking predecessors (closest-to-anchor first), so it must be
		// reversed to land in left-to-right genomic order.
		for i := len(c.chain) - 1; i >= 0; i-- {
			appendNode(c.chain[i])
		}
		appendNode(c.anchorID)
	default:
		// Unanchored: bestUnanchored already walks genomic successors, so
		// c.chain is already left-to-right.
		for _, id := range c.chain {
			appendNode(id)
		}
	}
	if c.anchored {
		anchoredCount = a.anchoredBaseCount(c.anchorID)
	}
	bases := basesFromKmers(mergedKmers, a.config.K)
	quals := a.expandMergedQualities(c, mergedWeights, len(bases))

	anchorPos := Pos(0)
	if c.anchored {
		anchor, _ := a.win.get(c.anchorID)
		anchorPos = anchor.StartInterval.Start
		a.lastAnchorEnd = maxPos(a.lastAnchorEnd, anchor.StartInterval.End)
	}

	evIDs := a.collectEvidence(c)
	a.releaseEvidence(evIDs, c)

	return Contig{
		ReferenceIndex:        a.referenceIndex,
		Direction:             a.direction,
		Anchored:              c.anchored,
		AnchorPosition:        anchorPos,
		BaseCalls:             bases,
		BaseQuals:             quals,
		AnchoredBaseCount:     anchoredCount,
		SupportingEvidenceIDs: evIDs,
	}
}

// anchoredBaseCount reports the AnchorLength of the representative evidence
// backing anchorID. The kmer chain itself carries AnchorLength-K+1 (at least
// one) reference-flagged kmers per evidence (see support.go's
// isAnchorOffset), which loses the base-level anchor length when k is larger
// than the evidence's own anchor -- so this is read back from the original Evidence via the
// tracker rather than derived from the path-node's kmer count.
func (a *ContigAssembler) anchoredBaseCount(anchorID NodeID) int {
	ids := a.tracker.EvidenceOf(anchorID)
	if len(ids) == 0 {
		return 0
	}
	best := 0
	for _, id := range ids {
		if ev := a.tracker.GetEvidence(id); ev != nil && ev.AnchorLength > best {
			best = ev.AnchorLength
		}
	}
	return best
}

func (a *ContigAssembler) collectEvidence(c *candidate) []EvidenceID {
	seen := map[EvidenceID]bool{}
	var out []EvidenceID
	add := func(id NodeID) {
		for _, e := range a.tracker.EvidenceOf(id) {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	if c.anchored {
		add(c.anchorID)
	}
	for _, id := range c.chain {
		add(id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// releaseEvidence removes every piece of evidence supporting the emitted
// path from the tracker, and deletes every node that loses its last piece
// of evidence from the window, detaching it from the adjacency map. This
// package does not decompose a KmerPathNode's aggregate weight per
// evidence, so a node that still has live evidence after this release
// keeps its weight unchanged -- a streaming approximation, not a globally
// optimal contig set.
func (a *ContigAssembler) releaseEvidence(evIDs []EvidenceID, c *candidate) {
	touched := map[NodeID]bool{}
	for _, ev := range evIDs {
		for _, nodeID := range a.tracker.Remove(ev) {
			touched[nodeID] = true
		}
	}
	if c.anchored {
		touched[c.anchorID] = true
	}
	for _, id := range c.chain {
		touched[id] = true
	}
	for id := range touched {
		if len(a.tracker.EvidenceOf(id)) == 0 {
			a.win.remove(id)
			a.adj.Detach(id)
		}
	}
}

// evict drops from the window any node now strictly behind the streaming
// frontier minus the derived max support-interval width.
func (a *ContigAssembler) evict() {
	front, ok := a.win.frontierStart()
	if !ok {
		return
	}
	threshold := front - Pos(a.derived.MaxEvidenceSupportIntervalWidth)
	for _, id := range a.win.evictBefore(threshold) {
		a.adj.Detach(id)
	}
}

// expandMergedQualities expands mergedWeights -- already reordered into
// genomic (left-to-right) order by materialize, matching bases -- into a
// per-base quality array. expandQualities itself always pads the trailing
// k-1 bases with the last kmer's weight: correct when the chain's open end
// (the end with no kmer of its own) is genomically on the right, which is
// the tail for a Forward anchor and the whole chain for an unanchored
// contig. A Backward anchor sits genomically on the right instead, so the
// chain's open end is on the left: expand in anchor-outward order (where the
// open end is naturally last) and reverse the result back into genomic
// order, rather than the genomic order itself.
func (a *ContigAssembler) expandMergedQualities(c *candidate, mergedWeights []int, baseLen int) []byte {
	if !c.anchored || a.direction != Backward {
		return expandQualities(mergedWeights, baseLen)
	}
	reversed := make([]int, len(mergedWeights))
	for i, w := range mergedWeights {
		reversed[len(mergedWeights)-1-i] = w
	}
	quals := expandQualities(reversed, baseLen)
	for i, j := 0, len(quals)-1; i < j; i, j = i+1, j-1 {
		quals[i], quals[j] = quals[j], quals[i]
	}
	return quals
}

// expandQualities maps per-kmer weights onto per-base quality values: each
// base inherits its originating kmer's weight, and the final k-1 bases
// (which have no kmer of their own once the chain's last kmer is counted)
// repeat the last kmer's weight.
func expandQualities(weights []int, baseLen int) []byte {
	out := make([]byte, baseLen)
	last := 0
	for i := 0; i < baseLen; i++ {
		w := last
		if i < len(weights) {
			w = weights[i]
			last = w
		}
		out[i] = clipByte(w)
	}
	return out
}

func clipByte(w int) byte {
	if w < 0 {
		return 0
	}
	if w > 255 {
		return 255
	}
	return byte(w)
}
