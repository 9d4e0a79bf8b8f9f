package positional

import (
	"io"
	"sort"
)

// KmerPathNode is an ordered, unbranched chain of kmers: each kmers[i+1]
// is a successor of kmers[i], and the chain's members share a common
// start-position interval advancing by one base per step.
type KmerPathNode struct {
	ID            NodeID
	Kmers         []Kmer
	Weights       []int
	StartInterval Interval
	Reference     bool
}

// Length returns the number of kmers chained into the node.
func (n KmerPathNode) Length() int { return len(n.Kmers) }

// FirstKmer and LastKmer return the chain's two endpoints.
func (n KmerPathNode) FirstKmer() Kmer { return n.Kmers[0] }
func (n KmerPathNode) LastKmer() Kmer  { return n.Kmers[len(n.Kmers)-1] }

// aggregateSource is the narrow interface PathNodeStage needs from its
// upstream; satisfied by *AggregateStage.
type aggregateSource interface {
	Next() (KmerNode, error)
}

// chainBuilder is an open (not yet emitted) KmerPathNode under construction.
type chainBuilder struct {
	id            NodeID
	kmers         []Kmer
	weights       []int
	startInterval Interval
	lastInterval  Interval
	reference     bool
}

func (c *chainBuilder) lastKmer() Kmer { return c.kmers[len(c.kmers)-1] }

// batchReader groups a KmerNode stream into runs sharing the same interval
// start, since a chain's successor can only ever appear in a later run: a
// chain step always advances its interval's start by exactly one position.
type batchReader struct {
	upstream aggregateSource
	peeked   KmerNode
	peekErr  error
	havePeek bool
}

func (b *batchReader) fill() {
	if !b.havePeek {
		b.peeked, b.peekErr = b.upstream.Next()
		b.havePeek = true
	}
}

func (b *batchReader) nextBatch() ([]KmerNode, error) {
	b.fill()
	if b.peekErr != nil {
		return nil, b.peekErr
	}
	start := b.peeked.Interval.Start
	batch := []KmerNode{b.peeked}
	b.havePeek = false
	for {
		b.fill()
		if b.peekErr != nil || b.peeked.Interval.Start != start {
			break
		}
		batch = append(batch, b.peeked)
		b.havePeek = false
	}
	return batch, nil
}

// PathNodeStage chains a KmerNode stream into KmerPathNode records by greedy
// extension. An open chain extends into an incoming KmerNode
// only when the match is unambiguous on both sides: the chain's tail has
// exactly one distinct successor kmer present, and that successor kmer has
// exactly one open chain wanting to claim it. Any other outcome -- a tail
// with more than one distinct successor, or a successor wanted by more than
// one tail -- is a branch: every chain involved terminates, and every
// resulting kmer starts a fresh chain, linked to its terminated predecessor
// in the adjacency map.
type PathNodeStage struct {
	batch *batchReader
	k     int
	maxLen int
	tracker *EvidenceTracker
	nextID NodeID

	open []*chainBuilder
	succ map[NodeID][]NodeID
	pred map[NodeID][]NodeID

	finalizedBuf []KmerPathNode
	out          []KmerPathNode
	outIdx       int
	done         bool
}

// NewPathNodeStage builds a PathNodeStage reading from upstream.
func NewPathNodeStage(upstream aggregateSource, config Config, tracker *EvidenceTracker) *PathNodeStage {
	return &PathNodeStage{
		batch:   &batchReader{upstream: upstream},
		k:       config.K,
		maxLen:  config.MaxPathLength,
		tracker: tracker,
		succ:    make(map[NodeID][]NodeID),
		pred:    make(map[NodeID][]NodeID),
	}
}

// SuccessorsOf and PredecessorsOf expose the adjacency edges PathNodeStage
// registers as chains terminate, for ContigAssembler's graph traversal.
func (p *PathNodeStage) SuccessorsOf(id NodeID) []NodeID   { return p.succ[id] }
func (p *PathNodeStage) PredecessorsOf(id NodeID) []NodeID { return p.pred[id] }

// Rewire redirects every adjacency edge pointing at oldID onto newID, and
// drops oldID's own entries. Used by CollapseStage when oldID's path-node
// is collapsed into newID's.
func (p *PathNodeStage) Rewire(oldID, newID NodeID) {
	for _, succID := range p.succ[oldID] {
		p.pred[succID] = replaceID(p.pred[succID], oldID, newID)
	}
	for _, predID := range p.pred[oldID] {
		p.succ[predID] = replaceID(p.succ[predID], oldID, newID)
	}
	delete(p.succ, oldID)
	delete(p.pred, oldID)
}

// Absorb folds absorbedID's outgoing edges onto keepID and discards
// absorbedID, used by SimplifyStage when it concatenates two chains into
// one. Unlike Rewire, this does not touch keepID's own predecessors: the
// merged node keeps keepID's identity and predecessor set, but inherits
// absorbedID's successors.
func (p *PathNodeStage) Absorb(keepID, absorbedID NodeID) {
	p.succ[keepID] = p.succ[absorbedID]
	for _, s := range p.succ[absorbedID] {
		p.pred[s] = replaceID(p.pred[s], absorbedID, keepID)
	}
	delete(p.succ, absorbedID)
	delete(p.pred, absorbedID)
}

// Detach removes id from the adjacency map entirely, scrubbing it from
// every neighbour's edge list. Used by ContigAssembler once a node's
// evidence has been fully consumed by an emitted contig.
func (p *PathNodeStage) Detach(id NodeID) {
	for _, s := range p.succ[id] {
		p.pred[s] = removeID(p.pred[s], id)
	}
	for _, pr := range p.pred[id] {
		p.succ[pr] = removeID(p.succ[pr], id)
	}
	delete(p.succ, id)
	delete(p.pred, id)
}

func removeID(ids []NodeID, target NodeID) []NodeID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func replaceID(ids []NodeID, old, new NodeID) []NodeID {
	out := make([]NodeID, 0, len(ids))
	seen := make(map[NodeID]bool, len(ids))
	for _, id := range ids {
		if id == old {
			id = new
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Next returns the next KmerPathNode, or io.EOF once the upstream KmerNode
// stream -- and every chain it opened -- has fully drained.
func (p *PathNodeStage) Next() (KmerPathNode, error) {
	for {
		if p.outIdx < len(p.out) {
			n := p.out[p.outIdx]
			p.outIdx++
			return n, nil
		}
		if p.done {
			return KmerPathNode{}, io.EOF
		}
		batch, err := p.batch.nextBatch()
		if err == io.EOF {
			p.finalizeAll()
			p.flush()
			p.done = true
			continue
		}
		if err != nil {
			return KmerPathNode{}, err
		}
		p.processBatch(batch)
		p.flush()
	}
}

func (p *PathNodeStage) link(from, to NodeID) {
	p.succ[from] = append(p.succ[from], to)
	p.pred[to] = append(p.pred[to], from)
}

func (p *PathNodeStage) newChain(kn KmerNode) *chainBuilder {
	id := p.nextID
	p.nextID++
	p.tracker.RewriteNode(kn.ID, id)
	return &chainBuilder{
		id:            id,
		kmers:         []Kmer{kn.Kmer},
		weights:       []int{kn.Weight},
		startInterval: kn.Interval,
		lastInterval:  kn.Interval,
		reference:     kn.Reference,
	}
}

func (p *PathNodeStage) startChain(kn KmerNode) *chainBuilder {
	c := p.newChain(kn)
	p.open = append(p.open, c)
	return c
}

func (p *PathNodeStage) finalizeChain(c *chainBuilder) {
	p.finalizedBuf = append(p.finalizedBuf, KmerPathNode{
		ID:            c.id,
		Kmers:         c.kmers,
		Weights:       c.weights,
		StartInterval: c.startInterval,
		Reference:     c.reference,
	})
}

func lessExtension(a, b KmerNode) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.Kmer < b.Kmer
}

// processBatch resolves every open chain's extension (or termination)
// against one run of same-start KmerNodes; see the PathNodeStage doc
// comment for the branch-resolution rule.
func (p *PathNodeStage) processBatch(batch []KmerNode) {
	n := len(batch)
	intended := make([]int, len(p.open))
	for i := range intended {
		intended[i] = -1
	}
	divergent := make([][]int, len(p.open))
	sawMatch := make([]bool, len(p.open))

	for ci, c := range p.open {
		// Successor matching ignores the reference flag: a reference anchor's
		// sole continuation is almost always non-reference, and that edge
		// must still be registered even though the two kmers can never be
		// merged into the same (single-flag) KmerPathNode.
		byKmer := map[Kmer][]int{}
		for bi, kn := range batch {
			if c.lastInterval.Shift(1).Touches(kn.Interval) &&
				isSuccessor(c.lastKmer(), kn.Kmer, p.k) {
				byKmer[kn.Kmer] = append(byKmer[kn.Kmer], bi)
			}
		}
		if len(byKmer) == 0 {
			continue
		}
		sawMatch[ci] = true
		winners := map[Kmer]int{}
		for km, idxs := range byKmer {
			best := idxs[0]
			for _, bi := range idxs[1:] {
				if lessExtension(batch[bi], batch[best]) {
					best = bi
				}
			}
			winners[km] = best
		}
		if len(winners) == 1 {
			var only int
			for _, bi := range winners {
				only = bi
			}
			if batch[only].Reference == c.reference {
				intended[ci] = only
				continue
			}
		}
		// Either a genuine branch (more than one distinct successor kmer) or
		// a single successor that can't be merged in because its reference
		// flag differs: terminate the chain and link to every winner.
		var targets []int
		for _, bi := range winners {
			targets = append(targets, bi)
		}
		sort.Ints(targets)
		divergent[ci] = targets
	}

	claimants := make([][]int, n)
	for ci, bi := range intended {
		if bi >= 0 {
			claimants[bi] = append(claimants[bi], ci)
		}
	}
	for ci, ws := range divergent {
		for _, bi := range ws {
			claimants[bi] = append(claimants[bi], ci)
		}
	}

	consumed := make([]bool, n)
	for ci, bi := range intended {
		if bi >= 0 && len(claimants[bi]) == 1 {
			p.extend(ci, bi, batch[bi])
			consumed[bi] = true
		}
	}

	var toTerminate []int
	for ci := range p.open {
		if intended[ci] >= 0 && consumed[intended[ci]] {
			continue
		}
		if sawMatch[ci] {
			toTerminate = append(toTerminate, ci)
		}
	}

	owner := make([]*chainBuilder, n)
	for bi := range batch {
		if consumed[bi] {
			continue
		}
		owner[bi] = p.startChain(batch[bi])
	}

	for _, ci := range toTerminate {
		c := p.open[ci]
		targets := divergent[ci]
		if targets == nil && intended[ci] >= 0 {
			targets = []int{intended[ci]}
		}
		for _, bi := range targets {
			if owner[bi] != nil {
				p.link(c.id, owner[bi].id)
			}
		}
		p.finalizeChain(c)
	}
	p.removeChains(toTerminate)
	p.expireStale(batch[0].Interval.Start)
}

// extend appends kn to the chain at p.open[ci]. If doing so would exceed the
// configured path-length cap, the chain is finalised instead and a new
// chain is started at kn, linked as its successor.
func (p *PathNodeStage) extend(ci, bi int, kn KmerNode) {
	c := p.open[ci]
	if len(c.kmers) >= p.maxLen {
		nc := p.newChain(kn)
		p.link(c.id, nc.id)
		p.finalizeChain(c)
		p.open[ci] = nc
		return
	}
	c.kmers = append(c.kmers, kn.Kmer)
	c.weights = append(c.weights, kn.Weight)
	c.lastInterval = kn.Interval
	p.tracker.MergeNode(kn.ID, c.id)
}

// expireStale finalises any open chain that no future batch could possibly
// extend: batchStart already lies beyond every interval its shifted tail
// could touch.
func (p *PathNodeStage) expireStale(batchStart Pos) {
	var idxs []int
	for i, c := range p.open {
		if c.lastInterval.End+2 < batchStart {
			idxs = append(idxs, i)
		}
	}
	for _, i := range idxs {
		p.finalizeChain(p.open[i])
	}
	p.removeChains(idxs)
}

func (p *PathNodeStage) finalizeAll() {
	for _, c := range p.open {
		p.finalizeChain(c)
	}
	p.open = nil
}

func (p *PathNodeStage) removeChains(idxs []int) {
	if len(idxs) == 0 {
		return
	}
	remove := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		remove[i] = true
	}
	kept := p.open[:0]
	for i, c := range p.open {
		if !remove[i] {
			kept = append(kept, c)
		}
	}
	p.open = kept
}

// flush sorts whatever chains finalised during the last batch by
// (StartInterval.Start, ID) -- deterministic regardless of termination
// order -- and makes them available from Next.
func (p *PathNodeStage) flush() {
	if len(p.finalizedBuf) == 0 {
		return
	}
	sort.Slice(p.finalizedBuf, func(i, j int) bool {
		a, b := p.finalizedBuf[i], p.finalizedBuf[j]
		if a.StartInterval.Start != b.StartInterval.Start {
			return a.StartInterval.Start < b.StartInterval.Start
		}
		return a.ID < b.ID
	})
	p.out = p.finalizedBuf
	p.outIdx = 0
	p.finalizedBuf = nil
}
