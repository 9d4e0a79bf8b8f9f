package positional

import "io"

// pathSource is the narrow interface CollapseStage (and SimplifyStage) need
// from their upstream.
type pathSource interface {
	Next() (KmerPathNode, error)
}

// rewirer is the adjacency-mutation surface CollapseStage needs from
// PathNodeStage: redirect every edge pointing at a collapsed-away node onto
// its surviving sibling.
type rewirer interface {
	SuccessorsOf(id NodeID) []NodeID
	PredecessorsOf(id NodeID) []NodeID
	Rewire(oldID, newID NodeID)
}

// Bases reconstructs the node's base sequence from its kmer chain: the
// first kmer's k bases, then one new base per subsequent kmer.
func (n KmerPathNode) Bases(k int) []byte { return basesFromKmers(n.Kmers, k) }

// basesFromKmers reconstructs the base sequence spanned by a chain of
// successor-linked kmers: the first kmer's k bases, then the trailing base
// of every subsequent kmer. Valid for any chain, including one assembled by
// concatenating several KmerPathNodes' Kmers slices end to end.
func basesFromKmers(kmers []Kmer, k int) []byte {
	if len(kmers) == 0 {
		return nil
	}
	out := DecodeKmer(kmers[0], k)
	for _, km := range kmers[1:] {
		d := DecodeKmer(km, k)
		out = append(out, d[len(d)-1])
	}
	return out
}

func sumWeights(w []int) int {
	total := 0
	for _, x := range w {
		total += x
	}
	return total
}

func kmerSum(ks []Kmer) uint64 {
	var total uint64
	for _, k := range ks {
		total += uint64(k)
	}
	return total
}

func hammingBases(a, b []byte) int {
	if len(a) != len(b) {
		return len(a) + len(b)
	}
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// CollapseStage folds near-identical sibling path-nodes together. Two
// path-nodes are collapse candidates when they share at least one endpoint
// -- a predecessor or successor node-id set, read from the adjacency
// PathNodeStage built -- and identical length; they are collapsed when
// their base sequences differ by at most Config.MaxBaseMismatchForCollapse
// bases. CollapseBubblesOnly selects which endpoint-sharing rule applies:
// true requires both endpoints to match (LeafBubble: an immediate
// divergence that reconverges right away), false accepts either one
// (FullPathCollapse: an arbitrary divergent-then-convergent path), and also
// bounds candidates to Config.MaxPathCollapseLength -- the configuration
// layer is responsible for warning about this mode's worst-case cost; this
// stage itself only bounds what it's handed.
type CollapseStage struct {
	upstream pathSource
	adj      rewirer
	tracker  *EvidenceTracker
	config   Config
	k        int

	pending []KmerPathNode
	out     []KmerPathNode
	outIdx  int
	done    bool
}

// NewCollapseStage builds a CollapseStage reading from upstream.
func NewCollapseStage(upstream pathSource, adj rewirer, config Config, tracker *EvidenceTracker) *CollapseStage {
	return &CollapseStage{upstream: upstream, adj: adj, tracker: tracker, config: config, k: config.K}
}

// flushThreshold bounds how long a node waits in pending for a sibling
// before being forwarded unchanged.
func (c *CollapseStage) flushThreshold() int {
	if c.config.CollapseBubblesOnly {
		return c.config.MaxPathLength
	}
	return c.config.MaxPathCollapseLength
}

func (c *CollapseStage) Next() (KmerPathNode, error) {
	for {
		if c.outIdx < len(c.out) {
			n := c.out[c.outIdx]
			c.outIdx++
			return n, nil
		}
		if c.done {
			return KmerPathNode{}, io.EOF
		}
		n, err := c.upstream.Next()
		if err == io.EOF {
			c.out = c.pending
			c.outIdx = 0
			c.pending = nil
			c.done = true
			continue
		}
		if err != nil {
			return KmerPathNode{}, err
		}
		c.absorb(n)
	}
}

func (c *CollapseStage) absorb(n KmerPathNode) {
	for i, m := range c.pending {
		if c.canCollapse(&m, &n) {
			winner, loser := c.pick(&m, &n)
			c.tracker.MergeNode(loser.ID, winner.ID)
			c.adj.Rewire(loser.ID, winner.ID)
			c.pending[i] = *winner
			c.flushReady(n.StartInterval.Start)
			return
		}
	}
	c.pending = append(c.pending, n)
	c.flushReady(n.StartInterval.Start)
}

// flushReady emits (preserving pending's arrival order, which is already
// StartInterval-ascending since upstream is sorted) every buffered node no
// longer eligible to collapse with anything still to come.
func (c *CollapseStage) flushReady(newest Pos) {
	threshold := Pos(c.flushThreshold())
	var ready []KmerPathNode
	kept := c.pending[:0]
	for _, m := range c.pending {
		if newest-m.StartInterval.Start > threshold {
			ready = append(ready, m)
		} else {
			kept = append(kept, m)
		}
	}
	c.pending = kept
	if len(ready) == 0 {
		return
	}
	c.out = ready
	c.outIdx = 0
}

func (c *CollapseStage) canCollapse(a, b *KmerPathNode) bool {
	if a.Length() != b.Length() {
		return false
	}
	maxLen := c.config.MaxPathCollapseLength
	if !c.config.CollapseBubblesOnly && (a.Length() > maxLen || b.Length() > maxLen) {
		return false
	}
	sharesPred := sameEndpoints(c.adj.PredecessorsOf(a.ID), c.adj.PredecessorsOf(b.ID))
	sharesSucc := sameEndpoints(c.adj.SuccessorsOf(a.ID), c.adj.SuccessorsOf(b.ID))
	if c.config.CollapseBubblesOnly {
		// LeafBubble: a and b must share both endpoints -- an immediate
		// divergence that reconverges right away.
		if !sharesPred || !sharesSucc {
			return false
		}
	} else {
		// FullPathCollapse: a and b only need to share one endpoint -- the
		// pair may have diverged earlier and converge here, or diverge here
		// and converge later -- as long as the bases in between still line
		// up within the mismatch budget.
		if !sharesPred && !sharesSucc {
			return false
		}
	}
	return hammingBases(a.Bases(c.k), b.Bases(c.k)) <= c.config.MaxBaseMismatchForCollapse
}

// pick returns (winner, loser): the higher-weight path survives; ties break
// by referenceFlag (reference wins), then by ascending kmer-sum.
func (c *CollapseStage) pick(a, b *KmerPathNode) (winner, loser *KmerPathNode) {
	wa, wb := sumWeights(a.Weights), sumWeights(b.Weights)
	if wa != wb {
		if wa > wb {
			return a, b
		}
		return b, a
	}
	if a.Reference != b.Reference {
		if a.Reference {
			return a, b
		}
		return b, a
	}
	if kmerSum(a.Kmers) <= kmerSum(b.Kmers) {
		return a, b
	}
	return b, a
}

func sameEndpoints(a, b []NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := sortedCopyIDs(a), sortedCopyIDs(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sortedCopyIDs(ids []NodeID) []NodeID {
	out := make([]NodeID, len(ids))
	copy(out, ids)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
