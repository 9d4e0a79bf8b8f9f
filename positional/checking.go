package positional

// CheckingSupportStage, CheckingAggregateStage and CheckingPathStage are
// validating pass-through interceptors inserted between two stages without
// changing either one's contract, enabled only when Config.SanityCheckGraph
// is set. Each returns an *Error of kind ErrKindInvariantViolation -- rather
// than panicking or logging fatally -- so the outer Driver can dispatch on
// it the same way it dispatches on any other pipeline failure. One thin
// wrapper type per stage shape, rather than a single parametrised one.

// CheckingSupportStage wraps a supportSource, verifying that every emitted
// SupportNode's evidence is registered in the tracker's pool.
type CheckingSupportStage struct {
	upstream supportSource
	tracker  *EvidenceTracker
}

func NewCheckingSupportStage(upstream supportSource, tracker *EvidenceTracker) *CheckingSupportStage {
	return &CheckingSupportStage{upstream: upstream, tracker: tracker}
}

func (c *CheckingSupportStage) Next() (SupportNode, error) {
	n, err := c.upstream.Next()
	if err != nil {
		return n, err
	}
	if c.tracker.GetEvidence(n.Evidence) == nil {
		return SupportNode{}, newError(ErrKindInvariantViolation, nil,
			"SupportNode references unregistered evidence", n.Evidence)
	}
	return n, nil
}

// CheckingAggregateStage wraps an aggregateSource, verifying the aggregate
// maximality invariant against every other node already seen with the same
// (kmer, referenceFlag) key in the current check window.
type CheckingAggregateStage struct {
	upstream aggregateSource
	seen     []KmerNode
}

func NewCheckingAggregateStage(upstream aggregateSource) *CheckingAggregateStage {
	return &CheckingAggregateStage{upstream: upstream}
}

func (c *CheckingAggregateStage) Next() (KmerNode, error) {
	n, err := c.upstream.Next()
	if err != nil {
		return n, err
	}
	for _, s := range c.seen {
		if s.Kmer == n.Kmer && s.Reference == n.Reference && s.Interval.Overlaps(n.Interval) {
			return KmerNode{}, newError(ErrKindInvariantViolation, nil,
				"overlapping KmerNodes for kmer", n.Kmer)
		}
	}
	c.seen = append(c.seen, n)
	if len(c.seen) > 256 {
		c.seen = c.seen[len(c.seen)-256:]
	}
	return n, nil
}

// CheckingPathStage wraps a pathSource, verifying the tracker's node-to-
// evidence relation agrees with every emitted node existing at all (a node
// with zero supporting evidence should never have been chained).
type CheckingPathStage struct {
	upstream pathSource
	tracker  *EvidenceTracker
}

func NewCheckingPathStage(upstream pathSource, tracker *EvidenceTracker) *CheckingPathStage {
	return &CheckingPathStage{upstream: upstream, tracker: tracker}
}

func (c *CheckingPathStage) Next() (KmerPathNode, error) {
	n, err := c.upstream.Next()
	if err != nil {
		return n, err
	}
	if len(c.tracker.EvidenceOf(n.ID)) == 0 {
		return KmerPathNode{}, newError(ErrKindInvariantViolation, nil,
			"KmerPathNode has no supporting evidence, id", n.ID)
	}
	return n, nil
}
