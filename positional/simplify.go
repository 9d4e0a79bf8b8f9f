package positional

import "io"

// chainMerger is the adjacency-mutation surface SimplifyStage needs from
// PathNodeStage: fold a node's outgoing chain onto its sole predecessor.
type chainMerger interface {
	SuccessorsOf(id NodeID) []NodeID
	PredecessorsOf(id NodeID) []NodeID
	Absorb(keepID, absorbedID NodeID)
}

// SimplifyStage re-merges adjacent path-nodes that became mergeable once
// CollapseStage removed the branch between them. Two consecutive path-nodes
// merge when they're each other's sole neighbour, share a reference flag,
// and the merge would not exceed Config.MaxPathLength or the derived max
// kmer support-interval width.
type SimplifyStage struct {
	upstream pathSource
	adj      chainMerger
	tracker  *EvidenceTracker
	maxLen   int
	maxWidth int64

	pending []KmerPathNode
	out     []KmerPathNode
	outIdx  int
	done    bool
}

// NewSimplifyStage builds a SimplifyStage reading from upstream.
func NewSimplifyStage(upstream pathSource, adj chainMerger, config Config, tracker *EvidenceTracker) *SimplifyStage {
	return &SimplifyStage{
		upstream: upstream,
		adj:      adj,
		tracker:  tracker,
		maxLen:   config.MaxPathLength,
		maxWidth: int64(config.Derive().MaxKmerSupportIntervalWidth),
	}
}

func (s *SimplifyStage) Next() (KmerPathNode, error) {
	for {
		if s.outIdx < len(s.out) {
			n := s.out[s.outIdx]
			s.outIdx++
			return n, nil
		}
		if s.done {
			return KmerPathNode{}, io.EOF
		}
		n, err := s.upstream.Next()
		if err == io.EOF {
			s.out = s.pending
			s.outIdx = 0
			s.pending = nil
			s.done = true
			continue
		}
		if err != nil {
			return KmerPathNode{}, err
		}
		s.absorb(n)
	}
}

func (s *SimplifyStage) absorb(n KmerPathNode) {
	for i, m := range s.pending {
		if s.canMerge(&m, &n) {
			merged := KmerPathNode{
				ID:            m.ID,
				Kmers:         append(append([]Kmer{}, m.Kmers...), n.Kmers...),
				Weights:       append(append([]int{}, m.Weights...), n.Weights...),
				StartInterval: m.StartInterval,
				Reference:     m.Reference,
			}
			s.tracker.MergeNode(n.ID, m.ID)
			s.adj.Absorb(m.ID, n.ID)
			s.pending[i] = merged
			return
		}
	}
	s.pending = append(s.pending, n)
	s.flushReady(n.StartInterval.Start)
}

// flushReady forwards any buffered node for which no future merge could
// possibly satisfy canMerge's interval-width bound -- a node more than
// maxWidth+maxLen positions behind the newest input can never merge with
// anything still to come.
func (s *SimplifyStage) flushReady(newest Pos) {
	threshold := Pos(s.maxWidth) + Pos(s.maxLen)
	var ready []KmerPathNode
	kept := s.pending[:0]
	for _, m := range s.pending {
		if newest-m.StartInterval.Start > threshold {
			ready = append(ready, m)
		} else {
			kept = append(kept, m)
		}
	}
	s.pending = kept
	if len(ready) == 0 {
		return
	}
	s.out = ready
	s.outIdx = 0
}

func (s *SimplifyStage) canMerge(a, b *KmerPathNode) bool {
	if a.Reference != b.Reference {
		return false
	}
	if a.Length()+b.Length() > s.maxLen {
		return false
	}
	succ := s.adj.SuccessorsOf(a.ID)
	if len(succ) != 1 || succ[0] != b.ID {
		return false
	}
	pred := s.adj.PredecessorsOf(b.ID)
	if len(pred) != 1 || pred[0] != a.ID {
		return false
	}
	return a.StartInterval.Union(b.StartInterval).Width() <= s.maxWidth
}
