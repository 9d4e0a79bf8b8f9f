package positional

import (
	"io"
	"sort"
)

// KmerNode is a merged aggregate: the sum of every coincident SupportNode
// sharing (kmer, referenceFlag) and an overlapping-or-touching position
// interval.
type KmerNode struct {
	ID        NodeID
	Kmer      Kmer
	Interval  Interval
	Weight    int
	Reference bool
}

type aggKey struct {
	kmer Kmer
	ref  bool
}

// aggState is an open (not yet finalised) aggregate.
type aggState struct {
	id       NodeID
	key      aggKey
	interval Interval
	weight   int
}

// AggregateStage merges a SupportNode stream into a stream of maximal
// KmerNode records. An aggregate is finalised -- and released downstream --
// once the global input position has passed beyond any SupportNode that
// could still extend it.
type AggregateStage struct {
	upstream supportSource
	tracker  *EvidenceTracker
	nextID   NodeID

	open   []*aggState
	out    []KmerNode
	outIdx int
	done   bool
}

// supportSource is the narrow interface AggregateStage needs from its
// upstream; satisfied by *SupportNodeStage and by CheckingStage wrappers.
type supportSource interface {
	Next() (SupportNode, error)
}

// NewAggregateStage builds an AggregateStage reading from upstream.
func NewAggregateStage(upstream supportSource, tracker *EvidenceTracker) *AggregateStage {
	return &AggregateStage{upstream: upstream, tracker: tracker}
}

// Next returns the next KmerNode in (interval.Start, kmer) order, or io.EOF
// once the SupportNode stream -- and every aggregate it opened -- has been
// fully drained.
func (a *AggregateStage) Next() (KmerNode, error) {
	for {
		if a.outIdx < len(a.out) {
			kn := a.out[a.outIdx]
			a.outIdx++
			return kn, nil
		}
		if a.done {
			return KmerNode{}, io.EOF
		}
		sn, err := a.upstream.Next()
		if err == io.EOF {
			a.finalizeAll()
			a.done = true
			continue
		}
		if err != nil {
			return KmerNode{}, err
		}
		a.finalizeBefore(sn.Interval.Start)
		a.merge(sn)
	}
}

// finalizeBefore emits (into a.out, sorted) every open aggregate that no
// SupportNode starting at pos or later could still extend: its interval.End
// + 1 < pos.
func (a *AggregateStage) finalizeBefore(pos Pos) {
	var ready []*aggState
	kept := a.open[:0]
	for _, st := range a.open {
		if st.interval.End+1 < pos {
			ready = append(ready, st)
		} else {
			kept = append(kept, st)
		}
	}
	a.open = kept
	// A ready aggregate starting at or after a still-open one is held back
	// so that output stays in (interval.Start, kmer) order.
	var emitNow []*aggState
	for _, st := range ready {
		held := false
		for _, o := range kept {
			held = held || o.interval.Start <= st.interval.Start
		}
		if held {
			a.open = append(a.open, st)
		} else {
			emitNow = append(emitNow, st)
		}
	}
	a.emit(emitNow)
}

func (a *AggregateStage) finalizeAll() {
	ready := a.open
	a.open = nil
	a.emit(ready)
}

func (a *AggregateStage) emit(ready []*aggState) {
	if len(ready) == 0 {
		return
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].interval.Start != ready[j].interval.Start {
			return ready[i].interval.Start < ready[j].interval.Start
		}
		return ready[i].key.kmer < ready[j].key.kmer
	})
	a.out = a.out[:0]
	a.outIdx = 0
	for _, st := range ready {
		a.out = append(a.out, KmerNode{
			ID:        st.id,
			Kmer:      st.key.kmer,
			Interval:  st.interval,
			Weight:    st.weight,
			Reference: st.key.ref,
		})
	}
}

// merge folds sn into a touching open aggregate sharing its (kmer,
// referenceFlag) key, or starts a new one. Reference and non-reference
// supports are never merged into the same aggregate.
func (a *AggregateStage) merge(sn SupportNode) {
	key := aggKey{kmer: sn.Kmer, ref: sn.Reference}
	for _, st := range a.open {
		if st.key == key && st.interval.Touches(sn.Interval) {
			st.interval = st.interval.Union(sn.Interval)
			st.weight += sn.Weight
			a.tracker.Register(sn.Evidence, NodeID(st.id))
			return
		}
	}
	st := &aggState{id: a.nextID, key: key, interval: sn.Interval, weight: sn.Weight}
	a.nextID++
	a.open = append(a.open, st)
	a.tracker.Register(sn.Evidence, st.id)
}
