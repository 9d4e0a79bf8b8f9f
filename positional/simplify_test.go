package positional

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainSimplified(t *testing.T, stage *SimplifyStage) []KmerPathNode {
	var out []KmerPathNode
	for {
		n, err := stage.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, n)
	}
}

func TestSimplifyStageMergesSoleNeighbourChains(t *testing.T) {
	kmA := kmerOf(t, "AAAA")
	kmC := kmerOf(t, "CCCC")
	a := KmerPathNode{ID: 1, Kmers: []Kmer{kmA}, Weights: []int{5}, StartInterval: Interval{Start: 10, End: 13}}
	b := KmerPathNode{ID: 2, Kmers: []Kmer{kmC}, Weights: []int{5}, StartInterval: Interval{Start: 11, End: 14}}

	adj := newFakeAdjacency()
	adj.succ[1] = []NodeID{2}
	adj.pred[2] = []NodeID{1}

	tracker := NewEvidenceTracker()
	tracker.Register(1, 1)
	tracker.Register(2, 2)

	src := &slicePathNodeSource{items: []KmerPathNode{a, b}}
	config := Config{K: 4, MaxPathLength: 100, MinConcordantFragmentSize: 0, MaxConcordantFragmentSize: 1000, MaxReadLength: 100}
	stage := NewSimplifyStage(src, adj, config, tracker)
	out := drainSimplified(t, stage)

	require.Len(t, out, 1)
	assert.Equal(t, NodeID(1), out[0].ID)
	assert.Equal(t, []Kmer{kmA, kmC}, out[0].Kmers)
	assert.ElementsMatch(t, []EvidenceID{1, 2}, tracker.EvidenceOf(1))
}

func TestSimplifyStageLeavesBranchedNodesAlone(t *testing.T) {
	kmA := kmerOf(t, "AAAA")
	kmC := kmerOf(t, "CCCC")
	a := KmerPathNode{ID: 1, Kmers: []Kmer{kmA}, Weights: []int{5}, StartInterval: Interval{Start: 10, End: 13}}
	b := KmerPathNode{ID: 2, Kmers: []Kmer{kmC}, Weights: []int{5}, StartInterval: Interval{Start: 11, End: 14}}

	adj := newFakeAdjacency()
	adj.succ[1] = []NodeID{2, 3} // branch: not a sole successor
	adj.pred[2] = []NodeID{1}

	tracker := NewEvidenceTracker()
	src := &slicePathNodeSource{items: []KmerPathNode{a, b}}
	config := Config{K: 4, MaxPathLength: 100, MaxConcordantFragmentSize: 1000, MaxReadLength: 100}
	stage := NewSimplifyStage(src, adj, config, tracker)
	out := drainSimplified(t, stage)

	require.Len(t, out, 2)
}
