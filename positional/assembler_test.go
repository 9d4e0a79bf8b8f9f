package positional

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainContigs(t *testing.T, a *ContigAssembler) []Contig {
	var out []Contig
	for {
		c, err := a.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, c)
	}
}

// bigWindowConfig keeps ContigAssembler's fillWindow threshold far larger
// than any gap between test fixture positions, so fillWindow always drains
// the whole upstream slice before the first assembly attempt instead of
// stopping early on the frontier check.
func bigWindowConfig() Config {
	return Config{
		K:                         4,
		AnchorLength:              1,
		MinConcordantFragmentSize: 0,
		MaxConcordantFragmentSize: 1000,
		MaxReadLength:             1000,
	}
}

func TestContigAssemblerWalksFromAnchorForward(t *testing.T) {
	kmA := kmerOf(t, "ACGT")
	kmB := kmerOf(t, "CGTA")
	kmC := kmerOf(t, "GTAC")

	anchor := KmerPathNode{ID: 1, Kmers: []Kmer{kmA}, Weights: []int{5}, StartInterval: Interval{Start: 10, End: 13}, Reference: true}
	n2 := KmerPathNode{ID: 2, Kmers: []Kmer{kmB}, Weights: []int{5}, StartInterval: Interval{Start: 11, End: 14}}
	n3 := KmerPathNode{ID: 3, Kmers: []Kmer{kmC}, Weights: []int{5}, StartInterval: Interval{Start: 12, End: 15}}

	adj := newFakeAdjacency()
	adj.succ[1] = []NodeID{2}
	adj.pred[2] = []NodeID{1}
	adj.succ[2] = []NodeID{3}
	adj.pred[3] = []NodeID{2}

	tracker := NewEvidenceTracker()
	tracker.RegisterEvidence(&Evidence{ID: 100, AnchorLength: 7})
	tracker.Register(100, 1)
	tracker.Register(200, 2)
	tracker.Register(300, 3)

	src := &slicePathNodeSource{items: []KmerPathNode{anchor, n2, n3}}
	asm := NewContigAssembler(src, adj, bigWindowConfig(), tracker, 0, Forward)
	out := drainContigs(t, asm)

	require.Len(t, out, 1)
	c := out[0]
	assert.True(t, c.Anchored)
	assert.Equal(t, Pos(10), c.AnchorPosition)
	assert.Equal(t, 7, c.AnchoredBaseCount)
	assert.Equal(t, "ACGTAC", string(c.BaseCalls))
	assert.ElementsMatch(t, []EvidenceID{100, 200, 300}, c.SupportingEvidenceIDs)

	// Evidence release should have emptied the window and detached every node.
	assert.Equal(t, 0, asm.win.len())
}

func TestContigAssemblerWalksFromAnchorBackward(t *testing.T) {
	kmA := kmerOf(t, "ACGT")
	kmB := kmerOf(t, "CGTA")

	anchor := KmerPathNode{ID: 1, Kmers: []Kmer{kmB}, Weights: []int{5}, StartInterval: Interval{Start: 20, End: 23}, Reference: true}
	tail := KmerPathNode{ID: 2, Kmers: []Kmer{kmA}, Weights: []int{5}, StartInterval: Interval{Start: 10, End: 13}}

	adj := newFakeAdjacency()
	// Backward pipelines walk predecessors from the anchor.
	adj.pred[1] = []NodeID{2}
	adj.succ[2] = []NodeID{1}

	tracker := NewEvidenceTracker()
	tracker.RegisterEvidence(&Evidence{ID: 1, AnchorLength: 3})
	tracker.Register(1, 1)
	tracker.Register(2, 2)

	src := &slicePathNodeSource{items: []KmerPathNode{tail, anchor}}
	asm := NewContigAssembler(src, adj, bigWindowConfig(), tracker, 0, Backward)
	out := drainContigs(t, asm)

	require.Len(t, out, 1)
	c := out[0]
	assert.True(t, c.Anchored)
	// materialize reverses the walk-order chain for Backward so the tail
	// (genomically first) precedes the anchor.
	assert.Equal(t, "ACGTA", string(c.BaseCalls))
}

func TestContigAssemblerBackwardAnchorPadsLeadingBasesNotTrailing(t *testing.T) {
	kmA := kmerOf(t, "ACGT")
	kmB := kmerOf(t, "CGTA")

	anchor := KmerPathNode{ID: 1, Kmers: []Kmer{kmB}, Weights: []int{99}, StartInterval: Interval{Start: 20, End: 23}, Reference: true}
	tail := KmerPathNode{ID: 2, Kmers: []Kmer{kmA}, Weights: []int{11}, StartInterval: Interval{Start: 10, End: 13}}

	adj := newFakeAdjacency()
	adj.pred[1] = []NodeID{2}
	adj.succ[2] = []NodeID{1}

	tracker := NewEvidenceTracker()
	tracker.RegisterEvidence(&Evidence{ID: 1, AnchorLength: 3})
	tracker.Register(1, 1)
	tracker.Register(2, 2)

	src := &slicePathNodeSource{items: []KmerPathNode{tail, anchor}}
	asm := NewContigAssembler(src, adj, bigWindowConfig(), tracker, 0, Backward)
	out := drainContigs(t, asm)

	require.Len(t, out, 1)
	c := out[0]
	require.Equal(t, "ACGTA", string(c.BaseCalls))
	// tail (weight 11) is genomically first, anchor (weight 99) last. The
	// open end with no kmer of its own is the tail's leading edge, so the
	// leading k-1=3 bases repeat the tail's weight, not the anchor's.
	assert.Equal(t, []byte{11, 11, 11, 11, 99}, c.BaseQuals)
}

func TestContigAssemblerEmitsUnanchoredChainWhenNoAnchorReachable(t *testing.T) {
	kmA := kmerOf(t, "ACGT")
	kmB := kmerOf(t, "CGTA")

	n1 := KmerPathNode{ID: 1, Kmers: []Kmer{kmA}, Weights: []int{5}, StartInterval: Interval{Start: 10, End: 13}}
	n2 := KmerPathNode{ID: 2, Kmers: []Kmer{kmB}, Weights: []int{5}, StartInterval: Interval{Start: 11, End: 14}}

	adj := newFakeAdjacency()
	adj.succ[1] = []NodeID{2}
	adj.pred[2] = []NodeID{1}

	tracker := NewEvidenceTracker()
	tracker.Register(1, 1)
	tracker.Register(2, 2)

	src := &slicePathNodeSource{items: []KmerPathNode{n1, n2}}
	asm := NewContigAssembler(src, adj, bigWindowConfig(), tracker, 0, Forward)
	out := drainContigs(t, asm)

	require.Len(t, out, 1)
	assert.False(t, out[0].Anchored)
	assert.Equal(t, Pos(0), out[0].AnchorPosition)
	assert.Equal(t, "ACGTA", string(out[0].BaseCalls))
}

func TestExpandQualitiesPadsTrailingBasesWithLastWeight(t *testing.T) {
	got := expandQualities([]int{10, 20, 30}, 5)
	assert.Equal(t, []byte{10, 20, 30, 30, 30}, got)
}

func TestClipByteClampsToByteRange(t *testing.T) {
	assert.Equal(t, byte(0), clipByte(-5))
	assert.Equal(t, byte(255), clipByte(1000))
	assert.Equal(t, byte(42), clipByte(42))
}
