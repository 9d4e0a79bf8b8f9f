package positional

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driverTestConfig keeps every derived threshold large relative to the tiny
// fixture positions used below, so Driver's pipeline has drained an entire
// contig's evidence before it emits that contig's first contig -- the same
// reasoning as assembler_test.go's bigWindowConfig.
func driverTestConfig() Config {
	return Config{
		K: 5,
		// AnchorLength here is ContigAssembler's kmer-count threshold (see
		// Config's doc comment), not the base-level anchor length carried on
		// each Evidence -- the fixtures below carry AnchorLength==K, which
		// produces a single reference-flagged kmer per read, so this must
		// stay at 1 for assembleBest to treat them as anchors at all.
		AnchorLength:              1,
		MaxPathLength:             100,
		MinConcordantFragmentSize: 0,
		MaxConcordantFragmentSize: 0,
		MaxReadLength:             300,
	}
}

func drainDriver(t *testing.T, d *Driver) []Contig {
	var out []Contig
	for {
		c, err := d.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, c)
	}
}

func TestDriverReconstructsSingleContigFromOneEvidence(t *testing.T) {
	bases := []byte("AAAAACCCCG")
	ev := &Evidence{
		ReferenceIndex: 0,
		Start:          100,
		End:            109,
		Direction:      Forward,
		Kind:           SoftClip,
		ReadBases:      bases,
		BaseQuals:      quals(len(bases), 30),
		AnchorLength:   5,
	}
	d := NewDriver(NewSliceSource([]*Evidence{ev}), Forward, driverTestConfig(), false, "", nil)
	out := drainDriver(t, d)

	require.Len(t, out, 1)
	c := out[0]
	assert.True(t, c.Anchored)
	assert.Equal(t, Pos(100), c.AnchorPosition)
	assert.Equal(t, 5, c.AnchoredBaseCount)
	assert.Equal(t, "AAAAACCCCG", string(c.BaseCalls))
}

func TestDriverFlattensAcrossReferenceIndices(t *testing.T) {
	basesA := []byte("AAAAACCCCG")
	basesB := []byte("TTTTTGGGGC")
	evs := []*Evidence{
		{ReferenceIndex: 0, Start: 100, End: 109, Direction: Forward, Kind: SoftClip, ReadBases: basesA, BaseQuals: quals(len(basesA), 30), AnchorLength: 5},
		{ReferenceIndex: 1, Start: 200, End: 209, Direction: Forward, Kind: SoftClip, ReadBases: basesB, BaseQuals: quals(len(basesB), 30), AnchorLength: 5},
	}
	d := NewDriver(NewSliceSource(evs), Forward, driverTestConfig(), false, "", nil)
	out := drainDriver(t, d)

	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].ReferenceIndex)
	assert.Equal(t, "AAAAACCCCG", string(out[0].BaseCalls))
	assert.Equal(t, 1, out[1].ReferenceIndex)
	assert.Equal(t, "TTTTTGGGGC", string(out[1].BaseCalls))
}

// malformedThenValidEvidence builds a fixture with one reference index whose
// evidence is out of Start order (triggering ErrKindMalformedInput) followed
// by a second, well-formed reference index.
func malformedThenValidEvidence() []*Evidence {
	bases := []byte("AAAAACCCCG")
	basesB := []byte("TTTTTGGGGC")
	return []*Evidence{
		{ReferenceIndex: 0, Start: 200, End: 209, Direction: Forward, Kind: SoftClip, ReadBases: bases, BaseQuals: quals(len(bases), 30), AnchorLength: 5},
		{ReferenceIndex: 0, Start: 100, End: 109, Direction: Forward, Kind: SoftClip, ReadBases: bases, BaseQuals: quals(len(bases), 30), AnchorLength: 5},
		{ReferenceIndex: 1, Start: 300, End: 309, Direction: Forward, Kind: SoftClip, ReadBases: basesB, BaseQuals: quals(len(basesB), 30), AnchorLength: 5},
	}
}

// Outside recovery mode, a malformed contig's failure propagates directly
// from Driver.Next.
func TestDriverPropagatesMalformedInputWithoutRecoveryMode(t *testing.T) {
	d := NewDriver(NewSliceSource(malformedThenValidEvidence()), Forward, driverTestConfig(), false, "", nil)
	_, err := d.Next()
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrKindMalformedInput, kind)
}

// In recovery mode, a malformed contig's pipeline is discarded and assembly
// resumes at the next reference index instead of propagating the failure.
func TestDriverRecoversFromMalformedInputAndResumesAtNextReferenceIndex(t *testing.T) {
	d := NewDriver(NewSliceSource(malformedThenValidEvidence()), Forward, driverTestConfig(), true, "", nil)
	c, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, c.ReferenceIndex)
	assert.Equal(t, "TTTTTGGGGC", string(c.BaseCalls))

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

// TestDriverCollapsesBubbleToHigherWeightVariant reproduces spec.md's E3
// scenario end to end: two reads sharing an anchor and a common prefix but
// differing by exactly one base at an interior position of the novel tail.
// With collapsing enabled, the pipeline emits a single contig carrying the
// higher-weight read's base at that position rather than two contigs or a
// degenerate one.
func TestDriverCollapsesBubbleToHigherWeightVariant(t *testing.T) {
	basesA := []byte("AAAAACCCCG")
	basesB := []byte("AAAAACCCTG") // differs from basesA only at index 8
	evs := []*Evidence{
		{ReferenceIndex: 0, Start: 100, End: 109, Direction: Forward, Kind: SoftClip, ReadBases: basesA, BaseQuals: quals(len(basesA), 40), AnchorLength: 5},
		{ReferenceIndex: 0, Start: 100, End: 109, Direction: Forward, Kind: SoftClip, ReadBases: basesB, BaseQuals: quals(len(basesB), 10), AnchorLength: 5},
	}

	config := driverTestConfig()
	config.CollapseBubblesOnly = true
	config.MaxBaseMismatchForCollapse = 1
	config.MaxPathCollapseLength = 50

	d := NewDriver(NewSliceSource(evs), Forward, config, false, "", nil)
	out := drainDriver(t, d)

	require.Len(t, out, 1)
	c := out[0]
	assert.True(t, c.Anchored)
	assert.Equal(t, Pos(100), c.AnchorPosition)
	assert.Equal(t, 5, c.AnchoredBaseCount)
	assert.Equal(t, "AAAAACCCCG", string(c.BaseCalls)) // basesA's higher-weight tail wins
}

func TestDriverStringNamesDirection(t *testing.T) {
	d := NewDriver(NewSliceSource(nil), Backward, driverTestConfig(), false, "", nil)
	assert.Equal(t, "Driver(direction=backward)", d.String())
}
