package positional

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceSourceYieldsInOrderThenEOF(t *testing.T) {
	a := &Evidence{ID: 1}
	b := &Evidence{ID: 2}
	src := NewSliceSource([]*Evidence{a, b})

	got, err := src.Next()
	require.NoError(t, err)
	assert.Same(t, a, got)

	got, err = src.Next()
	require.NoError(t, err)
	assert.Same(t, b, got)

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDirectionFilterDropsNonMatchingDirection(t *testing.T) {
	src := NewSliceSource([]*Evidence{
		{ID: 1, Direction: Forward},
		{ID: 2, Direction: Backward},
		{ID: 3, Direction: Forward},
	})
	want := Forward
	f := &DirectionFilter{Upstream: src, Direction: &want}

	got, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, EvidenceID(1), got.ID)

	got, err = f.Next()
	require.NoError(t, err)
	assert.Equal(t, EvidenceID(3), got.ID)

	_, err = f.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDirectionFilterPassesEverythingWhenDirectionNil(t *testing.T) {
	src := NewSliceSource([]*Evidence{
		{ID: 1, Direction: Forward},
		{ID: 2, Direction: Backward},
	})
	f := &DirectionFilter{Upstream: src}

	var ids []EvidenceID
	for {
		ev, err := f.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []EvidenceID{1, 2}, ids)
}

func TestPerContigGateStopsAtReferenceIndexBoundary(t *testing.T) {
	src := NewSliceSource([]*Evidence{
		{ID: 1, ReferenceIndex: 0},
		{ID: 2, ReferenceIndex: 0},
		{ID: 3, ReferenceIndex: 1},
	})
	g := newPerContigGate(src, 0)

	got, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, EvidenceID(1), got.ID)

	got, err = g.Next()
	require.NoError(t, err)
	assert.Equal(t, EvidenceID(2), got.ID)

	_, err = g.Next()
	assert.Equal(t, io.EOF, err)

	idx, ok := g.peekNextReferenceIndex()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestPerContigGateReportsEOFWhenUpstreamExhausted(t *testing.T) {
	src := NewSliceSource([]*Evidence{{ID: 1, ReferenceIndex: 0}})
	g := newPerContigGate(src, 0)

	_, err := g.Next()
	require.NoError(t, err)

	_, err = g.Next()
	assert.Equal(t, io.EOF, err)

	_, ok := g.peekNextReferenceIndex()
	assert.False(t, ok)
}
