package positional

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalOverlaps(t *testing.T) {
	a := Interval{Start: 10, End: 20}
	assert.True(t, a.Overlaps(Interval{Start: 15, End: 25}))
	assert.True(t, a.Overlaps(Interval{Start: 5, End: 10}))
	assert.False(t, a.Overlaps(Interval{Start: 21, End: 30}))
}

func TestIntervalTouches(t *testing.T) {
	a := Interval{Start: 10, End: 20}
	assert.True(t, a.Touches(Interval{Start: 21, End: 30}))
	assert.True(t, a.Touches(Interval{Start: 0, End: 9}))
	assert.False(t, a.Touches(Interval{Start: 22, End: 30}))
}

func TestIntervalUnion(t *testing.T) {
	a := Interval{Start: 10, End: 20}
	b := Interval{Start: 15, End: 30}
	assert.Equal(t, Interval{Start: 10, End: 30}, a.Union(b))
}

func TestIntervalShift(t *testing.T) {
	a := Interval{Start: 10, End: 20}
	assert.Equal(t, Interval{Start: 13, End: 23}, a.Shift(3))
}

func TestNewIntervalPanicsOnInverted(t *testing.T) {
	assert.Panics(t, func() { newInterval(20, 10) })
}
