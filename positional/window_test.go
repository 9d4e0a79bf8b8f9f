package positional

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowStoreInsertGetRemove(t *testing.T) {
	w := newWindowStore()
	w.insert(KmerPathNode{ID: 1, StartInterval: Interval{Start: 10, End: 13}})
	w.insert(KmerPathNode{ID: 2, StartInterval: Interval{Start: 20, End: 23}})
	assert.Equal(t, 2, w.len())

	n, ok := w.get(1)
	assert.True(t, ok)
	assert.Equal(t, NodeID(1), n.ID)

	w.remove(1)
	assert.Equal(t, 1, w.len())
	_, ok = w.get(1)
	assert.False(t, ok)

	// removing an id that was never inserted is a no-op
	w.remove(999)
	assert.Equal(t, 1, w.len())
}

func TestWindowStoreAscendingOrdersByStartThenID(t *testing.T) {
	w := newWindowStore()
	w.insert(KmerPathNode{ID: 5, StartInterval: Interval{Start: 30, End: 33}})
	w.insert(KmerPathNode{ID: 2, StartInterval: Interval{Start: 10, End: 13}})
	w.insert(KmerPathNode{ID: 3, StartInterval: Interval{Start: 10, End: 13}})

	assert.Equal(t, []NodeID{2, 3, 5}, w.ascending())
}

// frontierStart relies on llrb.Tree.Max() to report the largest-start node;
// this is the one windowStore behaviour not independently confirmed against
// a real pack call site (see DESIGN.md). If Max() doesn't mean what this
// test assumes, this is the test that will catch it.
func TestWindowStoreFrontierStartTracksLargestInsertedStart(t *testing.T) {
	w := newWindowStore()
	_, ok := w.frontierStart()
	assert.False(t, ok, "empty window has no frontier")

	w.insert(KmerPathNode{ID: 1, StartInterval: Interval{Start: 10, End: 13}})
	w.insert(KmerPathNode{ID: 2, StartInterval: Interval{Start: 50, End: 53}})
	w.insert(KmerPathNode{ID: 3, StartInterval: Interval{Start: 30, End: 33}})

	front, ok := w.frontierStart()
	assert.True(t, ok)
	assert.Equal(t, Pos(50), front)
}

func TestWindowStoreEvictBeforeRemovesOnlyStrictlyEarlierNodes(t *testing.T) {
	w := newWindowStore()
	w.insert(KmerPathNode{ID: 1, StartInterval: Interval{Start: 10, End: 13}})
	w.insert(KmerPathNode{ID: 2, StartInterval: Interval{Start: 20, End: 23}})
	w.insert(KmerPathNode{ID: 3, StartInterval: Interval{Start: 30, End: 33}})

	dead := w.evictBefore(20)
	assert.ElementsMatch(t, []NodeID{1}, dead)
	assert.Equal(t, 2, w.len())
	_, ok := w.get(1)
	assert.False(t, ok)
	_, ok = w.get(2)
	assert.True(t, ok)

	dead = w.evictBefore(100)
	assert.ElementsMatch(t, []NodeID{2, 3}, dead)
	assert.Equal(t, 0, w.len())
}
