package positional

import "github.com/biogo/store/llrb"

// windowKey orders KmerPathNodes by (StartInterval.Start, ID), the keying
// scheme ContigAssembler's sub-graph uses.
type windowKey struct {
	start Pos
	id    NodeID
}

func (a windowKey) Compare(b llrb.Comparable) int {
	bk := b.(windowKey)
	switch {
	case a.start < bk.start:
		return -1
	case a.start > bk.start:
		return 1
	case a.id < bk.id:
		return -1
	case a.id > bk.id:
		return 1
	default:
		return 0
	}
}

// windowStore is ContigAssembler's sliding sub-graph: an llrb-ordered index
// by start position (for the "evict everything behind the frontier" and
// "pull the stable region" operations) plus a byID map for adjacency
// lookups and removal.
type windowStore struct {
	tree llrb.Tree
	byID map[NodeID]*KmerPathNode
}

func newWindowStore() *windowStore {
	return &windowStore{byID: make(map[NodeID]*KmerPathNode)}
}

func (w *windowStore) insert(n KmerPathNode) {
	cp := n
	w.byID[n.ID] = &cp
	w.tree.Insert(windowKey{start: n.StartInterval.Start, id: n.ID})
}

func (w *windowStore) get(id NodeID) (*KmerPathNode, bool) {
	n, ok := w.byID[id]
	return n, ok
}

func (w *windowStore) remove(id NodeID) {
	n, ok := w.byID[id]
	if !ok {
		return
	}
	w.tree.Delete(windowKey{start: n.StartInterval.Start, id: id})
	delete(w.byID, id)
}

func (w *windowStore) len() int { return len(w.byID) }

// ascending returns every live node id in (StartInterval.Start, ID) order.
func (w *windowStore) ascending() []NodeID {
	out := make([]NodeID, 0, w.tree.Len())
	w.tree.Do(func(c llrb.Comparable) bool {
		out = append(out, c.(windowKey).id)
		return false
	})
	return out
}

// frontierStart returns the largest StartInterval.Start of any node in the
// window, or ok=false if the window is empty.
func (w *windowStore) frontierStart() (Pos, bool) {
	max := w.tree.Max()
	if max == nil {
		return 0, false
	}
	return max.(windowKey).start, true
}

// evictBefore removes and returns the ids of every node whose start lies
// strictly before threshold.
func (w *windowStore) evictBefore(threshold Pos) []NodeID {
	var dead []NodeID
	w.tree.Do(func(c llrb.Comparable) bool {
		k := c.(windowKey)
		if k.start < threshold {
			dead = append(dead, k.id)
		}
		return false
	})
	for _, id := range dead {
		w.remove(id)
	}
	return dead
}
