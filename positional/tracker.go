package positional

import "github.com/biogo/store/llrb"

// NodeID is a stable identifier for a KmerNode or KmerPathNode, used as the
// key into EvidenceTracker's relation instead of an object reference. This
// follows an arena-and-stable-id strategy: nodes are destroyed by id
// invalidation, never by reference counting.
type NodeID uint32

// idItem is an llrb.Comparable wrapping a uint32, used to back ordered sets
// of EvidenceID/NodeID. Ordered iteration of these sets is what lets
// EvidenceTracker.EvidenceOf return a deterministic slice.
type idItem uint32

func (a idItem) Compare(b llrb.Comparable) int {
	bi := b.(idItem)
	switch {
	case a < bi:
		return -1
	case a > bi:
		return 1
	default:
		return 0
	}
}

// idSet is an ordered set of uint32-like ids backed by an llrb tree.
type idSet struct {
	tree llrb.Tree
}

func (s *idSet) add(id uint32) { s.tree.Insert(idItem(id)) }

func (s *idSet) remove(id uint32) { s.tree.Delete(idItem(id)) }

func (s *idSet) contains(id uint32) bool { return s.tree.Get(idItem(id)) != nil }

func (s *idSet) len() int { return s.tree.Len() }

// items returns the set's members in ascending order.
func (s *idSet) items() []uint32 {
	out := make([]uint32, 0, s.tree.Len())
	s.tree.Do(func(c llrb.Comparable) bool {
		out = append(out, uint32(c.(idItem)))
		return false
	})
	return out
}

// EvidenceTracker maintains the bidirectional relation between Evidence and
// the KmerNode/KmerPathNode ids that include one of its kmer-occurrences.
// All stages in a pipeline share one tracker; since the pipeline is
// single-threaded cooperative, it needs no locking.
type EvidenceTracker struct {
	evidenceToNodes map[EvidenceID]*idSet
	nodeToEvidence  map[NodeID]*idSet
	// pool holds the Evidence itself. Ownership of an Evidence passes to the
	// tracker when SupportNodeStage pulls it from the Source; the tracker
	// releases it in Remove.
	pool map[EvidenceID]*Evidence
}

// NewEvidenceTracker returns an empty tracker.
func NewEvidenceTracker() *EvidenceTracker {
	return &EvidenceTracker{
		evidenceToNodes: make(map[EvidenceID]*idSet),
		nodeToEvidence:  make(map[NodeID]*idSet),
		pool:            make(map[EvidenceID]*Evidence),
	}
}

// RegisterEvidence adopts ev into the tracker's pool, keyed by its ID. It is
// idempotent: registering the same ID twice is a no-op.
func (t *EvidenceTracker) RegisterEvidence(ev *Evidence) {
	if _, ok := t.pool[ev.ID]; !ok {
		t.pool[ev.ID] = ev
	}
}

// GetEvidence returns the Evidence for id, or nil if it has been released.
func (t *EvidenceTracker) GetEvidence(id EvidenceID) *Evidence { return t.pool[id] }

// Register records that node includes one of evidence's kmer-occurrences.
func (t *EvidenceTracker) Register(evidence EvidenceID, node NodeID) {
	es, ok := t.evidenceToNodes[evidence]
	if !ok {
		es = &idSet{}
		t.evidenceToNodes[evidence] = es
	}
	es.add(uint32(node))

	ns, ok := t.nodeToEvidence[node]
	if !ok {
		ns = &idSet{}
		t.nodeToEvidence[node] = ns
	}
	ns.add(uint32(evidence))
}

// RewriteNode moves every evidence association from oldID to newID, used
// when a stage replaces a node's identity without changing its supporting
// evidence (e.g. PathNodeStage starting a chain from a KmerNode).
func (t *EvidenceTracker) RewriteNode(oldID, newID NodeID) {
	old, ok := t.nodeToEvidence[oldID]
	if !ok {
		return
	}
	delete(t.nodeToEvidence, oldID)
	for _, e := range old.items() {
		ev := EvidenceID(e)
		if es, ok := t.evidenceToNodes[ev]; ok {
			es.remove(uint32(oldID))
			es.add(uint32(newID))
		}
	}
	t.nodeToEvidence[newID] = old
}

// MergeNode folds src's evidence set into dst's (used by CollapseStage when
// the lower-weight path is merged into the higher-weight one) and discards
// src.
func (t *EvidenceTracker) MergeNode(src, dst NodeID) {
	srcSet, ok := t.nodeToEvidence[src]
	if !ok {
		return
	}
	for _, e := range srcSet.items() {
		t.Register(EvidenceID(e), dst)
	}
	t.RemoveNode(src)
}

// RemoveNode deletes node from the tracker and from every evidence's
// forward set, without touching the evidence itself.
func (t *EvidenceTracker) RemoveNode(node NodeID) {
	ns, ok := t.nodeToEvidence[node]
	if !ok {
		return
	}
	delete(t.nodeToEvidence, node)
	for _, e := range ns.items() {
		ev := EvidenceID(e)
		if es, ok := t.evidenceToNodes[ev]; ok {
			es.remove(uint32(node))
			if es.len() == 0 {
				delete(t.evidenceToNodes, ev)
			}
		}
	}
}

// EvidenceOf returns the (ascending, deterministic) ids of evidence
// supporting node.
func (t *EvidenceTracker) EvidenceOf(node NodeID) []EvidenceID {
	ns, ok := t.nodeToEvidence[node]
	if !ok {
		return nil
	}
	items := ns.items()
	out := make([]EvidenceID, len(items))
	for i, e := range items {
		out[i] = EvidenceID(e)
	}
	return out
}

// NodesOf returns the (ascending, deterministic) node ids that include one
// of evidence's kmer-occurrences.
func (t *EvidenceTracker) NodesOf(evidence EvidenceID) []NodeID {
	es, ok := t.evidenceToNodes[evidence]
	if !ok {
		return nil
	}
	items := es.items()
	out := make([]NodeID, len(items))
	for i, n := range items {
		out[i] = NodeID(n)
	}
	return out
}

// Remove deletes evidence entirely, returning the node ids that lost it.
func (t *EvidenceTracker) Remove(evidence EvidenceID) []NodeID {
	es, ok := t.evidenceToNodes[evidence]
	if !ok {
		return nil
	}
	delete(t.evidenceToNodes, evidence)
	delete(t.pool, evidence)
	items := es.items()
	out := make([]NodeID, 0, len(items))
	for _, n := range items {
		node := NodeID(n)
		if ns, ok := t.nodeToEvidence[node]; ok {
			ns.remove(uint32(evidence))
			if ns.len() == 0 {
				delete(t.nodeToEvidence, node)
			}
		}
		out = append(out, node)
	}
	return out
}

// LiveEvidenceCount reports the number of distinct evidence ids currently
// tracked; used by export.go for the CSV side-output.
func (t *EvidenceTracker) LiveEvidenceCount() int { return len(t.evidenceToNodes) }
