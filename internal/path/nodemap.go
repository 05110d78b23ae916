package path

import (
	"fmt"
	"sync"
	"weak"
)

// NodeMap maps Path -> Node and enforces the terminal invariant: no
// two stored paths may be such that one is a strict prefix of the
// other. Inserting a child removes any stored ancestor; inserting a
// path that already has a stored descendant fails.
//
// An optional lazy prefix cache accelerates Filter by indexing
// ancestor-path-string -> weak references to descendant nodes, so
// that entries removed from the map do not leak through the cache.
// Pending add/remove operations are queued and replayed at the start
// of any cached filter call, preserving read-your-writes consistency
// without requiring the cache to be updated synchronously on every
// mutation.
type NodeMap struct {
	mu    sync.RWMutex
	nodes map[string]*Node

	useCache bool
	cache    map[string][]weak.Pointer[Node]
	pending  []pendingOp
}

type pendingOp struct {
	add  bool
	node *Node
}

// NewNodeMap returns an empty NodeMap. useCache enables the lazy
// prefix cache implementation for Filter (Filter otherwise falls back
// to a direct scan).
func NewNodeMap(useCache bool) *NodeMap {
	m := &NodeMap{
		nodes:    make(map[string]*Node),
		useCache: useCache,
	}
	if useCache {
		m.cache = make(map[string][]weak.Pointer[Node])
	}
	return m
}

// Insert enforces the terminal invariant and stores node.
func (m *NodeMap) Insert(n Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := n.Path.String()

	for k, existing := range m.nodes {
		if n.Path.IsAncestorOf(existing.Path) {
			return fmt.Errorf("path: cannot insert %q, descendant %q already present", key, k)
		}
	}

	var removedAncestors []string
	for k, existing := range m.nodes {
		if existing.Path.IsAncestorOf(n.Path) {
			removedAncestors = append(removedAncestors, k)
		}
	}
	for _, k := range removedAncestors {
		removed := m.nodes[k]
		delete(m.nodes, k)
		m.queue(pendingOp{add: false, node: removed})
	}

	stored := n
	m.nodes[key] = &stored
	m.queue(pendingOp{add: true, node: &stored})
	return nil
}

func (m *NodeMap) queue(op pendingOp) {
	if m.useCache {
		m.pending = append(m.pending, op)
	}
}

// Delete removes the node stored at p, if any.
func (m *NodeMap) Delete(p Path) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.String()
	if existing, ok := m.nodes[key]; ok {
		delete(m.nodes, key)
		m.queue(pendingOp{add: false, node: existing})
	}
}

// Get returns the node stored at p, if any.
func (m *NodeMap) Get(p Path) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[p.String()]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Len returns the number of stored nodes.
func (m *NodeMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// All returns every stored node in unspecified order.
func (m *NodeMap) All() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, *n)
	}
	return out
}

// Filter returns all stored nodes whose path equals prefix or has
// prefix as an ancestor, filtered by depth relative to prefix
// (minDepth/maxDepth <= 0 means unbounded). Uses the lazy cache when
// enabled, otherwise a direct scan; both must return identical sets.
func (m *NodeMap) Filter(prefix Path, minDepth, maxDepth int) []Node {
	if m.useCache {
		return m.filterCached(prefix, minDepth, maxDepth)
	}
	return m.filterDirect(prefix, minDepth, maxDepth)
}

func matchesDepth(prefix Path, candidate Path, minDepth, maxDepth int) bool {
	depth := candidate.Len() - prefix.Len()
	if prefix.IsRoot() {
		depth = candidate.Len()
	}
	if minDepth > 0 && depth < minDepth {
		return false
	}
	if maxDepth > 0 && depth > maxDepth {
		return false
	}
	return true
}

func (m *NodeMap) filterDirect(prefix Path, minDepth, maxDepth int) []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Node
	for _, n := range m.nodes {
		if (n.Path.Equal(prefix) || prefix.IsAncestorOf(n.Path)) && matchesDepth(prefix, n.Path, minDepth, maxDepth) {
			out = append(out, *n)
		}
	}
	return out
}

// filterCached replays pending operations into the prefix cache, then
// answers from it. The cache maps an ancestor prefix string to weak
// pointers at every node whose path starts with that prefix; replay
// appends newly added nodes under every one of their own ancestor
// prefixes (including themselves) and lets removed entries resolve to
// nil on next dereference rather than being eagerly scrubbed.
func (m *NodeMap) filterCached(prefix Path, minDepth, maxDepth int) []Node {
	m.mu.Lock()
	m.replayPending()
	entries := append([]weak.Pointer[Node]{}, m.cache[prefix.String()]...)
	m.mu.Unlock()

	seen := make(map[string]bool, len(entries))
	var out []Node
	for _, wp := range entries {
		n := wp.Value()
		if n == nil {
			continue
		}
		if seen[n.Path.String()] {
			continue
		}
		// A removed-then-never-replaced path resolves to a live *Node
		// until GC reclaims it; guard with a live-membership check.
		if _, stillPresent := m.Get(n.Path); !stillPresent {
			continue
		}
		if matchesDepth(prefix, n.Path, minDepth, maxDepth) {
			seen[n.Path.String()] = true
			out = append(out, *n)
		}
	}
	return out
}

// replayPending must be called with m.mu held. It indexes every
// pending-add node under each of its own ancestor prefixes (plus
// itself); pending-remove entries need no action since filterCached
// re-verifies live membership before returning a candidate.
func (m *NodeMap) replayPending() {
	for _, op := range m.pending {
		if !op.add {
			continue
		}
		prefixes := append(op.node.Path.Ancestors(), op.node.Path)
		for _, pfx := range prefixes {
			key := pfx.String()
			m.cache[key] = append(m.cache[key], weak.Make(op.node))
		}
	}
	m.pending = m.pending[:0]
}
