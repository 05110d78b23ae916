package path

import (
	"fmt"
	"sort"
)

// RecordNodeMap is a NodeMap constrained to a single record_index: the
// integer value of every stored path's first component must equal the
// index the map was declared with. Insert rejects any path whose
// first component differs from that index, independent of (and
// checked before) NodeMap's own terminal invariant.
type RecordNodeMap struct {
	*NodeMap
	recordIndex int
}

// NewRecordNodeMap returns an empty RecordNodeMap constrained to
// recordIndex. useCache enables the lazy prefix cache the same way it
// does for NodeMap.
func NewRecordNodeMap(recordIndex int, useCache bool) *RecordNodeMap {
	return &RecordNodeMap{NodeMap: NewNodeMap(useCache), recordIndex: recordIndex}
}

// RecordIndex returns the record_index this map is constrained to.
func (m *RecordNodeMap) RecordIndex() int {
	return m.recordIndex
}

// Insert rejects n if its path's first component isn't this map's
// declared record_index, otherwise delegates to NodeMap.Insert.
func (m *RecordNodeMap) Insert(n Node) error {
	idx, err := n.Path.RecordIndex()
	if err != nil {
		return fmt.Errorf("record node map: %w", err)
	}
	if idx != m.recordIndex {
		return fmt.Errorf("record node map: path %q has record_index %d, map is constrained to %d", n.Path.String(), idx, m.recordIndex)
	}
	return m.NodeMap.Insert(n)
}

// ChainMap holds a fully-indexed flattened document: one
// RecordNodeMap per record_index, keyed by that index. It is the
// structure PathIndexProcessor (§4.5's path-based DataProcessor
// variant) builds from a discovered list-of-records document before
// grouping leaves into output rows per record.
type ChainMap struct {
	records  map[int]*RecordNodeMap
	useCache bool
}

// NewChainMap returns an empty ChainMap. useCache is forwarded to
// every RecordNodeMap created on first insert for a given index.
func NewChainMap(useCache bool) *ChainMap {
	return &ChainMap{records: make(map[int]*RecordNodeMap), useCache: useCache}
}

// Insert routes n into the RecordNodeMap for its path's record_index,
// creating that map on first use. Fails the same way RecordNodeMap.Insert
// does if the path has no numeric first component.
func (c *ChainMap) Insert(n Node) error {
	idx, err := n.Path.RecordIndex()
	if err != nil {
		return fmt.Errorf("chain map: %w", err)
	}
	rm, ok := c.records[idx]
	if !ok {
		rm = NewRecordNodeMap(idx, c.useCache)
		c.records[idx] = rm
	}
	return rm.Insert(n)
}

// Get returns the RecordNodeMap for recordIndex, if any records have
// been inserted under it.
func (c *ChainMap) Get(recordIndex int) (*RecordNodeMap, bool) {
	rm, ok := c.records[recordIndex]
	return rm, ok
}

// RecordIndices returns every record_index currently present, in
// ascending order.
func (c *ChainMap) RecordIndices() []int {
	out := make([]int, 0, len(c.records))
	for idx := range c.records {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of distinct record_index entries.
func (c *ChainMap) Len() int {
	return len(c.records)
}
