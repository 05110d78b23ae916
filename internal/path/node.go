package path

// Node pairs a Path with the leaf value found at that path. A leaf is
// any non-container JSON value: string, float64/int, bool, nil, or
// raw bytes. Node identity is the string form of its path.
type Node struct {
	Path  Path
	Value any
}

// NewNode constructs a Node.
func NewNode(p Path, value any) Node {
	return Node{Path: p, Value: value}
}

// Key returns the node's identity: the string rendering of its path.
func (n Node) Key() string {
	return n.Path.String()
}

// RecordIndex delegates to the node's path.
func (n Node) RecordIndex() (int, error) {
	return n.Path.RecordIndex()
}

// IsLeaf reports whether value is a non-container JSON value as
// produced by encoding/json's default decoding into any: everything
// except map[string]any and []any.
func IsLeaf(value any) bool {
	switch value.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}
