package path

import (
	"fmt"
	"log/slog"
	"sort"
)

// Discoverer walks an arbitrary JSON-shaped document (the output of
// encoding/json's Unmarshal into `any`) and emits an ordered sequence
// of (Path, leaf value) pairs via depth-first traversal.
//
// Nested containers are map[string]any and []any (any non-string,
// non-bytes sequence or map, matching the Python definition of
// "nested"); everything else is a leaf. Object key order is not
// preserved by Go's map type, so Discoverer sorts keys at each level
// to produce a deterministic traversal.
type Discoverer struct {
	// MaxDepth stops descent at the given depth (0 = unlimited).
	// Truncation is logged, never silently dropped.
	MaxDepth int
	Delim    string
	Logger   *slog.Logger
}

// NewDiscoverer returns a Discoverer with the given delimiter and no
// depth limit.
func NewDiscoverer(delim string) *Discoverer {
	return &Discoverer{Delim: delim, Logger: slog.Default()}
}

// Discover traverses doc and returns the ordered leaves found,
// earliest-discovered first (depth-first, sorted-key order at each
// level).
func (d *Discoverer) Discover(doc any) ([]Node, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root, err := Root(d.Delim)
	if err != nil {
		return nil, err
	}
	var out []Node
	if err := d.walk(doc, root, 0, &out, logger); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Discoverer) walk(value any, current Path, depth int, out *[]Node, logger *slog.Logger) error {
	if d.MaxDepth > 0 && depth >= d.MaxDepth {
		if isContainer(value) {
			logger.Warn("path discovery truncated at max depth", slog.Int("max_depth", d.MaxDepth), slog.String("path", current.String()))
			return nil
		}
	}

	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			next, err := appendComponent(current, k, d.Delim)
			if err != nil {
				return err
			}
			if err := d.walk(v[k], next, depth+1, out, logger); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, item := range v {
			next, err := appendComponent(current, fmt.Sprintf("%d", i), d.Delim)
			if err != nil {
				return err
			}
			if err := d.walk(item, next, depth+1, out, logger); err != nil {
				return err
			}
		}
		return nil
	default:
		if !IsLeaf(value) {
			return fmt.Errorf("path discovery: non-serializable value of type %T at %s", value, current.String())
		}
		*out = append(*out, NewNode(current, value))
		return nil
	}
}

// appendComponent appends to a root path directly, avoiding Path's
// Append special-casing for an already-populated root.
func appendComponent(current Path, component string, delim string) (Path, error) {
	if current.IsRoot() {
		return New([]string{component}, delim)
	}
	return current.Append(component)
}

func isContainer(value any) bool {
	switch value.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
