// Package flatten implements RecursiveJsonProcessor: a flattener that
// turns an arbitrarily nested JSON document into a single flat
// name -> value map, resolving name collisions by progressively
// widening the key to include more path components, falling back to a
// numeric disambiguator when even the full path collides.
package flatten

import "strings"

// component is one segment of a traversal path. isIndex marks a list
// ordinal (dropped when computing a group key) as opposed to a dict
// key (kept).
type component struct {
	value   string
	isIndex bool
}

// leaf is a terminal value discovered during traversal, tagged with
// the path that produced it.
type leaf struct {
	value any
	path  []component
}

// DefaultObjectDelimiter is used to join sibling leaf-only lists (e.g.
// a list of strings) into one string instead of emitting a value per
// element, matching the source library's "; " default.
const DefaultObjectDelimiter = "; "

// Processor flattens a parsed JSON document (map[string]any /
// []any / leaf, as produced by encoding/json's Unmarshal into `any`)
// into a single-level map.
type Processor struct {
	// ObjectDelimiter joins a list of leaf-only siblings into a single
	// string during traversal. A nil pointer means "do not join";
	// the list is kept and stored as a single multi-element leaf.
	ObjectDelimiter *string

	// NormalizingDelimiter, if set, joins a field's accumulated value
	// list into a single delimiter-separated string. If nil,
	// single-element lists collapse to their element and multi-element
	// lists are returned as-is.
	NormalizingDelimiter *string

	// UseFullPath, if true, skips straight to the full dotted path as
	// the output key instead of trying progressively longer suffixes.
	UseFullPath bool

	leaves []leaf
}

// NewProcessor returns a Processor configured with the library default
// object delimiter ("; ") and no normalizing delimiter.
func NewProcessor() *Processor {
	d := DefaultObjectDelimiter
	return &Processor{ObjectDelimiter: &d}
}

// ProcessAndFlatten walks doc and returns the flattened name -> value
// map. Values are either a single scalar/leaf, a joined string (when
// NormalizingDelimiter is set), or a []any of accumulated values.
func (p *Processor) ProcessAndFlatten(doc any) map[string]any {
	p.leaves = nil
	p.walk(doc, nil)
	return p.normalize()
}

func (p *Processor) walk(obj any, current []component) {
	switch v := obj.(type) {
	case []any:
		if containsContainer(v) {
			for i, item := range v {
				p.walk(item, appendComponent(current, itoa(i), true))
			}
			return
		}
		if p.ObjectDelimiter != nil {
			joined := joinAsStrings(v, *p.ObjectDelimiter)
			p.leaves = append(p.leaves, leaf{value: joined, path: current})
			return
		}
		p.leaves = append(p.leaves, leaf{value: v, path: current})
	case map[string]any:
		for _, k := range sortedKeys(v) {
			p.walk(v[k], appendComponent(current, k, false))
		}
	default:
		p.leaves = append(p.leaves, leaf{value: obj, path: current})
	}
}

func containsContainer(v []any) bool {
	for _, item := range v {
		switch item.(type) {
		case []any, map[string]any:
			return true
		}
	}
	return false
}

func joinAsStrings(v []any, delim string) string {
	parts := make([]string, len(v))
	for i, item := range v {
		parts[i] = toDisplayString(item)
	}
	return strings.Join(parts, delim)
}

// normalize implements JsonNormalizer.normalize_extracted +
// create_unique_key: group leaves by their index-stripped group key,
// resolve output names by widening suffixes then a numeric
// disambiguator, and collapse each output's accumulated value list.
func (p *Processor) normalize() map[string]any {
	grouped := map[string][]any{}
	var order []string

	// outputKeyGroups maps an already-assigned output key to the set of
	// group-key strings that resolved to it, mirroring the Python
	// unique_mappings_dict used both as a uniqueness ledger and a
	// reverse lookup for "already mapped" groups.
	outputKeyGroups := map[string][]string{}

	for _, lf := range p.leaves {
		group := stripIndices(lf.path)
		if len(group) == 0 {
			continue
		}
		groupKeyStr := strings.Join(group, ".")

		outputKey := findExistingMapping(groupKeyStr, outputKeyGroups)
		if outputKey == "" {
			outputKey = p.createUniqueKey(group, groupKeyStr, outputKeyGroups)
		}

		if _, ok := grouped[outputKey]; !ok {
			order = append(order, outputKey)
		}
		grouped[outputKey] = append(grouped[outputKey], lf.value)
	}

	out := make(map[string]any, len(order))
	for _, key := range order {
		out[key] = p.combine(grouped[key])
	}
	return out
}

func findExistingMapping(groupKeyStr string, outputKeyGroups map[string][]string) string {
	for outputKey, members := range outputKeyGroups {
		for _, m := range members {
			if m == groupKeyStr {
				return outputKey
			}
		}
	}
	return ""
}

func (p *Processor) createUniqueKey(group []string, groupKeyStr string, outputKeyGroups map[string][]string) string {
	start := 1
	if p.UseFullPath {
		start = len(group)
	}
	for idx := start; idx <= len(group); idx++ {
		candidate := strings.Join(group[len(group)-idx:], ".")
		if _, used := outputKeyGroups[candidate]; !used {
			outputKeyGroups[candidate] = append(outputKeyGroups[candidate], groupKeyStr)
			return candidate
		}
	}

	base := group[len(group)-1]
	idx := 1
	candidate := base + "." + itoa(idx)
	for {
		if _, used := outputKeyGroups[candidate]; !used {
			break
		}
		idx++
		candidate = base + "." + itoa(idx)
	}
	outputKeyGroups[candidate] = append(outputKeyGroups[candidate], groupKeyStr)
	return candidate
}

// combine collapses an accumulated value list per the flattener's
// CombineNormalized/unlist rules.
func (p *Processor) combine(values []any) any {
	if p.NormalizingDelimiter != nil {
		parts := make([]string, 0, len(values))
		for _, v := range values {
			if v == nil {
				continue
			}
			parts = append(parts, toDisplayString(v))
		}
		if len(parts) == 0 {
			return nil
		}
		return strings.Join(parts, *p.NormalizingDelimiter)
	}
	if len(values) == 1 {
		return values[0]
	}
	return values
}

func stripIndices(path []component) []string {
	out := make([]string, 0, len(path))
	for _, c := range path {
		if !c.isIndex {
			out = append(out, c.value)
		}
	}
	return out
}

func appendComponent(current []component, value string, isIndex bool) []component {
	out := make([]component, len(current), len(current)+1)
	copy(out, current)
	return append(out, component{value: value, isIndex: isIndex})
}
