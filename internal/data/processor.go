package data

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/scholarflux/aggregator/internal/flatten"
	"github.com/scholarflux/aggregator/internal/path"
)

// Processor is the common interface shared by the three DataProcessor
// variants: each turns a page's extracted records into flat output
// rows, differing only in how they locate fields.
type Processor interface {
	ProcessPage(records []map[string]any) []map[string]any
}

// ExplicitPathProcessor (DataProcessor) locates fields via caller-declared
// paths, one per output key.
type ExplicitPathProcessor struct {
	// RecordKeys maps an output key to the nested path (dict keys only;
	// the final element is the field name within its parent dict).
	RecordKeys map[string][]string
	// IgnoreKeys / KeepKeys are substring or regex filters over a
	// record's keys, deciding whether the record is emitted at all.
	IgnoreKeys []string
	KeepKeys   []string
	// ValueDelimiter collapses a multi-value field to one string when set.
	ValueDelimiter *string
	Regex          bool
}

// NewExplicitPathProcessor returns an ExplicitPathProcessor with the
// library default "; " value delimiter.
func NewExplicitPathProcessor(recordKeys map[string][]string) *ExplicitPathProcessor {
	delim := "; "
	return &ExplicitPathProcessor{RecordKeys: recordKeys, ValueDelimiter: &delim}
}

func (p *ExplicitPathProcessor) ProcessPage(records []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		if p.excluded(record) {
			continue
		}
		out = append(out, p.processRecord(record))
	}
	return out
}

func (p *ExplicitPathProcessor) excluded(record map[string]any) bool {
	if len(p.KeepKeys) > 0 && !p.matchesAny(record, p.KeepKeys) {
		return true
	}
	if len(p.IgnoreKeys) > 0 && p.matchesAny(record, p.IgnoreKeys) {
		return true
	}
	return false
}

func (p *ExplicitPathProcessor) matchesAny(record map[string]any, keys []string) bool {
	flat := flattenKeysOnly(record)
	for _, key := range keys {
		for _, k := range flat {
			if p.Regex {
				if matched, _ := regexp.MatchString(key, k); matched {
					return true
				}
			} else if strings.Contains(k, key) {
				return true
			}
		}
	}
	return false
}

func (p *ExplicitPathProcessor) processRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(p.RecordKeys))
	for outputKey, fullPath := range p.RecordKeys {
		if len(fullPath) == 0 {
			continue
		}
		field := fullPath[len(fullPath)-1]
		parent := getNested(record, fullPath[:len(fullPath)-1])
		var value any
		if m, ok := parent.(map[string]any); ok {
			value = m[field]
		} else if len(fullPath) == 1 {
			value = record[field]
		}
		out[outputKey] = p.collapse(value)
	}
	return out
}

func (p *ExplicitPathProcessor) collapse(value any) any {
	list, ok := value.([]any)
	if !ok {
		return value
	}
	if p.ValueDelimiter != nil && len(list) > 1 {
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = toDisplayString(v)
		}
		return strings.Join(parts, *p.ValueDelimiter)
	}
	if len(list) == 1 {
		return list[0]
	}
	return list
}

func flattenKeysOnly(record map[string]any) []string {
	var keys []string
	var walk func(obj any, prefix string)
	walk = func(obj any, prefix string) {
		switch v := obj.(type) {
		case map[string]any:
			for k, val := range v {
				next := k
				if prefix != "" {
					next = prefix + "." + k
				}
				keys = append(keys, next)
				walk(val, next)
			}
		case []any:
			for _, item := range v {
				walk(item, prefix)
			}
		}
	}
	walk(record, "")
	return keys
}

func toDisplayString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// RecursiveFlattenProcessor (RecursiveDataProcessor) flattens each
// record fully via the recursive JSON flattener, ignoring RecordKeys.
type RecursiveFlattenProcessor struct {
	Flattener *flatten.Processor
}

// NewRecursiveFlattenProcessor returns a processor using the
// flattener's library defaults.
func NewRecursiveFlattenProcessor() *RecursiveFlattenProcessor {
	return &RecursiveFlattenProcessor{Flattener: flatten.NewProcessor()}
}

func (p *RecursiveFlattenProcessor) ProcessPage(records []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		out = append(out, p.Flattener.ProcessAndFlatten(record))
	}
	return out
}

// PathIndexProcessor (PathDataProcessor) discovers paths for every
// record in a page, routes them through a path.ChainMap keyed by
// record_index, and groups each record's stored leaves by group key
// into one output row per record.
type PathIndexProcessor struct {
	Delimiter string
}

// NewPathIndexProcessor returns a PathIndexProcessor using "." as its
// path delimiter.
func NewPathIndexProcessor() *PathIndexProcessor {
	return &PathIndexProcessor{Delimiter: "."}
}

func (p *PathIndexProcessor) ProcessPage(records []map[string]any) []map[string]any {
	discoverer := path.NewDiscoverer(p.Delimiter)
	chain := path.NewChainMap(false)

	for i, record := range records {
		wrapped := map[string]any{strconv.Itoa(i): record}
		nodes, err := discoverer.Discover(wrapped)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			// A record whose path collides with an already-stored
			// ancestor/descendant loses the conflicting leaf; the
			// chain map's terminal invariant keeps the deeper one.
			_ = chain.Insert(n)
		}
	}

	out := make([]map[string]any, 0, len(records))
	for i := range records {
		row := map[string]any{}
		if rm, ok := chain.Get(i); ok {
			for _, n := range rm.All() {
				row[n.Path.GroupKey()] = n.Value
			}
		}
		out = append(out, row)
	}
	return out
}
