// Package data implements DataExtractor (locating records and metadata
// within a parsed provider response) and the DataProcessor variants
// that turn extracted records into flat output rows.
package data

import (
	"log/slog"
	"sort"
	"strconv"
)

// Extractor locates a records list and a metadata map inside a parsed
// JSON response, either via caller-supplied static paths or via a
// shape-driven dynamic heuristic.
type Extractor struct {
	// RecordPath, if set, is followed via nested lookup to find the
	// records list.
	RecordPath []string
	// MetadataPath maps an output metadata key to the nested path used
	// to find its value.
	MetadataPath map[string][]string
	Logger       *slog.Logger
}

// NewExtractor returns an Extractor with no static paths configured
// (dynamic-identification mode).
func NewExtractor() *Extractor {
	return &Extractor{Logger: slog.Default()}
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Extract returns (records, metadata) from a parsed response. If
// either RecordPath or MetadataPath is configured, static extraction
// is used; otherwise shape is inferred dynamically.
func (e *Extractor) Extract(parsed map[string]any) ([]map[string]any, map[string]any) {
	if len(e.MetadataPath) > 0 || len(e.RecordPath) > 0 {
		return e.extractRecords(parsed), e.extractMetadata(parsed)
	}
	metadata, records := e.dynamicIdentification(parsed)
	return records, metadata
}

func (e *Extractor) extractRecords(parsed map[string]any) []map[string]any {
	if len(e.RecordPath) == 0 {
		return nil
	}
	value := getNested(parsed, e.RecordPath)
	return toRecordSlice(value)
}

func (e *Extractor) extractMetadata(parsed map[string]any) map[string]any {
	if len(e.MetadataPath) == 0 {
		e.logger().Info("metadata paths are empty: skipping metadata extraction")
		return map[string]any{}
	}
	metadata := make(map[string]any, len(e.MetadataPath))
	var missing []string
	for key, p := range e.MetadataPath {
		v := getNested(parsed, p)
		metadata[key] = tryInt(v)
		if v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		e.logger().Warn("metadata keys missing or nil", slog.Any("keys", missing))
	}
	return metadata
}

// recordCandidate is a list-of-dicts found somewhere in the document,
// tagged with the depth it was found at.
type recordCandidate struct {
	depth   int
	records []map[string]any
}

// dynamicIdentification implements the shape-driven heuristic: every
// list of >1 dicts anywhere in the document is a candidate records
// list; a single-dict list is unwrapped and descended into; nested
// dicts are descended into; scalars fold into metadata. Among
// candidates, the one found at the shallowest depth wins (ties broken
// by traversal order, since sortedKeys makes the walk deterministic
// and the first candidate seen at the winning depth is kept). The
// winner must then pass the conservative acceptance check (at least
// one record with at least one field) or the extractor reports no
// records found.
func (e *Extractor) dynamicIdentification(obj map[string]any) (map[string]any, []map[string]any) {
	metadata := map[string]any{}
	var candidates []recordCandidate
	e.walkDynamic(obj, 0, metadata, &candidates)

	best := shallowestCandidate(candidates)
	if !conservativeAccept(best) {
		return metadata, nil
	}
	return metadata, best
}

func (e *Extractor) walkDynamic(obj map[string]any, depth int, metadata map[string]any, candidates *[]recordCandidate) {
	for _, key := range sortedKeys(obj) {
		value := obj[key]
		switch v := value.(type) {
		case map[string]any:
			e.walkDynamic(v, depth+1, metadata, candidates)
		case []any:
			if !allDicts(v) {
				continue
			}
			if len(v) > 1 {
				*candidates = append(*candidates, recordCandidate{depth: depth, records: toRecordSlice(v)})
			} else if sub, ok := v[0].(map[string]any); ok {
				e.walkDynamic(sub, depth+1, metadata, candidates)
			}
		default:
			metadata[key] = tryInt(value)
		}
	}
}

// shallowestCandidate returns the records of the candidate found at
// the smallest depth, or nil if there are none.
func shallowestCandidate(candidates []recordCandidate) []map[string]any {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.depth < best.depth {
			best = c
		}
	}
	return best.records
}

// conservativeAccept requires at least one record with at least one
// field, rejecting an all-empty-dict guess as a false positive.
func conservativeAccept(records []map[string]any) bool {
	for _, r := range records {
		if len(r) > 0 {
			return true
		}
	}
	return false
}

func allDicts(v []any) bool {
	if len(v) == 0 {
		return false
	}
	for _, item := range v {
		if _, ok := item.(map[string]any); !ok {
			return false
		}
	}
	return true
}

func toRecordSlice(value any) []map[string]any {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// getNested follows a dotted path of string keys through nested
// map[string]any values, returning nil if any step is missing or is
// not an object.
func getNested(obj map[string]any, path []string) any {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		next, ok := m[key]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// tryInt mirrors the original's try_int: best-effort coercion of
// numeric-looking strings to int, leaving everything else unchanged.
func tryInt(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return v
}

// sortedKeys returns m's keys in sorted order for deterministic
// dynamic-identification traversal (Go map iteration order is
// randomized).
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
