// Package normalize maps flattened, provider-specific records onto a
// canonical field schema via a FieldMap: a declarative set of dotted
// lookup paths, one per canonical output field, with ordered fallback
// candidates when a provider exposes the same fact under more than
// one key.
package normalize

import "strings"

// FieldPath is an ordered list of dotted lookup paths to try for one
// canonical field; the first path that resolves to a non-nil value
// wins. A single-element FieldPath is the common case.
type FieldPath []string

// FieldMap declares, for one provider, how each canonical output
// field is located inside a raw (already-flattened or still-nested)
// record.
type FieldMap struct {
	ProviderName string
	Fields       map[string]FieldPath
}

// NewFieldMap builds a FieldMap from a simple field-name → single-path
// mapping, the common case where no field needs fallback candidates.
func NewFieldMap(providerName string, fields map[string]string) FieldMap {
	fm := FieldMap{ProviderName: providerName, Fields: make(map[string]FieldPath, len(fields))}
	for field, path := range fields {
		if path == "" {
			continue
		}
		fm.Fields[field] = FieldPath{path}
	}
	return fm
}

// NormalizeRecord maps one raw record onto the canonical schema:
// every declared field is present in the output (nil if unresolved),
// plus a "provider_name" entry.
func (fm FieldMap) NormalizeRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(fm.Fields)+1)
	out["provider_name"] = fm.ProviderName

	if record == nil {
		for field := range fm.Fields {
			out[field] = nil
		}
		return out
	}

	for field, candidates := range fm.Fields {
		out[field] = resolveFieldPath(record, candidates)
	}
	return out
}

// NormalizeRecords maps every record in records onto the canonical
// schema, preserving order.
func (fm FieldMap) NormalizeRecords(records []map[string]any) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = fm.NormalizeRecord(r)
	}
	return out
}

func resolveFieldPath(record map[string]any, candidates FieldPath) any {
	for _, dotted := range candidates {
		if v, ok := lookupDotted(record, dotted); ok {
			return v
		}
	}
	return nil
}

// lookupDotted walks a dot-separated path through nested
// map[string]any values, mirroring data.Extractor's getNested but
// operating on a single pre-joined string rather than a []string.
func lookupDotted(record map[string]any, dotted string) (any, bool) {
	var cur any = record
	for _, key := range strings.Split(dotted, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := m[key]
		if !ok || next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// AcademicFields lists the canonical schema produced by
// AcademicFieldMap, in the order most academic providers surface
// them. It exists so callers can enumerate the schema (e.g. for a CSV
// export header) without reaching into Fields.
var AcademicFields = []string{
	"record_id", "title", "doi", "url", "abstract", "authors",
	"journal", "publisher", "year", "date_published", "date_created",
	"keywords", "subjects", "full_text", "citation_count",
	"open_access", "license", "record_type", "language",
}

// AcademicFieldMap builds a FieldMap over the academic schema
// (AcademicFields), taking one dotted path (or fallback list) per
// field. Fields omitted from paths resolve to nil for every record.
func AcademicFieldMap(providerName string, paths map[string]FieldPath) FieldMap {
	fm := FieldMap{ProviderName: providerName, Fields: make(map[string]FieldPath, len(AcademicFields))}
	for _, field := range AcademicFields {
		if p, ok := paths[field]; ok {
			fm.Fields[field] = p
		} else {
			fm.Fields[field] = nil
		}
	}
	return fm
}
