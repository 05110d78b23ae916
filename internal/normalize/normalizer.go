package normalize

import "fmt"

// Normalizer applies a FieldMap to the heterogeneous "any" record
// slices produced by data.Processor, adapting them to the []map[string]any
// shape FieldMap expects and returning an error on malformed input
// instead of panicking.
type Normalizer struct {
	FieldMap FieldMap
}

// New builds a Normalizer over fm.
func New(fm FieldMap) *Normalizer {
	return &Normalizer{FieldMap: fm}
}

// Normalize adapts processedRecords (as produced by
// provider.ResponseCoordinator, typed []any of map[string]any) into
// normalized canonical records. It is the function signature
// provider.SearchResultList.Normalize expects.
func (n *Normalizer) Normalize(processedRecords any) ([]map[string]any, error) {
	records, err := toRecordSlice(processedRecords)
	if err != nil {
		return nil, err
	}
	return n.FieldMap.NormalizeRecords(records), nil
}

func toRecordSlice(value any) ([]map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("normalize: record %d is not an object: %T", i, item)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("normalize: expected a record slice, got %T", value)
	}
}
