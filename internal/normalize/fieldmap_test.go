package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldMap_NormalizeRecord_SimplePath(t *testing.T) {
	fm := NewFieldMap("plos", map[string]string{
		"title": "mock_title",
		"doi":   "mock_doi",
	})
	record := map[string]any{
		"mock_title": "Heisenberg Uncertainty Principle in Motion",
		"mock_doi":   "https://doi.org/12.3456/mock.2025.11.10",
	}

	normalized := fm.NormalizeRecord(record)
	assert.Equal(t, "plos", normalized["provider_name"])
	assert.Equal(t, "Heisenberg Uncertainty Principle in Motion", normalized["title"])
	assert.Equal(t, "https://doi.org/12.3456/mock.2025.11.10", normalized["doi"])
}

func TestFieldMap_NormalizeRecord_NestedDottedPath(t *testing.T) {
	fm := NewFieldMap("core", map[string]string{
		"journal": "publication_info.journal_name",
	})
	record := map[string]any{
		"publication_info": map[string]any{"journal_name": "Nature"},
	}
	normalized := fm.NormalizeRecord(record)
	assert.Equal(t, "Nature", normalized["journal"])
}

func TestFieldMap_NormalizeRecord_MissingFieldIsNil(t *testing.T) {
	fm := NewFieldMap("core", map[string]string{"title": "missing.path"})
	normalized := fm.NormalizeRecord(map[string]any{})
	assert.Nil(t, normalized["title"])
}

func TestFieldMap_NormalizeRecord_NilRecord(t *testing.T) {
	fm := NewFieldMap("core", map[string]string{"title": "t"})
	normalized := fm.NormalizeRecord(nil)
	assert.Equal(t, "core", normalized["provider_name"])
	assert.Nil(t, normalized["title"])
}

func TestFieldMap_FallbackCandidatesTriedInOrder(t *testing.T) {
	fm := FieldMap{
		ProviderName: "crossref",
		Fields: map[string]FieldPath{
			"title": {"missing_key", "actual_title", "another_missing_key"},
		},
	}
	record := map[string]any{"actual_title": "Found It"}
	normalized := fm.NormalizeRecord(record)
	assert.Equal(t, "Found It", normalized["title"])
}

func TestFieldMap_NormalizeRecords_PreservesOrder(t *testing.T) {
	fm := NewFieldMap("plos", map[string]string{"title": "t"})
	records := []map[string]any{{"t": "first"}, {"t": "second"}}
	normalized := fm.NormalizeRecords(records)
	require.Len(t, normalized, 2)
	assert.Equal(t, "first", normalized[0]["title"])
	assert.Equal(t, "second", normalized[1]["title"])
}

func TestAcademicFieldMap_IncludesFullSchema(t *testing.T) {
	fm := AcademicFieldMap("plos", map[string]FieldPath{
		"title": {"mock_title"},
	})
	normalized := fm.NormalizeRecord(map[string]any{"mock_title": "x"})
	for _, field := range AcademicFields {
		_, ok := normalized[field]
		assert.True(t, ok, "expected field %q in normalized record", field)
	}
	assert.Equal(t, "x", normalized["title"])
	assert.Nil(t, normalized["doi"])
}
