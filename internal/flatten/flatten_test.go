package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The collision resolver is greedy and order-dependent: leaves are
// visited in sorted-key order, and the first leaf to reach a given
// suffix length claims it, so only later colliding siblings widen
// their key. Here "authors" sorts before "journal", so
// authors.name claims the short key "name" first, and journal.name
// is the one that has to expand.
func TestFlatten_CollisionResolution_S6(t *testing.T) {
	doc := map[string]any{
		"authors": map[string]any{"name": "X"},
		"journal": map[string]any{"name": "Y"},
	}
	p := NewProcessor()
	p.UseFullPath = false

	got := p.ProcessAndFlatten(doc)

	assert.Equal(t, "X", got["name"])
	assert.Equal(t, "Y", got["journal.name"])
	assert.Len(t, got, 2)
}

func TestFlatten_UseFullPath(t *testing.T) {
	doc := map[string]any{
		"authors": map[string]any{
			"principle_investigator": "Dr. Smith",
			"assistant":              "Jane Doe",
		},
		"doi": "10.1234/example.doi",
	}
	p := NewProcessor()
	p.UseFullPath = true

	got := p.ProcessAndFlatten(doc)
	assert.Equal(t, "Dr. Smith", got["authors.principle_investigator"])
	assert.Equal(t, "Jane Doe", got["authors.assistant"])
	assert.Equal(t, "10.1234/example.doi", got["doi"])
}

func TestFlatten_MultiValueListAccumulates(t *testing.T) {
	doc := map[string]any{
		"authors": []any{
			map[string]any{"name": "Ada"},
			map[string]any{"name": "Grace"},
		},
	}
	p := NewProcessor()
	got := p.ProcessAndFlatten(doc)

	names, ok := got["name"].([]any)
	if !ok {
		t.Fatalf("expected []any, got %T: %v", got["name"], got["name"])
	}
	assert.ElementsMatch(t, []any{"Ada", "Grace"}, names)
}

func TestFlatten_NormalizingDelimiterJoinsList(t *testing.T) {
	doc := map[string]any{
		"authors": []any{
			map[string]any{"name": "Ada"},
			map[string]any{"name": "Grace"},
		},
	}
	p := NewProcessor()
	delim := ", "
	p.NormalizingDelimiter = &delim

	got := p.ProcessAndFlatten(doc)
	assert.Equal(t, "Ada, Grace", got["name"])
}

func TestFlatten_ObjectDelimiterJoinsLeafList(t *testing.T) {
	doc := map[string]any{
		"abstract": []any{"one.", "two."},
	}
	p := NewProcessor()

	got := p.ProcessAndFlatten(doc)
	assert.Equal(t, "one.; two.", got["abstract"])
}

func TestFlatten_DiscoverRoundTrip_Invariant4(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{"b": "1"},
		"c": "2",
	}
	p := NewProcessor()
	p.UseFullPath = true
	nodelim := ""
	_ = nodelim

	got := p.ProcessAndFlatten(doc)
	assert.Equal(t, map[string]any{"a.b": "1", "c": "2"}, got)
}
