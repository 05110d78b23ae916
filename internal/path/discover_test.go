package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverer_FlatLeaves(t *testing.T) {
	doc := map[string]any{
		"title": "A Study",
		"authors": []any{
			map[string]any{"name": "Ada"},
			map[string]any{"name": "Grace"},
		},
	}

	d := NewDiscoverer(".")
	nodes, err := d.Discover(doc)
	require.NoError(t, err)

	keys := map[string]any{}
	for _, n := range nodes {
		keys[n.Path.String()] = n.Value
	}

	assert.Equal(t, "A Study", keys["title"])
	assert.Equal(t, "Ada", keys["authors.0.name"])
	assert.Equal(t, "Grace", keys["authors.1.name"])
}

func TestDiscoverer_MaxDepthTruncatesWithoutError(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": "deep",
			},
		},
	}
	d := NewDiscoverer(".")
	d.MaxDepth = 1
	nodes, err := d.Discover(doc)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
