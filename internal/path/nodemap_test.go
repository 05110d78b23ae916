package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPath(t *testing.T, components ...string) Path {
	t.Helper()
	p, err := New(components, ".")
	require.NoError(t, err)
	return p
}

func TestNodeMap_TerminalInvariant_InsertRemovesAncestor(t *testing.T) {
	m := NewNodeMap(false)
	authors := mustPath(t, "authors")
	name := mustPath(t, "authors", "name")

	require.NoError(t, m.Insert(NewNode(authors, "placeholder")))
	require.NoError(t, m.Insert(NewNode(name, "X")))

	_, ok := m.Get(authors)
	assert.False(t, ok, "ancestor should have been evicted")
	_, ok = m.Get(name)
	assert.True(t, ok)
}

func TestNodeMap_TerminalInvariant_RejectsDescendantInsert(t *testing.T) {
	m := NewNodeMap(false)
	name := mustPath(t, "authors", "name")
	authors := mustPath(t, "authors")

	require.NoError(t, m.Insert(NewNode(name, "X")))
	err := m.Insert(NewNode(authors, "placeholder"))
	assert.Error(t, err)

	_, ok := m.Get(name)
	assert.True(t, ok, "descendant must survive a rejected ancestor insert")
}

func TestNodeMap_FilterDirectAndCachedAgree(t *testing.T) {
	direct := NewNodeMap(false)
	cached := NewNodeMap(true)

	paths := []Path{
		mustPath(t, "authors", "0", "name"),
		mustPath(t, "authors", "1", "name"),
		mustPath(t, "journal", "name"),
		mustPath(t, "title"),
	}
	for i, p := range paths {
		require.NoError(t, direct.Insert(NewNode(p, i)))
		require.NoError(t, cached.Insert(NewNode(p, i)))
	}

	authorsPrefix := mustPath(t, "authors")
	got1 := direct.Filter(authorsPrefix, 0, 0)
	got2 := cached.Filter(authorsPrefix, 0, 0)
	assert.ElementsMatch(t, keysOf(got1), keysOf(got2))
	assert.Len(t, got1, 2)

	root, err := Root(".")
	require.NoError(t, err)
	gotAllDirect := direct.Filter(root, 0, 0)
	gotAllCached := cached.Filter(root, 0, 0)
	assert.ElementsMatch(t, keysOf(gotAllDirect), keysOf(gotAllCached))
	assert.Len(t, gotAllDirect, len(paths))
}

func TestNodeMap_FilterCached_ReflectsDeletes(t *testing.T) {
	m := NewNodeMap(true)
	name := mustPath(t, "authors", "name")
	require.NoError(t, m.Insert(NewNode(name, "X")))

	authorsPrefix := mustPath(t, "authors")
	assert.Len(t, m.Filter(authorsPrefix, 0, 0), 1)

	m.Delete(name)
	assert.Len(t, m.Filter(authorsPrefix, 0, 0), 0)
}

func keysOf(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key()
	}
	return out
}
