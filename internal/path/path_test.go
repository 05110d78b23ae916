package path

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDelimiter(t *testing.T) {
	require.NoError(t, ValidateDelimiter("."))
	require.NoError(t, ValidateDelimiter(":"))
	require.Error(t, ValidateDelimiter(""))
	require.Error(t, ValidateDelimiter(" "))
	require.Error(t, ValidateDelimiter("a"))
}

func TestAppendAndString(t *testing.T) {
	root, err := Root(".")
	require.NoError(t, err)

	p1, err := root.Append("authors")
	require.NoError(t, err)
	p2, err := p1.Append("name")
	require.NoError(t, err)

	assert.Equal(t, "authors.name", p2.String())
}

func TestIsAncestorOf(t *testing.T) {
	root, _ := Root(".")
	authors, _ := root.Append("authors")
	name, _ := authors.Append("name")

	assert.True(t, root.IsAncestorOf(authors))
	assert.True(t, root.IsAncestorOf(name))
	assert.True(t, authors.IsAncestorOf(name))
	assert.False(t, name.IsAncestorOf(authors))
	assert.False(t, authors.IsAncestorOf(authors))
}

func TestGroupKeyStripsIndices(t *testing.T) {
	root, _ := Root(".")
	p, _ := New([]string{"0", "authors", "1", "name"}, ".")
	_ = root
	assert.Equal(t, "authors.name", p.GroupKey())
}

func TestRecordIndex(t *testing.T) {
	p, _ := New([]string{"3", "title"}, ".")
	idx, err := p.RecordIndex()
	require.NoError(t, err)
	assert.Equal(t, 3, idx)

	bad, _ := New([]string{"title"}, ".")
	_, err = bad.RecordIndex()
	assert.Error(t, err)
}

func TestSortKeyOrdersNumericRunsNaturally(t *testing.T) {
	p2, _ := New([]string{"2", "title"}, ".")
	p10, _ := New([]string{"10", "title"}, ".")

	paths := []Path{p10, p2}
	sort.Slice(paths, func(i, j int) bool { return Less(paths[i], paths[j]) })

	assert.True(t, paths[0].Equal(p2))
	assert.True(t, paths[1].Equal(p10))
}

func TestAncestorsIncludesRootFirst(t *testing.T) {
	p, _ := New([]string{"authors", "0", "name"}, ".")
	ancestors := p.Ancestors()
	require.Len(t, ancestors, 3)
	assert.True(t, ancestors[0].IsRoot())
}
