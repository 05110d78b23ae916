package multisearch

import (
	"context"
	"net/http"
	"testing"

	"github.com/scholarflux/aggregator/internal/provider"
	"github.com/scholarflux/aggregator/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupWalk_StopsCoordinatorOnShortPage(t *testing.T) {
	var calls int
	coord := newTestCoordinator(t, "plos", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"response": {"docs": [{"id": "1"}]}}`))
	})

	walk := newGroupWalk([]*provider.SearchCoordinator{coord}, []int{1, 2, 3}, validate.NewValidator())

	result, ok := walk.next(context.Background())
	require.True(t, ok)
	assert.Equal(t, provider.KindProcessed, result.Result.Kind)

	_, ok = walk.next(context.Background())
	assert.False(t, ok, "walk should stop after a page shorter than RecordsPerPage")
	assert.Equal(t, 1, calls)
}

func TestGroupWalk_StopsCoordinatorOnZeroRecordPage(t *testing.T) {
	var calls int
	coord := newTestCoordinator(t, "plos", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"response": {"docs": []}}`))
	})

	walk := newGroupWalk([]*provider.SearchCoordinator{coord}, []int{1, 2}, validate.NewValidator())

	result, ok := walk.next(context.Background())
	require.True(t, ok)
	assert.Equal(t, provider.KindNone, result.Result.Kind)

	_, ok = walk.next(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestGroupWalk_ContinuesToNextProviderAfterShortPage(t *testing.T) {
	plosCalls, crossCalls := 0, 0
	plos := newTestCoordinator(t, "plos", func(w http.ResponseWriter, r *http.Request) {
		plosCalls++
		w.Write([]byte(`{"response": {"docs": [{"id": "1"}]}}`))
	})
	cross := newTestCoordinator(t, "crossref", func(w http.ResponseWriter, r *http.Request) {
		crossCalls++
		w.Write([]byte(fullPageBody()))
	})

	walk := newGroupWalk([]*provider.SearchCoordinator{plos, cross}, []int{1, 2}, validate.NewValidator())

	var results []provider.SearchResult
	for {
		result, ok := walk.next(context.Background())
		if !ok {
			break
		}
		results = append(results, result)
	}

	require.Len(t, results, 3)
	assert.Equal(t, "plos", results[0].ProviderName)
	assert.Equal(t, "crossref", results[1].ProviderName)
	assert.Equal(t, "crossref", results[2].ProviderName)
	assert.Equal(t, 1, plosCalls)
	assert.Equal(t, 2, crossCalls)
}

func TestGroupWalk_FullPagesRunToEndOfPageList(t *testing.T) {
	var calls int
	coord := newTestCoordinator(t, "plos", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(fullPageBody()))
	})

	walk := newGroupWalk([]*provider.SearchCoordinator{coord}, []int{1, 2}, validate.NewValidator())

	var results []provider.SearchResult
	for {
		result, ok := walk.next(context.Background())
		if !ok {
			break
		}
		results = append(results, result)
	}

	assert.Len(t, results, 2)
	assert.Equal(t, 2, calls)
}
