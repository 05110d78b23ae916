package multisearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scholarflux/aggregator/internal/cachemgr"
	"github.com/scholarflux/aggregator/internal/provider"
	"github.com/scholarflux/aggregator/internal/ratelimit"
	"github.com/scholarflux/aggregator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, name string, handler http.HandlerFunc) *provider.SearchCoordinator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := provider.Config{
		Name:    name,
		BaseURL: srv.URL,
		ParameterMap: provider.ParameterMap{
			Query:             "q",
			Start:             "start",
			RecordsPerPage:    "rows",
			AutoCalculatePage: true,
		},
		RecordsPerPage: 10,
	}
	api := provider.NewSearchAPI(cfg, "q", "", nil).
		WithLimiters(ratelimit.NewRegistry()).
		WithHTTPClient(srv.Client())
	coord := provider.NewResponseCoordinator(cachemgr.New(storage.NewMemoryBackend()))
	return provider.NewSearchCoordinator(api, coord)
}

// fullPageBody returns a response body with exactly RecordsPerPage (10)
// docs, so a groupWalk never trips the short-page end-of-data halt
// just from a handler returning one page's worth of results.
func fullPageBody() string {
	return `{"response": {"docs": [` +
		`{"id":"1"},{"id":"2"},{"id":"3"},{"id":"4"},{"id":"5"},` +
		`{"id":"6"},{"id":"7"},{"id":"8"},{"id":"9"},{"id":"10"}` +
		`]}}`
}

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fullPageBody()))
	}
}

func TestCoordinator_Add_RejectsNilAndDuplicateKeys(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.Add("a", nil), errNilCoordinator)

	sc := newTestCoordinator(t, "plos", okHandler())
	require.NoError(t, c.Add("a", sc))
	assert.ErrorIs(t, c.Add("a", sc), errDuplicateKey)
}

func TestCoordinator_Providers_ReturnsDistinctNamesInOrder(t *testing.T) {
	c := New()
	require.NoError(t, c.Add("a1", newTestCoordinator(t, "plos", okHandler())))
	require.NoError(t, c.Add("a2", newTestCoordinator(t, "plos", okHandler())))
	require.NoError(t, c.Add("b1", newTestCoordinator(t, "crossref", okHandler())))

	assert.Equal(t, []string{"plos", "crossref"}, c.Providers())
}

func TestCoordinator_GroupByProvider_GroupsPreservingOrder(t *testing.T) {
	c := New()
	plos1 := newTestCoordinator(t, "plos", okHandler())
	plos2 := newTestCoordinator(t, "plos", okHandler())
	cross1 := newTestCoordinator(t, "crossref", okHandler())
	require.NoError(t, c.Add("plos1", plos1))
	require.NoError(t, c.Add("cross1", cross1))
	require.NoError(t, c.Add("plos2", plos2))

	order, groups := c.groupByProvider()
	require.Equal(t, []string{"plos", "crossref"}, order)
	assert.Equal(t, []*provider.SearchCoordinator{plos1, plos2}, groups["plos"])
	assert.Equal(t, []*provider.SearchCoordinator{cross1}, groups["crossref"])
}

func TestCoordinator_IterPages_Grouped_DrainsOneProviderAtATime(t *testing.T) {
	c := New()
	var plosCalls, crossCalls []int
	plos := newTestCoordinator(t, "plos", func(w http.ResponseWriter, r *http.Request) {
		plosCalls = append(plosCalls, len(plosCalls)+1)
		w.Write([]byte(fullPageBody()))
	})
	cross := newTestCoordinator(t, "crossref", func(w http.ResponseWriter, r *http.Request) {
		crossCalls = append(crossCalls, len(crossCalls)+1)
		w.Write([]byte(fullPageBody()))
	})
	require.NoError(t, c.Add("plos", plos))
	require.NoError(t, c.Add("crossref", cross))

	results := c.IterPages(context.Background(), []int{1, 2}, true)
	require.Len(t, results, 4)
	for i := 0; i < 2; i++ {
		assert.Equal(t, "plos", results[i].ProviderName)
	}
	for i := 2; i < 4; i++ {
		assert.Equal(t, "crossref", results[i].ProviderName)
	}
}

func TestCoordinator_IterPages_RoundRobin_InterleavesProviders(t *testing.T) {
	c := New()
	plos := newTestCoordinator(t, "plos", okHandler())
	cross := newTestCoordinator(t, "crossref", okHandler())
	require.NoError(t, c.Add("plos", plos))
	require.NoError(t, c.Add("crossref", cross))

	results := c.IterPages(context.Background(), []int{1, 2}, false)
	require.Len(t, results, 4)
	assert.Equal(t, "plos", results[0].ProviderName)
	assert.Equal(t, "crossref", results[1].ProviderName)
	assert.Equal(t, "plos", results[2].ProviderName)
	assert.Equal(t, "crossref", results[3].ProviderName)
}

func TestCoordinator_IterPages_HaltsGroupOnNonRetriableError(t *testing.T) {
	c := New()
	var calls int
	plos := newTestCoordinator(t, "plos", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})
	require.NoError(t, c.Add("plos", plos))

	results := c.IterPages(context.Background(), []int{1, 2, 3}, true)
	require.Len(t, results, 1)
	assert.Equal(t, provider.KindError, results[0].Result.Kind)
	assert.Equal(t, 1, calls)
}

func TestCoordinator_IterPagesThreaded_RunsEveryProviderGroup(t *testing.T) {
	c := New()
	require.NoError(t, c.Add("plos", newTestCoordinator(t, "plos", okHandler())))
	require.NoError(t, c.Add("crossref", newTestCoordinator(t, "crossref", okHandler())))
	require.NoError(t, c.Add("core", newTestCoordinator(t, "core", okHandler())))

	results, err := c.IterPagesThreaded(context.Background(), []int{1, 2}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 6)

	seen := map[string]int{}
	for _, r := range results {
		seen[r.ProviderName]++
	}
	assert.Equal(t, 2, seen["plos"])
	assert.Equal(t, 2, seen["crossref"])
	assert.Equal(t, 2, seen["core"])
}

func TestCoordinator_IterPagesThreaded_EmptyCoordinatorReturnsNil(t *testing.T) {
	c := New()
	results, err := c.IterPagesThreaded(context.Background(), []int{1}, 0)
	require.NoError(t, err)
	assert.Nil(t, results)
}
