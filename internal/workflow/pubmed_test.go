package workflow

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

func newPubMedAPIForTest(t *testing.T, cfg provider.Config, handler http.HandlerFunc) *provider.SearchAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	return provider.NewSearchAPI(cfg, "cancer", "", pubmedNamedParams()).
		WithHTTPClient(srv.Client()).WithLimiters(ratelimit.NewRegistry())
}

func TestESearchStep_Run_ParsesIDList(t *testing.T) {
	api := newPubMedAPIForTest(t, esearchConfig(20), func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"esearchresult": {"count": "2", "idlist": ["111", "222"]}}`))
	})
	step := &eSearchStep{api: api}

	stepCtx, err := step.Run(context.Background(), 1, nil, StepContext{})
	require.NoError(t, err)
	require.True(t, stepCtx.Result.OK())

	ids, err := extractPubMedIDs(stepCtx.Result)
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, ids)
}

func TestESummaryStep_PreTransform_FailsWithNoIDs(t *testing.T) {
	step := &eSummaryStep{}
	emptyResult := processedResult(nil)
	_, err := step.PreTransform(context.Background(), StepContext{Result: emptyResult})
	assert.Error(t, err)
}

func TestESummaryStep_PreTransform_FailsOnNonProcessedPrevious(t *testing.T) {
	step := &eSummaryStep{}
	_, err := step.PreTransform(context.Background(), StepContext{Result: provider.APIResponse{Kind: provider.KindNone}})
	assert.Error(t, err)
}

func TestESummaryStep_Run_BuildsRecordsFromUIDKeyedResult(t *testing.T) {
	api := newPubMedAPIForTest(t, esummaryConfig(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "111,222", r.URL.Query().Get("id"))
		w.Write([]byte(`{
			"result": {
				"uids": ["111", "222"],
				"111": {"title": "Paper One"},
				"222": {"title": "Paper Two"}
			}
		}`))
	})
	cache := cachemgr.New(storage.NewMemoryBackend())
	step := &eSummaryStep{api: api, cache: cache}

	resolved, err := step.PreTransform(context.Background(), StepContext{Result: func() provider.APIResponse {
		r := processedResult([]map[string]any{{"id": "111"}, {"id": "222"}})
		return r
	}()})
	require.NoError(t, err)

	stepCtx, err := resolved.(*eSummaryStep).Run(context.Background(), 2, nil, StepContext{})
	require.NoError(t, err)
	require.True(t, stepCtx.Result.OK())

	records := stepCtx.Result.ProcessedRecords.([]any)
	require.Len(t, records, 2)
	assert.Equal(t, "111", records[0].(map[string]any)["id"])
	assert.Equal(t, "Paper One", records[0].(map[string]any)["title"])
}

func TestESummaryStep_Run_ServesFromCacheOnSecondCall(t *testing.T) {
	var calls int
	api := newPubMedAPIForTest(t, esummaryConfig(), func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"result": {"uids": ["111"], "111": {"title": "Cached Paper"}}}`))
	})
	cache := cachemgr.New(storage.NewMemoryBackend())
	step := &eSummaryStep{api: api, cache: cache, ids: "111"}
	api.SetQuery("111")

	first, err := step.Run(context.Background(), 1, nil, StepContext{})
	require.NoError(t, err)
	require.True(t, first.Result.OK())

	second, err := step.Run(context.Background(), 1, nil, StepContext{})
	require.NoError(t, err)
	assert.True(t, second.Result.FromCache)
	assert.Equal(t, 1, calls)
}

func TestNewPubMedWorkflow_BuildsTwoStepWorkflow(t *testing.T) {
	wf := NewPubMedWorkflow("cancer", "", 20, http.DefaultClient, ratelimit.NewRegistry(), cachemgr.New(storage.NewMemoryBackend()))
	require.Len(t, wf.Steps, 2)
}
