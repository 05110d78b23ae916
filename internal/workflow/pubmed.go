package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/scholarflux/aggregator/internal/cachemgr"
	"github.com/scholarflux/aggregator/internal/provider"
	"github.com/scholarflux/aggregator/internal/ratelimit"
)

const (
	pubmedESearchURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedESummaryURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
)

// NewPubMedWorkflow builds the two-step ESearch→ESummary workflow
// PubMed requires in place of a single paginated search call: ESearch
// resolves a query into a list of PubMed UIDs, and the second step
// folds those UIDs into an id-list fetch against ESummary (ESummary
// rather than EFetch, since EFetch's native PubMed format is XML and
// this pipeline's Parser is JSON-only; ESummary supports
// retmode=json for the same UID-driven retrieval). Both steps share
// one provider-wide rate limiter under the name "pubmed" since they
// hit the same eutils.ncbi.nlm.nih.gov host.
func NewPubMedWorkflow(query, apiKey string, recordsPerPage int, client *http.Client, limiters *ratelimit.Registry, cache *cachemgr.Manager) *Workflow {
	esearchAPI := provider.NewSearchAPI(esearchConfig(recordsPerPage), query, apiKey, pubmedNamedParams()).
		WithHTTPClient(client).WithLimiters(limiters)
	esummaryAPI := provider.NewSearchAPI(esummaryConfig(), query, apiKey, pubmedNamedParams()).
		WithHTTPClient(client).WithLimiters(limiters)

	return New(&eSearchStep{api: esearchAPI}, &eSummaryStep{api: esummaryAPI, cache: cache})
}

func esearchConfig(recordsPerPage int) provider.Config {
	return provider.Config{
		Name:    "pubmed",
		BaseURL: pubmedESearchURL,
		ParameterMap: provider.ParameterMap{
			Query:             "term",
			Start:             "retstart",
			RecordsPerPage:    "retmax",
			APIKeyParam:       "api_key",
			AutoCalculatePage: true,
			AdditionalParameterNames: map[string]string{
				"db":      "db",
				"retmode": "retmode",
			},
		},
		RecordsPerPage: recordsPerPage,
	}
}

// pubmedNamedParams supplies the two fixed eutils parameters every
// ESearch/ESummary request needs (database and response format),
// routed through cfg.ParameterMap.AdditionalParameterNames.
func pubmedNamedParams() []provider.NamedParameter {
	return []provider.NamedParameter{
		{Name: "db", Default: "pubmed"},
		{Name: "retmode", Default: "json"},
	}
}

func esummaryConfig() provider.Config {
	return provider.Config{
		Name:    "pubmed",
		BaseURL: pubmedESummaryURL,
		ParameterMap: provider.ParameterMap{
			Query:       "id",
			APIKeyParam: "api_key",
			AdditionalParameterNames: map[string]string{
				"db":      "db",
				"retmode": "retmode",
			},
		},
	}
}

// eSearchStep runs the query through ESearch directly against its
// SearchAPI, bypassing the generic dynamic-identification Extractor:
// ESearch's payload is a bare id-string list
// (`esearchresult.idlist`), a shape the shared records/metadata
// heuristic has no representation for (it only recognizes lists of
// objects as records). The step parses the JSON body itself and
// returns each UID as a one-field ProcessedRecord so downstream code
// still sees the familiar ProcessedRecords shape.
type eSearchStep struct {
	api *provider.SearchAPI
}

func (s *eSearchStep) PreTransform(ctx context.Context, prev StepContext) (Step, error) {
	return s, nil
}

func (s *eSearchStep) Run(ctx context.Context, stepNumber int, coordinator *provider.SearchCoordinator, prev StepContext) (StepContext, error) {
	handler, validator := provider.DefaultRetryHandler()
	body, resp, err := s.api.RobustSearch(ctx, 1, s.api.RecordsPerPage(), nil, handler, validator)
	if err != nil {
		return StepContext{}, fmt.Errorf("esearch request: %w", err)
	}

	ids, err := parseESearchIDs(body)
	if err != nil {
		return StepContext{}, fmt.Errorf("esearch response: %w", err)
	}

	records := make([]map[string]any, len(ids))
	for i, id := range ids {
		records[i] = map[string]any{"id": id}
	}

	result := provider.Processed("", resp, false, nil, nil, toAnySlice(records), map[string]any{"uid_count": len(ids)})
	return StepContext{StepNumber: stepNumber, Step: s, Result: result}, nil
}

// eSummaryStep folds the UID list ESearch produced into its own query
// string (a comma-joined id list) before fetching full summaries. Like
// eSearchStep it bypasses the generic Extractor: ESummary's JSON keys
// its "result" object by UID (`{"result": {"uids": [...], "123":
// {...}, "456": {...}}}`), not as a list of objects, so the
// list-of-dicts heuristic never fires on it either.
type eSummaryStep struct {
	api   *provider.SearchAPI
	cache *cachemgr.Manager
	ids   string
}

func (s *eSummaryStep) PreTransform(ctx context.Context, prev StepContext) (Step, error) {
	ids, err := extractPubMedIDs(prev.Result)
	if err != nil {
		return nil, fmt.Errorf("pubmed esummary step: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("pubmed esummary step: esearch returned no ids")
	}
	s.ids = strings.Join(ids, ",")
	s.api.SetQuery(s.ids)
	return s, nil
}

func (s *eSummaryStep) Run(ctx context.Context, stepNumber int, coordinator *provider.SearchCoordinator, prev StepContext) (StepContext, error) {
	cacheKey := cachemgr.Key("pubmed", s.ids, 1, 0)
	if s.cache != nil && s.cache.Verify(ctx, cacheKey) {
		if rec, err := s.cache.Retrieve(ctx, cacheKey); err == nil && rec != nil && rec.ProcessedRecords != nil {
			result := provider.Processed(cacheKey, nil, true, rec.ParsedResponse, rec.ExtractedRecords, rec.ProcessedRecords, rec.Metadata)
			return StepContext{StepNumber: stepNumber, Step: s, Result: result}, nil
		}
	}

	handler, validator := provider.DefaultRetryHandler()
	body, resp, err := s.api.RobustSearch(ctx, 1, 0, nil, handler, validator)
	if err != nil {
		return StepContext{}, fmt.Errorf("esummary request: %w", err)
	}

	records, err := parseESummaryRecords(body)
	if err != nil {
		return StepContext{}, fmt.Errorf("esummary response: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Update(ctx, cacheKey, cachemgr.Record{
			ResponseHash:     cachemgr.GenerateResponseHash(body),
			RawResponse:      body,
			ProcessedRecords: toAnySlice(records),
		})
	}

	result := provider.Processed(cacheKey, resp, false, nil, nil, toAnySlice(records), map[string]any{"record_count": len(records)})
	return StepContext{StepNumber: stepNumber, Step: s, Result: result}, nil
}

// parseESummaryRecords turns ESummary's uid-keyed result object into
// an ordered records slice, following result.uids for ordering and
// injecting "id" into each record since ESummary's per-uid object
// otherwise has no id field of its own.
func parseESummaryRecords(body []byte) ([]map[string]any, error) {
	var payload struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var uids []string
	if raw, ok := payload.Result["uids"]; ok {
		if err := json.Unmarshal(raw, &uids); err != nil {
			return nil, err
		}
	}

	records := make([]map[string]any, 0, len(uids))
	for _, uid := range uids {
		raw, ok := payload.Result[uid]
		if !ok {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		rec["id"] = uid
		records = append(records, rec)
	}
	return records, nil
}

// parseESearchIDs decodes an ESearch JSON body's
// `esearchresult.idlist` array of UID strings.
func parseESearchIDs(body []byte) ([]string, error) {
	var payload struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload.ESearchResult.IDList, nil
}

// extractPubMedIDs pulls the "id" field back out of eSearchStep's
// synthetic ProcessedRecords.
func extractPubMedIDs(result provider.APIResponse) ([]string, error) {
	if result.Kind != provider.KindProcessed {
		return nil, fmt.Errorf("esearch step returned no usable result (kind=%v)", result.Kind)
	}
	records, ok := result.ProcessedRecords.([]any)
	if !ok {
		return nil, nil
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		switch id := m["id"].(type) {
		case string:
			ids = append(ids, id)
		case float64:
			ids = append(ids, strconv.FormatInt(int64(id), 10))
		}
	}
	return ids, nil
}

func toAnySlice(records []map[string]any) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}
