package provider

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ResponseKind tags which variant of APIResponse a value holds.
type ResponseKind string

const (
	KindProcessed ResponseKind = "processed"
	KindError     ResponseKind = "error"
	KindNone      ResponseKind = "none"
)

// APIResponse is the outcome of one page request against one
// provider: a successfully processed page, a terminal error, or an
// empty/non-response (e.g. 204, or a page past the last result). Every
// variant carries the cache key it was stored or retrieved under, the
// raw *http.Response metadata needed to reconstruct provenance, and
// whether it was served from cache.
type APIResponse struct {
	Kind      ResponseKind
	CacheKey  string
	Response  *http.Response
	CreatedAt time.Time
	FromCache bool

	// Populated when Kind == KindProcessed.
	ParsedResponse    any
	ExtractedRecords  any
	ProcessedRecords  any
	Metadata          map[string]any
	NormalizedRecords []map[string]any
	ProcessedMetadata map[string]any

	// Populated when Kind == KindError.
	Error   error
	Message string
}

// Processed constructs a successful APIResponse.
func Processed(cacheKey string, resp *http.Response, fromCache bool, parsed, extracted, processed any, metadata map[string]any) APIResponse {
	return APIResponse{
		Kind:             KindProcessed,
		CacheKey:         cacheKey,
		Response:         resp,
		CreatedAt:        time.Now(),
		FromCache:        fromCache,
		ParsedResponse:   parsed,
		ExtractedRecords: extracted,
		ProcessedRecords: processed,
		Metadata:         metadata,
	}
}

// ErrorResult constructs a terminal-error APIResponse.
func ErrorResult(cacheKey string, resp *http.Response, err error, message string) APIResponse {
	return APIResponse{
		Kind:      KindError,
		CacheKey:  cacheKey,
		Response:  resp,
		CreatedAt: time.Now(),
		Error:     err,
		Message:   message,
	}
}

// NonResult constructs an empty (no records, no error) APIResponse,
// e.g. for a 204 or a page beyond the last available result.
func NonResult(cacheKey string, resp *http.Response) APIResponse {
	return APIResponse{Kind: KindNone, CacheKey: cacheKey, Response: resp, CreatedAt: time.Now()}
}

// OK reports whether r holds a processed result.
func (r APIResponse) OK() bool { return r.Kind == KindProcessed }

// SearchResult pairs one page's APIResponse with the request
// coordinates that produced it, plus a correlation ID for tracing a
// single page fetch across logs.
type SearchResult struct {
	ID           uuid.UUID
	Page         int
	Query        string
	ProviderName string
	Result       APIResponse
}

// NewSearchResult stamps result with a fresh correlation ID.
func NewSearchResult(page int, query, providerName string, result APIResponse) SearchResult {
	return SearchResult{
		ID:           uuid.New(),
		Page:         page,
		Query:        query,
		ProviderName: providerName,
		Result:       result,
	}
}

// SearchResultList is an ordered collection of SearchResult, as
// returned by a multi-page or multi-provider search.
type SearchResultList []SearchResult

// Filter returns the subset of results for which keep returns true.
func (l SearchResultList) Filter(keep func(SearchResult) bool) SearchResultList {
	out := make(SearchResultList, 0, len(l))
	for _, r := range l {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// recordsOf coerces ProcessedRecords into []map[string]any. The
// production pipeline always stores it as []any (coordinator.go's
// toAnySlice), but callers building an APIResponse by hand may pass
// []map[string]any directly, so both shapes are accepted.
func recordsOf(processed any) []map[string]any {
	switch v := processed.(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, rec := range v {
			if m, ok := rec.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// Join flattens every processed result's NormalizedRecords (falling
// back to ProcessedRecords when normalization hasn't run) into one
// slice, preserving result order.
func (l SearchResultList) Join() []map[string]any {
	var out []map[string]any
	for _, r := range l {
		if !r.Result.OK() {
			continue
		}
		if r.Result.NormalizedRecords != nil {
			out = append(out, r.Result.NormalizedRecords...)
			continue
		}
		out = append(out, recordsOf(r.Result.ProcessedRecords)...)
	}
	return out
}

// Normalize applies normalizeFn to every processed result's
// ProcessedRecords, storing the outcome back onto NormalizedRecords.
// It mutates and returns l for chaining.
func (l SearchResultList) Normalize(normalizeFn func(any) ([]map[string]any, error)) (SearchResultList, error) {
	for i, r := range l {
		if !r.Result.OK() {
			continue
		}
		normalized, err := normalizeFn(r.Result.ProcessedRecords)
		if err != nil {
			return l, err
		}
		l[i].Result.NormalizedRecords = normalized
	}
	return l, nil
}
