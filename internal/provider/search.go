package provider

import (
	"context"
	"log/slog"

	"github.com/scholarflux/aggregator/internal/cachemgr"
	"github.com/scholarflux/aggregator/internal/normalize"
	"github.com/scholarflux/aggregator/internal/retry"
	"github.com/scholarflux/aggregator/internal/validate"
)

// SearchCoordinator ties a SearchAPI and a ResponseCoordinator
// together into the public, page-oriented search surface: Search
// fetches and processes exactly one page, SearchPages fans that out
// over an explicit page list, and IterPages walks pages sequentially
// until the provider stops returning records.
type SearchCoordinator struct {
	API          *SearchAPI
	Coord        *ResponseCoordinator
	RetryHandler *retry.Handler
	Validator    *validate.Validator
	CacheResults bool

	logger *slog.Logger
}

// NewSearchCoordinator builds a coordinator from an API and cache
// manager, using default retry/validation behavior.
func NewSearchCoordinator(api *SearchAPI, coord *ResponseCoordinator) *SearchCoordinator {
	handler, validator := DefaultRetryHandler()
	return &SearchCoordinator{
		API:          api,
		Coord:        coord,
		RetryHandler: handler,
		Validator:    validator,
		CacheResults: true,
		logger:       slog.Default().With(slog.String("provider", api.Name())),
	}
}

// Search fetches and fully processes exactly one page. It is the only
// single-page entry point; callers wanting several pages must use
// SearchPages or IterPages.
func (s *SearchCoordinator) Search(ctx context.Context, page int) SearchResult {
	cacheKey := cacheKeyFor(s.API, page)

	if s.CacheResults && s.Coord.Cache.Verify(ctx, cacheKey) {
		if rec, err := s.Coord.Cache.Retrieve(ctx, cacheKey); err == nil && rec != nil && rec.ProcessedRecords != nil {
			s.logger.Debug("serving page from process cache", slog.Int("page", page))
			result := Processed(cacheKey, nil, true, rec.ParsedResponse, rec.ExtractedRecords, rec.ProcessedRecords, rec.Metadata)
			return NewSearchResult(page, s.API.Query(), s.API.Name(), s.normalized(result))
		}
	}

	body, resp, err := s.API.RobustSearch(ctx, page, s.API.RecordsPerPage(), nil, s.RetryHandler, s.Validator)
	if err != nil {
		s.logger.Warn("page request failed", slog.Int("page", page), slog.String("error", err.Error()))
		return NewSearchResult(page, s.API.Query(), s.API.Name(), ErrorResult(cacheKey, resp, err, err.Error()))
	}

	result, err := s.Coord.HandleResponse(ctx, cacheKey, body, resp)
	if err != nil {
		return NewSearchResult(page, s.API.Query(), s.API.Name(), ErrorResult(cacheKey, resp, err, err.Error()))
	}
	return NewSearchResult(page, s.API.Query(), s.API.Name(), s.normalized(result))
}

// normalized applies the provider's configured FieldMap, if any, to a
// freshly processed result's records, populating NormalizedRecords.
func (s *SearchCoordinator) normalized(result APIResponse) APIResponse {
	if result.Kind != KindProcessed {
		return result
	}
	fm := s.API.Config().FieldMap
	if fm == nil {
		return result
	}
	normalizer := normalize.New(*fm)
	records, err := normalizer.Normalize(result.ProcessedRecords)
	if err != nil {
		s.logger.Warn("normalization failed", slog.String("error", err.Error()))
		return result
	}
	result.NormalizedRecords = records
	return result
}

// SearchPages fetches and processes each page in pages, in order. It
// is the only plural entry point exposed by SearchCoordinator — a
// caller wanting "many pages" must say so explicitly rather than
// relying on Search to silently accept a range.
func (s *SearchCoordinator) SearchPages(ctx context.Context, pages ...int) SearchResultList {
	results := make(SearchResultList, 0, len(pages))
	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.Search(ctx, page))
	}
	return results
}

// IterPages walks pages sequentially starting at 1, stopping as soon
// as a page comes back empty (NonResult) or errors, a processed page
// returns fewer records than RecordsPerPage (end of data), or
// maxPages is reached (0 means unbounded).
func (s *SearchCoordinator) IterPages(ctx context.Context, maxPages int) SearchResultList {
	var results SearchResultList
	for page := 1; maxPages == 0 || page <= maxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		result := s.Search(ctx, page)
		results = append(results, result)
		if result.Result.Kind != KindProcessed {
			break
		}
		if rpp := s.API.RecordsPerPage(); rpp > 0 && PageRecordCount(result.Result) < rpp {
			break
		}
	}
	return results
}

// PageRecordCount returns how many records a processed page produced,
// preferring NormalizedRecords when normalization has run. Exported so
// callers outside this package (e.g. multisearch's page walks) can
// apply the same end-of-data check IterPages uses.
func PageRecordCount(result APIResponse) int {
	if result.NormalizedRecords != nil {
		return len(result.NormalizedRecords)
	}
	return len(recordsOf(result.ProcessedRecords))
}

func cacheKeyFor(api *SearchAPI, page int) string {
	return cachemgr.Key(api.Name(), api.Query(), page, api.RecordsPerPage())
}
