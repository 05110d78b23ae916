package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/scholarflux/aggregator/internal/aggerr"
	"github.com/scholarflux/aggregator/internal/cachemgr"
	"github.com/scholarflux/aggregator/internal/data"
	"github.com/scholarflux/aggregator/internal/retry"
	"github.com/scholarflux/aggregator/internal/validate"
)

// Parser turns a raw response body into the nested map structure the
// rest of the pipeline operates on. JSONParser is the default; other
// formats (XML, e.g. PubMed's esearch/efetch payloads) implement the
// same interface.
type Parser interface {
	Parse(body []byte) (map[string]any, error)
}

// JSONParser parses a JSON object response body.
type JSONParser struct{}

// Parse decodes body as a JSON object.
func (JSONParser) Parse(body []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", aggerr.ErrParsing, err)
	}
	return out, nil
}

// ResponseCoordinator drives one provider response from raw bytes
// through parsing, record/metadata extraction, and processing,
// consulting and populating the cache at each stage so a repeated
// request for the same page can skip straight to ProcessedRecords.
type ResponseCoordinator struct {
	Parser     Parser
	Extractor  *data.Extractor
	Processors []data.Processor
	Cache      *cachemgr.Manager
	logger     *slog.Logger
}

// NewResponseCoordinator builds a coordinator with sane defaults: a
// JSON parser, the dynamic-identification extractor, a recursive
// flatten processor, and the supplied cache manager.
func NewResponseCoordinator(cache *cachemgr.Manager) *ResponseCoordinator {
	return &ResponseCoordinator{
		Parser:     JSONParser{},
		Extractor:  data.NewExtractor(),
		Processors: []data.Processor{data.NewRecursiveFlattenProcessor()},
		Cache:      cache,
		logger:     slog.Default(),
	}
}

// HandleResponse produces an APIResponse for one page: a cache hit
// short-circuits straight to ProcessedRecords; a cache miss runs the
// full parse → extract → process pipeline and stores the outcome
// before returning it.
func (c *ResponseCoordinator) HandleResponse(ctx context.Context, cacheKey string, body []byte, resp *http.Response) (APIResponse, error) {
	if cacheKey == "" {
		derived, err := cachemgr.GenerateFallbackCacheKey(resp)
		if err != nil {
			return APIResponse{}, err
		}
		cacheKey = derived
	}

	if c.Cache.IsValid(ctx, cacheKey, body) {
		rec, err := c.Cache.Retrieve(ctx, cacheKey)
		if err == nil && rec != nil {
			c.logger.Debug("cache hit", slog.String("key", cacheKey))
			return Processed(cacheKey, resp, true, rec.ParsedResponse, rec.ExtractedRecords, rec.ProcessedRecords, rec.Metadata), nil
		}
	}

	if resp != nil && resp.StatusCode == http.StatusNoContent {
		return NonResult(cacheKey, resp), nil
	}

	parsed, err := c.Parser.Parse(body)
	if err != nil {
		return ErrorResult(cacheKey, resp, err, err.Error()), nil
	}

	records, metadata := c.Extractor.Extract(parsed)
	if len(records) == 0 {
		return NonResult(cacheKey, resp), nil
	}

	processed := records
	for _, p := range c.Processors {
		processed = p.ProcessPage(processed)
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	if err := c.Cache.Update(ctx, cacheKey, cachemgr.Record{
		ResponseHash:     cachemgr.GenerateResponseHash(body),
		StatusCode:       statusCode,
		RawResponse:      body,
		ParsedResponse:   parsed,
		ExtractedRecords: records,
		ProcessedRecords: toAnySlice(processed),
		Metadata:         metadata,
	}); err != nil {
		c.logger.Warn("cache update failed", slog.String("key", cacheKey), slog.String("error", err.Error()))
	}

	return Processed(cacheKey, resp, false, parsed, records, toAnySlice(processed), metadata), nil
}

func toAnySlice(records []map[string]any) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

// DefaultRetryHandler returns a retry.Handler and validate.Validator
// pair suitable for RobustSearch when a caller doesn't need custom
// retry tuning.
func DefaultRetryHandler() (*retry.Handler, *validate.Validator) {
	return retry.NewHandler(), validate.NewValidator()
}
