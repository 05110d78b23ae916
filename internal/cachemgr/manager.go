// Package cachemgr implements the processed-result cache tier: it
// decides whether a previously processed page can be reused instead
// of re-parsing and re-normalizing a fresh HTTP response, and owns the
// encode/decode boundary between Go values and the byte-oriented
// storage.Backend underneath it.
package cachemgr

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/scholarflux/aggregator/internal/aggerr"
	"github.com/scholarflux/aggregator/internal/storage"
)

// byteSentinel prefixes base64-encoded []byte values stored inside an
// otherwise JSON-only backend (object/SQL), so Manager can tell a
// base64 string apart from an ordinary string value on decode.
const byteSentinel = "\x00scholarflux-bytes:"

// Record is the full cached state for one cache key.
type Record struct {
	ResponseHash      string
	StatusCode        int
	RawResponse       []byte
	ParsedResponse    any
	ExtractedRecords  any
	ProcessedRecords  any
	Metadata          map[string]any
}

// Manager is the user-facing cache interface SearchAPI/ResponseCoordinator
// use: it generates cache keys, validates cached entries against a
// fresh response, and round-trips Record values through a storage.Backend.
type Manager struct {
	backend storage.Backend
	logger  *slog.Logger
}

// New wraps backend in a Manager. A nil backend is invalid; callers
// wanting caching disabled should pass storage.NewNullBackend().
func New(backend storage.Backend) *Manager {
	return &Manager{backend: backend, logger: slog.Default()}
}

// IsNull reports whether m is backed by a NullBackend, letting callers
// detect a caching-disabled configuration without a type switch.
func (m *Manager) IsNull() bool {
	_, ok := m.backend.(*storage.NullBackend)
	return ok
}

// GenerateFallbackCacheKey derives a cache key from a response's URL
// and status code when the caller has no explicit key (e.g. no
// provider/query/page triple is available). The key is stable for a
// given host+path+status combination.
func GenerateFallbackCacheKey(resp *http.Response) (string, error) {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return "", fmt.Errorf("%w: response has no associated request URL", aggerr.ErrCache)
	}
	u := resp.Request.URL
	simplified := fmt.Sprintf("%s%s", u.Host, u.Path)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d", simplified, resp.StatusCode)))
	return hex.EncodeToString(sum[:]), nil
}

// Key builds the canonical cache key for one provider search page:
// "{provider}_{query}_{page}_{records_per_page}", matching the scheme
// every provider search shares regardless of pagination style.
func Key(provider, query string, page, recordsPerPage int) string {
	return fmt.Sprintf("%s_%s_%d_%d", provider, query, page, recordsPerPage)
}

// GenerateResponseHash hashes resp.Body's already-read content so
// later calls can detect whether the underlying response changed
// since it was cached.
func GenerateResponseHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether cacheKey exists in the backend.
func (m *Manager) Verify(ctx context.Context, cacheKey string) bool {
	if cacheKey == "" {
		m.logger.Info("cache key is empty: no cache lookup performed")
		return false
	}
	ok, err := m.backend.Verify(ctx, cacheKey)
	if err != nil {
		m.logger.Warn("cache verify failed", slog.String("key", cacheKey), slog.String("error", err.Error()))
		return false
	}
	return ok
}

// IsValid reports whether the cached record for cacheKey is still
// usable: the key must exist, processed_records must be present, and
// content must match the supplied content hash.
func (m *Manager) IsValid(ctx context.Context, cacheKey string, content []byte) bool {
	if !m.Verify(ctx, cacheKey) {
		return false
	}
	rec, err := m.Retrieve(ctx, cacheKey)
	if err != nil || rec == nil {
		return false
	}
	if rec.ProcessedRecords == nil {
		m.logger.Info("cached processed_records missing", slog.String("key", cacheKey))
		return false
	}
	if content != nil && rec.ResponseHash != GenerateResponseHash(content) {
		m.logger.Info("cached data is outdated", slog.String("key", cacheKey))
		return false
	}
	return true
}

// Update stores a Record for cacheKey, overwriting any prior entry.
func (m *Manager) Update(ctx context.Context, cacheKey string, rec Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record %s: %v", aggerr.ErrCache, cacheKey, err)
	}
	if err := m.backend.Update(ctx, cacheKey, data); err != nil {
		return fmt.Errorf("%w: update %s: %v", aggerr.ErrCache, cacheKey, err)
	}
	m.logger.Debug("cache updated", slog.String("key", cacheKey))
	return nil
}

// Retrieve fetches and decodes the Record for cacheKey, or nil if absent.
func (m *Manager) Retrieve(ctx context.Context, cacheKey string) (*Record, error) {
	data, err := m.backend.Retrieve(ctx, cacheKey)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve %s: %v", aggerr.ErrCache, cacheKey, err)
	}
	if data == nil {
		m.logger.Warn("record not found in cache", slog.String("key", cacheKey))
		return nil, nil
	}
	return decodeRecord(data), nil
}

// Delete removes cacheKey from the backend.
func (m *Manager) Delete(ctx context.Context, cacheKey string) error {
	if err := m.backend.Delete(ctx, cacheKey); err != nil {
		return fmt.Errorf("%w: delete %s: %v", aggerr.ErrCache, cacheKey, err)
	}
	return nil
}

// DeleteAll clears every cached record.
func (m *Manager) DeleteAll(ctx context.Context) error {
	if err := m.backend.DeleteAll(ctx); err != nil {
		return fmt.Errorf("%w: delete all: %v", aggerr.ErrCache, err)
	}
	return nil
}

// IsAvailable reports whether the underlying backend is reachable.
func (m *Manager) IsAvailable(ctx context.Context) bool {
	return m.backend.IsAvailable(ctx)
}

func encodeRecord(rec Record) (map[string]any, error) {
	data := map[string]any{
		"response_hash":     rec.ResponseHash,
		"status_code":       rec.StatusCode,
		"parsed_response":   rec.ParsedResponse,
		"extracted_records": rec.ExtractedRecords,
		"processed_records": rec.ProcessedRecords,
		"metadata":          rec.Metadata,
	}
	if rec.RawResponse != nil {
		data["raw_response"] = byteSentinel + base64.StdEncoding.EncodeToString(rec.RawResponse)
	}
	return data, nil
}

func decodeRecord(data map[string]any) *Record {
	rec := &Record{}
	if v, ok := data["response_hash"].(string); ok {
		rec.ResponseHash = v
	}
	switch v := data["status_code"].(type) {
	case int:
		rec.StatusCode = v
	case float64:
		rec.StatusCode = int(v)
	}
	rec.ParsedResponse = data["parsed_response"]
	rec.ExtractedRecords = data["extracted_records"]
	rec.ProcessedRecords = data["processed_records"]
	if m, ok := data["metadata"].(map[string]any); ok {
		rec.Metadata = m
	}
	if raw, ok := data["raw_response"].(string); ok {
		if decoded, ok := decodeSentinelBytes(raw); ok {
			rec.RawResponse = decoded
		}
	}
	return rec
}

func decodeSentinelBytes(s string) ([]byte, bool) {
	const prefix = byteSentinel
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(s[len(prefix):])
	if err != nil {
		return nil, false
	}
	return decoded, true
}
