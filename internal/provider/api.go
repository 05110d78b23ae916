package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/scholarflux/aggregator/internal/aggerr"
	"github.com/scholarflux/aggregator/internal/ratelimit"
	"github.com/scholarflux/aggregator/internal/retry"
	"github.com/scholarflux/aggregator/internal/validate"
)

// SearchAPI builds and sends one provider's search requests: it owns
// the provider Config, the query currently in effect, the HTTP
// client, and the per-provider rate limiter that paces consecutive
// requests.
type SearchAPI struct {
	mu       sync.RWMutex
	cfg      Config
	query    string
	apiKey   string
	named    []NamedParameter
	client   *http.Client
	logger   *slog.Logger
	limiters *ratelimit.Registry
}

// NewSearchAPI builds a SearchAPI for cfg and query, sharing limiters
// out of the process-wide ratelimit.Global registry unless overridden.
func NewSearchAPI(cfg Config, query, apiKey string, named []NamedParameter) *SearchAPI {
	return &SearchAPI{
		cfg:      cfg,
		query:    query,
		apiKey:   apiKey,
		named:    named,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default().With(slog.String("provider", cfg.Name)),
		limiters: ratelimit.Global,
	}
}

// WithHTTPClient overrides the underlying http.Client (e.g. for tests).
func (a *SearchAPI) WithHTTPClient(c *http.Client) *SearchAPI {
	a.client = c
	return a
}

// WithLimiters overrides the rate-limiter registry (e.g. for tests).
func (a *SearchAPI) WithLimiters(r *ratelimit.Registry) *SearchAPI {
	a.limiters = r
	return a
}

// Name returns the provider name this SearchAPI targets.
func (a *SearchAPI) Name() string { return a.cfg.Name }

// Query returns the query currently in effect.
func (a *SearchAPI) Query() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.query
}

// RecordsPerPage returns the configured page size.
func (a *SearchAPI) RecordsPerPage() int { return a.cfg.RecordsPerPage }

// SetQuery replaces the query string used by subsequent requests. A
// Workflow step uses this to fold an earlier step's output (e.g. a
// resolved id list) into a later step's request without rebuilding
// the whole SearchAPI.
func (a *SearchAPI) SetQuery(query string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.query = query
}

// WithConfig runs fn with cfg temporarily installed in place of a's
// current Config, restoring the original afterward even if fn panics.
// Use this for one-off overrides (e.g. a different base URL in a
// test) without constructing a whole new SearchAPI.
func (a *SearchAPI) WithConfig(cfg Config, fn func()) {
	restore := a.scopedConfig(cfg)
	defer restore()
	fn()
}

// WithConfigParameters behaves like WithConfig but only overrides the
// ParameterMap, leaving the rest of the current Config untouched.
func (a *SearchAPI) WithConfigParameters(pm ParameterMap, fn func()) {
	a.mu.Lock()
	cfg := a.cfg
	cfg.ParameterMap = pm
	a.mu.Unlock()
	a.WithConfig(cfg, fn)
}

func (a *SearchAPI) scopedConfig(cfg Config) func() {
	a.mu.Lock()
	previous := a.cfg
	a.cfg = cfg
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		a.cfg = previous
		a.mu.Unlock()
	}
}

func (a *SearchAPI) config() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Config returns a's Config currently in effect.
func (a *SearchAPI) Config() Config {
	return a.config()
}

// RequestWait blocks until this provider's minimum inter-request
// interval has elapsed since the last request, or ctx is canceled.
func (a *SearchAPI) RequestWait(ctx context.Context) error {
	cfg := a.config()
	limiter := a.limiters.Get(cfg.Name, cfg.RequestDelay)
	return limiter.Wait(ctx)
}

// PrepareRequest builds the outgoing *http.Request for one page
// without sending it.
func (a *SearchAPI) PrepareRequest(ctx context.Context, page, recordsPerPage int, extras map[string]any) (*http.Request, string, error) {
	cfg := a.config()
	params, err := BuildParams(cfg, a.Query(), page, recordsPerPage, a.apiKey, extras, a.named)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", aggerr.ErrConfiguration, err)
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid base url: %v", aggerr.ErrConfiguration, err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", aggerr.ErrRequestCreation, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, u.String(), nil
}

// SendRequest waits for this provider's rate limit, then executes req.
// Callers must close the returned response's Body.
func (a *SearchAPI) SendRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := a.RequestWait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", aggerr.ErrTransport, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", aggerr.ErrTransport, err)
	}
	return resp, nil
}

// Search fetches one page without retrying and returns the response
// body bytes alongside the raw *http.Response (body already drained
// and closed).
func (a *SearchAPI) Search(ctx context.Context, page, recordsPerPage int, extras map[string]any) ([]byte, *http.Response, error) {
	req, reqURL, err := a.PrepareRequest(ctx, page, recordsPerPage, extras)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("sending search request", slog.String("url", redactedURL(reqURL)), slog.Int("page", page))

	resp, err := a.SendRequest(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("%w: reading response body: %v", aggerr.ErrTransport, err)
	}
	return body, resp, nil
}

// RobustSearch fetches one page, retrying transient failures and
// honoring rate-limit/Retry-After signaling via handler and validator
// before giving up. On success it returns the drained body and the
// final response; the response body is always closed before return.
func (a *SearchAPI) RobustSearch(ctx context.Context, page, recordsPerPage int, extras map[string]any, handler *retry.Handler, validator *validate.Validator) ([]byte, *http.Response, error) {
	req, reqURL, err := a.PrepareRequest(ctx, page, recordsPerPage, extras)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("sending robust search request", slog.String("url", redactedURL(reqURL)), slog.Int("page", page))

	resp, err := handler.Execute(ctx, func(ctx context.Context) (*http.Response, error) {
		return a.SendRequest(ctx, req.Clone(ctx))
	}, validator)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("%w: reading response body: %v", aggerr.ErrTransport, err)
	}

	// Execute only had the status line to classify on; a provider that
	// reports failure inside an otherwise-2xx body (Crossref, OpenAlex)
	// is only catchable now that the body has been drained.
	if validator.ClassifyBody(resp, body) == validate.PermanentError {
		return body, resp, errors.Join(aggerr.ErrRequestFailed, aggerr.NewPermanentHTTPError(resp))
	}
	return body, resp, nil
}

// redactedURL strips query parameters that look like credentials
// before logging a request URL.
func redactedURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, key := range []string{"api_key", "apikey", "key", "token"} {
		if q.Has(key) {
			q.Set(key, "***")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
