// Package provider implements per-provider request construction,
// pagination, and the parse → extract → process → cache response
// pipeline: SearchAPI, ResponseCoordinator, and SearchCoordinator.
package provider

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scholarflux/aggregator/internal/normalize"
)

// ParameterMap maps universal search parameters (query, pagination
// start, records-per-page, API key) to a provider's specific query
// parameter names.
type ParameterMap struct {
	Query             string
	Start             string
	RecordsPerPage    string
	APIKeyParam       string
	APIKeyRequired    bool
	AutoCalculatePage bool
	// ZeroIndexedPagination selects page-number semantics starting at
	// 0 instead of 1 when AutoCalculatePage is false.
	ZeroIndexedPagination bool
	// AdditionalParameterNames maps a universal kwarg name (e.g.
	// "mailto") to the provider-specific query parameter name.
	AdditionalParameterNames map[string]string
}

// Config is a per-provider set of static defaults: base URL,
// parameter mapping, default page size, and minimum inter-request
// delay. Configs are created once and shared immutably.
type Config struct {
	Name           string
	BaseURL        string
	ParameterMap   ParameterMap
	RecordsPerPage int
	RequestDelay   time.Duration
	DocsURL        string

	// FieldMap, when set, drives SearchResultList.Normalize for this
	// provider's records. MetadataMap plays the same role for
	// response-level metadata rather than per-record fields.
	FieldMap    *normalize.FieldMap
	MetadataMap map[string]normalize.FieldPath
}

func (c Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("provider config: name is required")
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("provider config %s: invalid base url %q: %w", c.Name, c.BaseURL, err)
	}
	return nil
}

// Registry is a process-wide, concurrency-safe map of provider name to
// Config.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]Config)}
}

// Register adds or replaces a provider Config. Returns an error if cfg
// fails validation.
func (r *Registry) Register(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[strings.ToLower(cfg.Name)] = cfg
	return nil
}

// Get returns the Config registered under name (case-insensitive).
func (r *Registry) Get(name string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[strings.ToLower(name)]
	return cfg, ok
}

// ResolveByURL finds a registered Config whose BaseURL host+path is a
// prefix of target, for callers that only have a URL in hand.
func (r *Registry) ResolveByURL(target string) (Config, bool) {
	u, err := url.Parse(target)
	if err != nil {
		return Config{}, false
	}
	candidate := u.Host + u.Path

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cfg := range r.configs {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			continue
		}
		if strings.HasPrefix(candidate, base.Host+base.Path) {
			return cfg, true
		}
	}
	return Config{}, false
}

// Names returns every registered provider name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns a Registry pre-populated with PLOS, Springer
// Nature, CORE, and Crossref — the providers with a full REST search
// endpoint reachable in one request. PubMed's two-step search-then
// -fetch flow is driven by workflow.NewPubMedWorkflow instead of a single
// Config, since no single (base URL, parameter map) pair captures it.
func Defaults() *Registry {
	r := NewRegistry()
	for _, cfg := range []Config{
		{
			Name:    "plos",
			BaseURL: "https://api.plos.org/search",
			ParameterMap: ParameterMap{
				Query:             "q",
				Start:             "start",
				RecordsPerPage:    "rows",
				AutoCalculatePage: true,
			},
			RecordsPerPage: 50,
			RequestDelay:   6100 * time.Millisecond,
			DocsURL:        "https://api.plos.org/solr/faq/",
		},
		{
			Name:    "springernature",
			BaseURL: "https://api.springernature.com/meta/v2/json",
			ParameterMap: ParameterMap{
				Query:             "q",
				Start:             "s",
				RecordsPerPage:    "p",
				APIKeyParam:       "api_key",
				APIKeyRequired:    true,
				AutoCalculatePage: true,
			},
			RecordsPerPage: 25,
			RequestDelay:   6100 * time.Millisecond,
			DocsURL:        "https://dev.springernature.com/docs/introduction/",
		},
		{
			Name:    "core",
			BaseURL: "https://api.core.ac.uk/v3/search/works/",
			ParameterMap: ParameterMap{
				Query:             "q",
				Start:             "offset",
				RecordsPerPage:    "limit",
				APIKeyParam:       "api_key",
				AutoCalculatePage: true,
			},
			RecordsPerPage: 25,
			RequestDelay:   6100 * time.Millisecond,
			DocsURL:        "https://api.core.ac.uk/docs/v3#section/Welcome!",
		},
		{
			Name:    "crossref",
			BaseURL: "https://api.crossref.org/works",
			ParameterMap: ParameterMap{
				Query:                    "query",
				Start:                    "offset",
				RecordsPerPage:           "rows",
				APIKeyParam:              "api_key",
				AutoCalculatePage:        true,
				AdditionalParameterNames: map[string]string{"mailto": "mailto"},
			},
			RecordsPerPage: 25,
			RequestDelay:   6100 * time.Millisecond,
			DocsURL:        "https://www.crossref.org/documentation/retrieve-metadata/rest-api/",
		},
	} {
		if err := r.Register(cfg); err != nil {
			panic(fmt.Sprintf("invalid built-in provider config: %v", err))
		}
	}
	return r
}
