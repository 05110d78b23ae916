package provider

import "fmt"

// NamedParameter describes one provider-specific query parameter
// beyond the universal query/start/records-per-page/API-key set, e.g.
// Crossref's "mailto". Validator, when set, both validates and
// normalizes a caller-supplied value.
type NamedParameter struct {
	Name        string
	Description string
	Validator   func(any) (any, error)
	Default     any
	Required    bool
}

// BuildParams computes the full query-parameter set for one page of
// one provider search, applying the provider's pagination style
// (zero-indexed vs auto-calculated offset) and merging in any named
// extra parameters supplied in extras.
func BuildParams(cfg Config, query string, page, recordsPerPage int, apiKey string, extras map[string]any, named []NamedParameter) (map[string]string, error) {
	if recordsPerPage <= 0 {
		recordsPerPage = cfg.RecordsPerPage
	}
	if page < 1 {
		return nil, fmt.Errorf("provider %s: page must be >= 1, got %d", cfg.Name, page)
	}

	params := map[string]string{
		cfg.ParameterMap.Query: query,
	}
	if cfg.ParameterMap.RecordsPerPage != "" {
		params[cfg.ParameterMap.RecordsPerPage] = fmt.Sprintf("%d", recordsPerPage)
	}
	if cfg.ParameterMap.Start != "" {
		params[cfg.ParameterMap.Start] = fmt.Sprintf("%d", startIndex(cfg.ParameterMap, page, recordsPerPage))
	}
	if cfg.ParameterMap.APIKeyParam != "" {
		if apiKey == "" && cfg.ParameterMap.APIKeyRequired {
			return nil, fmt.Errorf("provider %s: API key is required but was not supplied", cfg.Name)
		}
		if apiKey != "" {
			params[cfg.ParameterMap.APIKeyParam] = apiKey
		}
	}

	for _, np := range named {
		v, ok := extras[np.Name]
		if !ok {
			if np.Required && np.Default == nil {
				return nil, fmt.Errorf("provider %s: missing required parameter %q", cfg.Name, np.Name)
			}
			if np.Default == nil {
				continue
			}
			v = np.Default
		}
		if np.Validator != nil {
			normalized, err := np.Validator(v)
			if err != nil {
				return nil, fmt.Errorf("provider %s: parameter %q: %w", cfg.Name, np.Name, err)
			}
			v = normalized
		}
		paramName, ok := cfg.ParameterMap.AdditionalParameterNames[np.Name]
		if !ok {
			paramName = np.Name
		}
		params[paramName] = fmt.Sprintf("%v", v)
	}
	return params, nil
}

// startIndex computes the pagination offset/start parameter sent to
// the provider. AutoCalculatePage mirrors a 1-based page number into a
// 0-based record offset: start = (page-1) * recordsPerPage. When
// AutoCalculatePage is false, the provider consumes the raw page
// number directly, shifted down by one when ZeroIndexedPagination
// is set.
func startIndex(pm ParameterMap, page, recordsPerPage int) int {
	if pm.AutoCalculatePage {
		return (page - 1) * recordsPerPage
	}
	if pm.ZeroIndexedPagination {
		return page - 1
	}
	return page
}
