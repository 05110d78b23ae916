// Package validate classifies HTTP responses into ok / retriable /
// permanent / rate-limited outcomes, driving the retry/backoff
// decisions made by package retry.
package validate

import (
	"encoding/json"
	"net/http"
)

// Classification is the outcome of validating one HTTP response.
type Classification int

const (
	Ok Classification = iota
	RetriableError
	PermanentError
	RateLimited
)

func (c Classification) String() string {
	switch c {
	case Ok:
		return "ok"
	case RetriableError:
		return "retriable_error"
	case PermanentError:
		return "permanent_error"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// defaultRetriableStatuses lists the transient HTTP statuses worth a
// retry: 408, 425, 429, 500, 502, 503, 504. 429 is additionally
// classified RateLimited so the retry handler can honor a Retry-After
// hint.
var defaultRetriableStatuses = map[int]bool{
	408: true, 425: true, 429: true,
	500: true, 502: true, 503: true, 504: true,
}

// defaultBodyErrorFields lists the JSON body keys providers use to
// signal an application-level failure on an otherwise 2xx response
// (e.g. Crossref and OpenAlex both echo an "error"/"message" pair in
// the body rather than failing the HTTP status).
var defaultBodyErrorFields = []string{"error", "Error", "errors"}

// Validator classifies *http.Response values.
type Validator struct {
	// RetriableStatuses overrides the default retriable status set.
	RetriableStatuses map[int]bool
	// BodyErrorFields overrides the default set of JSON body keys whose
	// non-empty presence downgrades an otherwise-Ok response to
	// PermanentError. A nil slice disables body inspection entirely; an
	// explicit empty slice is treated the same as nil by NewValidator's
	// constructed default, so pass a populated slice to opt in.
	BodyErrorFields []string
}

// NewValidator returns a Validator using the default retriable status
// set and the default body-level error field names.
func NewValidator() *Validator {
	return &Validator{RetriableStatuses: defaultRetriableStatuses, BodyErrorFields: defaultBodyErrorFields}
}

func (v *Validator) retriable() map[int]bool {
	if v.RetriableStatuses != nil {
		return v.RetriableStatuses
	}
	return defaultRetriableStatuses
}

// Classify classifies resp. A nil response (network-level failure) is
// the caller's responsibility to handle before calling Classify.
func (v *Validator) Classify(resp *http.Response) Classification {
	if resp == nil {
		return RetriableError
	}
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return Ok
	}
	if status == 429 {
		return RateLimited
	}
	if v.retriable()[status] {
		return RetriableError
	}
	if status >= 400 && status < 500 {
		return PermanentError
	}
	// Any other non-2xx (e.g. 3xx left unhandled by the transport, or an
	// unclassified 5xx) is treated conservatively as retriable.
	return RetriableError
}

// ClassifyBody extends Classify with a body-level check: a response
// whose status alone classifies Ok is downgraded to PermanentError if
// body decodes as a JSON object carrying a non-empty value under any
// of v's configured BodyErrorFields. Status-based classifications
// other than Ok pass through unchanged, since a non-2xx status is
// already decisive.
func (v *Validator) ClassifyBody(resp *http.Response, body []byte) Classification {
	class := v.Classify(resp)
	if class != Ok || len(v.BodyErrorFields) == 0 || len(body) == 0 {
		return class
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return class
	}
	for _, field := range v.BodyErrorFields {
		if val, ok := payload[field]; ok && !isEmptyErrorValue(val) {
			return PermanentError
		}
	}
	return class
}

func isEmptyErrorValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// ShouldRetry reports whether resp's classification warrants another
// attempt.
func (v *Validator) ShouldRetry(resp *http.Response) bool {
	c := v.Classify(resp)
	return c == RetriableError || c == RateLimited
}

// IsPermanent reports whether resp's classification is terminal.
func (v *Validator) IsPermanent(resp *http.Response) bool {
	return v.Classify(resp) == PermanentError
}
