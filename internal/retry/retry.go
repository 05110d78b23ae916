// Package retry implements RetryHandler: a backoff state machine that
// drives a request function until it succeeds, is classified
// permanent, or exhausts its attempt budget.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/scholarflux/aggregator/internal/aggerr"
	"github.com/scholarflux/aggregator/internal/validate"
)

// Handler executes a request function and retries it according to an
// exponential backoff schedule, honoring Retry-After hints on
// rate-limited responses.
type Handler struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// Jitter is the maximum additional random delay added to each sleep.
	Jitter time.Duration
	// HonorRetryAfterOnce allows one Retry-After-driven sleep per
	// provider call without consuming an attempt from the budget.
	HonorRetryAfterOnce bool
	Logger              *slog.Logger

	// Sleep is overridable for deterministic tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewHandler returns a Handler with sensible defaults: 3 attempts,
// 200ms base backoff doubling up to a 10s cap, up to 100ms jitter, and
// a single free Retry-After sleep per call.
func NewHandler() *Handler {
	return &Handler{
		MaxAttempts:         3,
		BackoffBase:         200 * time.Millisecond,
		BackoffCap:          10 * time.Second,
		Jitter:              100 * time.Millisecond,
		HonorRetryAfterOnce: true,
		Logger:              slog.Default(),
		Sleep:               contextSleep,
	}
}

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RequestFunc issues one attempt, returning either a response or a
// transport-level error.
type RequestFunc func(ctx context.Context) (*http.Response, error)

// Execute drives fn until validator classifies its response as Ok or
// PermanentError, or MaxAttempts is exhausted. ctx is checked for
// cancellation before every attempt and before every sleep.
func (h *Handler) Execute(ctx context.Context, fn RequestFunc, validator *validate.Validator) (*http.Response, error) {
	logger := h.logger()
	attempts := 0
	usedFreeRetryAfter := false
	var lastResp *http.Response

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := fn(ctx)
		if err != nil {
			attempts++
			logger.Warn("transport error", slog.Int("attempt", attempts), slog.String("error", err.Error()))
			if attempts >= h.MaxAttempts {
				return nil, &aggerr.RetryLimitError{Attempts: attempts, LastResponse: lastResp}
			}
			if sleepErr := h.backoffSleep(ctx, attempts); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		lastResp = resp
		class := validator.Classify(resp)

		switch class {
		case validate.Ok:
			return resp, nil
		case validate.PermanentError:
			return nil, errors.Join(aggerr.ErrRequestFailed, aggerr.NewPermanentHTTPError(resp))
		case validate.RateLimited:
			if h.HonorRetryAfterOnce && !usedFreeRetryAfter {
				if d, ok := retryAfter(resp); ok {
					usedFreeRetryAfter = true
					logger.Info("honoring Retry-After", slog.Duration("delay", d))
					if sleepErr := h.sleep(ctx, d); sleepErr != nil {
						return nil, sleepErr
					}
					continue
				}
			}
			fallthrough
		default: // RetriableError
			attempts++
			if attempts >= h.MaxAttempts {
				return nil, &aggerr.RetryLimitError{Attempts: attempts, LastResponse: lastResp}
			}
			if sleepErr := h.backoffSleep(ctx, attempts); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}
}

func (h *Handler) backoffSleep(ctx context.Context, attempts int) error {
	base := h.BackoffBase
	backoffCap := h.BackoffCap
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempts-1)))
	if delay > backoffCap {
		delay = backoffCap
	}
	if h.Jitter > 0 {
		delay += time.Duration(rand.Int64N(int64(h.Jitter) + 1))
	}
	return h.sleep(ctx, delay)
}

func (h *Handler) sleep(ctx context.Context, d time.Duration) error {
	sleepFn := h.Sleep
	if sleepFn == nil {
		sleepFn = contextSleep
	}
	return sleepFn(ctx, d)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
