package retry

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/scholarflux/aggregator/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopSleep(_ context.Context, _ time.Duration) error { return nil }

func TestExecute_RetriesOn503ThenSucceeds_S4(t *testing.T) {
	statuses := []int{503, 503, 200}
	calls := 0
	sleeps := 0

	h := NewHandler()
	h.MaxAttempts = 3
	h.BackoffBase = time.Millisecond
	h.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}

	fn := func(ctx context.Context) (*http.Response, error) {
		status := statuses[calls]
		calls++
		return &http.Response{StatusCode: status, Header: http.Header{}}, nil
	}

	resp, err := h.Execute(context.Background(), fn, validate.NewValidator())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, sleeps)
}

func TestExecute_PermanentErrorDoesNotRetry(t *testing.T) {
	calls := 0
	h := NewHandler()
	h.Sleep = noopSleep

	fn := func(ctx context.Context) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 401, Header: http.Header{}}, nil
	}

	_, err := h.Execute(context.Background(), fn, validate.NewValidator())
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_ExhaustsMaxAttempts(t *testing.T) {
	calls := 0
	h := NewHandler()
	h.MaxAttempts = 2
	h.Sleep = noopSleep

	fn := func(ctx context.Context) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 503, Header: http.Header{}}, nil
	}

	_, err := h.Execute(context.Background(), fn, validate.NewValidator())
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecute_HonorsRetryAfterWithoutConsumingAttempt(t *testing.T) {
	calls := 0
	h := NewHandler()
	h.MaxAttempts = 2
	h.Sleep = noopSleep

	fn := func(ctx context.Context) (*http.Response, error) {
		calls++
		if calls == 1 {
			hdr := http.Header{}
			hdr.Set("Retry-After", "1")
			return &http.Response{StatusCode: 429, Header: hdr}, nil
		}
		return &http.Response{StatusCode: 200, Header: http.Header{}}, nil
	}

	resp, err := h.Execute(context.Background(), fn, validate.NewValidator())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
