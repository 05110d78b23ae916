package storage

import "context"

// NullBackend discards everything written to it and never reports a
// record as present. cachemgr.Manager.IsNull reports true when a
// Manager is backed by NullBackend, letting callers detect a
// caching-disabled configuration without a type switch.
type NullBackend struct{}

// NewNullBackend returns a Backend that stores nothing.
func NewNullBackend() *NullBackend { return &NullBackend{} }

func (NullBackend) Retrieve(_ context.Context, _ string) (map[string]any, error) { return nil, nil }

func (NullBackend) RetrieveAll(_ context.Context) (map[string]map[string]any, error) {
	return map[string]map[string]any{}, nil
}

func (NullBackend) RetrieveKeys(_ context.Context) ([]string, error) { return []string{}, nil }

func (NullBackend) Update(_ context.Context, _ string, _ map[string]any) error { return nil }

func (NullBackend) Delete(_ context.Context, _ string) error { return nil }

func (NullBackend) DeleteAll(_ context.Context) error { return nil }

func (NullBackend) Verify(_ context.Context, _ string) (bool, error) { return false, nil }

func (NullBackend) IsAvailable(_ context.Context) bool { return false }
