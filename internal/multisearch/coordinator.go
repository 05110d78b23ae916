// Package multisearch fans a query out across several provider
// SearchCoordinators, interleaving or grouping page retrieval while
// sharing each provider's rate limiter the same way a single-provider
// search would.
package multisearch

import (
	"log/slog"
	"sync"

	"github.com/scholarflux/aggregator/internal/provider"
	"github.com/scholarflux/aggregator/internal/validate"
)

// entry pairs a caller-supplied key with the SearchCoordinator it maps
// to, preserving registration order for deterministic iteration.
type entry struct {
	key   string
	coord *provider.SearchCoordinator
}

// Coordinator holds a set of named SearchCoordinators and drives
// multi-provider page retrieval over them. The zero value is not
// usable; construct with New.
type Coordinator struct {
	mu        sync.RWMutex
	entries   []entry
	validator *validate.Validator
	logger    *slog.Logger
}

// New returns an empty Coordinator.
func New() *Coordinator {
	return &Coordinator{validator: validate.NewValidator(), logger: slog.Default()}
}

// Add registers a SearchCoordinator under key, rejecting a nil
// coordinator or a key already in use.
func (c *Coordinator) Add(key string, sc *provider.SearchCoordinator) error {
	if sc == nil {
		return errNilCoordinator
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.key == key {
			return errDuplicateKey
		}
	}
	c.entries = append(c.entries, entry{key: key, coord: sc})
	return nil
}

// Providers returns the distinct set of provider names across every
// registered coordinator.
func (c *Coordinator) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	var names []string
	for _, e := range c.entries {
		name := e.coord.API.Name()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// groupByProvider groups registered coordinators by provider name,
// preserving registration order within each group and across groups.
func (c *Coordinator) groupByProvider() ([]string, map[string][]*provider.SearchCoordinator) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var order []string
	groups := make(map[string][]*provider.SearchCoordinator)
	for _, e := range c.entries {
		name := e.coord.API.Name()
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], e.coord)
	}
	return order, groups
}
