package multisearch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/scholarflux/aggregator/internal/provider"
	"golang.org/x/sync/errgroup"
)

// IterPages retrieves pages for every registered coordinator. When
// groupByProvider is true, every page for one provider's coordinators
// is retrieved before moving to the next provider (grouped
// iteration); otherwise one page is retrieved per provider group per
// round, cycling through groups until all are exhausted or halted
// (round-robin iteration) — the default, since it drains faster under
// per-provider rate limits shared across queries.
func (c *Coordinator) IterPages(ctx context.Context, pages []int, groupByProvider bool) provider.SearchResultList {
	order, groups := c.groupByProvider()
	walks := make(map[string]*groupWalk, len(order))
	for _, name := range order {
		walks[name] = newGroupWalk(groups[name], pages, c.validator)
	}

	if groupByProvider {
		return c.groupedIteration(ctx, order, walks)
	}
	return c.roundRobinIteration(ctx, order, walks)
}

func (c *Coordinator) groupedIteration(ctx context.Context, order []string, walks map[string]*groupWalk) provider.SearchResultList {
	var results provider.SearchResultList
	for _, name := range order {
		walk := walks[name]
		for {
			result, ok := walk.next(ctx)
			if !ok {
				break
			}
			results = append(results, result)
		}
	}
	return results
}

func (c *Coordinator) roundRobinIteration(ctx context.Context, order []string, walks map[string]*groupWalk) provider.SearchResultList {
	var results provider.SearchResultList
	active := append([]string(nil), order...)

	for len(active) > 0 {
		var stillActive []string
		for _, name := range active {
			result, ok := walks[name].next(ctx)
			if !ok {
				c.logger.Debug("halted retrieval for provider", slog.String("provider", name))
				continue
			}
			results = append(results, result)
			stillActive = append(stillActive, name)
		}
		active = stillActive
	}
	return results
}

// IterPagesThreaded behaves like IterPages(groupByProvider=true) but
// runs each provider group concurrently, one goroutine per group,
// capped at maxWorkers (0 or less means one worker per group, at most
// 8). Rate limiting
// across groups is still respected since every coordinator for a
// given provider shares that provider's ratelimit.Limiter regardless
// of which goroutine calls Search.
func (c *Coordinator) IterPagesThreaded(ctx context.Context, pages []int, maxWorkers int) (provider.SearchResultList, error) {
	order, groups := c.groupByProvider()
	if len(order) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := maxWorkers
	if limit <= 0 {
		limit = len(order)
		if limit > 8 {
			limit = 8
		}
	}
	g.SetLimit(limit)

	resultsByProvider := make(map[string]provider.SearchResultList, len(order))
	var mu sync.Mutex

	for _, name := range order {
		name := name
		coords := groups[name]
		g.Go(func() error {
			walk := newGroupWalk(coords, pages, c.validator)
			var groupResults provider.SearchResultList
			for {
				result, ok := walk.next(gctx)
				if !ok {
					break
				}
				groupResults = append(groupResults, result)
			}
			mu.Lock()
			resultsByProvider[name] = groupResults
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results provider.SearchResultList
	for _, name := range order {
		results = append(results, resultsByProvider[name]...)
	}
	return results, nil
}
