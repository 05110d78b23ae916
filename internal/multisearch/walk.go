package multisearch

import (
	"context"
	"errors"

	"github.com/scholarflux/aggregator/internal/aggerr"
	"github.com/scholarflux/aggregator/internal/provider"
	"github.com/scholarflux/aggregator/internal/validate"
)

// groupWalk steps sequentially through every (coordinator, page) pair
// in one provider group — all coordinators for coordinators[0]'s
// pages, then coordinators[1]'s, and so on. A coordinator's remaining
// pages are skipped once its own data runs out (a short page or a
// zero-record page, the same end-of-data check SearchCoordinator.IterPages
// applies), and the whole group halts early if the last response was a
// non-retriable error. This mirrors a single rate-limited worker
// handling one provider's queries in turn, matching the per-provider
// grouping the rate limiter itself assumes.
type groupWalk struct {
	coordinators []*provider.SearchCoordinator
	pages        []int
	validator    *validate.Validator

	coordIdx int
	pageIdx  int
	halted   bool
	lastErr  *provider.APIResponse
}

func newGroupWalk(coordinators []*provider.SearchCoordinator, pages []int, validator *validate.Validator) *groupWalk {
	return &groupWalk{coordinators: coordinators, pages: pages, validator: validator}
}

// next returns the next SearchResult in the walk, or ok=false once the
// group is exhausted or halted.
func (g *groupWalk) next(ctx context.Context) (provider.SearchResult, bool) {
	for {
		if g.halted || ctx.Err() != nil {
			return provider.SearchResult{}, false
		}
		if g.coordIdx >= len(g.coordinators) {
			return provider.SearchResult{}, false
		}
		if g.lastErr != nil && (errors.Is(g.lastErr.Error, aggerr.ErrPermanentHTTP) ||
			(g.lastErr.Response != nil && !g.validator.ShouldRetry(g.lastErr.Response))) {
			g.halted = true
			return provider.SearchResult{}, false
		}
		if g.pageIdx >= len(g.pages) {
			g.coordIdx++
			g.pageIdx = 0
			g.lastErr = nil
			continue
		}

		coord := g.coordinators[g.coordIdx]
		page := g.pages[g.pageIdx]
		g.pageIdx++

		result := coord.Search(ctx, page)
		switch result.Result.Kind {
		case provider.KindError:
			g.lastErr = &result.Result
		case provider.KindProcessed:
			g.lastErr = nil
			if rpp := coord.API.RecordsPerPage(); rpp > 0 && provider.PageRecordCount(result.Result) < rpp {
				// End of data for this coordinator: skip its remaining
				// pages but keep walking the rest of the group.
				g.coordIdx++
				g.pageIdx = 0
			}
		default:
			g.lastErr = nil
			g.coordIdx++
			g.pageIdx = 0
		}
		return result, true
	}
}
