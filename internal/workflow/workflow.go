// Package workflow implements multi-step search sequences — a
// provider whose single HTTP call cannot return full records (PubMed's
// search-then-fetch two-step flow is the motivating case) drives a
// sequence of Steps through one SearchCoordinator, threading each
// step's result into the next step's parameters.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scholarflux/aggregator/internal/provider"
)

// StepContext carries one executed step's number, the step itself
// (post pre-transform, so later steps can inspect its resolved
// parameters), and the result it produced.
type StepContext struct {
	StepNumber int
	Step       Step
	Result     provider.APIResponse
}

// Step is one stage of a Workflow. PreTransform runs before Run and
// returns the Step to execute — usually itself, possibly with fields
// populated from the previous step's StepContext (the zero
// StepContext for the first step) — this is where a later step folds
// an earlier step's output into its own request parameters. Run then
// performs the step's actual search call against coordinator.
type Step interface {
	PreTransform(ctx context.Context, prev StepContext) (Step, error)
	Run(ctx context.Context, stepNumber int, coordinator *provider.SearchCoordinator, prev StepContext) (StepContext, error)
}

var errNoSteps = errors.New("workflow: at least one step is required")

// Workflow runs a fixed sequence of Steps against one
// SearchCoordinator, threading each StepContext into the next step's
// PreTransform. By default a step returning an error result halts the
// whole run (StopOnError); setting StopOnError to false runs every
// step regardless and still returns the last step's result.
type Workflow struct {
	Steps       []Step
	StopOnError bool
	MergeSteps  bool

	history []StepContext
	logger  *slog.Logger
}

// New returns a Workflow over steps, halting on the first step error
// by default.
func New(steps ...Step) *Workflow {
	return &Workflow{Steps: steps, StopOnError: true, logger: slog.Default()}
}

// History returns the StepContexts produced by the most recent Run,
// in execution order.
func (w *Workflow) History() []StepContext {
	return w.history
}

// Run executes every step in order against coordinator, page being
// passed through to whichever step chooses to use it (a step's Run
// implementation decides how, since steps differ in whether "page"
// means a result offset or something else entirely). The final result
// is the last executed step's result, unless MergeSteps is set, in
// which case mergeResults combines every step's processed records.
func (w *Workflow) Run(ctx context.Context, coordinator *provider.SearchCoordinator, page int) (provider.APIResponse, error) {
	if len(w.Steps) == 0 {
		return provider.APIResponse{}, errNoSteps
	}
	w.history = w.history[:0]

	var prev StepContext
	for i, step := range w.Steps {
		stepNumber := i + 1
		resolved, err := step.PreTransform(ctx, prev)
		if err != nil {
			return provider.APIResponse{}, fmt.Errorf("workflow: step %d pre-transform: %w", stepNumber, err)
		}

		stepCtx, err := resolved.Run(ctx, stepNumber, coordinator, prev)
		if err != nil {
			return provider.APIResponse{}, fmt.Errorf("workflow: step %d run: %w", stepNumber, err)
		}
		w.history = append(w.history, stepCtx)
		prev = w.history[len(w.history)-1]

		if w.StopOnError && stepCtx.Result.Kind == provider.KindError {
			w.logger.Warn("workflow halted on step error",
				slog.Int("step", stepNumber), slog.String("error", stepCtx.Result.Message))
			return stepCtx.Result, nil
		}
	}

	last := w.history[len(w.history)-1]
	if w.MergeSteps {
		return w.mergeResults(), nil
	}
	return last.Result, nil
}

// mergeResults combines every history entry's processed records into
// one synthetic ProcessedResponse, deduplicating by each record's "id"
// field when present. Steps with no "id" field contribute every
// record unconditionally.
func (w *Workflow) mergeResults() provider.APIResponse {
	var merged []map[string]any
	seen := make(map[any]bool)

	for _, stepCtx := range w.history {
		var records []map[string]any
		switch r := stepCtx.Result.ProcessedRecords.(type) {
		case []map[string]any:
			records = r
		case []any:
			for _, item := range r {
				if m, ok := item.(map[string]any); ok {
					records = append(records, m)
				}
			}
		default:
			continue
		}
		for _, rec := range records {
			id, hasID := rec["id"]
			if hasID {
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			merged = append(merged, rec)
		}
	}

	return provider.Processed("", nil, false, nil, nil, merged, map[string]any{
		"total_steps":    len(w.history),
		"unique_records": len(merged),
	})
}
