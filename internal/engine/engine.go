// Package engine implements the reconciliation cycle: for every
// resolved target, diff the live provider state against the desired
// record and apply the minimal corrective operation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"gitlab.bluewillows.net/root/dns-syncer/internal/config"
	"gitlab.bluewillows.net/root/dns-syncer/internal/metrics"
	"gitlab.bluewillows.net/root/dns-syncer/internal/resolver"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// DefaultWorkers bounds target concurrency when not configured.
const DefaultWorkers = 4

// Outcome is the per-target reconciliation result.
type Outcome string

const (
	OutcomeNoop    Outcome = "no-op"
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeDeleted Outcome = "deleted"
	OutcomeFailed  Outcome = "failed"
)

// Result is the outcome of reconciling one target.
type Result struct {
	Target  resolver.Target
	Outcome Outcome

	// Err and Class are set for failed outcomes.
	Err   error
	Class provider.Class
}

// CycleResult aggregates one full cycle.
type CycleResult struct {
	Results []Result
}

// Counts returns the number of results per outcome.
func (c *CycleResult) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, r := range c.Results {
		counts[r.Outcome]++
	}
	return counts
}

// Failed returns the failed results.
func (c *CycleResult) Failed() []Result {
	var failed []Result
	for _, r := range c.Results {
		if r.Outcome == OutcomeFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// HasFatal reports whether any failure was an auth or permanent
// condition, the classes that drive a non-zero exit.
func (c *CycleResult) HasFatal() bool {
	for _, r := range c.Results {
		if r.Outcome == OutcomeFailed && (r.Class == provider.ClassAuth || r.Class == provider.ClassPermanent) {
			return true
		}
	}
	return false
}

// Engine runs reconciliation cycles.
type Engine struct {
	registry *provider.Registry
	workers  int
	dryRun   bool
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds how many targets reconcile concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithDryRun makes the engine report intended changes without
// issuing any write calls.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// WithLogger sets the logger for reconciliation events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine over the given provider registry.
func New(registry *provider.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		workers:  DefaultWorkers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle reconciles all targets and returns the per-target results.
// Credentials are validated once per provider up front; an auth
// failure fails every target of that provider without issuing record
// calls. Other failures stay isolated to their target. The engine
// never retries within a cycle; transient conditions heal on the next
// scheduled run.
func (e *Engine) RunCycle(ctx context.Context, targets []resolver.Target) *CycleResult {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.TargetsGauge.Set(float64(len(targets)))

	authErr := e.authenticateProviders(ctx, targets)

	results := make([]Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, target := range targets {
		g.Go(func() error {
			results[i] = e.reconcileTarget(gctx, target, authErr[target.Provider])
			return nil
		})
	}
	// Workers never return errors; failures land in their Result.
	_ = g.Wait()

	cycle := &CycleResult{Results: results}
	e.record(cycle)
	return cycle
}

// authenticateProviders validates credentials once per provider used
// by the cycle. The returned map carries the failure for providers
// whose credentials were rejected.
func (e *Engine) authenticateProviders(ctx context.Context, targets []resolver.Target) map[string]error {
	seen := make(map[string]bool)
	failures := make(map[string]error)

	for _, target := range targets {
		if seen[target.Provider] {
			continue
		}
		seen[target.Provider] = true

		adapter, ok := e.registry.Get(target.Provider)
		if !ok {
			failures[target.Provider] = fmt.Errorf("provider %s not registered", target.Provider)
			continue
		}
		if err := adapter.Authenticate(ctx); err != nil {
			e.logger.Error("provider authentication failed",
				slog.String("provider", target.Provider),
				slog.String("error", err.Error()),
			)
			failures[target.Provider] = provider.WrapError(target.Provider, "authenticate", err)
		}
	}
	return failures
}

// reconcileTarget runs the list, diff, apply sequence for one target.
func (e *Engine) reconcileTarget(ctx context.Context, target resolver.Target, authErr error) Result {
	if target.Err != nil {
		return e.failed(target, target.Err)
	}
	if authErr != nil {
		return Result{Target: target, Outcome: OutcomeFailed, Err: authErr, Class: provider.ClassAuth}
	}

	adapter, _ := e.registry.Get(target.Provider)

	live, err := adapter.ListRecords(ctx, target.Zone, target.Record.Type, target.Record.Name)
	if err != nil {
		return e.failed(target, provider.WrapError(target.Provider, "list", err))
	}

	var outcome Outcome
	switch target.Op {
	case config.OpDelete:
		outcome, err = e.applyDelete(ctx, adapter, target, live)
	default:
		// create and update share convergence semantics: ensure a
		// record with the desired content exists, reusing a divergent
		// live record when one is there.
		outcome, err = e.applyEnsure(ctx, adapter, target, live)
	}
	if err != nil {
		return e.failed(target, err)
	}

	if outcome != OutcomeNoop {
		e.logger.Info("record reconciled",
			slog.String("target", target.Key()),
			slog.String("outcome", string(outcome)),
			slog.Bool("dry_run", e.dryRun),
		)
	}
	return Result{Target: target, Outcome: outcome}
}

// applyEnsure converges the live state onto the desired record.
func (e *Engine) applyEnsure(ctx context.Context, adapter provider.Adapter, target resolver.Target, live []provider.Record) (Outcome, error) {
	for _, rec := range live {
		if provider.ContentEquals(rec, target.Record) {
			return OutcomeNoop, nil
		}
	}

	if len(live) > 0 {
		if e.dryRun {
			return OutcomeUpdated, nil
		}
		if err := adapter.UpdateRecord(ctx, target.Zone, live[0].ID, target.Record); err != nil {
			return OutcomeFailed, provider.WrapError(target.Provider, "update", err)
		}
		return OutcomeUpdated, nil
	}

	if e.dryRun {
		return OutcomeCreated, nil
	}
	if err := adapter.CreateRecord(ctx, target.Zone, target.Record); err != nil {
		return OutcomeFailed, provider.WrapError(target.Provider, "create", err)
	}
	return OutcomeCreated, nil
}

// applyDelete removes every live record matching the target's type and
// name. Absence is a no-op, not an error.
func (e *Engine) applyDelete(ctx context.Context, adapter provider.Adapter, target resolver.Target, live []provider.Record) (Outcome, error) {
	if len(live) == 0 {
		return OutcomeNoop, nil
	}
	if e.dryRun {
		return OutcomeDeleted, nil
	}
	for _, rec := range live {
		if err := adapter.DeleteRecord(ctx, target.Zone, rec.ID); err != nil {
			return OutcomeFailed, provider.WrapError(target.Provider, "delete", err)
		}
	}
	return OutcomeDeleted, nil
}

func (e *Engine) failed(target resolver.Target, err error) Result {
	class := provider.Classify(err)
	e.logger.Error("target reconciliation failed",
		slog.String("target", target.Key()),
		slog.String("class", string(class)),
		slog.String("error", err.Error()),
	)
	return Result{Target: target, Outcome: OutcomeFailed, Err: err, Class: class}
}

// record publishes per-outcome metrics for the cycle.
func (e *Engine) record(cycle *CycleResult) {
	failed := false
	for _, r := range cycle.Results {
		p := r.Target.Provider
		switch r.Outcome {
		case OutcomeCreated:
			metrics.RecordsCreatedTotal.WithLabelValues(p).Inc()
		case OutcomeUpdated:
			metrics.RecordsUpdatedTotal.WithLabelValues(p).Inc()
		case OutcomeDeleted:
			metrics.RecordsDeletedTotal.WithLabelValues(p).Inc()
		case OutcomeFailed:
			failed = true
			metrics.RecordsFailedTotal.WithLabelValues(p, string(r.Class)).Inc()
		}
	}
	if failed {
		metrics.CyclesTotal.WithLabelValues("partial_failure").Inc()
	} else {
		metrics.CyclesTotal.WithLabelValues("success").Inc()
	}
}
