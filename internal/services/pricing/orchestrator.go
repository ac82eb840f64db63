// Package pricing runs the recommendation pipeline for one user and exposes
// it to callers as background jobs.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricewise/internal/adapters/config"
	"pricewise/internal/agents"
	"pricewise/internal/domain/catalog"
	"pricewise/internal/domain/cogs"
	"pricewise/internal/domain/competitor"
	"pricewise/internal/domain/job"
	"pricewise/internal/domain/order"
	"pricewise/internal/domain/recommendation"
	"pricewise/internal/domain/report"
	"pricewise/internal/domain/user"
	"pricewise/internal/elasticity"
	"pricewise/internal/events"
	"pricewise/internal/metrics"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
	"pricewise/pkg/retry"
)

// Step names reported in job progress.
const (
	StepCollectContext = "collect_context"
	StepPricing        = "pricing"
	StepPersist        = "persist"
	stepAgentPrefix    = "agent:"
)

const defaultPricingConcurrency = 4

// EventPublisher receives run lifecycle events.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event events.RunCompleted) error
	PublishRunFailed(ctx context.Context, event events.RunFailed) error
}

// AnalyticsSink mirrors persisted batches into the analytics store.
type AnalyticsSink interface {
	RecordBatch(ctx context.Context, batch *recommendation.Batch) error
}

// Deps are the collaborators of the orchestrator. Events, Analytics,
// Tracker and Retryable are optional.
type Deps struct {
	Users           user.Repository
	Catalog         catalog.Repository
	Competitors     competitor.Repository
	COGS            cogs.Repository
	Orders          order.Repository
	Recommendations recommendation.Repository
	Jobs            job.Store
	Analysts        []agents.Analyst
	Strategist      *agents.Strategist
	Events          EventPublisher
	Analytics       AnalyticsSink
	Tracker         errors.Tracker

	// Retryable narrows which persistence errors are retried.
	Retryable func(error) bool
}

// RunResult summarises a finished run.
type RunResult struct {
	JobID           string
	BatchID         string
	State           job.State
	Recommendations int
	Skipped         int
}

// Orchestrator drives one run through the job state machine. A run only
// ever holds a database transaction inside PERSISTING, after all model
// calls have returned.
type Orchestrator struct {
	deps        Deps
	cfg         config.PricingConfig
	estimator   *elasticity.Estimator
	retrier     *retry.Retrier
	concurrency int
	now         func() time.Time
	log         *logger.Logger
}

func NewOrchestrator(deps Deps, cfg config.PricingConfig) *Orchestrator {
	if deps.Events == nil {
		deps.Events = events.NoopPublisher{}
	}
	o := &Orchestrator{
		deps:        deps,
		cfg:         cfg,
		estimator:   elasticity.NewEstimator(cfg.BaselineElasticity, cfg.ElasticityConfidencePairs),
		concurrency: defaultPricingConcurrency,
		now:         time.Now,
		log:         logger.Get().With("component", "pricing_orchestrator"),
	}
	o.retrier = retry.New(retry.Config{
		Attempts:     cfg.PersistAttempts,
		InitialDelay: cfg.PersistBackoff,
		MaxDelay:     10 * cfg.PersistBackoff,
		Strategy:     retry.StrategyExponential,
		Retryable: func(err error) bool {
			if errors.Is(err, errors.ErrInvalidInput) {
				return false
			}
			return o.deps.Retryable == nil || o.deps.Retryable(err)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			o.log.Warnw("Persisting batch failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		},
	})
	return o
}

// run is the mutable state of one execution.
type run struct {
	jobID    string
	userID   uuid.UUID
	batchID  string
	started  time.Time
	uc       *agents.UserContext
	reports  []*report.Report
	recs     []*recommendation.Recommendation
	skipped  map[string]int
	itemsN   int
	degraded []string
}

// Run executes the job jobID for userID until a terminal state. The
// returned error is non-nil only when the run ended in FAILED.
func (o *Orchestrator) Run(ctx context.Context, jobID string, userID uuid.UUID) (*RunResult, error) {
	r := &run{
		jobID:   jobID,
		userID:  userID,
		batchID: uuid.NewString(),
		started: o.now(),
		skipped: map[string]int{},
	}
	log := o.log.With("job_id", jobID, "user_id", userID, "batch_id", r.batchID)
	log.Infow("Pricing run started")

	if err := o.update(ctx, r, job.Patch{BatchID: &r.batchID, State: job.StatePtr(job.StateStarted)}); err != nil {
		return nil, err
	}

	stages := []struct {
		state job.State
		fn    func(context.Context, *run) error
	}{
		{job.StateCollectingContext, o.collectContext},
		{job.StateRunningDomainAgents, o.runDomainAgents},
		{job.StateRunningPricingAgent, o.runPricing},
		{job.StatePersisting, o.persist},
	}

	for _, stage := range stages {
		if cancelled, reason := o.cancelRequested(ctx, r); cancelled {
			return o.cancel(ctx, r, stage.state, reason), nil
		}
		if err := o.update(ctx, r, job.Patch{State: job.StatePtr(stage.state)}); err != nil {
			return nil, err
		}

		start := o.now()
		err := stage.fn(ctx, r)
		metrics.RecordStage(string(stage.state), o.now().Sub(start))
		if err != nil {
			return o.fail(ctx, r, stage.state, err)
		}
	}

	return o.complete(ctx, r), nil
}

func (o *Orchestrator) collectContext(ctx context.Context, r *run) error {
	o.setStep(ctx, r, StepCollectContext, job.StepRunning, "")

	u, err := o.deps.Users.GetByID(ctx, r.userID)
	if err != nil {
		return errors.Wrap(err, "load user")
	}
	items, err := o.deps.Catalog.ListByUser(ctx, r.userID)
	if err != nil {
		return errors.Wrap(err, "load items")
	}

	now := o.now().UTC()
	uc := &agents.UserContext{
		UserID:       r.userID,
		BatchID:      r.batchID,
		BusinessName: u.BusinessName,
		Goals:        agents.ParseGoals(u.Settings.Goals),
		Items:        items,
		CollectedAt:  now,
	}

	// Context beyond the catalog is optional: analysts and the pricing
	// rule work with whatever is available.
	var missing []string
	if uc.Competitors, err = o.deps.Competitors.LatestItems(ctx, r.userID); err != nil {
		missing = append(missing, "competitors")
		o.log.Warnw("Competitor data unavailable", "batch_id", r.batchID, "error", err)
	}
	if uc.COGS, err = o.deps.COGS.Trend(ctx, r.userID, o.cfg.COGSWeeks); err != nil {
		missing = append(missing, "cogs")
		o.log.Warnw("COGS trend unavailable", "batch_id", r.batchID, "error", err)
	}
	from := now.AddDate(0, 0, -o.cfg.OrderLookbackDays)
	if uc.Orders, err = o.deps.Orders.Aggregate(ctx, r.userID, from, now); err != nil {
		missing = append(missing, "orders")
		o.log.Warnw("Order aggregates unavailable", "batch_id", r.batchID, "error", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.uc = uc
	r.itemsN = len(items)

	msg := fmt.Sprintf("%d items, %d competitor prices, %d COGS weeks", len(items), len(uc.Competitors), len(uc.COGS))
	if len(missing) > 0 {
		msg += "; unavailable: " + strings.Join(missing, ", ")
	}
	o.setStep(ctx, r, StepCollectContext, job.StepSucceeded, msg)
	return nil
}

// runDomainAgents runs every analyst concurrently. An analyst failure is
// recorded on its step and as a degraded report; it never fails the stage.
func (o *Orchestrator) runDomainAgents(ctx context.Context, r *run) error {
	type result struct {
		domain report.Domain
		report *report.Report
		err    error
		took   time.Duration
	}

	results := make([]result, len(o.deps.Analysts))
	var wg sync.WaitGroup
	for i, a := range o.deps.Analysts {
		o.setStep(ctx, r, stepAgentPrefix+a.Domain().String(), job.StepRunning, "")

		wg.Add(1)
		go func(i int, a agents.Analyst) {
			defer wg.Done()
			start := o.now()
			rep, err := a.Analyze(ctx, r.uc)
			results[i] = result{domain: a.Domain(), report: rep, err: err, took: o.now().Sub(start)}
		}(i, a)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, res := range results {
		step := stepAgentPrefix + res.domain.String()
		rep := res.report
		if res.err != nil {
			o.log.Warnw("Domain agent failed", "domain", res.domain, "batch_id", r.batchID, "error", res.err)
			rep = report.New(r.userID, r.batchID, res.domain, report.Degraded{Err: res.err.Error()}, o.now().UTC())
		}
		r.reports = append(r.reports, rep)

		if rep.Degraded() {
			r.degraded = append(r.degraded, res.domain.String())
			o.setStep(ctx, r, step, job.StepFailed, "degraded: "+rep.Error)
			continue
		}
		o.setStep(ctx, r, step, job.StepSucceeded, fmt.Sprintf("structured report in %s", res.took.Round(time.Millisecond)))
	}
	return nil
}

type itemTask struct {
	index int
	item  *catalog.Item
}

func (o *Orchestrator) runPricing(ctx context.Context, r *run) error {
	o.setStep(ctx, r, StepPricing, job.StepRunning, "")

	since := o.now().Add(-o.cfg.FreshnessThreshold)
	pending, err := o.deps.Recommendations.PendingSince(ctx, r.userID, since)
	if err != nil {
		return errors.Wrap(err, "load pending recommendations")
	}

	var tasks []itemTask
	skips := map[string]job.ItemResult{}
	for i, it := range r.uc.Items {
		switch {
		case !it.Priceable():
			skips[it.ID.String()] = job.ItemResult{Name: it.Name, Outcome: job.ItemSkipped, Reason: job.ReasonMissingCostOrPrice}
			r.skipped[job.ReasonMissingCostOrPrice]++
		case hasPending(pending, it.ID):
			skips[it.ID.String()] = job.ItemResult{Name: it.Name, Outcome: job.ItemSkipped, Reason: job.ReasonFreshPendingRecommendation}
			r.skipped[job.ReasonFreshPendingRecommendation]++
		default:
			tasks = append(tasks, itemTask{index: i, item: it})
		}
	}
	for reason, n := range r.skipped {
		metrics.ItemsSkipped.WithLabelValues(reason).Add(float64(n))
	}
	if len(skips) > 0 {
		if err := o.update(ctx, r, job.Patch{Items: skips}); err != nil {
			return err
		}
	}

	recs := make([]*recommendation.Recommendation, len(tasks))
	errs := make([]error, len(tasks))
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
		sem  = make(chan struct{}, o.concurrency)
	)
	for n, task := range tasks {
		wg.Add(1)
		go func(n int, task itemTask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			recs[n], errs[n] = o.priceItem(ctx, r, task.item)

			mu.Lock()
			done++
			pct := job.StateRunningPricingAgent.Percent() +
				(job.StatePersisting.Percent()-job.StateRunningPricingAgent.Percent())*done/len(tasks)
			mu.Unlock()

			res := job.ItemResult{Name: task.item.Name, Outcome: job.ItemRecommended}
			if errs[n] != nil {
				res = job.ItemResult{Name: task.item.Name, Outcome: job.ItemSkipped, Reason: errs[n].Error()}
			}
			o.patch(ctx, r, job.Patch{Percent: job.IntPtr(pct), Items: map[string]job.ItemResult{task.item.ID.String(): res}})
		}(n, task)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	var failed int
	for n, rec := range recs {
		if errs[n] != nil {
			failed++
			reason := "invalid_item_state"
			if !errors.Is(errs[n], errors.ErrInvalidItemState) {
				reason = "pricing_error"
			}
			r.skipped[reason]++
			metrics.ItemsSkipped.WithLabelValues(reason).Inc()
			continue
		}
		r.recs = append(r.recs, rec)
	}

	r.reports = append(r.reports, o.pricingReport(r))
	o.setStep(ctx, r, StepPricing, job.StepSucceeded,
		fmt.Sprintf("%d recommended, %d skipped", len(r.recs), r.itemsN-len(r.recs)))
	return nil
}

func (o *Orchestrator) priceItem(ctx context.Context, r *run, it *catalog.Item) (*recommendation.Recommendation, error) {
	history, err := o.deps.Catalog.PriceHistory(ctx, it.ID, o.cfg.HistoryLimit)
	if err != nil {
		o.log.Warnw("Price history unavailable, using baseline elasticity", "item_id", it.ID, "error", err)
		history = nil
	}

	return o.deps.Strategist.Recommend(ctx, agents.Input{
		BatchID:          r.batchID,
		Item:             it,
		Elasticity:       o.estimator.Estimate(elasticity.FromHistory(history)),
		CompetitorPrices: ComparablePrices(it, r.uc.Competitors),
		History:          history,
		Goals:            r.uc.Goals,
		Reports:          r.reports,
	})
}

func (o *Orchestrator) pricingReport(r *run) *report.Report {
	strategies := map[string]int{}
	var changes []float64
	for _, rec := range r.recs {
		strategies[string(rec.StrategyType)]++
		changes = append(changes, rec.PriceChangePercent.InexactFloat64())
	}
	avg := averageOf(changes)

	skipped := 0
	for _, n := range r.skipped {
		skipped += n
	}

	summary := fmt.Sprintf("Recommended prices for %d of %d items, average change %+.1f%%, %d skipped.",
		len(r.recs), r.itemsN, avg*100, skipped)
	if len(r.degraded) > 0 {
		summary += " Degraded analysis: " + strings.Join(r.degraded, ", ") + "."
	}

	return report.New(r.userID, r.batchID, report.DomainPricing, report.Structured{
		Summary: summary,
		Details: report.Details{
			"recommended":       len(r.recs),
			"items":             r.itemsN,
			"skipped":           skipped,
			"skipped_by_reason": r.skipped,
			"strategies":        strategies,
			"average_change":    avg,
			"degraded_domains":  r.degraded,
		},
	}, o.now().UTC())
}

func (o *Orchestrator) persist(ctx context.Context, r *run) error {
	o.setStep(ctx, r, StepPersist, job.StepRunning, "")

	batch := &recommendation.Batch{
		ID:              r.batchID,
		UserID:          r.userID,
		CreatedAt:       o.now().UTC(),
		Recommendations: r.recs,
		Reports:         r.reports,
	}

	err := o.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		return o.deps.Recommendations.SaveBatch(ctx, batch)
	})
	if err != nil {
		return &errors.StageError{
			Stage:   string(job.StatePersisting),
			BatchID: r.batchID,
			Err:     fmt.Errorf("%w: %w", errors.ErrPersistenceFailed, err),
		}
	}

	if o.deps.Analytics != nil {
		if err := o.deps.Analytics.RecordBatch(context.WithoutCancel(ctx), batch); err != nil {
			o.log.Warnw("Failed to mirror batch to analytics", "batch_id", r.batchID, "error", err)
		}
	}

	o.setStep(ctx, r, StepPersist, job.StepSucceeded,
		fmt.Sprintf("%d recommendations, %d reports", len(r.recs), len(r.reports)))
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, r *run) *RunResult {
	o.patch(ctx, r, job.Patch{State: job.StatePtr(job.StateCompleted)})
	metrics.PricingRuns.WithLabelValues(string(job.StateCompleted)).Inc()

	skipped := r.itemsN - len(r.recs)
	var changes []float64
	for _, rec := range r.recs {
		changes = append(changes, rec.PriceChangePercent.InexactFloat64())
	}
	err := o.deps.Events.PublishRunCompleted(context.WithoutCancel(ctx), events.RunCompleted{
		BaseEvent:        events.BaseEvent{UserID: r.userID.String()},
		JobID:            r.jobID,
		BatchID:          r.batchID,
		Recommendations:  len(r.recs),
		Skipped:          skipped,
		SkippedByReason:  r.skipped,
		DegradedDomains:  r.degraded,
		AverageChangePct: averageOf(changes) * 100,
		DurationMs:       o.now().Sub(r.started).Milliseconds(),
	})
	if err != nil {
		o.log.Warnw("Failed to publish run completed", "batch_id", r.batchID, "error", err)
	}

	o.log.Infow("Pricing run completed",
		"job_id", r.jobID,
		"batch_id", r.batchID,
		"recommendations", len(r.recs),
		"skipped", skipped,
		"degraded", r.degraded,
	)
	return &RunResult{JobID: r.jobID, BatchID: r.batchID, State: job.StateCompleted, Recommendations: len(r.recs), Skipped: skipped}
}

func (o *Orchestrator) fail(ctx context.Context, r *run, stage job.State, cause error) (*RunResult, error) {
	// a shutdown while a stage is blocked is a cancellation, not a failure
	if ctx.Err() != nil && errors.Is(cause, ctx.Err()) {
		return o.cancel(ctx, r, stage, "interrupted: "+ctx.Err().Error()), nil
	}

	var stageErr *errors.StageError
	if !errors.As(cause, &stageErr) {
		cause = &errors.StageError{Stage: string(stage), BatchID: r.batchID, Err: cause}
	}
	msg := cause.Error()

	o.patch(ctx, r, job.Patch{
		State: job.StatePtr(job.StateFailed),
		Error: &msg,
		Steps: map[string]job.Step{stageStep(stage): {Status: job.StepFailed, Message: msg}},
	})
	metrics.PricingRuns.WithLabelValues(string(job.StateFailed)).Inc()

	tags := map[string]string{
		"component": "pricing_orchestrator",
		"user_id":   r.userID.String(),
		"batch_id":  r.batchID,
		"stage":     string(stage),
	}
	o.log.Errorw("Pricing run failed", "job_id", r.jobID, "batch_id", r.batchID, "stage", stage, "error", cause)
	if o.deps.Tracker != nil {
		_ = o.deps.Tracker.CaptureError(context.WithoutCancel(ctx), cause, tags)
	}

	err := o.deps.Events.PublishRunFailed(context.WithoutCancel(ctx), events.RunFailed{
		BaseEvent: events.BaseEvent{UserID: r.userID.String()},
		JobID:     r.jobID,
		BatchID:   r.batchID,
		Stage:     string(stage),
		Error:     msg,
	})
	if err != nil {
		o.log.Warnw("Failed to publish run failed", "batch_id", r.batchID, "error", err)
	}

	return &RunResult{JobID: r.jobID, BatchID: r.batchID, State: job.StateFailed, Recommendations: len(r.recs)}, cause
}

func (o *Orchestrator) cancel(ctx context.Context, r *run, next job.State, reason string) *RunResult {
	msg := fmt.Sprintf("cancelled before %s: %s", next, reason)
	o.patch(ctx, r, job.Patch{State: job.StatePtr(job.StateCancelled), Error: &msg})
	metrics.PricingRuns.WithLabelValues(string(job.StateCancelled)).Inc()
	o.log.Infow("Pricing run cancelled", "job_id", r.jobID, "batch_id", r.batchID, "before", next)
	return &RunResult{JobID: r.jobID, BatchID: r.batchID, State: job.StateCancelled}
}

func (o *Orchestrator) cancelRequested(ctx context.Context, r *run) (bool, string) {
	if err := ctx.Err(); err != nil {
		return true, "interrupted: " + err.Error()
	}
	j, err := o.deps.Jobs.Get(ctx, r.jobID)
	if err != nil {
		o.log.Warnw("Failed to read job for cancellation check", "job_id", r.jobID, "error", err)
		return false, ""
	}
	if j.CancelRequested {
		return true, "requested"
	}
	return false, ""
}

// update writes progress and fails the run if the store rejects it.
func (o *Orchestrator) update(ctx context.Context, r *run, p job.Patch) error {
	if _, err := o.deps.Jobs.Update(context.WithoutCancel(ctx), r.jobID, p); err != nil {
		return errors.Wrapf(err, "update job %s", r.jobID)
	}
	return nil
}

// patch writes progress on a best effort basis.
func (o *Orchestrator) patch(ctx context.Context, r *run, p job.Patch) {
	if err := o.update(ctx, r, p); err != nil {
		o.log.Warnw("Failed to update job progress", "job_id", r.jobID, "error", err)
	}
}

func (o *Orchestrator) setStep(ctx context.Context, r *run, name string, status job.StepStatus, msg string) {
	o.patch(ctx, r, job.Patch{Steps: map[string]job.Step{name: {Status: status, Message: msg}}})
}

func stageStep(s job.State) string {
	switch s {
	case job.StateCollectingContext:
		return StepCollectContext
	case job.StateRunningPricingAgent:
		return StepPricing
	case job.StatePersisting:
		return StepPersist
	default:
		return strings.ToLower(string(s))
	}
}

func hasPending(pending map[uuid.UUID]time.Time, id uuid.UUID) bool {
	_, ok := pending[id]
	return ok
}

// ComparablePrices returns competitor prices for items with the same name,
// falling back to the same category when no name matches.
func ComparablePrices(it *catalog.Item, comps []*competitor.Item) []decimal.Decimal {
	name := normalize(it.Name)
	category := normalize(it.Category)

	var byName, byCategory []decimal.Decimal
	for _, c := range comps {
		if !c.Price.IsPositive() {
			continue
		}
		switch {
		case normalize(c.Name) == name:
			byName = append(byName, c.Price)
		case category != "" && normalize(c.Category) == category:
			byCategory = append(byCategory, c.Price)
		}
	}
	if len(byName) > 0 {
		return byName
	}
	sort.Slice(byCategory, func(i, j int) bool { return byCategory[i].LessThan(byCategory[j]) })
	return byCategory
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func averageOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
