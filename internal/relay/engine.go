package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reportrelay/internal/relay/directory"
	"reportrelay/internal/relay/journal"
	"reportrelay/internal/relay/transport"
	"reportrelay/internal/relay/types"
)

// Verdict is the outcome of fanning out one event.
type Verdict int

const (
	// VerdictCompleted means every subscriber was attempted. Individual
	// failures have already been turned into scheduled retry events, so
	// the original message counts as handled.
	VerdictCompleted Verdict = iota

	// VerdictAbort means the event could not be processed as a whole
	// (subscriber lookup failed, or a retry could not be scheduled) and
	// must be requeued.
	VerdictAbort
)

// Engine fans one report-change event out to its audience.
type Engine struct {
	resolver    directory.Resolver
	transport   transport.Transport
	scheduler   RetryScheduler
	journal     journal.Journal
	metrics     types.Metrics
	maxAttempts int
}

// NewEngine creates a fan-out engine. maxAttempts bounds the retry
// chain per (report, subscription) pair; 0 means unbounded.
func NewEngine(resolver directory.Resolver, t transport.Transport, scheduler RetryScheduler, j journal.Journal, metrics types.Metrics, maxAttempts int) *Engine {
	if j == nil {
		j = journal.NewMemoryJournal()
	}
	if metrics == nil {
		metrics = &types.NoopMetrics{}
	}
	return &Engine{
		resolver:    resolver,
		transport:   t,
		scheduler:   scheduler,
		journal:     j,
		metrics:     metrics,
		maxAttempts: maxAttempts,
	}
}

// FanOut resolves the audience for a report and delivers to each
// subscriber sequentially. Failure of one subscriber never cancels
// delivery to the others.
func (e *Engine) FanOut(ctx context.Context, action types.Action, report, oldReport *types.Report, subscriptionID *int64, attempt int) Verdict {
	subs, err := e.resolver.Resolve(ctx, report, subscriptionID)
	if err != nil {
		slog.Error("Subscriber lookup failed, requeueing event",
			"report", report.ID, "error", err)
		return VerdictAbort
	}

	verdict := VerdictCompleted
	for _, sub := range subs {
		// Webhook targets never receive deletions.
		if action == types.ActionDelete && sub.DiscordWebhook {
			continue
		}

		if ok := e.deliverOne(ctx, action, report, oldReport, sub, attempt); !ok {
			verdict = VerdictAbort
		}
	}
	return verdict
}

// deliverOne makes exactly one delivery call and resolves its outcome.
// It returns false only when a required retry could not be scheduled.
func (e *Engine) deliverOne(ctx context.Context, action types.Action, report, oldReport *types.Report, sub *types.Subscription, attempt int) bool {
	kind := transport.KindGeneric
	if sub.DiscordWebhook {
		kind = transport.KindWebhook
	}

	start := time.Now()
	result, err := e.transport.Deliver(ctx, sub, report, oldReport, action)
	e.metrics.ObserveDeliveryLatency(kind, time.Since(start))

	expected := sub.ExpectedCode()
	success := err == nil && result.StatusCode == expected

	e.record(ctx, &journal.Attempt{
		ID:             uuid.NewString(),
		ReportID:       report.ID,
		SubscriptionID: sub.ID,
		Transport:      kind,
		Attempt:        attempt,
		StatusCode:     result.StatusCode,
		ExpectedCode:   expected,
		Success:        success,
		Error:          errString(err),
	})

	if success {
		e.metrics.IncDeliverySuccess(kind)
		slog.Info("Subscription posted successfully",
			"subscription", sub.ID, "report", report.ID)
		return true
	}

	e.metrics.IncDeliveryFailure(kind, result.StatusCode)
	slog.Warn("Subscription did not respond as expected",
		"subscription", sub.ID, "report", report.ID,
		"status", result.StatusCode, "expected", expected,
		"attempt", attempt, "error", err)

	if e.maxAttempts > 0 && attempt+1 > e.maxAttempts {
		e.metrics.IncDeadLettered(string(action.Type()))
		slog.Error("Delivery exhausted retry budget, dead-lettering",
			"subscription", sub.ID, "report", report.ID, "attempts", attempt+1)
		e.deadLetter(ctx, &journal.DeadLetter{
			ID:             uuid.NewString(),
			ReportID:       report.ID,
			SubscriptionID: sub.ID,
			Attempts:       attempt + 1,
			LastStatus:     result.StatusCode,
		})
		return true
	}

	if err := e.scheduler.ScheduleRetry(ctx, action, report, oldReport, sub.ID, attempt); err != nil {
		// Losing the retry would break at-least-once delivery; requeue
		// the whole event instead.
		slog.Error("Failed to schedule retry, requeueing event",
			"subscription", sub.ID, "report", report.ID, "error", err)
		return false
	}
	return true
}

func (e *Engine) record(ctx context.Context, attempt *journal.Attempt) {
	if err := e.journal.RecordAttempt(ctx, attempt); err != nil {
		slog.Warn("Failed to record delivery attempt",
			"subscription", attempt.SubscriptionID, "error", err)
	}
}

func (e *Engine) deadLetter(ctx context.Context, letter *journal.DeadLetter) {
	if err := e.journal.RecordDeadLetter(ctx, letter); err != nil {
		slog.Warn("Failed to record dead letter",
			"subscription", letter.SubscriptionID, "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
