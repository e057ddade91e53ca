package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reportrelay/internal/core/pubsub"
	"reportrelay/internal/relay/codec"
	"reportrelay/internal/relay/types"
)

// DefaultRetryDelay is how far in the future a failed delivery is
// rescheduled when no delay is configured.
const DefaultRetryDelay = 5 * time.Minute

// RetryScheduler turns one failed subscriber delivery into a future
// event on the queue.
type RetryScheduler interface {
	// ScheduleRetry publishes a retry event targeted at a single
	// subscription. attempt is the attempt that just failed; the
	// published event carries attempt+1.
	ScheduleRetry(ctx context.Context, action types.Action, report, oldReport *types.Report, subscriptionID int64, attempt int) error
}

// retryScheduler publishes retry events back onto the relay's own
// stream so they flow through the same consumption loop.
type retryScheduler struct {
	publisher pubsub.Publisher
	subject   string
	delay     time.Duration
	metrics   types.Metrics
	now       func() time.Time
}

// NewRetryScheduler creates a RetryScheduler publishing to subject with
// the given delay before the retry becomes due.
func NewRetryScheduler(publisher pubsub.Publisher, subject string, delay time.Duration, metrics types.Metrics) RetryScheduler {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	if metrics == nil {
		metrics = &types.NoopMetrics{}
	}
	return &retryScheduler{
		publisher: publisher,
		subject:   subject,
		delay:     delay,
		metrics:   metrics,
		now:       time.Now,
	}
}

// ScheduleRetry implements RetryScheduler.
func (s *retryScheduler) ScheduleRetry(ctx context.Context, action types.Action, report, oldReport *types.Report, subscriptionID int64, attempt int) error {
	notBefore := s.now().Add(s.delay)
	evt := types.Event{
		ID:   uuid.NewString(),
		Type: action.Type(),
		Data: types.EventPayload{
			Report:       report,
			OldReport:    oldReport,
			Subscription: &subscriptionID,
			Attempt:      attempt + 1,
		},
		NotBefore: &notBefore,
	}

	data, err := codec.Marshal(&evt)
	if err != nil {
		return fmt.Errorf("failed to encode retry event: %w", err)
	}

	if err := s.publisher.Publish(ctx, s.subject, data); err != nil {
		return fmt.Errorf("failed to publish retry event: %w", err)
	}

	s.metrics.IncRetryScheduled(string(evt.Type))
	return nil
}
