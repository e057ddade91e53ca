package relay

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"reportrelay/internal/core/pubsub"
	"reportrelay/internal/relay/types"
)

// Default timeouts for the consumption loop.
const (
	DefaultChannelBufferSize = 100
	DefaultDrainTimeout      = 5 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
)

// EventConsumer consumes report-change events.
type EventConsumer interface {
	Start(ctx context.Context) error
}

// inbound pairs a raw message with its decoded event so workers do not
// decode twice.
type inbound struct {
	msg pubsub.Message
	evt *types.Event
}

// queueConsumer pulls events off the broker and drives them through the
// fan-out engine. Multiple messages are processed concurrently across
// workers; events for the same report share a worker so their outbound
// calls stay ordered.
type queueConsumer struct {
	consumer       pubsub.Consumer
	engine         *Engine
	numWorkers     int
	channelBufSize int
	workerChans    []chan inbound
	wg             sync.WaitGroup
	metrics        types.Metrics
	now            func() time.Time

	// Shutdown coordination
	closing         atomic.Bool
	inFlightCount   atomic.Int32
	drainTimeout    time.Duration
	shutdownTimeout time.Duration
}

// ConsumerOption configures the consumer.
type ConsumerOption func(*queueConsumer)

// WithChannelBufferSize sets the buffer size for worker channels.
func WithChannelBufferSize(size int) ConsumerOption {
	return func(c *queueConsumer) {
		if size > 0 {
			c.channelBufSize = size
		}
	}
}

// WithDrainTimeout sets the maximum time to wait for in-flight
// dispatches during shutdown.
func WithDrainTimeout(d time.Duration) ConsumerOption {
	return func(c *queueConsumer) {
		if d > 0 {
			c.drainTimeout = d
		}
	}
}

// WithShutdownTimeout sets the maximum time to wait for workers to
// finish during shutdown.
func WithShutdownTimeout(d time.Duration) ConsumerOption {
	return func(c *queueConsumer) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// NewEventConsumer creates an EventConsumer wrapping a pubsub.Consumer.
func NewEventConsumer(consumer pubsub.Consumer, engine *Engine, numWorkers int, metrics types.Metrics, opts ...ConsumerOption) EventConsumer {
	if numWorkers <= 0 {
		numWorkers = 16
	}
	if metrics == nil {
		metrics = &types.NoopMetrics{}
	}

	c := &queueConsumer{
		consumer:        consumer,
		engine:          engine,
		numWorkers:      numWorkers,
		channelBufSize:  DefaultChannelBufferSize,
		metrics:         metrics,
		now:             time.Now,
		drainTimeout:    DefaultDrainTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins consuming messages. It blocks until the context is
// cancelled.
func (c *queueConsumer) Start(ctx context.Context) error {
	msgCh, err := c.consumer.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.workerChans = make([]chan inbound, c.numWorkers)
	for i := 0; i < c.numWorkers; i++ {
		c.workerChans[i] = make(chan inbound, c.channelBufSize)
		c.wg.Add(1)
		go c.workerLoop(ctx, i)
	}

	slog.Info("Relay consumer started, waiting for messages", "num_workers", c.numWorkers)

	for msg := range msgCh {
		c.dispatch(msg)
	}
	// Channel closed means context is cancelled, proceed to shutdown.

	slog.Info("Stopping relay consumer...")
	c.closing.Store(true)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), c.drainTimeout)
	defer drainCancel()
	c.waitForDrain(drainCtx)

	for _, ch := range c.workerChans {
		close(ch)
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
	defer shutdownCancel()

	select {
	case <-done:
		slog.Info("All workers stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, some workers may still be running")
	}

	return nil
}

// waitForDrain waits for all in-flight dispatch() calls to complete.
func (c *queueConsumer) waitForDrain(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			remaining := c.inFlightCount.Load()
			if remaining > 0 {
				slog.Warn("Drain timeout, messages still in-flight", "remaining", remaining)
			}
			return
		case <-ticker.C:
			if c.inFlightCount.Load() == 0 {
				return
			}
		}
	}
}

// dispatch decodes a raw message, defers it if it is not yet due, and
// otherwise hands it to a worker keyed by report id.
func (c *queueConsumer) dispatch(msg pubsub.Message) {
	c.inFlightCount.Add(1)
	defer c.inFlightCount.Add(-1)

	if c.closing.Load() {
		msg.Nak()
		return
	}

	evt, err := types.DecodeEvent(msg.Data())
	if err != nil {
		// Undecodable messages are dropped, never requeued.
		slog.Error("Dropping undecodable message", "error", err)
		c.metrics.IncConsumeFailure("unknown", "decode_error")
		msg.Term()
		return
	}

	if evt.NotBefore != nil {
		if remaining := evt.NotBefore.Sub(c.now()); remaining > 0 {
			// Not yet due; lean on broker redelivery instead of an
			// internal timer.
			c.metrics.IncDeferred(string(evt.Type))
			msg.NakWithDelay(remaining)
			return
		}
	}

	h := fnv.New32a()
	fmt.Fprintf(h, "%d", evt.Data.Report.ID)
	workerIdx := int(h.Sum32() % uint32(c.numWorkers))

	c.workerChans[workerIdx] <- inbound{msg: msg, evt: evt}
}

func (c *queueConsumer) workerLoop(ctx context.Context, id int) {
	defer c.wg.Done()

	for in := range c.workerChans[id] {
		verdict, err := c.process(ctx, in.evt)
		switch {
		case types.IsFatal(err):
			// Non-retryable; drop the message to avoid poison-message
			// loops.
			slog.Error("Fatal error processing message, dropping",
				"worker_id", id, "type", in.evt.Type, "error", err)
			c.metrics.IncConsumeFailure(string(in.evt.Type), "fatal")
			in.msg.Term()
		case err != nil:
			slog.Error("Error processing message, requeueing",
				"worker_id", id, "type", in.evt.Type,
				"deliveries", deliveryCount(in.msg), "error", err)
			c.metrics.IncConsumeFailure(string(in.evt.Type), "error")
			in.msg.Nak()
		case verdict == VerdictAbort:
			slog.Warn("Event aborted, requeueing",
				"worker_id", id, "type", in.evt.Type,
				"deliveries", deliveryCount(in.msg))
			c.metrics.IncConsumeFailure(string(in.evt.Type), "abort")
			in.msg.Nak()
		default:
			c.metrics.IncConsumeSuccess(string(in.evt.Type))
			in.msg.Ack()
		}
	}
}

// deliveryCount reports how many times the broker has delivered msg,
// zero when metadata is unavailable.
func deliveryCount(msg pubsub.Message) uint64 {
	md, err := msg.Metadata()
	if err != nil {
		return 0
	}
	return md.NumDelivered
}

// process runs one due event through the fan-out engine.
func (c *queueConsumer) process(ctx context.Context, evt *types.Event) (verdict Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &types.FatalError{Err: fmt.Errorf("panic during dispatch: %v", r)}
		}
	}()

	start := c.now()
	slog.Info("Processing message", "type", evt.Type, "report", evt.Data.Report.ID,
		"attempt", evt.Data.Attempt)

	verdict = c.engine.FanOut(ctx, evt.Type.Action(), evt.Data.Report, evt.Data.OldReport,
		evt.Data.Subscription, evt.Data.Attempt)

	c.metrics.ObserveConsumeLatency(string(evt.Type), time.Since(start))
	return verdict, nil
}
