// Package relay implements the report delivery relay: it consumes
// report-change events from the queue, fans each report out to its
// subscribers, and reschedules failed deliveries as delayed events.
package relay

import (
	"context"
	"fmt"
	"time"

	"reportrelay/internal/core/pubsub"
	"reportrelay/internal/relay/directory"
	"reportrelay/internal/relay/journal"
	"reportrelay/internal/relay/transport"
	"reportrelay/internal/relay/types"
)

// RetrySubject is the routing subject for retry events published back
// onto the stream.
const RetrySubject = "reports.report"

// Service is the running relay.
type Service interface {
	// Start begins consuming and delivering. Blocks until the context
	// is cancelled.
	Start(ctx context.Context) error
}

// Dependencies contains the external collaborators of the relay.
type Dependencies struct {
	Consumer  pubsub.Consumer
	Publisher pubsub.Publisher
	Resolver  directory.Resolver
	Transport transport.Transport
	Journal   journal.Journal
	Metrics   types.Metrics
}

// Options tunes the relay service.
type Options struct {
	NumWorkers      int
	ChannelBufSize  int
	RetrySubject    string
	RetryDelay      time.Duration
	MaxAttempts     int
	DrainTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// service implements Service.
type service struct {
	consumer EventConsumer
}

// NewService wires the fan-out engine, retry scheduler and consumption
// loop together.
func NewService(deps Dependencies, opts Options) (Service, error) {
	if deps.Consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if deps.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = &types.NoopMetrics{}
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 16
	}
	if opts.RetrySubject == "" {
		opts.RetrySubject = RetrySubject
	}

	scheduler := NewRetryScheduler(deps.Publisher, opts.RetrySubject, opts.RetryDelay, deps.Metrics)
	engine := NewEngine(deps.Resolver, deps.Transport, scheduler, deps.Journal, deps.Metrics, opts.MaxAttempts)

	var consumerOpts []ConsumerOption
	if opts.ChannelBufSize > 0 {
		consumerOpts = append(consumerOpts, WithChannelBufferSize(opts.ChannelBufSize))
	}
	if opts.DrainTimeout > 0 {
		consumerOpts = append(consumerOpts, WithDrainTimeout(opts.DrainTimeout))
	}
	if opts.ShutdownTimeout > 0 {
		consumerOpts = append(consumerOpts, WithShutdownTimeout(opts.ShutdownTimeout))
	}

	return &service{
		consumer: NewEventConsumer(deps.Consumer, engine, opts.NumWorkers, deps.Metrics, consumerOpts...),
	}, nil
}

// Start implements Service.
func (s *service) Start(ctx context.Context) error {
	return s.consumer.Start(ctx)
}
