package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"reportrelay/internal/core/pubsub"
)

// jetStreamPublisher implements pubsub.Publisher using NATS JetStream.
type jetStreamPublisher struct {
	js   jetstream.JetStream
	opts pubsub.PublisherOptions
}

// NewPublisher creates a new Publisher backed by NATS JetStream. The
// stream is created if it does not exist yet.
func NewPublisher(js jetstream.JetStream, opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream cannot be nil")
	}
	if opts.StreamName == "" {
		return nil, fmt.Errorf("stream name is required")
	}

	subjects := opts.Subjects
	if len(subjects) == 0 {
		subjects = []string{opts.StreamName + ".>"}
	}

	storage := jetstream.FileStorage
	if opts.Storage == pubsub.MemoryStorage {
		storage = jetstream.MemoryStorage
	}

	_, err := js.CreateOrUpdateStream(context.Background(), jetstream.StreamConfig{
		Name:     opts.StreamName,
		Subjects: subjects,
		Storage:  storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return &jetStreamPublisher{js: js, opts: opts}, nil
}

// Publish sends a message to the specified subject.
func (p *jetStreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	var publishOpts []jetstream.PublishOpt
	if p.opts.RetryAttempts > 0 {
		publishOpts = append(publishOpts, jetstream.WithRetryAttempts(p.opts.RetryAttempts))
	}

	if _, err := p.js.Publish(ctx, subject, data, publishOpts...); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close releases resources.
func (p *jetStreamPublisher) Close() error {
	// JetStream does not need an explicit close.
	return nil
}
