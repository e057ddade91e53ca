package pubsub

import (
	"context"
	"io"
)

// Provider provides factory methods for creating publishers and
// consumers, abstracting the underlying broker.
type Provider interface {
	io.Closer

	// NewPublisher creates a new Publisher with the given options.
	NewPublisher(opts PublisherOptions) (Publisher, error)

	// NewConsumer creates a new Consumer with the given options.
	NewConsumer(opts ConsumerOptions) (Consumer, error)
}

// Connectable is an optional interface for providers that must
// establish a connection before use.
type Connectable interface {
	Connect(ctx context.Context) error
}
