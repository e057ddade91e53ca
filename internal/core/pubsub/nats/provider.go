package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"reportrelay/internal/core/pubsub"
)

// connectFunc is injectable for testing.
type connectFunc func(url string, opts ...nats.Option) (*nats.Conn, error)

// jetStreamFactory is injectable for testing.
type jetStreamFactory func(nc *nats.Conn) (jetstream.JetStream, error)

// Provider implements pubsub.Provider using NATS JetStream. It manages
// the connection lifecycle and hands out publishers and consumers.
type Provider struct {
	url     string
	nc      *nats.Conn
	js      jetstream.JetStream
	connect connectFunc
	newJS   jetStreamFactory
}

var _ pubsub.Provider = (*Provider)(nil)
var _ pubsub.Connectable = (*Provider)(nil)

// NewProvider creates a NATS-based pubsub provider for the given URL.
func NewProvider(url string) *Provider {
	return &Provider{
		url:     url,
		connect: nats.Connect,
		newJS: func(nc *nats.Conn) (jetstream.JetStream, error) {
			return jetstream.New(nc)
		},
	}
}

// Connect establishes the NATS connection and initializes JetStream.
// It must be called before NewPublisher or NewConsumer.
func (p *Provider) Connect(ctx context.Context) error {
	nc, err := p.connect(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.url, err)
	}

	js, err := p.newJS(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream: %w", err)
	}

	p.nc = nc
	p.js = js
	slog.Info("Connected to NATS", "url", nc.ConnectedUrlRedacted())
	return nil
}

// NewPublisher creates a new Publisher backed by NATS JetStream.
func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewPublisher(p.js, opts)
}

// NewConsumer creates a new Consumer backed by NATS JetStream.
func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewConsumer(p.js, opts)
}

// Close closes the NATS connection.
func (p *Provider) Close() error {
	if p.nc != nil {
		slog.Info("Closing NATS connection")
		p.nc.Close()
		p.nc = nil
		p.js = nil
	}
	return nil
}
