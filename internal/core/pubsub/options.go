package pubsub

import "time"

// StorageType defines the storage backend for streams.
type StorageType int

const (
	// FileStorage persists the stream on disk (default; the relay
	// depends on durable redelivery).
	FileStorage StorageType = iota
	// MemoryStorage keeps the stream in memory.
	MemoryStorage
)

// PublisherOptions configures publisher behavior.
type PublisherOptions struct {
	// StreamName is the name of the stream to publish to.
	StreamName string

	// Subjects are the subjects bound to the stream. Defaults to
	// "<StreamName>.>".
	Subjects []string

	// RetryAttempts is the number of retry attempts for publishing.
	// 0 means no retry.
	RetryAttempts int

	// Storage is the storage type for the stream.
	Storage StorageType
}

// ConsumerOptions configures consumer behavior.
type ConsumerOptions struct {
	// StreamName is the name of the stream to consume from.
	StreamName string

	// ConsumerName is the durable consumer name.
	ConsumerName string

	// FilterSubject filters messages by subject pattern.
	FilterSubject string

	// AckWait is how long the broker waits for an ack before
	// redelivering. Zero keeps the broker default.
	AckWait time.Duration

	// ChannelBufSize is the buffer size for the message channel.
	ChannelBufSize int

	// Storage is the storage type for the stream.
	Storage StorageType
}

// DefaultConsumerOptions returns ConsumerOptions with sensible defaults.
func DefaultConsumerOptions() ConsumerOptions {
	return ConsumerOptions{
		ChannelBufSize: 100,
	}
}
