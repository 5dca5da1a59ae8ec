package pubsub

import "time"

// StorageType defines the storage backend for feed streams.
type StorageType int

const (
	// MemoryStorage keeps stream data in memory (default).
	MemoryStorage StorageType = iota
	// FileStorage keeps stream data on disk.
	FileStorage
)

// PublisherOptions configures publisher behavior.
type PublisherOptions struct {
	// StreamName is the stream to publish into. Empty skips stream
	// provisioning (the in-memory engine has no streams).
	StreamName string

	// Subjects are the subject patterns bound to the stream. Defaults to
	// [StreamName + ".>"].
	Subjects []string

	// RetryAttempts is the number of publish retries. 0 means no retry.
	RetryAttempts int

	// Storage selects the stream storage type.
	Storage StorageType

	// OnPublish is called after each publish attempt (for metrics).
	OnPublish func(subject string, err error, latency time.Duration)
}

// ConsumerOptions configures consumer behavior.
type ConsumerOptions struct {
	// StreamName is the stream to consume from.
	StreamName string

	// ConsumerName is the durable consumer name.
	ConsumerName string

	// Subjects are the subject patterns bound to the stream. Defaults to
	// [StreamName + ".>"].
	Subjects []string

	// FilterSubject narrows delivery to matching subjects. Empty delivers
	// everything on the stream.
	FilterSubject string

	// ChannelBufSize is the buffer size for the message channel.
	ChannelBufSize int

	// Storage selects the stream storage type.
	Storage StorageType
}

// DefaultConsumerOptions returns ConsumerOptions with sensible defaults.
func DefaultConsumerOptions() ConsumerOptions {
	return ConsumerOptions{
		ChannelBufSize: 100,
	}
}
