package broker

import (
	"context"
)

// Message is the broker-agnostic view of one consumed record. Payload decoding
// is left to the handler so that malformed events can be counted and skipped
// without blocking the partition.
type Message struct {
	Key   []byte
	Value []byte
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload interface{}) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Healthy() bool
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg Message) error
