package queue

import (
	"context"
	"time"
)

// Sender publishes raw message bodies to a queue backend.
type Sender interface {
	Send(ctx context.Context, body string) error
}

// Receiver pulls messages from a queue backend. Messages stay invisible to
// other receivers until deleted or until their visibility timeout elapses.
type Receiver interface {
	Receive(ctx context.Context, max int32, wait time.Duration) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
	Purge(ctx context.Context) error
}

// Queue is a backend that both sends and receives.
type Queue interface {
	Sender
	Receiver
}
