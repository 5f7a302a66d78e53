package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process queue with SQS-like visibility semantics. It
// backs local development and tests.
type MemoryQueue struct {
	mu         sync.Mutex
	visibility time.Duration
	now        func() time.Time
	entries    []*memoryEntry
	notify     chan struct{}
}

type memoryEntry struct {
	id           string
	body         string
	receipt      string
	receiveCount int
	invisibleTil time.Time
}

// NewMemoryQueue returns an empty queue. A zero visibility defaults to 30s.
func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &MemoryQueue{
		visibility: visibility,
		now:        time.Now,
		notify:     make(chan struct{}, 1),
	}
}

// Send appends a message.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	q.entries = append(q.entries, &memoryEntry{id: uuid.NewString(), body: body})
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Receive returns up to max visible messages, waiting up to wait for one to arrive.
func (q *MemoryQueue) Receive(ctx context.Context, max int32, wait time.Duration) ([]Message, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	for {
		if msgs := q.take(clampMax(max)); len(msgs) > 0 {
			return msgs, nil
		}
		if wait <= 0 {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) take(max int32) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	var out []Message
	for _, e := range q.entries {
		if int32(len(out)) >= max {
			break
		}
		if now.Before(e.invisibleTil) {
			continue
		}
		e.receiveCount++
		e.receipt = uuid.NewString()
		e.invisibleTil = now.Add(q.visibility)
		out = append(out, Message{ID: e.id, ReceiptHandle: e.receipt, Body: e.body, ReceiveCount: e.receiveCount})
	}
	return out
}

// Delete removes the message identified by its latest receipt handle.
func (q *MemoryQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.receipt == receiptHandle {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("receipt handle not found")
}

// Purge drops all messages.
func (q *MemoryQueue) Purge(ctx context.Context) error {
	q.mu.Lock()
	q.entries = nil
	q.mu.Unlock()
	return nil
}

// Len reports the number of messages still held, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

var _ Queue = (*MemoryQueue)(nil)
