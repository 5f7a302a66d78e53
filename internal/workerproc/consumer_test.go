package workerproc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-backend/internal/queue"
)

type step struct {
	msgs []queue.Message
	err  error
}

type scriptedQueue struct {
	mu      sync.Mutex
	steps   []step
	deleted []string
	purged  int
	onDrain func()
}

func (q *scriptedQueue) Receive(ctx context.Context, max int32, wait time.Duration) ([]queue.Message, error) {
	q.mu.Lock()
	if len(q.steps) == 0 {
		q.mu.Unlock()
		if q.onDrain != nil {
			q.onDrain()
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s := q.steps[0]
	q.steps = q.steps[1:]
	q.mu.Unlock()
	return s.msgs, s.err
}

func (q *scriptedQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *scriptedQueue) Purge(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purged++
	return nil
}

func runUntilDrained(t *testing.T, c *Consumer, q *scriptedQueue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.onDrain = cancel
	require.NoError(t, c.StartPolling(ctx))
}

func TestConsumerDeleteSemantics(t *testing.T) {
	q := &scriptedQueue{steps: []step{{msgs: []queue.Message{
		{ID: "m1", ReceiptHandle: "r1", Body: directBody},
		{ID: "m2", ReceiptHandle: "r2", Body: `{"JobId":"job-retry","Status":"SUCCEEDED","API":"StartDocumentAnalysis"}`},
		{ID: "m3", ReceiptHandle: "r3", Body: ""},
		{ID: "m4", ReceiptHandle: "r4", Body: "{bad-json"},
		{ID: "m5", ReceiptHandle: "r5", Body: `{"foo":1}`},
		{ID: "m6", ReceiptHandle: "r6", Body: `{"JobId":"job-no-api","Status":"SUCCEEDED"}`},
	}}}}

	var handled []string
	c := NewConsumer(q, Options{PurgeOnStart: true})
	c.sleep = func(context.Context, time.Duration) {}
	c.SetHandler(func(ctx context.Context, n Notification) error {
		handled = append(handled, n.JobID)
		if n.JobID == "job-retry" {
			return errors.New("database unavailable")
		}
		return nil
	})

	runUntilDrained(t, c, q)

	assert.Equal(t, []string{"job-1", "job-retry"}, handled)
	assert.Equal(t, []string{"r1", "r3", "r4", "r5", "r6"}, q.deleted)
	assert.Equal(t, 1, q.purged)
	assert.False(t, c.IsPolling())
}

func TestConsumerDelays(t *testing.T) {
	q := &scriptedQueue{steps: []step{
		{err: errors.New("connection reset")},
		{},
	}}
	var slept []time.Duration
	c := NewConsumer(q, Options{IdleDelay: 5 * time.Second, ErrorDelay: 10 * time.Second})
	c.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }
	c.SetHandler(func(context.Context, Notification) error { return nil })

	runUntilDrained(t, c, q)

	assert.Equal(t, []time.Duration{10 * time.Second, 5 * time.Second}, slept)
}

func TestConsumerSkipsPurgeWhenDisabled(t *testing.T) {
	q := &scriptedQueue{}
	c := NewConsumer(q, Options{PurgeOnStart: false})
	c.SetHandler(func(context.Context, Notification) error { return nil })

	runUntilDrained(t, c, q)

	assert.Zero(t, q.purged)
}

func TestConsumerRequiresHandler(t *testing.T) {
	c := NewConsumer(&scriptedQueue{}, Options{})
	assert.ErrorIs(t, c.StartPolling(context.Background()), ErrNoHandler)
}

func TestConsumerStopPolling(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	c := NewConsumer(q, Options{WaitTime: 10 * time.Millisecond, IdleDelay: 10 * time.Millisecond})

	received := make(chan string, 1)
	c.SetHandler(func(ctx context.Context, n Notification) error {
		received <- n.JobID
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- c.StartPolling(context.Background()) }()

	require.Eventually(t, c.IsPolling, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.StartPolling(context.Background()), ErrAlreadyPolling)

	require.NoError(t, q.Send(context.Background(), directBody))
	select {
	case id := <-received:
		assert.Equal(t, "job-1", id)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "notification not delivered")
	}
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)

	c.StopPolling()
	require.NoError(t, <-errCh)
	assert.False(t, c.IsPolling())
}
