package workerproc

import (
	"context"
	"errors"
	"sync"
	"time"

	"invoice-backend/internal/queue"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/telemetry"
)

var (
	// ErrNoHandler is returned by StartPolling before SetHandler was called.
	ErrNoHandler = errors.New("notification handler not set")
	// ErrAlreadyPolling is returned when a second loop is started.
	ErrAlreadyPolling = errors.New("consumer already polling")
)

// Handler processes one decoded notification. A nil return acknowledges the
// message; an error leaves it on the queue for redelivery.
type Handler func(ctx context.Context, n Notification) error

// Options tunes the polling loop.
type Options struct {
	MaxMessages  int32
	WaitTime     time.Duration
	IdleDelay    time.Duration
	ErrorDelay   time.Duration
	PurgeOnStart bool
}

// DefaultOptions matches the long-poll settings used in production.
func DefaultOptions() Options {
	return Options{
		MaxMessages:  10,
		WaitTime:     20 * time.Second,
		IdleDelay:    5 * time.Second,
		ErrorDelay:   10 * time.Second,
		PurgeOnStart: true,
	}
}

// Consumer polls a queue and hands notifications to a handler, one at a time.
type Consumer struct {
	queue queue.Receiver
	opts  Options
	sleep func(ctx context.Context, d time.Duration)

	mu      sync.Mutex
	handler Handler
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewConsumer builds a consumer over q. Zero sizes and durations fall back
// to DefaultOptions.
func NewConsumer(q queue.Receiver, opts Options) *Consumer {
	def := DefaultOptions()
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = def.MaxMessages
	}
	if opts.WaitTime <= 0 {
		opts.WaitTime = def.WaitTime
	}
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = def.IdleDelay
	}
	if opts.ErrorDelay <= 0 {
		opts.ErrorDelay = def.ErrorDelay
	}
	return &Consumer{queue: q, opts: opts, sleep: sleepCtx}
}

// SetHandler installs the notification handler.
func (c *Consumer) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// IsPolling reports whether the loop is running.
func (c *Consumer) IsPolling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done != nil
}

// StartPolling runs the receive loop until ctx is cancelled or StopPolling is
// called. It blocks; both exits return nil.
func (c *Consumer) StartPolling(ctx context.Context) error {
	c.mu.Lock()
	if c.handler == nil {
		c.mu.Unlock()
		return ErrNoHandler
	}
	if c.done != nil {
		c.mu.Unlock()
		return ErrAlreadyPolling
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	handler := c.handler
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel, c.done = nil, nil
		c.mu.Unlock()
		close(done)
	}()

	telemetry.Info("worker.consumer.started", map[string]any{
		"max_messages": c.opts.MaxMessages,
		"wait_seconds": c.opts.WaitTime.Seconds(),
	})

	if c.opts.PurgeOnStart {
		if err := c.queue.Purge(ctx); err != nil {
			telemetry.Warn("worker.consumer.purge_failed", map[string]any{"error": err})
		} else {
			telemetry.Info("worker.consumer.purged", nil)
		}
	}

	for ctx.Err() == nil {
		msgs, err := c.queue.Receive(ctx, c.opts.MaxMessages, c.opts.WaitTime)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			telemetry.Error("worker.consumer.receive_failed", map[string]any{"error": err})
			c.sleep(ctx, c.opts.ErrorDelay)
			continue
		}
		if len(msgs) == 0 {
			c.sleep(ctx, c.opts.IdleDelay)
			continue
		}
		for _, msg := range msgs {
			if ctx.Err() != nil {
				break
			}
			c.process(ctx, handler, msg)
		}
	}

	telemetry.Info("worker.consumer.stopped", nil)
	return nil
}

// StopPolling stops the loop and waits for the message in flight to finish.
func (c *Consumer) StopPolling() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Consumer) process(ctx context.Context, handler Handler, msg queue.Message) {
	n, meta, err := ParseNotification(msg.Body)
	if err != nil {
		fields := baseFields(msg, "")
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		switch e := err.(type) {
		case ErrEmptyBody:
			telemetry.Error("worker.notification.empty_body", fields)
		case ErrDecode:
			fields["error"] = e.Err
			telemetry.Error("worker.notification.decode_failed", fields)
		case ErrUnrecognizedEnvelope:
			telemetry.Error("worker.notification.unrecognized", fields)
		default:
			fields["error"] = err
			telemetry.Error("worker.notification.decode_failed", fields)
		}
		if c.delete(ctx, msg, "") {
			metrics.IncNotification("discarded")
		}
		return
	}

	fields := baseFields(msg, n.JobID)
	fields["status"] = n.Status
	telemetry.Info("worker.notification.received", fields)

	if err := handler(ctx, n); err != nil {
		fields["error"] = err
		telemetry.Error("worker.notification.failed", fields)
		metrics.IncNotification("retry")
		return
	}
	if c.delete(ctx, msg, n.JobID) {
		metrics.IncNotification("handled")
	}
}

func (c *Consumer) delete(ctx context.Context, msg queue.Message, jobID string) bool {
	if msg.ReceiptHandle == "" {
		fields := baseFields(msg, jobID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.notification.delete_failed", fields)
		return false
	}
	// A stop request must not strand a message that was already handled.
	if err := c.queue.Delete(context.WithoutCancel(ctx), msg.ReceiptHandle); err != nil {
		fields := baseFields(msg, jobID)
		fields["error"] = err
		telemetry.Error("worker.notification.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg queue.Message, jobID string) map[string]any {
	fields := map[string]any{
		"message_id":    msg.ID,
		"receive_count": msg.ReceiveCount,
	}
	if jobID != "" {
		fields["job_id"] = jobID
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
