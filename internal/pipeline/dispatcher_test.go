package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-backend/internal/shared/storage/object"
)

type recordingStarter struct {
	mu   sync.Mutex
	ids  []string
	fail map[string]error
}

func (r *recordingStarter) Start(ctx context.Context, invoiceID string, loc object.Location) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, invoiceID)
	if err := r.fail[invoiceID]; err != nil {
		return "", err
	}
	return "job-" + invoiceID, nil
}

func (r *recordingStarter) started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func TestDispatcherRunsSubmittedStarts(t *testing.T) {
	boom := errors.New("access denied")
	starter := &recordingStarter{fail: map[string]error{"inv-2": boom}}
	d := NewDispatcher(starter, 4)

	require.NoError(t, d.Submit(context.Background(), "inv-1", object.Location{Key: "a"}))
	require.NoError(t, d.Submit(context.Background(), "inv-2", object.Location{Key: "b"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case se := <-d.Errors():
		assert.Equal(t, "inv-2", se.InvoiceID)
		assert.ErrorIs(t, se, boom)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "start error not reported")
	}
	assert.Equal(t, []string{"inv-1", "inv-2"}, starter.started())

	cancel()
	require.NoError(t, <-done)
}

func TestDispatcherCloseDrainsQueuedTasks(t *testing.T) {
	starter := &recordingStarter{}
	d := NewDispatcher(starter, 4)
	require.NoError(t, d.Submit(context.Background(), "inv-1", object.Location{}))
	require.NoError(t, d.Submit(context.Background(), "inv-2", object.Location{}))

	d.Close()
	d.Close()
	require.NoError(t, d.Run(context.Background()))

	assert.ElementsMatch(t, []string{"inv-1", "inv-2"}, starter.started())
	assert.ErrorIs(t, d.Submit(context.Background(), "inv-3", object.Location{}), ErrDispatcherClosed)
}

func TestDispatcherSubmitHonoursContext(t *testing.T) {
	d := NewDispatcher(&recordingStarter{}, 1)
	require.NoError(t, d.Submit(context.Background(), "inv-1", object.Location{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Submit(ctx, "inv-2", object.Location{}), context.DeadlineExceeded)
}
