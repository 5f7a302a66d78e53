package local

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-backend/internal/analysis"
	"invoice-backend/internal/pdftext/pdftest"
	"invoice-backend/internal/queue"
	"invoice-backend/internal/shared/storage/object"
	localstore "invoice-backend/internal/shared/storage/object/local"
	"invoice-backend/internal/workerproc"
)

func setup(t *testing.T, data []byte) (*Engine, *queue.MemoryQueue, object.Location) {
	t.Helper()
	store := localstore.New(t.TempDir())
	obj, err := store.Save(context.Background(), "user-1", "invoice.pdf", bytes.NewReader(data))
	require.NoError(t, err)
	q := queue.NewMemoryQueue(time.Minute)
	return New(store, q), q, store.Locate(obj.Key)
}

func receiveOne(t *testing.T, q *queue.MemoryQueue) workerproc.Notification {
	t.Helper()
	msgs, err := q.Receive(context.Background(), 1, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	n, _, err := workerproc.ParseNotification(msgs[0].Body)
	require.NoError(t, err)
	return n
}

func TestEngineAnalyzesTextLayer(t *testing.T) {
	pdf := pdftest.Build([]string{"Rechnungsnummer: RE-2024-001", "Gesamtbetrag: 4.046,00 EUR"})
	e, q, loc := setup(t, pdf)

	jobID, err := e.StartAnalysis(context.Background(), analysis.StartRequest{
		Document:    loc,
		Features:    analysis.InvoiceFeatures,
		Channel:     analysis.Channel{TopicARN: "local-topic"},
		JobTag:      "inv-1",
		ClientToken: "inv-1",
	})
	require.NoError(t, err)
	e.JobRecorded(jobID)
	e.Wait()

	n := receiveOne(t, q)
	assert.Equal(t, jobID, n.JobID)
	assert.Equal(t, string(analysis.JobSucceeded), n.Status)
	assert.Equal(t, "inv-1", n.JobTag)
	assert.Equal(t, loc.Key, n.DocumentLocation.S3ObjectName)

	res, err := e.GetResult(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, analysis.JobSucceeded, res.Status)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []string{"Rechnungsnummer: RE-2024-001", "Gesamtbetrag: 4.046,00 EUR"}, res.Lines())
	assert.Contains(t, res.KeyValues(), analysis.KeyValue{Key: "Rechnungsnummer", Value: "RE-2024-001"})
	require.NotNil(t, res.Confidence())
	assert.InDelta(t, 1.0, *res.Confidence(), 1e-9)
}

func TestEngineReusesClientToken(t *testing.T) {
	e, _, loc := setup(t, pdftest.Build([]string{"Rechnung"}))
	req := analysis.StartRequest{Document: loc, ClientToken: "inv-1"}

	first, err := e.StartAnalysis(context.Background(), req)
	require.NoError(t, err)
	second, err := e.StartAnalysis(context.Background(), req)
	require.NoError(t, err)
	e.JobRecorded(first)
	e.Wait()

	assert.Equal(t, first, second)
}

func TestEngineFailsUnreadableDocument(t *testing.T) {
	e, q, loc := setup(t, []byte("%PDF-1.4 garbage"))

	jobID, err := e.StartAnalysis(context.Background(), analysis.StartRequest{Document: loc})
	require.NoError(t, err)
	e.JobRecorded(jobID)
	e.Wait()

	n := receiveOne(t, q)
	assert.Equal(t, string(analysis.JobFailed), n.Status)

	res, err := e.GetResult(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, analysis.JobFailed, res.Status)
	assert.NotEmpty(t, res.StatusMessage)
}

func TestEngineUnknownJob(t *testing.T) {
	e := New(localstore.New(t.TempDir()), queue.NewMemoryQueue(0))
	_, err := e.GetResult(context.Background(), "missing")
	assert.ErrorIs(t, err, analysis.ErrJobNotFound)
}

func TestEngineHoldsNotificationUntilRecorded(t *testing.T) {
	e, q, loc := setup(t, pdftest.Build([]string{"Rechnung"}))
	e.Latency = 0

	jobID, err := e.StartAnalysis(context.Background(), analysis.StartRequest{Document: loc})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		res, err := e.GetResult(context.Background(), jobID)
		return err == nil && res.Status == analysis.JobSucceeded
	}, time.Second, 5*time.Millisecond)
	msgs, err := q.Receive(context.Background(), 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	e.JobRecorded(jobID)
	e.JobRecorded(jobID)
	e.Wait()
	assert.Equal(t, jobID, receiveOne(t, q).JobID)
}

func TestEngineNotifiesAfterRecordTimeout(t *testing.T) {
	e, q, loc := setup(t, pdftest.Build([]string{"Rechnung"}))
	e.Latency = 0
	e.RecordTimeout = 20 * time.Millisecond

	jobID, err := e.StartAnalysis(context.Background(), analysis.StartRequest{Document: loc})
	require.NoError(t, err)
	e.Wait()

	assert.Equal(t, jobID, receiveOne(t, q).JobID)
	e.JobRecorded(jobID)
}
