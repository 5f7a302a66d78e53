// Package local is an in-process analysis engine for development. It reads
// the PDF text layer instead of running OCR and announces completion the same
// way the hosted engine does: an SNS-wrapped notification on a queue.
package local

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoice-backend/internal/analysis"
	"invoice-backend/internal/pdftext"
	"invoice-backend/internal/queue"
	"invoice-backend/internal/shared/telemetry"
	"invoice-backend/internal/workerproc"
)

const (
	apiName = "StartDocumentAnalysis"
	// DefaultLatency is the simulated processing time of a job.
	DefaultLatency = 250 * time.Millisecond
	// DefaultRecordTimeout bounds how long a finished job waits for
	// JobRecorded before it notifies anyway. A notification sent after the
	// timeout for a job that is still unrecorded is handled as an orphan.
	DefaultRecordTimeout = 30 * time.Second
	// Text layer extraction is exact.
	lineConfidence = 100
)

var formLine = regexp.MustCompile(`^\s*([\p{L}][^:]{1,40}?)\s*:\s*(\S.*?)\s*$`)

// Opener reads stored documents.
type Opener interface {
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// Engine implements analysis.Client.
type Engine struct {
	// Latency is the minimum time a job takes.
	Latency time.Duration
	// RecordTimeout caps the wait for JobRecorded. Zero waits forever.
	RecordTimeout time.Duration

	store  Opener
	notify queue.Sender
	newID  func() string
	now    func() time.Time

	mu       sync.Mutex
	jobs     map[string]analysis.Result
	tokens   map[string]string
	recorded map[string]chan struct{}
	wg       sync.WaitGroup
}

// New returns an engine that reads documents from store and publishes
// completion notifications to notify.
func New(store Opener, notify queue.Sender) *Engine {
	return &Engine{
		Latency:       DefaultLatency,
		RecordTimeout: DefaultRecordTimeout,
		store:         store,
		notify:        notify,
		newID:         uuid.NewString,
		now:           time.Now,
		jobs:          make(map[string]analysis.Result),
		tokens:        make(map[string]string),
		recorded:      make(map[string]chan struct{}),
	}
}

// StartAnalysis registers the job and runs it in the background. A repeated
// client token returns the original job id.
func (e *Engine) StartAnalysis(ctx context.Context, req analysis.StartRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Document.Key) == "" {
		return "", fmt.Errorf("document key is required")
	}

	e.mu.Lock()
	if req.ClientToken != "" {
		if id, ok := e.tokens[req.ClientToken]; ok {
			e.mu.Unlock()
			return id, nil
		}
	}
	jobID := e.newID()
	e.jobs[jobID] = analysis.Result{JobID: jobID, Status: analysis.JobInProgress}
	if req.ClientToken != "" {
		e.tokens[req.ClientToken] = jobID
	}
	recorded := make(chan struct{})
	e.recorded[jobID] = recorded
	e.wg.Add(1)
	e.mu.Unlock()

	go e.run(jobID, req, recorded)
	return jobID, nil
}

// JobRecorded releases the notification of jobID. Unknown or already
// released ids are ignored.
func (e *Engine) JobRecorded(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, ok := e.recorded[jobID]; ok {
		close(ch)
		delete(e.recorded, jobID)
	}
}

// GetResult returns the current state of a job.
func (e *Engine) GetResult(ctx context.Context, jobID string) (analysis.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, ok := e.jobs[jobID]
	if !ok {
		return analysis.Result{}, fmt.Errorf("%w: %s", analysis.ErrJobNotFound, jobID)
	}
	return res, nil
}

// Wait blocks until every started job has published its notification. A job
// publishes only after JobRecorded or the record timeout.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) run(jobID string, req analysis.StartRequest, recorded <-chan struct{}) {
	defer e.wg.Done()
	ctx := context.Background()
	if e.Latency > 0 {
		time.Sleep(e.Latency)
	}

	res := e.analyze(ctx, jobID, req)
	e.mu.Lock()
	e.jobs[jobID] = res
	e.mu.Unlock()

	e.awaitRecorded(jobID, recorded)

	fields := map[string]any{"job_id": jobID, "status": string(res.Status), "lines": len(res.Lines())}
	if res.StatusMessage != "" {
		fields["error"] = res.StatusMessage
	}
	telemetry.Info("analysis.local.finished", fields)

	body, err := workerproc.EncodeWrapped(workerproc.Notification{
		JobID:     jobID,
		Status:    string(res.Status),
		API:       apiName,
		JobTag:    req.JobTag,
		Timestamp: e.now().UnixMilli(),
		DocumentLocation: workerproc.DocumentLocation{
			S3ObjectName: req.Document.Key,
			S3Bucket:     req.Document.Bucket,
		},
	}, uuid.NewString(), req.Channel.TopicARN)
	if err == nil {
		err = e.notify.Send(ctx, string(body))
	}
	if err != nil {
		telemetry.Error("analysis.local.notify_failed", map[string]any{"job_id": jobID, "error": err})
	}
}

func (e *Engine) awaitRecorded(jobID string, recorded <-chan struct{}) {
	if e.RecordTimeout <= 0 {
		<-recorded
		return
	}
	timer := time.NewTimer(e.RecordTimeout)
	defer timer.Stop()
	select {
	case <-recorded:
	case <-timer.C:
		e.JobRecorded(jobID)
		telemetry.Warn("analysis.local.record_timeout", map[string]any{"job_id": jobID, "timeout": e.RecordTimeout.String()})
	}
}

func (e *Engine) analyze(ctx context.Context, jobID string, req analysis.StartRequest) analysis.Result {
	failed := func(err error) analysis.Result {
		return analysis.Result{JobID: jobID, Status: analysis.JobFailed, StatusMessage: err.Error()}
	}

	rc, err := e.store.Open(ctx, req.Document.Key)
	if err != nil {
		return failed(fmt.Errorf("open document: %w", err))
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return failed(fmt.Errorf("read document: %w", err))
	}
	lines, err := pdftext.Lines(data)
	if err != nil {
		return failed(err)
	}

	withForms := false
	for _, f := range req.Features {
		if f == analysis.FeatureForms {
			withForms = true
		}
	}

	res := analysis.Result{JobID: jobID, Status: analysis.JobSucceeded}
	b := blockBuilder{}
	page := 0
	for _, line := range lines {
		if line.Page != page {
			page = line.Page
			res.Pages = page
			b.add(analysis.Block{Type: analysis.BlockPage, Page: page})
		}
		b.add(analysis.Block{Type: analysis.BlockLine, Text: line.Text, Confidence: lineConfidence, Page: page})
		if withForms {
			if m := formLine.FindStringSubmatch(line.Text); m != nil {
				b.addKeyValue(m[1], m[2], page)
			}
		}
	}
	res.Blocks = b.blocks
	return res
}

type blockBuilder struct {
	blocks []analysis.Block
	seq    int
}

func (b *blockBuilder) add(block analysis.Block) string {
	b.seq++
	block.ID = fmt.Sprintf("b%d", b.seq)
	b.blocks = append(b.blocks, block)
	return block.ID
}

func (b *blockBuilder) words(text string, page int) []string {
	var ids []string
	for _, w := range strings.Fields(text) {
		ids = append(ids, b.add(analysis.Block{Type: analysis.BlockWord, Text: w, Confidence: lineConfidence, Page: page}))
	}
	return ids
}

func (b *blockBuilder) addKeyValue(key, value string, page int) {
	valueID := b.add(analysis.Block{
		Type:        analysis.BlockKeyValueSet,
		EntityTypes: []string{analysis.EntityValue},
		Children:    b.words(value, page),
		Confidence:  lineConfidence,
		Page:        page,
	})
	b.add(analysis.Block{
		Type:        analysis.BlockKeyValueSet,
		EntityTypes: []string{analysis.EntityKey},
		Children:    b.words(key, page),
		Values:      []string{valueID},
		Confidence:  lineConfidence,
		Page:        page,
	})
}

var (
	_ analysis.Client      = (*Engine)(nil)
	_ analysis.JobRecorder = (*Engine)(nil)
)
