// Package pipeline correlates asynchronous analysis jobs with invoices and
// owns every status change after upload.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"invoice-backend/internal/analysis"
	"invoice-backend/internal/extracts"
	"invoice-backend/internal/fieldextract"
	"invoice-backend/internal/invoices"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/storage/object"
	"invoice-backend/internal/shared/telemetry"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrJobInFlight rejects a second start for the same invoice.
	ErrJobInFlight = errors.New("analysis already started for invoice")
	// ErrJobNotFinished is returned while the engine still reports the job
	// as running, so the notification is redelivered later.
	ErrJobNotFinished = errors.New("analysis job not finished")
)

// Outcome is the result of handling one completion.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeOrphan    Outcome = "orphan"
	OutcomeDuplicate Outcome = "duplicate"
)

// Config holds the engine request settings.
type Config struct {
	Channel  analysis.Channel
	Features []analysis.Feature
}

// Pipeline starts analysis jobs and applies their results.
type Pipeline struct {
	invoices invoices.Repo
	extracts extracts.Repo
	engine   analysis.Client
	cfg      Config
	now      func() time.Time
	newID    func() string
}

// New wires a pipeline over the record stores and an analysis client.
func New(inv invoices.Repo, ext extracts.Repo, engine analysis.Client, cfg Config) *Pipeline {
	if len(cfg.Features) == 0 {
		cfg.Features = analysis.InvoiceFeatures
	}
	return &Pipeline{
		invoices: inv,
		extracts: ext,
		engine:   engine,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Start submits the stored document for analysis and records the job. A
// failed submission marks the invoice failed and is returned.
func (p *Pipeline) Start(ctx context.Context, invoiceID string, loc object.Location) (string, error) {
	inv, err := p.invoices.GetByID(ctx, invoiceID)
	if errors.Is(err, invoices.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	if err != nil {
		return "", err
	}
	if inv.Status != invoices.StatusUploaded {
		return "", fmt.Errorf("%w: status %s", ErrJobInFlight, inv.Status)
	}
	if _, err := p.extracts.GetByInvoiceID(ctx, invoiceID); err == nil {
		return "", ErrJobInFlight
	} else if !errors.Is(err, extracts.ErrNotFound) {
		return "", err
	}

	jobID, err := p.engine.StartAnalysis(ctx, analysis.StartRequest{
		Document:    loc,
		Features:    p.cfg.Features,
		Channel:     p.cfg.Channel,
		JobTag:      invoiceID,
		ClientToken: invoiceID,
	})
	if err != nil {
		metrics.IncStartFailed()
		telemetry.Error("pipeline.start_failed", map[string]any{"invoice_id": invoiceID, "error": err})
		p.markInvoiceFailed(ctx, invoiceID)
		return "", fmt.Errorf("start analysis: %w", err)
	}
	// Every exit from here on has either recorded the job or given up on it.
	if r, ok := p.engine.(analysis.JobRecorder); ok {
		defer r.JobRecorded(jobID)
	}

	if _, err := p.invoices.TransitionStatus(ctx, invoiceID, invoices.StatusProcessing, p.now()); err != nil {
		if errors.Is(err, invoices.ErrInvalidTransition) {
			return "", ErrJobInFlight
		}
		if errors.Is(err, invoices.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
		}
		return "", err
	}

	err = p.extracts.Create(ctx, extracts.Extract{
		ID:               p.newID(),
		InvoiceID:        invoiceID,
		JobID:            jobID,
		ProcessingStatus: extracts.StatusProcessing,
	})
	if errors.Is(err, extracts.ErrDuplicate) {
		return "", ErrJobInFlight
	}
	if err != nil {
		telemetry.Error("pipeline.extract_create_failed", map[string]any{"invoice_id": invoiceID, "job_id": jobID, "error": err})
		p.markInvoiceFailed(ctx, invoiceID)
		return "", fmt.Errorf("create extract: %w", err)
	}

	metrics.IncJobStarted()
	telemetry.Info("pipeline.job_started", map[string]any{
		"invoice_id":        invoiceID,
		"job_id":            jobID,
		"status_transition": "uploaded->processing",
	})
	return jobID, nil
}

// HandleNotification reacts to a completion event. Terminal statuses are
// applied through Complete; anything else is only logged.
func (p *Pipeline) HandleNotification(ctx context.Context, jobID, status string) error {
	switch analysis.JobStatus(status) {
	case analysis.JobSucceeded, analysis.JobFailed, analysis.JobError:
		_, err := p.Complete(ctx, jobID)
		return err
	case analysis.JobInProgress:
		telemetry.Info("pipeline.job_in_progress", map[string]any{"job_id": jobID})
		return nil
	default:
		telemetry.Warn("pipeline.unknown_status", map[string]any{"job_id": jobID, "status": status})
		return nil
	}
}

// Complete fetches the job result and moves the extract and invoice to
// their terminal status. Calling it again for a finished job is a no-op.
func (p *Pipeline) Complete(ctx context.Context, jobID string) (Outcome, error) {
	ext, err := p.extracts.GetByJobID(ctx, jobID)
	if errors.Is(err, extracts.ErrNotFound) || (err == nil && ext.InvoiceID == "") {
		return p.orphan(jobID, "extract"), nil
	}
	if err != nil {
		return "", err
	}
	inv, err := p.invoices.GetByID(ctx, ext.InvoiceID)
	if errors.Is(err, invoices.ErrNotFound) {
		return p.orphan(jobID, "invoice"), nil
	}
	if err != nil {
		return "", err
	}

	if ext.ProcessingStatus.Terminal() {
		if err := p.reconcile(ctx, ext, inv); err != nil {
			return "", err
		}
		metrics.IncJobFinished(string(OutcomeDuplicate))
		telemetry.Info("pipeline.duplicate_notification", map[string]any{"job_id": jobID, "invoice_id": inv.ID})
		return OutcomeDuplicate, nil
	}

	var res analysis.Result
	err = recoverPanic(func() error {
		var err error
		res, err = p.engine.GetResult(ctx, jobID)
		return err
	})
	if err != nil {
		return p.fail(ctx, ext, fmt.Errorf("get result: %w", err))
	}

	switch res.Status {
	case analysis.JobInProgress:
		return "", ErrJobNotFinished
	case analysis.JobSucceeded:
	default:
		return p.fail(ctx, ext, fmt.Errorf("job status %s: %s", res.Status, res.StatusMessage))
	}

	var fields extracts.Fields
	err = recoverPanic(func() error {
		fields = fieldextract.Extract(documentFrom(res))
		return nil
	})
	if err != nil {
		return p.fail(ctx, ext, fmt.Errorf("extract fields: %w", err))
	}
	var confidence float64
	if c := res.Confidence(); c != nil {
		confidence = *c
	}

	applied, err := p.extracts.Complete(ctx, jobID, fields, confidence)
	if errors.Is(err, extracts.ErrInvalidData) {
		return p.fail(ctx, ext, err)
	}
	if err != nil {
		return "", fmt.Errorf("store extract: %w", err)
	}
	if !applied {
		metrics.IncJobFinished(string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}
	if err := p.transition(ctx, inv.ID, invoices.StatusCompleted); err != nil {
		return "", err
	}

	metrics.IncJobFinished(string(OutcomeCompleted))
	metrics.ObserveJobDuration(p.now().Sub(ext.CreatedAt).Seconds())
	telemetry.Info("pipeline.job_completed", map[string]any{
		"invoice_id":        inv.ID,
		"job_id":            jobID,
		"fields_found":      fields.Count(),
		"missing_fields":    fields.Missing(),
		"confidence":        confidence,
		"status_transition": "processing->completed",
	})
	return OutcomeCompleted, nil
}

func (p *Pipeline) fail(ctx context.Context, ext extracts.Extract, cause error) (Outcome, error) {
	telemetry.Error("pipeline.job_failed", map[string]any{
		"invoice_id": ext.InvoiceID,
		"job_id":     ext.JobID,
		"error":      cause,
	})
	if _, err := p.extracts.Fail(ctx, ext.JobID); err != nil {
		return "", fmt.Errorf("mark extract failed: %w", err)
	}
	if err := p.transition(ctx, ext.InvoiceID, invoices.StatusFailed); err != nil {
		return "", err
	}
	metrics.IncJobFinished(string(OutcomeFailed))
	return OutcomeFailed, nil
}

// reconcile repairs the invoice when a previous attempt stopped between the
// extract write and the invoice write.
func (p *Pipeline) reconcile(ctx context.Context, ext extracts.Extract, inv invoices.Invoice) error {
	var to invoices.Status
	switch ext.ProcessingStatus {
	case extracts.StatusCompleted:
		to = invoices.StatusCompleted
	case extracts.StatusFailed:
		to = invoices.StatusFailed
	default:
		return nil
	}
	if inv.Status == to || !invoices.CanTransition(inv.Status, to) {
		return nil
	}
	telemetry.Warn("pipeline.reconcile", map[string]any{"invoice_id": inv.ID, "from": string(inv.Status), "to": string(to)})
	return p.transition(ctx, inv.ID, to)
}

// transition applies a status change, tolerating invoices that already moved
// on or were deleted.
func (p *Pipeline) transition(ctx context.Context, invoiceID string, to invoices.Status) error {
	_, err := p.invoices.TransitionStatus(ctx, invoiceID, to, p.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, invoices.ErrInvalidTransition), errors.Is(err, invoices.ErrNotFound):
		telemetry.Warn("pipeline.transition_skipped", map[string]any{"invoice_id": invoiceID, "to": string(to), "error": err})
		return nil
	default:
		return fmt.Errorf("update invoice %s: %w", to, err)
	}
}

func (p *Pipeline) markInvoiceFailed(ctx context.Context, invoiceID string) {
	if err := p.transition(ctx, invoiceID, invoices.StatusFailed); err != nil {
		telemetry.Error("pipeline.mark_failed_failed", map[string]any{"invoice_id": invoiceID, "error": err})
	}
}

func (p *Pipeline) orphan(jobID, missing string) Outcome {
	metrics.IncJobFinished(string(OutcomeOrphan))
	telemetry.Warn("pipeline.orphan_notification", map[string]any{"job_id": jobID, "missing": missing})
	return OutcomeOrphan
}

func documentFrom(res analysis.Result) fieldextract.Document {
	doc := fieldextract.Document{Lines: res.Lines()}
	for _, kv := range res.KeyValues() {
		doc.Pairs = append(doc.Pairs, fieldextract.Pair{Key: kv.Key, Value: kv.Value})
	}
	return doc
}

func recoverPanic(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
