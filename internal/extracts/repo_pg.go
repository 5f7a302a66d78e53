package extracts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"invoice-backend/internal/shared/storage/db"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var selectColumns = append([]string{"id", "invoice_id", "textract_job_id", "processing_status"},
	append(append([]string{}, fieldColumns...), "extraction_confidence", "created_at", "updated_at")...)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func (r *PGRepo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *PGRepo) Create(ctx context.Context, ext Extract) error {
	now := r.now()
	query, args, err := psql.Insert("invoice_extracts").
		Columns("id", "invoice_id", "textract_job_id", "processing_status", "created_at", "updated_at").
		Values(ext.ID, ext.InvoiceID, ext.JobID, string(ext.ProcessingStatus), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *PGRepo) GetByJobID(ctx context.Context, jobID string) (Extract, error) {
	return r.getOne(ctx, sq.Eq{"textract_job_id": jobID})
}

func (r *PGRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (Extract, error) {
	return r.getOne(ctx, sq.Eq{"invoice_id": invoiceID})
}

func (r *PGRepo) getOne(ctx context.Context, where sq.Eq) (Extract, error) {
	query, args, err := psql.Select(selectColumns...).From("invoice_extracts").Where(where).Limit(1).ToSql()
	if err != nil {
		return Extract{}, fmt.Errorf("build select: %w", err)
	}
	ext, err := scanExtract(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Extract{}, ErrNotFound
	}
	return ext, err
}

func (r *PGRepo) Complete(ctx context.Context, jobID string, fields Fields, confidence float64) (bool, error) {
	set := map[string]any{
		"processing_status":     string(StatusCompleted),
		"extraction_confidence": confidence,
		"updated_at":            r.now(),
	}
	for _, c := range fields.columns() {
		set[c.name] = c.value
	}
	return r.finish(ctx, jobID, set)
}

func (r *PGRepo) Fail(ctx context.Context, jobID string) (bool, error) {
	return r.finish(ctx, jobID, map[string]any{
		"processing_status": string(StatusFailed),
		"updated_at":        r.now(),
	})
}

func (r *PGRepo) finish(ctx context.Context, jobID string, set map[string]any) (bool, error) {
	query, args, err := psql.Update("invoice_extracts").
		SetMap(set).
		Where(sq.Eq{"textract_job_id": jobID}).
		Where(sq.Eq{"processing_status": string(StatusProcessing)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		if db.IsDataException(err) {
			return false, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepo) List(ctx context.Context, status ProcessingStatus) ([]Extract, error) {
	qb := psql.Select(selectColumns...).From("invoice_extracts").OrderBy("created_at DESC")
	if status != "" {
		qb = qb.Where(sq.Eq{"processing_status": string(status)})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Extract
	for rows.Next() {
		ext, err := scanExtract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ext)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtract(row rowScanner) (Extract, error) {
	var ext Extract
	var status string
	var invoiceNumber, sender, receiver, product, iban, bic, bankName sql.NullString
	var quantity, unitPrice, subtotal, vatRate, vatAmount, totalGross, confidence sql.NullFloat64
	var invoiceDate sql.NullTime
	err := row.Scan(
		&ext.ID,
		&ext.InvoiceID,
		&ext.JobID,
		&status,
		&invoiceNumber,
		&invoiceDate,
		&sender,
		&receiver,
		&product,
		&quantity,
		&unitPrice,
		&subtotal,
		&vatRate,
		&vatAmount,
		&totalGross,
		&iban,
		&bic,
		&bankName,
		&confidence,
		&ext.CreatedAt,
		&ext.UpdatedAt,
	)
	if err != nil {
		return Extract{}, err
	}
	ext.ProcessingStatus = ProcessingStatus(status)
	ext.InvoiceNumber = nullString(invoiceNumber)
	ext.SenderAddress = nullString(sender)
	ext.ReceiverAddress = nullString(receiver)
	ext.Product = nullString(product)
	ext.BankIBAN = nullString(iban)
	ext.BankBIC = nullString(bic)
	ext.BankName = nullString(bankName)
	ext.Quantity = nullFloat(quantity)
	ext.UnitPrice = nullFloat(unitPrice)
	ext.Subtotal = nullFloat(subtotal)
	ext.VATRate = nullFloat(vatRate)
	ext.VATAmount = nullFloat(vatAmount)
	ext.TotalGross = nullFloat(totalGross)
	ext.Confidence = nullFloat(confidence)
	if invoiceDate.Valid {
		d := invoiceDate.Time
		ext.InvoiceDate = &d
	}
	return ext, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

var _ Repo = (*PGRepo)(nil)
