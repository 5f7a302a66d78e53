package invoices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var invoiceColumns = []string{
	"id", "user_id", "file_name", "storage_key", "file_size", "mime_type", "page_count",
	"status", "uploaded_at", "processed_at", "created_at", "updated_at",
}

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new invoice.
func (r *PGRepo) Create(ctx context.Context, inv Invoice) error {
	query, args, err := psql.Insert("invoices").
		Columns(invoiceColumns...).
		Values(
			inv.ID,
			inv.UserID,
			inv.FileName,
			inv.StorageKey,
			inv.SizeBytes,
			inv.MimeType,
			inv.PageCount,
			string(inv.Status),
			inv.UploadedAt,
			inv.ProcessedAt,
			inv.CreatedAt,
			inv.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

// GetByID fetches a single invoice.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Invoice, error) {
	query, args, err := psql.Select(invoiceColumns...).From("invoices").Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return Invoice{}, fmt.Errorf("build select: %w", err)
	}
	inv, err := scanInvoice(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

// List returns invoices newest-first.
func (r *PGRepo) List(ctx context.Context, f Filter) ([]Invoice, error) {
	f = f.normalized()
	qb := psql.Select(invoiceColumns...).From("invoices").
		OrderBy("uploaded_at DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))
	if f.Status != "" {
		qb = qb.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.UserID != "" {
		qb = qb.Where(sq.Eq{"user_id": f.UserID})
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

	out := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// TransitionStatus applies a guarded status update in a single statement.
func (r *PGRepo) TransitionStatus(ctx context.Context, id string, to Status, at time.Time) (Invoice, error) {
	from := make([]string, 0, len(predecessors[to]))
	for _, p := range predecessors[to] {
		from = append(from, string(p))
	}
	if len(from) == 0 {
		return Invoice{}, ErrInvalidTransition
	}

	ub := psql.Update("invoices").
		Set("status", string(to)).
		Set("updated_at", at)
	if stampsProcessedAt(to) {
		ub = ub.Set("processed_at", at)
	}
	query, args, err := ub.
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": from}).
		Suffix("RETURNING " + strings.Join(invoiceColumns, ", ")).
		ToSql()
	if err != nil {
		return Invoice{}, fmt.Errorf("build update: %w", err)
	}

	inv, err := scanInvoice(r.DB.QueryRowContext(ctx, query, args...))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Invoice{}, err
	}
	// Nothing matched: either the row is gone or its status forbids the move.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return Invoice{}, getErr
	}
	return Invoice{}, ErrInvalidTransition
}

// Delete removes the invoice; its extract is removed by the FK cascade.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates counts and sizes per status.
func (r *PGRepo) Stats(ctx context.Context) (Stats, error) {
	const query = `
SELECT status, COUNT(*), COALESCE(SUM(file_size), 0)
FROM invoices
GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	stats := Stats{ByStatus: map[Status]int{}}
	for rows.Next() {
		var status string
		var count int
		var size int64
		if err := rows.Scan(&status, &count, &size); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[Status(status)] = count
		stats.Total += count
		stats.TotalBytes += size
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var inv Invoice
	var status string
	var processedAt sql.NullTime
	err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&inv.FileName,
		&inv.StorageKey,
		&inv.SizeBytes,
		&inv.MimeType,
		&inv.PageCount,
		&status,
		&inv.UploadedAt,
		&processedAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return Invoice{}, err
	}
	inv.Status = Status(status)
	if processedAt.Valid {
		t := processedAt.Time
		inv.ProcessedAt = &t
	}
	return inv, nil
}

var _ Repo = (*PGRepo)(nil)
