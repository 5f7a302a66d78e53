package extracts

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &PGRepo{DB: conn, Now: func() time.Time { return now }}, mock
}

func TestPGRepoCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoice_extracts")).
		WithArgs("e1", "inv-1", "job-1", "processing", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), Extract{ID: "e1", InvoiceID: "inv-1", JobID: "job-1", ProcessingStatus: StatusProcessing})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoFailIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoice_extracts SET processing_status = $1, updated_at = $2 WHERE textract_job_id = $3 AND processing_status = $4")).
		WithArgs("failed", sqlmock.AnyArg(), "job-1", "processing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.Fail(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, applied, "terminal row must not change")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoCompleteWritesFields(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoice_extracts SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	number := "RE-2024-001"
	applied, err := repo.Complete(context.Background(), "job-1", Fields{InvoiceNumber: &number}, 0.87)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoCompleteMapsDataException(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoice_extracts SET")).
		WillReturnError(&pgconn.PgError{Code: "22003", Message: "numeric field overflow"})

	total := 123456789012345.0
	applied, err := repo.Complete(context.Background(), "job-1", Fields{TotalGross: &total}, 0.9)
	require.ErrorIs(t, err, ErrInvalidData)
	assert.Contains(t, err.Error(), "numeric field overflow")
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByJobIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM invoice_extracts WHERE textract_job_id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(selectColumns))

	_, err := repo.GetByJobID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGRepoGetByJobIDScansNullableFields(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	values := []any{"e1", "inv-1", "job-1", "completed",
		"RE-2024-001", nil, nil, nil, nil,
		nil, nil, "3400.00", nil, nil, "4046.00",
		nil, nil, nil,
		"0.91", created, created}
	rows := sqlmock.NewRows(selectColumns)
	driverValues := make([]driver.Value, len(values))
	for i, v := range values {
		driverValues[i] = v
	}
	rows.AddRow(driverValues...)
	mock.ExpectQuery(regexp.QuoteMeta("FROM invoice_extracts WHERE textract_job_id = $1")).
		WithArgs("job-1").
		WillReturnRows(rows)

	ext, err := repo.GetByJobID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, ext.ProcessingStatus)
	require.NotNil(t, ext.InvoiceNumber)
	assert.Equal(t, "RE-2024-001", *ext.InvoiceNumber)
	require.NotNil(t, ext.TotalGross)
	assert.InDelta(t, 4046, *ext.TotalGross, 0.001)
	require.NotNil(t, ext.Subtotal)
	assert.InDelta(t, 3400, *ext.Subtotal, 0.001)
	assert.Nil(t, ext.SenderAddress)
	assert.Nil(t, ext.InvoiceDate)
}
