package checkin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"frisk/pkg/platform/sentinel"
	"frisk/pkg/platform/tx"
)

// PostgresStore persists check-ins in the quarterly_checkins table, which
// carries UNIQUE (student_id, quarter_bucket).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

const checkinColumns = `id, student_id, quarter_bucket, check_in_date,
	phone_verified, address_verified, email_verified, checked_by, created_at, updated_at`

// Upsert inserts or overwrites the quarter's row. The conflict target is the
// unique constraint, which closes the read-then-write race between two
// concurrent verifiers.
func (s *PostgresStore) Upsert(ctx context.Context, c QuarterlyCheckin) error {
	const q = `
		INSERT INTO quarterly_checkins (` + checkinColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, quarter_bucket) DO UPDATE SET
			check_in_date = EXCLUDED.check_in_date,
			phone_verified = EXCLUDED.phone_verified,
			address_verified = EXCLUDED.address_verified,
			email_verified = EXCLUDED.email_verified,
			checked_by = EXCLUDED.checked_by,
			updated_at = EXCLUDED.updated_at`
	_, err := s.querier(ctx).ExecContext(ctx, q,
		c.ID, c.StudentID, c.QuarterBucket, c.CheckInDate,
		c.PhoneVerified, c.AddressVerified, c.EmailVerified,
		c.CheckedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert checkin: %w", err)
	}
	return nil
}

func scanCheckin(row interface{ Scan(...any) error }) (QuarterlyCheckin, error) {
	var c QuarterlyCheckin
	err := row.Scan(&c.ID, &c.StudentID, &c.QuarterBucket, &c.CheckInDate,
		&c.PhoneVerified, &c.AddressVerified, &c.EmailVerified,
		&c.CheckedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return QuarterlyCheckin{}, sentinel.ErrNotFound
	}
	if err != nil {
		return QuarterlyCheckin{}, fmt.Errorf("scan checkin: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetCurrent(ctx context.Context, studentID uuid.UUID, bucket string) (QuarterlyCheckin, error) {
	const q = `SELECT ` + checkinColumns + ` FROM quarterly_checkins
		WHERE student_id = $1 AND quarter_bucket = $2`
	return scanCheckin(s.querier(ctx).QueryRowContext(ctx, q, studentID, bucket))
}

func (s *PostgresStore) ListByBucket(ctx context.Context, bucket string) ([]QuarterlyCheckin, error) {
	const q = `SELECT ` + checkinColumns + ` FROM quarterly_checkins WHERE quarter_bucket = $1`
	rows, err := s.querier(ctx).QueryContext(ctx, q, bucket)
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	defer rows.Close()

	var out []QuarterlyCheckin
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
