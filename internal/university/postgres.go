package university

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"frisk/pkg/platform/sentinel"
	"frisk/pkg/platform/tx"
)

// PostgresStore persists universities and contacts.
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) Create(ctx context.Context, u University) error {
	const q = `INSERT INTO universities (id, name, created_at) VALUES ($1, $2, $3)`
	_, err := s.querier(ctx).ExecContext(ctx, q, u.ID, u.Name, u.CreatedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert university: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (University, error) {
	const q = `SELECT id, name, created_at FROM universities WHERE id = $1`
	var u University
	err := s.querier(ctx).QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return University{}, sentinel.ErrNotFound
	}
	if err != nil {
		return University{}, fmt.Errorf("get university: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]University, error) {
	const q = `SELECT id, name, created_at FROM universities ORDER BY name`
	rows, err := s.querier(ctx).QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list universities: %w", err)
	}
	defer rows.Close()

	var out []University
	for rows.Next() {
		var u University
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan university: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	const q = `UPDATE universities SET name = $2 WHERE id = $1`
	res, err := s.querier(ctx).ExecContext(ctx, q, id, name)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update university: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.querier(ctx).ExecContext(ctx, `DELETE FROM universities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete university: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertContacts(ctx context.Context, contacts []Contact) error {
	const q = `
		INSERT INTO university_contacts (id, university_id, email, is_primary, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	for _, c := range contacts {
		if _, err := s.querier(ctx).ExecContext(ctx, q,
			c.ID, c.UniversityID, c.Email, c.IsPrimary, c.CreatedAt); err != nil {
			return fmt.Errorf("insert contact: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, universityID uuid.UUID) ([]Contact, error) {
	const q = `
		SELECT id, university_id, email, is_primary, created_at
		FROM university_contacts
		WHERE university_id = $1
		ORDER BY is_primary DESC, created_at`
	rows, err := s.querier(ctx).QueryContext(ctx, q, universityID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.UniversityID, &c.Email, &c.IsPrimary, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteContacts(ctx context.Context, universityID uuid.UUID) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`DELETE FROM university_contacts WHERE university_id = $1`, universityID)
	if err != nil {
		return fmt.Errorf("delete contacts: %w", err)
	}
	return nil
}
