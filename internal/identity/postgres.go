package identity

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

const uniqueViolation = "23505"

// PostgresUserStore persists accounts in the users table.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresUserStore) querier(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

const userColumns = "id, email, password_hash, role, university_id, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.UniversityID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (s *PostgresUserStore) Create(ctx context.Context, u User) error {
	const q = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.querier(ctx).ExecContext(ctx, q,
		u.ID, u.Email, u.PasswordHash, u.Role, u.UniversityID, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.querier(ctx).QueryRowContext(ctx, q, id))
}

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(s.querier(ctx).QueryRowContext(ctx, q, email))
}

func (s *PostgresUserStore) List(ctx context.Context) ([]User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	rows, err := s.querier(ctx).QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresUserStore) Update(ctx context.Context, u User) error {
	const q = `
		UPDATE users
		SET email = $2, password_hash = $3, role = $4, university_id = $5, updated_at = $6
		WHERE id = $1`
	res, err := s.querier(ctx).ExecContext(ctx, q,
		u.ID, u.Email, u.PasswordHash, u.Role, u.UniversityID, u.UpdatedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.querier(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRowAffected(res)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
