package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"frisk/pkg/platform/tx"
)

// PostgresStore persists audit entries in the audit_logs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	const q = `
		INSERT INTO audit_logs (id, user_id, action_type, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.execer(ctx).ExecContext(ctx, q,
		e.ID, e.UserID, e.ActionType, details, e.IPAddress, e.CreatedAt); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != nil {
		conds = append(conds, "user_id = "+arg(*f.UserID))
	}
	if f.ActionType != "" {
		conds = append(conds, "action_type = "+arg(f.ActionType))
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at <= "+arg(f.To))
	}

	q := "SELECT id, user_id, action_type, details, ip_address, created_at FROM audit_logs"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ActionType, &details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
