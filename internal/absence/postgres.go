package absence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"frisk/pkg/platform/sentinel"
	"frisk/pkg/platform/tx"
)

// PostgresStore persists absences and absence_files.
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

const absenceColumns = "id, student_id, absence_date, reason, note, created_by, created_at"

func (s *PostgresStore) Create(ctx context.Context, a Absence) error {
	const q = `
		INSERT INTO absences (` + absenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.querier(ctx).ExecContext(ctx, q,
		a.ID, a.StudentID, a.AbsenceDate, a.Reason, nullable(a.Note), a.CreatedBy, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert absence: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanAbsence(row interface{ Scan(...any) error }) (Absence, error) {
	var (
		a    Absence
		note sql.NullString
	)
	err := row.Scan(&a.ID, &a.StudentID, &a.AbsenceDate, &a.Reason, &note, &a.CreatedBy, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Absence{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Absence{}, fmt.Errorf("scan absence: %w", err)
	}
	a.Note = note.String
	return a, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (Absence, error) {
	const q = `SELECT ` + absenceColumns + ` FROM absences WHERE id = $1`
	return scanAbsence(s.querier(ctx).QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Absence, error) {
	if f.StudentIDs != nil && len(f.StudentIDs) == 0 {
		return nil, nil
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.StudentID != nil {
		conds = append(conds, "student_id = "+arg(*f.StudentID))
	}
	if len(f.StudentIDs) > 0 {
		placeholders := make([]string, 0, len(f.StudentIDs))
		for _, id := range f.StudentIDs {
			placeholders = append(placeholders, arg(id))
		}
		conds = append(conds, "student_id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.Reason != "" {
		conds = append(conds, "reason = "+arg(f.Reason))
	}
	if !f.From.IsZero() {
		conds = append(conds, "absence_date >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "absence_date <= "+arg(f.To))
	}

	q := `SELECT ` + absenceColumns + ` FROM absences`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY absence_date DESC, created_at DESC"

	rows, err := s.querier(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	defer rows.Close()

	var out []Absence
	for rows.Next() {
		a, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.querier(ctx).ExecContext(ctx, `DELETE FROM absences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete absence: %w", err)
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

const fileColumns = "id, absence_id, file_path, original_name, created_at"

func (s *PostgresStore) InsertFile(ctx context.Context, f File) error {
	const q = `INSERT INTO absence_files (` + fileColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.querier(ctx).ExecContext(ctx, q,
		f.ID, f.AbsenceID, f.FilePath, f.OriginalName, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert absence file: %w", err)
	}
	return nil
}

func scanFile(row interface{ Scan(...any) error }) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.AbsenceID, &f.FilePath, &f.OriginalName, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, sentinel.ErrNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("scan absence file: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) GetFile(ctx context.Context, id uuid.UUID) (File, error) {
	const q = `SELECT ` + fileColumns + ` FROM absence_files WHERE id = $1`
	return scanFile(s.querier(ctx).QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) ListFiles(ctx context.Context, absenceID uuid.UUID) ([]File, error) {
	const q = `SELECT ` + fileColumns + ` FROM absence_files WHERE absence_id = $1 ORDER BY created_at`
	rows, err := s.querier(ctx).QueryContext(ctx, q, absenceID)
	if err != nil {
		return nil, fmt.Errorf("list absence files: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteFile(ctx context.Context, id uuid.UUID) error {
	res, err := s.querier(ctx).ExecContext(ctx, `DELETE FROM absence_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete absence file: %w", err)
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

func (s *PostgresStore) DeleteFilesByAbsence(ctx context.Context, absenceID uuid.UUID) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`DELETE FROM absence_files WHERE absence_id = $1`, absenceID)
	if err != nil {
		return fmt.Errorf("delete absence files: %w", err)
	}
	return nil
}
