package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"frisk/pkg/platform/sentinel"
	"frisk/pkg/platform/tx"
)

// PostgresStore persists students in the students and contact_change_logs
// tables. Uniqueness of (university_id, program, student_no) among live rows
// is backed by a partial unique index (WHERE deleted_at IS NULL); a 23505 is
// translated to ErrConflict.
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

const studentColumns = `id, university_id, student_no, name, department, program,
	address, phone, email, status, consent_file_path, created_at, updated_at, deleted_at`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var (
		st      Student
		email   sql.NullString
		consent sql.NullString
	)
	err := row.Scan(&st.ID, &st.UniversityID, &st.StudentNo, &st.Name, &st.Department,
		&st.Program, &st.Address, &st.Phone, &email, &st.Status, &consent,
		&st.CreatedAt, &st.UpdatedAt, &st.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Student{}, fmt.Errorf("scan student: %w", err)
	}
	st.Email = email.String
	st.ConsentFilePath = consent.String
	return st, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *PostgresStore) Create(ctx context.Context, st Student) error {
	const q = `
		INSERT INTO students (id, university_id, student_no, name, department, program,
			address, phone, email, status, consent_file_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.querier(ctx).ExecContext(ctx, q,
		st.ID, st.UniversityID, st.StudentNo, st.Name, st.Department, st.Program,
		st.Address, st.Phone, nullable(st.Email), st.Status, nullable(st.ConsentFilePath),
		st.CreatedAt, st.UpdatedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (Student, error) {
	const q = `SELECT ` + studentColumns + ` FROM students WHERE id = $1 AND deleted_at IS NULL`
	return scanStudent(s.querier(ctx).QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Student, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UniversityID != nil {
		conds = append(conds, "university_id = "+arg(*f.UniversityID))
	}
	if f.Program != "" {
		conds = append(conds, "program = "+arg(f.Program))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(f.Status))
	}

	q := `SELECT ` + studentColumns + ` FROM students WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY student_no`

	rows, err := s.querier(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, st Student) error {
	const q = `
		UPDATE students
		SET student_no = $2, name = $3, department = $4, program = $5, address = $6,
			phone = $7, email = $8, status = $9, consent_file_path = $10, updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL`
	res, err := s.querier(ctx).ExecContext(ctx, q,
		st.ID, st.StudentNo, st.Name, st.Department, st.Program, st.Address,
		st.Phone, nullable(st.Email), st.Status, nullable(st.ConsentFilePath), st.UpdatedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE students SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := s.querier(ctx).ExecContext(ctx, q, id, at)
	if err != nil {
		return fmt.Errorf("soft delete student: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) CountByUniversity(ctx context.Context, universityID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM students WHERE university_id = $1 AND deleted_at IS NULL`
	var n int
	if err := s.querier(ctx).QueryRowContext(ctx, q, universityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) AppendChangeLog(ctx context.Context, log ContactChangeLog) error {
	const q = `
		INSERT INTO contact_change_logs (id, student_id, field_name, old_value,
			new_value, changed_by, check_in_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.querier(ctx).ExecContext(ctx, q,
		log.ID, log.StudentID, log.FieldName, log.OldValue, log.NewValue,
		log.ChangedBy, log.CheckInDate, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contact change log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChangeLogs(ctx context.Context, studentID uuid.UUID) ([]ContactChangeLog, error) {
	const q = `
		SELECT id, student_id, field_name, old_value, new_value, changed_by, check_in_date, created_at
		FROM contact_change_logs
		WHERE student_id = $1
		ORDER BY created_at`
	rows, err := s.querier(ctx).QueryContext(ctx, q, studentID)
	if err != nil {
		return nil, fmt.Errorf("list contact change logs: %w", err)
	}
	defer rows.Close()

	var out []ContactChangeLog
	for rows.Next() {
		var l ContactChangeLog
		if err := rows.Scan(&l.ID, &l.StudentID, &l.FieldName, &l.OldValue,
			&l.NewValue, &l.ChangedBy, &l.CheckInDate, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact change log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
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
