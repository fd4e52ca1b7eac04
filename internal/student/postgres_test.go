package student

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frisk/pkg/platform/sentinel"
)

func TestPostgresStoreCreateConflict(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "students_university_program_no_live"})

	store := NewPostgresStore(db)
	err = store.Create(context.Background(), Student{
		ID:           uuid.New(),
		UniversityID: uuid.New(),
		StudentNo:    "2024001234",
		Name:         "Kim Minsu",
		Program:      ProgramBachelor,
		Status:       StatusEnrolled,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetExcludesDeleted(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	// The row exists but is soft-deleted; the WHERE clause filters it out and
	// the store reports not found.
	mock.ExpectQuery(`(?s)SELECT .+ FROM students WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "university_id", "student_no", "name", "department", "program",
			"address", "phone", "email", "status", "consent_file_path",
			"created_at", "updated_at", "deleted_at",
		}))

	store := NewPostgresStore(db)
	_, err = store.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetByID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	uniID := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .+ FROM students WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "university_id", "student_no", "name", "department", "program",
			"address", "phone", "email", "status", "consent_file_path",
			"created_at", "updated_at", "deleted_at",
		}).AddRow(id, uniID, "2024001234", "Kim Minsu", "CS", "bachelor",
			"Seoul", "010-1111-2222", nil, "enrolled", nil, now, now, nil))

	store := NewPostgresStore(db)
	st, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "2024001234", st.StudentNo)
	assert.Equal(t, ProgramBachelor, st.Program)
	assert.Empty(t, st.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSoftDeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE students SET deleted_at = \$2`).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPostgresStore(db)
	err = store.SoftDelete(context.Background(), id, time.Now())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreListFilters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	uniID := uuid.New()
	mock.ExpectQuery(`(?s)SELECT .+ FROM students WHERE deleted_at IS NULL AND university_id = \$1 AND program = \$2 ORDER BY student_no`).
		WithArgs(uniID, ProgramMaster).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "university_id", "student_no", "name", "department", "program",
			"address", "phone", "email", "status", "consent_file_path",
			"created_at", "updated_at", "deleted_at",
		}))

	store := NewPostgresStore(db)
	out, err := store.List(context.Background(), Filter{UniversityID: &uniID, Program: ProgramMaster})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
