package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newCalendarRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCalendarRepositoryFindActiveYear(t *testing.T) {
	db, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
		AddRow("y-1", "2025", time.Now(), time.Now(), true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, start_date, end_date, is_active, created_at, updated_at FROM academic_years WHERE is_active = TRUE LIMIT 1")).
		WillReturnRows(rows)

	year, err := repo.FindActiveYear(context.Background())
	require.NoError(t, err)
	require.Equal(t, "y-1", year.ID)
	require.True(t, year.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryFindActiveYearNone(t *testing.T) {
	db, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectQuery("SELECT id, name, start_date, end_date").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveYear(context.Background())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositorySetActiveYear(t *testing.T) {
	db, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = TRUE, updated_at = $2 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetActiveYear(context.Background(), "y-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositorySetActiveYearRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE academic_years SET is_active = FALSE").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	require.Error(t, repo.SetActiveYear(context.Background(), "y-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositorySetActiveTerm(t *testing.T) {
	db, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_active = FALSE, updated_at = $1 WHERE academic_year_id = $2 AND is_active = TRUE AND id <> $3")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_active = TRUE, updated_at = $2 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetActiveTerm(context.Background(), "t-2", "y-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryFindActiveTermScopedToYear(t *testing.T) {
	db, mock, cleanup := newCalendarRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	rows := sqlmock.NewRows([]string{"id", "academic_year_id", "name", "ordinal", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
		AddRow("t-1", "y-1", "Term 1", 1, time.Now(), time.Now(), true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, academic_year_id, name, ordinal").
		WithArgs("y-1").
		WillReturnRows(rows)

	term, err := repo.FindActiveTerm(context.Background(), "y-1")
	require.NoError(t, err)
	require.Equal(t, 1, term.Ordinal)
	require.NoError(t, mock.ExpectationsWereMet())
}
