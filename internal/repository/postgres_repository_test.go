package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"qms-data/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresRepository[domain.NCRRecord]) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresRepository[domain.NCRRecord](db, CollectionNCRs)
}

func ncrPayload(t *testing.T, id string, status domain.NCRStatus) []byte {
	b, err := json.Marshal(domain.NCRRecord{
		Meta:             domain.Meta{ID: id, CreatedAt: time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)},
		NCRNumber:        "NCR-2024-0001",
		Description:      "print registration out",
		QuantityAffected: 1200,
		Status:           status,
	})
	require.NoError(t, err)
	return b
}

func TestPostgresRepository_Get_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT payload FROM qms_records WHERE collection = \$1 AND id = \$2`).
		WithArgs(CollectionNCRs, "n1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(ncrPayload(t, "n1", domain.NCROpen)))

	rec, err := repo.Get(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "NCR-2024-0001", rec.NCRNumber)
	assert.Equal(t, 1200, rec.QuantityAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Get_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT payload FROM qms_records`).
		WithArgs(CollectionNCRs, "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_List_FiltersAndPaging(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	endExclusive := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM qms_records WHERE collection = \$1 AND status = \$2 AND search ILIKE \$3 ESCAPE '\\' AND record_date >= \$4 AND record_date < \$5`).
		WithArgs(CollectionNCRs, "OPEN", "%registration%", start, endExclusive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT payload FROM qms_records WHERE .* ORDER BY record_date DESC, id ASC LIMIT \$6 OFFSET \$7`).
		WithArgs(CollectionNCRs, "OPEN", "%registration%", start, endExclusive, 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(ncrPayload(t, "n3", domain.NCROpen)))

	recs, total, err := repo.List(context.Background(), Filter{
		Status: "OPEN",
		Search: "registration",
		Range:  domain.DateRange{Start: "2024-04-01", End: "2024-04-30"},
	}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, recs, 1)
	assert.Equal(t, "n3", recs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rec := domain.NCRRecord{Meta: domain.Meta{ID: "n1"}, Status: domain.NCROpen, Description: "blister"}

	mock.ExpectExec(`INSERT INTO qms_records .* ON CONFLICT \(collection, id\) DO NOTHING`).
		WithArgs(CollectionNCRs, "n1", sqlmock.AnyArg(), sqlmock.AnyArg(), "OPEN", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), rec))

	mock.ExpectExec(`INSERT INTO qms_records`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Create(context.Background(), rec)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateDelete_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE qms_records`).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), domain.NCRRecord{Meta: domain.Meta{ID: "x"}})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	mock.ExpectExec(`DELETE FROM qms_records WHERE collection = \$1 AND id = \$2`).
		WithArgs(CollectionNCRs, "x").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Delete(context.Background(), "x")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReplaceAll_Transaction(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM qms_records WHERE collection = \$1`).
		WithArgs(CollectionNCRs).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`INSERT INTO qms_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO qms_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceAll(context.Background(), []domain.NCRRecord{
		{Meta: domain.Meta{ID: "a"}, Status: domain.NCROpen},
		{Meta: domain.Meta{ID: "b"}, Status: domain.NCRClosed},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReplaceAll_RollsBackOnError(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM qms_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO qms_records`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.ReplaceAll(context.Background(), []domain.NCRRecord{{Meta: domain.Meta{ID: "a"}}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_List_SearchIsLiteral(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM qms_records WHERE collection = \$1 AND search ILIKE \$2 ESCAPE`).
		WithArgs(CollectionNCRs, `%10\%\_a\\b%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT payload FROM qms_records`).
		WithArgs(CollectionNCRs, `%10\%\_a\\b%`, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	recs, total, err := repo.List(context.Background(), Filter{Search: `10%_a\b`}, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateAll_Transaction(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE qms_records`).WithArgs(CollectionNCRs, "a", sqlmock.AnyArg(), sqlmock.AnyArg(), "OPEN", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE qms_records`).WithArgs(CollectionNCRs, "b", sqlmock.AnyArg(), sqlmock.AnyArg(), "CLOSED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateAll(context.Background(), []domain.NCRRecord{
		{Meta: domain.Meta{ID: "a"}, Status: domain.NCROpen},
		{Meta: domain.Meta{ID: "b"}, Status: domain.NCRClosed},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateAll_UnknownIDRollsBack(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE qms_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE qms_records`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateAll(context.Background(), []domain.NCRRecord{
		{Meta: domain.Meta{ID: "a"}},
		{Meta: domain.Meta{ID: "gone"}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
