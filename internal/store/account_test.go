package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidtube/identity/types"
)

func newMockRepo(t *testing.T) (*AccountRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAccountRepository(db), mock
}

func accountRow(a types.Account, refresh any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "full_name", "avatar", "cover_image",
		"password_hash", "refresh_token", "created_at", "updated_at",
	}).AddRow(a.ID, a.Username, a.Email, a.FullName, a.Avatar, a.CoverImage,
		a.PasswordHash, refresh, a.CreatedAt, a.UpdatedAt)
}

func sampleAccount() types.Account {
	now := time.Now().UTC()
	return types.Account{
		ID:           "0b6f8a52-5c1e-4c53-9c43-0d7d4f2f9a10",
		Username:     "alice",
		Email:        "a@x.com",
		FullName:     "Alice Example",
		Avatar:       "http://cdn/media/a.png",
		PasswordHash: "$2a$04$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

var (
	existsSQL = regexp.QuoteMeta("SELECT EXISTS ( SELECT 1 FROM accounts WHERE username = $1 OR email = $2 )")
	insertSQL = regexp.QuoteMeta("INSERT INTO accounts")
	selectSQL = regexp.QuoteMeta("FROM accounts")
	updateSQL = regexp.QuoteMeta("UPDATE accounts SET refresh_token = $1")
)

func TestCreate_NormalizesAndInserts(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(existsSQL).
		WithArgs("alice", "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(insertSQL).
		WithArgs(sqlmock.AnyArg(), "alice", "a@x.com", "Alice Example", "http://cdn/a.png", "",
			"hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.Create(context.Background(), types.Account{
		Username:     "  Alice ",
		Email:        " a@x.com ",
		FullName:     "Alice Example",
		Avatar:       "http://cdn/a.png",
		PasswordHash: "hash",
		RefreshToken: "ignored",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, "a@x.com", created.Email)
	assert.Empty(t, created.RefreshToken)
	assert.False(t, created.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ConflictFromExistenceCheck(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(existsSQL).
		WithArgs("alice", "b@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.Create(context.Background(), types.Account{Username: "alice", Email: "b@x.com"})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ConflictFromUniqueIndex(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(existsSQL).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(insertSQL).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := repo.Create(context.Background(), types.Account{Username: "alice", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_PropagatesOtherErrors(t *testing.T) {
	repo, mock := newMockRepo(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(existsSQL).WillReturnError(boom)

	_, err := repo.Create(context.Background(), types.Account{Username: "alice", Email: "a@x.com"})
	assert.ErrorIs(t, err, boom)
}

func TestFindByUsernameOrEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := sampleAccount()

	mock.ExpectQuery(selectSQL).
		WithArgs("alice", "").
		WillReturnRows(accountRow(want, "refresh-1"))

	got, err := repo.FindByUsernameOrEmail(context.Background(), "ALICE", "")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.PasswordHash, got.PasswordHash)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUsernameOrEmail_EmptyIdentifiers(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, err := repo.FindByUsernameOrEmail(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(selectSQL).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NullRefreshToken(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := sampleAccount()

	mock.ExpectQuery(selectSQL).
		WithArgs(want.ID).
		WillReturnRows(accountRow(want, nil))

	got, err := repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Empty(t, got.RefreshToken)
}

func TestSetRefreshToken_ClearWritesNull(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := sampleAccount()

	mock.ExpectQuery(updateSQL).
		WithArgs(sql.NullString{}, sqlmock.AnyArg(), want.ID).
		WillReturnRows(accountRow(want, nil))

	got, err := repo.SetRefreshToken(context.Background(), want.ID, "")
	require.NoError(t, err)
	assert.Empty(t, got.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRefreshToken_MissingAccount(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(updateSQL).
		WithArgs(sql.NullString{String: "tok", Valid: true}, sqlmock.AnyArg(), "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.SetRefreshToken(context.Background(), "missing", "tok")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRotateRefreshToken(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := sampleAccount()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $3 AND refresh_token = $4")).
		WithArgs(sql.NullString{String: "new", Valid: true}, sqlmock.AnyArg(), want.ID, "old").
		WillReturnRows(accountRow(want, "new"))

	got, err := repo.RotateRefreshToken(context.Background(), want.ID, "old", "new")
	require.NoError(t, err)
	assert.Equal(t, "new", got.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken_StaleCurrent(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $3 AND refresh_token = $4")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.RotateRefreshToken(context.Background(), "id", "stale", "new")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.RotateRefreshToken(context.Background(), "id", "", "new")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
