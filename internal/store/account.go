package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vidtube/identity/types"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique index violations.
const uniqueViolation = "23505"

const accountColumns = `id, username, email, full_name, avatar, cover_image, password_hash, refresh_token, created_at, updated_at`

// AccountRepository handles persistence for accounts.
//
// Every method issues a single statement, so each call is atomic at the
// storage layer. RotateRefreshToken is a compare-and-set on the stored token.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account. It fails with ErrConflict when the username or
// email is already taken.
func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.Username = strings.ToLower(strings.TrimSpace(account.Username))
	account.Email = strings.TrimSpace(account.Email)

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.RefreshToken = ""

	// The existence check covers both fields in one query; the unique indexes
	// catch anything that slips in between this and the insert.
	const existsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM accounts WHERE username = $1 OR email = $2
		)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, existsQuery, account.Username, account.Email).Scan(&exists); err != nil {
		return types.Account{}, err
	}
	if exists {
		return types.Account{}, ErrConflict
	}

	const insertQuery = `
		INSERT INTO accounts (id, username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(
		ctx,
		insertQuery,
		account.ID,
		account.Username,
		account.Email,
		account.FullName,
		account.Avatar,
		account.CoverImage,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Account{}, ErrConflict
		}
		return types.Account{}, err
	}
	return account, nil
}

// FindByUsernameOrEmail returns the account matching either identifier.
// Empty identifiers never match.
func (r *AccountRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (types.Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.TrimSpace(email)
	if username == "" && email == "" {
		return types.Account{}, ErrNotFound
	}

	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username, email))
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// SetRefreshToken overwrites the stored refresh token. An empty token clears it.
func (r *AccountRepository) SetRefreshToken(ctx context.Context, id string, token string) (types.Account, error) {
	const query = `
		UPDATE accounts
		SET refresh_token = $1,
			updated_at = $2
		WHERE id = $3
		RETURNING ` + accountColumns
	return r.scanOne(r.db.QueryRowContext(ctx, query, nullString(token), time.Now().UTC(), id))
}

// RotateRefreshToken replaces current with next only if current is still the
// stored value. It returns ErrNotFound when the account is gone or the stored
// token has already moved on.
func (r *AccountRepository) RotateRefreshToken(ctx context.Context, id, current, next string) (types.Account, error) {
	if current == "" {
		return types.Account{}, ErrNotFound
	}
	const query = `
		UPDATE accounts
		SET refresh_token = $1,
			updated_at = $2
		WHERE id = $3 AND refresh_token = $4
		RETURNING ` + accountColumns
	return r.scanOne(r.db.QueryRowContext(ctx, query, nullString(next), time.Now().UTC(), id, current))
}

func (r *AccountRepository) scanOne(row *sql.Row) (types.Account, error) {
	var account types.Account
	var refreshToken sql.NullString
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.FullName,
		&account.Avatar,
		&account.CoverImage,
		&account.PasswordHash,
		&refreshToken,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	account.RefreshToken = refreshToken.String
	return account, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
