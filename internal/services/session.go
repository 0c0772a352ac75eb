package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/vidtube/identity/internal/auth"
	"github.com/vidtube/identity/internal/mq"
	"github.com/vidtube/identity/internal/storage"
	"github.com/vidtube/identity/internal/store"
	"github.com/vidtube/identity/types"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account types.Account) (types.Account, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (types.Account, error)
	GetByID(ctx context.Context, id string) (types.Account, error)
	SetRefreshToken(ctx context.Context, id string, token string) (types.Account, error)
	RotateRefreshToken(ctx context.Context, id, current, next string) (types.Account, error)
}

// MediaUploader stores a locally staged file and removes the local copy.
type MediaUploader interface {
	Upload(ctx context.Context, localPath string) (storage.Asset, error)
	Remove(ctx context.Context, asset storage.Asset) error
}

// EventPublisher emits account lifecycle events.
type EventPublisher interface {
	PublishAccountEvent(ctx context.Context, event mq.AccountEvent) error
}

// RegisterInput is the registration payload. File paths point at locally
// staged uploads.
type RegisterInput struct {
	Username       string
	Email          string
	FullName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginInput identifies the account by username or email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult is the sanitized account and its freshly issued tokens.
type LoginResult struct {
	Account types.Account
	Tokens  types.TokenPair
}

// SessionManager implements registration, login, logout and refresh-token
// rotation. An account is Anonymous while it has no stored refresh token and
// Active while it has one; login and rotation overwrite the token, logout
// clears it.
type SessionManager struct {
	accounts AccountRepository
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenIssuer
	media    MediaUploader
	events   EventPublisher
	logger   *slog.Logger
}

// NewSessionManager constructs a SessionManager. events may be nil.
func NewSessionManager(
	accounts AccountRepository,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenIssuer,
	media MediaUploader,
	events EventPublisher,
	logger *slog.Logger,
) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		media:    media,
		events:   events,
		logger:   logger.With("component", "session"),
	}
}

// Register creates an account. The avatar upload is mandatory; a failed cover
// image upload leaves the account without a cover image.
func (m *SessionManager) Register(ctx context.Context, in RegisterInput) (types.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	if missing := missingFields(
		field{"username", in.Username},
		field{"email", in.Email},
		field{"fullName", in.FullName},
		field{"password", strings.TrimSpace(in.Password)},
	); len(missing) > 0 {
		return types.Account{}, validationError("all fields are required: missing "+strings.Join(missing, ", "), nil)
	}

	if _, err := m.accounts.FindByUsernameOrEmail(ctx, in.Username, in.Email); err == nil {
		return types.Account{}, conflictError("username or email already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Account{}, internalError("failed to check account", err)
	}

	if strings.TrimSpace(in.AvatarPath) == "" {
		return types.Account{}, validationError("avatar file is required", nil)
	}

	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyPassword) || errors.Is(err, auth.ErrPasswordTooLong) {
			return types.Account{}, validationError("invalid password", err)
		}
		return types.Account{}, internalError("failed to hash password", err)
	}

	avatar, err := m.media.Upload(ctx, in.AvatarPath)
	if err != nil || avatar.URL == "" {
		return types.Account{}, validationError("avatar upload failed", err)
	}

	var cover storage.Asset
	if strings.TrimSpace(in.CoverImagePath) != "" {
		cover, err = m.media.Upload(ctx, in.CoverImagePath)
		if err != nil {
			m.logger.WarnContext(ctx, "cover image upload failed", "error", err)
			cover = storage.Asset{}
		}
	}

	created, err := m.accounts.Create(ctx, types.Account{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Avatar:       avatar.URL,
		CoverImage:   cover.URL,
		PasswordHash: hash,
	})
	if err != nil {
		m.discard(ctx, avatar, cover)
		if errors.Is(err, store.ErrConflict) {
			return types.Account{}, conflictError("username or email already exists")
		}
		return types.Account{}, internalError("something went wrong while registering the account", err)
	}

	m.publish(ctx, mq.EventAccountRegistered, created)
	return created.Sanitized(), nil
}

// Login verifies credentials and starts a new session, replacing any
// previously active one.
func (m *SessionManager) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" && in.Email == "" {
		return LoginResult{}, validationError("username or email is required", nil)
	}
	if in.Password == "" {
		return LoginResult{}, validationError("password is required", nil)
	}

	account, err := m.accounts.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.hasher.VerifyDummy(in.Password)
			return LoginResult{}, authenticationFailed()
		}
		return LoginResult{}, internalError("failed to load account", err)
	}
	if !m.hasher.Verify(in.Password, account.PasswordHash) {
		return LoginResult{}, authenticationFailed()
	}

	pair, err := m.issuePair(account.ID)
	if err != nil {
		return LoginResult{}, err
	}
	updated, err := m.accounts.SetRefreshToken(ctx, account.ID, pair.RefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, authenticationFailed()
		}
		return LoginResult{}, internalError("failed to store session", err)
	}

	m.publish(ctx, mq.EventSessionStarted, updated)
	return LoginResult{Account: updated.Sanitized(), Tokens: pair}, nil
}

// Logout ends the account's session. The caller must already have resolved
// accountID from a verified access token.
func (m *SessionManager) Logout(ctx context.Context, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return unauthorizedError(msgUnauthorized, nil)
	}
	account, err := m.accounts.SetRefreshToken(ctx, accountID, "")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return unauthorizedError(msgUnauthorized, err)
		}
		return internalError("failed to end session", err)
	}
	m.publish(ctx, mq.EventSessionEnded, account)
	return nil
}

// Refresh rotates a refresh token into a new token pair. A token that has
// already been rotated away is rejected even if it has not expired. Two
// concurrent refreshes with the same token cannot both succeed. Every failure
// is reported as KindUnauthorized.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (types.TokenPair, error) {
	pair, err := m.rotate(ctx, strings.TrimSpace(refreshToken))
	if err != nil {
		return types.TokenPair{}, asUnauthorized(err)
	}
	return pair, nil
}

func (m *SessionManager) rotate(ctx context.Context, incoming string) (types.TokenPair, error) {
	if incoming == "" {
		return types.TokenPair{}, unauthorizedError(msgUnauthorized, nil)
	}

	accountID, err := m.tokens.Verify(incoming, auth.RefreshKey)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return types.TokenPair{}, unauthorizedError(msgRefreshExpired, err)
		}
		return types.TokenPair{}, unauthorizedError(msgInvalidRefresh, err)
	}

	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, unauthorizedError(msgInvalidRefresh, err)
		}
		return types.TokenPair{}, err
	}

	if subtle.ConstantTimeCompare([]byte(incoming), []byte(account.RefreshToken)) != 1 {
		m.logger.WarnContext(ctx, "stale refresh token presented", "account_id", account.ID)
		return types.TokenPair{}, unauthorizedError(msgRefreshUsed, nil)
	}

	pair, err := m.issuePair(account.ID)
	if err != nil {
		return types.TokenPair{}, err
	}

	updated, err := m.accounts.RotateRefreshToken(ctx, account.ID, incoming, pair.RefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, unauthorizedError(msgRefreshUsed, err)
		}
		return types.TokenPair{}, err
	}

	m.publish(ctx, mq.EventSessionRotated, updated)
	return pair, nil
}

// Authenticate resolves an access token to its sanitized account.
func (m *SessionManager) Authenticate(ctx context.Context, accessToken string) (types.Account, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return types.Account{}, unauthorizedError(msgUnauthorized, nil)
	}

	accountID, err := m.tokens.Verify(accessToken, auth.AccessKey)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return types.Account{}, unauthorizedError(msgAccessExpired, err)
		}
		return types.Account{}, unauthorizedError(msgInvalidAccess, err)
	}

	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, unauthorizedError(msgInvalidAccess, err)
		}
		return types.Account{}, internalError("failed to load account", err)
	}
	return account.Sanitized(), nil
}

func (m *SessionManager) issuePair(accountID string) (types.TokenPair, error) {
	access, err := m.tokens.IssueAccessToken(accountID)
	if err != nil {
		return types.TokenPair{}, internalError("failed to generate access token", err)
	}
	refresh, err := m.tokens.IssueRefreshToken(accountID)
	if err != nil {
		return types.TokenPair{}, internalError("failed to generate refresh token", err)
	}
	return types.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// discard removes assets uploaded for an account that was never created.
func (m *SessionManager) discard(ctx context.Context, assets ...storage.Asset) {
	for _, asset := range assets {
		if asset.Key == "" {
			continue
		}
		if err := m.media.Remove(ctx, asset); err != nil {
			m.logger.WarnContext(ctx, "failed to remove orphaned asset", "key", asset.Key, "error", err)
		}
	}
}

// publish is best effort: a broker outage never fails an account operation.
func (m *SessionManager) publish(ctx context.Context, eventType string, account types.Account) {
	if m.events == nil {
		return
	}
	err := m.events.PublishAccountEvent(ctx, mq.AccountEvent{
		Type:      eventType,
		AccountID: account.ID,
		Username:  account.Username,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to publish account event", "type", eventType, "error", err)
	}
}

type field struct {
	name  string
	value string
}

func missingFields(fields ...field) []string {
	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
