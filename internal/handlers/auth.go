package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vidtube/identity/config"
	"github.com/vidtube/identity/internal/services"
	"github.com/vidtube/identity/types"
)

const (
	formFieldUsername   = "username"
	formFieldEmail      = "email"
	formFieldFullName   = "fullName"
	formFieldPassword   = "password"
	formFieldAvatar     = "avatar"
	formFieldCoverImage = "coverImage"

	maxJSONBodyBytes = 1 << 20
)

var errFileTooLarge = errors.New("uploaded file too large")

// SessionService is the account and session API the handlers serve.
type SessionService interface {
	Register(ctx context.Context, in services.RegisterInput) (types.Account, error)
	Login(ctx context.Context, in services.LoginInput) (services.LoginResult, error)
	Logout(ctx context.Context, accountID string) error
	Refresh(ctx context.Context, refreshToken string) (types.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (types.Account, error)
}

// AuthHandler provides the account and session endpoints.
type AuthHandler struct {
	sessions SessionService
	cookies  config.CookieConfig
	uploads  config.UploadConfig
	logger   *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(sessions SessionService, cookies config.CookieConfig, uploads config.UploadConfig, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if uploads.TempDir == "" {
		uploads.TempDir = os.TempDir()
	}
	if uploads.MaxMemory <= 0 {
		uploads.MaxMemory = 8 << 20
	}
	if uploads.MaxFileBytes <= 0 {
		uploads.MaxFileBytes = 10 << 20
	}
	return &AuthHandler{
		sessions: sessions,
		cookies:  cookies,
		uploads:  uploads,
		logger:   logger.With("component", "http"),
	}
}

// AuthRouter registers account routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)
	r.With(handler.RequireAuth).Post("/logout", handler.Logout)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth resolves the access token from the accessToken cookie or the
// bearer header and injects the account into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := readCookie(r, accessTokenCookie)
		if token == "" {
			token = bearerToken(r)
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized request")
			return
		}

		account, err := h.sessions.Authenticate(r.Context(), token)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), account)))
	})
}

// Register creates an account from a multipart form carrying the avatar and an
// optional cover image.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.uploads.MaxFileBytes+maxJSONBodyBytes)
	if err := r.ParseMultipartForm(h.uploads.MaxMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	avatarPath, err := h.stageUpload(r.MultipartForm, formFieldAvatar)
	if err != nil {
		h.writeUploadError(w, r, formFieldAvatar, err)
		return
	}
	defer removeStaged(avatarPath)

	coverPath, err := h.stageUpload(r.MultipartForm, formFieldCoverImage)
	if err != nil {
		h.writeUploadError(w, r, formFieldCoverImage, err)
		return
	}
	defer removeStaged(coverPath)

	account, err := h.sessions.Register(r.Context(), services.RegisterInput{
		Username:       r.FormValue(formFieldUsername),
		Email:          r.FormValue(formFieldEmail),
		FullName:       r.FormValue(formFieldFullName),
		Password:       r.FormValue(formFieldPassword),
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, account, "User registered successfully")
}

// Login verifies credentials, sets the session cookies and returns the tokens.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.sessions.Login(r.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	setSessionCookies(w, h.cookies, result.Tokens)
	writeSuccess(w, http.StatusOK, LoginResponse{
		User:         result.Account,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// Logout ends the current session and clears the cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := h.sessions.Logout(r.Context(), account.ID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	clearSessionCookies(w, h.cookies)
	writeSuccess(w, http.StatusOK, struct{}{}, "User logged out")
}

// Refresh rotates the refresh token taken from the cookie or the JSON body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := readCookie(r, refreshTokenCookie)
	if token == "" {
		var req RefreshRequest
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	setSessionCookies(w, h.cookies, pair)
	writeSuccess(w, http.StatusOK, pair, "Access token refreshed")
}

// Me returns the current authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	writeSuccess(w, http.StatusOK, account, "Current user fetched successfully")
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LoginResponse struct {
	User         types.Account `json:"user"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
}

// stageUpload copies the named form file into the upload directory and
// returns its path, or "" when the field is absent.
func (h *AuthHandler) stageUpload(form *multipart.Form, field string) (string, error) {
	if form == nil || len(form.File[field]) == 0 {
		return "", nil
	}
	header := form.File[field][0]

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", field, err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.uploads.TempDir, "upload-*"+uploadExt(header.Filename))
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", field, err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, h.uploads.MaxFileBytes+1))
	closeErr := dst.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("stage %s: %w", field, err)
	case closeErr != nil:
		err = fmt.Errorf("stage %s: %w", field, closeErr)
	case n > h.uploads.MaxFileBytes:
		err = errFileTooLarge
	}
	if err != nil {
		removeStaged(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (h *AuthHandler) writeUploadError(w http.ResponseWriter, r *http.Request, field string, err error) {
	if errors.Is(err, errFileTooLarge) {
		writeError(w, http.StatusBadRequest, field+" file too large")
		return
	}
	h.logger.ErrorContext(r.Context(), "failed to stage upload", "field", field, "error", err)
	writeError(w, http.StatusInternalServerError, "something went wrong")
}

// removeStaged deletes a staged file. The media uploader normally removes it
// first, so a missing file is not an error.
func removeStaged(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

func uploadExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return ext
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
