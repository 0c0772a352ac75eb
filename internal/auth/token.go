package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vidtube/identity/config"
)

// KeyClass selects which signing key, and therefore which token class, a token belongs to.
type KeyClass int

const (
	AccessKey KeyClass = iota
	RefreshKey
)

func (k KeyClass) String() string {
	switch k {
	case AccessKey:
		return "access"
	case RefreshKey:
		return "refresh"
	default:
		return "unknown"
	}
}

// Claims is the JWT payload of both token classes.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 access and refresh tokens.
// Each class has its own key, so one key never validates the other class.
type TokenIssuer struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer validates cfg and constructs a TokenIssuer.
func NewTokenIssuer(cfg config.TokenConfig) (*TokenIssuer, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if access == "" || refresh == "" {
		return nil, errors.New("access and refresh token secrets are required")
	}
	if access == refresh {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenIssuer{
		accessSecret:  []byte(access),
		accessTTL:     cfg.AccessTTL,
		refreshSecret: []byte(refresh),
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

// IssueAccessToken returns a short-lived token for accountID.
func (i *TokenIssuer) IssueAccessToken(accountID string) (string, error) {
	return i.issue(accountID, AccessKey)
}

// IssueRefreshToken returns a long-lived token for accountID.
func (i *TokenIssuer) IssueRefreshToken(accountID string) (string, error) {
	return i.issue(accountID, RefreshKey)
}

// Verify checks the signature, class and expiry of tokenString and returns the
// embedded account id. Expired but otherwise valid tokens yield ErrTokenExpired;
// every other failure yields ErrTokenInvalid.
func (i *TokenIssuer) Verify(tokenString string, class KeyClass) (string, error) {
	secret, _, err := i.keyFor(class)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrTokenInvalid
	}

	claims, err := i.parse(tokenString, secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// Only report expiry for tokens we actually signed.
			if _, sigErr := i.parse(tokenString, secret, jwt.WithoutClaimsValidation()); sigErr == nil {
				return "", ErrTokenExpired
			}
		}
		return "", ErrTokenInvalid
	}
	if claims.TokenType != class.String() {
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

func (i *TokenIssuer) issue(accountID string, class KeyClass) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", errors.New("account id is required")
	}
	secret, ttl, err := i.keyFor(class)
	if err != nil {
		return "", err
	}

	now := i.now()
	claims := Claims{
		TokenType: class.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", class, err)
	}
	return signed, nil
}

func (i *TokenIssuer) parse(tokenString string, secret []byte, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (i *TokenIssuer) keyFor(class KeyClass) ([]byte, time.Duration, error) {
	switch class {
	case AccessKey:
		return i.accessSecret, i.accessTTL, nil
	case RefreshKey:
		return i.refreshSecret, i.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("unknown key class %d", class)
	}
}
