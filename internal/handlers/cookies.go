package handlers

import (
	"net/http"
	"strings"

	"github.com/vidtube/identity/config"
	"github.com/vidtube/identity/types"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

func readCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil || cookie == nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func setSessionCookies(w http.ResponseWriter, cfg config.CookieConfig, pair types.TokenPair) {
	http.SetCookie(w, sessionCookie(cfg, accessTokenCookie, pair.AccessToken))
	http.SetCookie(w, sessionCookie(cfg, refreshTokenCookie, pair.RefreshToken))
}

func clearSessionCookies(w http.ResponseWriter, cfg config.CookieConfig) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		cookie := sessionCookie(cfg, name, "")
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func sessionCookie(cfg config.CookieConfig, name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
