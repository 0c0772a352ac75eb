package types

// TokenPair bundles a short-lived access token and a long-lived refresh token.
// It is never persisted; only the refresh token is stored on the account.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
