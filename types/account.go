package types

import "time"

// Account represents a registered account holder.
// It contains identity, profile media, and session metadata.
type Account struct {
	// ID is the opaque unique identifier of the account.
	ID string `json:"id" db:"id"`

	// Username is the unique login name, stored lowercase.
	Username string `json:"username" db:"username"`

	// Email is the account's unique email address.
	Email string `json:"email" db:"email"`

	// FullName is the display name of the account holder.
	FullName string `json:"fullName" db:"full_name"`

	// Avatar is the public URL of the account's avatar image.
	Avatar string `json:"avatar" db:"avatar"`

	// CoverImage is the public URL of the cover image, empty when none was uploaded.
	CoverImage string `json:"coverImage" db:"cover_image"`

	// PasswordHash stores the hashed representation of the password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// RefreshToken is the single active refresh token; empty means no session.
	// This field is never exposed in API responses.
	RefreshToken string `json:"-" db:"refresh_token"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Sanitized returns a copy of the account without credential material.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	a.RefreshToken = ""
	return a
}
