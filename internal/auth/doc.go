// Package auth holds the credential primitives of the identity service:
// bcrypt password hashing and the two-key JWT token issuer.
//
// Nothing here performs I/O. Session state lives in the account store and is
// orchestrated by the services package.
package auth
