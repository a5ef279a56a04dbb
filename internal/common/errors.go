// Package common defines shared constants and sentinel errors used across
// client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrorInvalidArgument rejects caller input before any state is touched.
	ErrorInvalidArgument = errors.New("invalid argument")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Key material errors. All of them are fatal at startup.
	ErrKeyNotFound    = errors.New("key material not found")
	ErrKeyCorrupt     = errors.New("key material corrupt")
	ErrKeyLockTimeout = errors.New("key material lock timeout")
	ErrKeyPersist     = errors.New("key material persist failed")
	ErrKeyGenerate    = errors.New("key material generation failed")

	// Access token errors. Each rejects, but they are logged apart.
	ErrTokenExpired           = errors.New("token expired")
	ErrTokenBadSignature      = errors.New("token signature invalid")
	ErrTokenAlgorithmMismatch = errors.New("token algorithm mismatch")
	ErrTokenMalformed         = errors.New("token malformed")
	ErrTokenNotYetValid       = errors.New("token not yet valid")

	// Credential errors exposed by the credential service.
	ErrInvalidCredentials           = errors.New("invalid credentials")
	ErrInvalidOrExpiredRefreshToken = errors.New("invalid or expired refresh token")

	// ErrTokenConflict means a freshly generated refresh token value already
	// exists. It points at an entropy failure and must not be retried blindly.
	ErrTokenConflict = errors.New("refresh token value conflict")
)

// IsTokenError reports whether err belongs to the access token error family.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenBadSignature) ||
		errors.Is(err, ErrTokenAlgorithmMismatch) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenNotYetValid)
}

// TokenErrorKind returns a short label for a token error, used as a log field
// and a metric label. Unknown errors map to "unknown".
func TokenErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrTokenAlgorithmMismatch):
		return "algorithm_mismatch"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenNotYetValid):
		return "not_yet_valid"
	default:
		return "unknown"
	}
}
