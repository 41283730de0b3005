package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUserExists indicates a signup against an already registered email.
	ErrUserExists = errors.New("user already exists")
	// ErrUnauthenticated indicates a session-gated accessor ran without a session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps internal errors to text safe to show end users.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrUserExists):
		return "An account with that email already exists"
	case errors.Is(err, ErrUnauthenticated):
		return "Please log in to continue"
	default:
		return "Something went wrong, please try again"
	}
}
