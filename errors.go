package otherus

import "errors"

// Failure taxonomy for the auth core. Handlers map these to HTTP statuses
// at the boundary; nothing below the boundary knows about status codes.
var (
	// ErrDuplicateEmail is returned when registering an email that is
	// already bound to an account.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password. The two cases must stay indistinguishable to callers.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrWeakPassword is returned when a registration password fails the
	// minimum-length policy.
	ErrWeakPassword = errors.New("password must be at least 8 characters")

	// ErrInvalidState rejects an OAuth callback whose state token is
	// unknown, expired or already consumed.
	ErrInvalidState = errors.New("invalid oauth state")

	// ErrProvider is returned when the upstream OAuth provider fails:
	// network error, denied consent or a malformed response.
	ErrProvider = errors.New("oauth provider error")

	// ErrUnauthorized is returned for a missing, invalid or expired
	// bearer token, or a token whose user no longer exists.
	ErrUnauthorized = errors.New("invalid or expired token")

	// ErrNotFound is returned on any resource lookup miss.
	ErrNotFound = errors.New("not found")

	// ErrInvalidEmail rejects a syntactically bad registration email.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrShortQuery rejects search queries under two characters.
	ErrShortQuery = errors.New("query must be at least 2 characters")
)
