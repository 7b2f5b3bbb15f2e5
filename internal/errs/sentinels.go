// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service/transport layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates user input rejected before any I/O.
	ErrValidation = errors.New("validation")

	// ErrRemoteUnavailable indicates the remote document store is not configured or unreachable.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrNotSignedIn indicates an action requiring a current session user.
	ErrNotSignedIn = errors.New("not signed in")
)
