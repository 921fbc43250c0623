package ierr

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrInternalServer = errors.New("internal server error")

	ErrDuplicateNickname = errors.New("nickname already in use")
	ErrQuotaExceeded     = errors.New("key daily quota exceeded")
	ErrNoAvailableKeys   = errors.New("no api keys with remaining quota")
	ErrStoreUnavailable  = errors.New("store unavailable")

	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)
