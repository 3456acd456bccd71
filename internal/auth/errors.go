package auth

import "errors"

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrMissingSecret indicates no signing secret is configured.
	ErrMissingSecret = errors.New("auth: secret is not configured")
	// ErrForbidden indicates the caller is authenticated but is not the
	// account owner.
	ErrForbidden = errors.New("auth: forbidden")
)
