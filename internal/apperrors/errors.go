package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserInactive      = errors.New("user account is inactive")

	// Malformed, expired or forged activation/reset tokens
	// All collapsed into one error so callers can't tell which check failed
	ErrInvalidToken = errors.New("token is invalid or has expired")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrMailNotFound = errors.New("mail not found")
)
