package adapter

import (
	"errors"
)

var (
	// ErrNotFound is returned when a requested message does not exist.
	ErrNotFound = errors.New("message not found")

	// ErrNoThumbnail is returned when a message has no previewable media.
	ErrNoThumbnail = errors.New("message has no thumbnail")

	// ErrPasswordNeeded is returned by SignIn when the account has a second
	// factor and no password was supplied.
	ErrPasswordNeeded = errors.New("two-factor password required")

	// ErrPasswordInvalid is returned by SignIn when the second factor is wrong.
	ErrPasswordInvalid = errors.New("two-factor password invalid")

	// ErrLimitExceeded is returned when a demo account is full.
	ErrLimitExceeded = errors.New("storage limit exceeded")
)
