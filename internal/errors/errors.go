package errors

import (
	"errors"
)

// Moderation outcomes reported to callers instead of being logged as failures.
var (
	ErrNotAuthorized = errors.New("requester is not a chat administrator")
	ErrNotBanned     = errors.New("user is not banned")
	ErrNotRestricted = errors.New("user is not restricted")
	ErrInvalidTarget = errors.New("no target user")
	ErrConfig        = errors.New("invalid configuration")
)
