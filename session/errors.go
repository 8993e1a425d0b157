package session

import "errors"

var (
	// ErrInvalidPolicy is returned for a policy with non-positive limits.
	ErrInvalidPolicy = errors.New("invalid session policy")
)
