package evidence

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenExists is returned when a token is registered twice
	ErrTokenExists = errors.New("evidence token already registered")
	// ErrInvalidTTL is returned for a non-positive time to live
	ErrInvalidTTL = errors.New("evidence ttl must be positive")
	// ErrEmptyToken is returned when registering under an empty token
	ErrEmptyToken = errors.New("evidence token is empty")
)

func errPanic(r interface{}) error {
	return fmt.Errorf("signer panicked: %v", r)
}
