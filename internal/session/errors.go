package session

import "errors"

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSession       = errors.New("session error")
	ErrTeardown      = errors.New("container teardown failed")
)
