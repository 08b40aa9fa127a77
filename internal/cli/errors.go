package cli

import "errors"

var (
	ErrConfig = errors.New("invalid configuration")
)
