package workspace

import "errors"

var (
	ErrWorkspace = errors.New("invalid workspace")
)
