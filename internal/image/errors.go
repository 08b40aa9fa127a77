package image

import "errors"

var (
	ErrBuild   = errors.New("container build failed")
	ErrContext = errors.New("invalid build context")
)
