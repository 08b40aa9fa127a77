package pipeline

import "errors"

var (
	ErrDefinition    = errors.New("invalid pipeline definition")
	ErrStageNotFound = errors.New("stage not found")
)
