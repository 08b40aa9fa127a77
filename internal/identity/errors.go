package identity

import "errors"

var (
	ErrRecipe = errors.New("invalid build recipe")
)
