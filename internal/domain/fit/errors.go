package fit

import "errors"

// Sentinel kinds for fitting errors.
var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidPoint       = errors.New("invalid point")
)
