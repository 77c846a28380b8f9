package session

import "errors"

// Sentinel errors for session handling.
var (
	ErrNotDrawing   = errors.New("session is not drawing")
	ErrNotFound     = errors.New("session not found")
	ErrRegistryFull = errors.New("session registry full")
	ErrNotScored    = errors.New("session has no score")
	ErrClaimed      = errors.New("score already claimed by another player")
)
