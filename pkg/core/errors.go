package core

import (
	"errors"
)

var (
	ErrAlreadyClaimed = errors.New("derivens: already claimed")
	ErrInvalidParent  = errors.New("derivens: invalid parent")
	ErrUnsupported    = errors.New("derivens: unsupported")

	ErrNotFound     = errors.New("derivens: not found")
	ErrInvalidInput = errors.New("derivens: invalid input")
	ErrCorrupt      = errors.New("derivens: corrupt data")
	ErrClosed       = errors.New("derivens: namespace closed")
)
