package derivens

import (
	"github.com/agenthands/derivens/pkg/core"
)

var (
	ErrAlreadyClaimed = core.ErrAlreadyClaimed
	ErrInvalidParent  = core.ErrInvalidParent
	ErrUnsupported    = core.ErrUnsupported

	ErrNotFound     = core.ErrNotFound
	ErrInvalidInput = core.ErrInvalidInput
	ErrCorrupt      = core.ErrCorrupt
	ErrClosed       = core.ErrClosed
)
