package derivens

import (
	"github.com/agenthands/derivens/pkg/core"
)

type Config = core.Config
type LedgerConfig = core.LedgerConfig
type RestoreConfig = core.RestoreConfig
