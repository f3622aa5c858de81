package database

import (
	coreconfig "github.com/botfactory/chainbot/core/config"
)

// Config holds database connection settings. It is an alias of the struct
// declared in core/config, which avoids an import cycle between this
// package, core/logger, and core/config.
type Config = coreconfig.DatabaseConfig
