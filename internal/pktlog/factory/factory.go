// Package factory builds a pktlog.Store from the database configuration.
package factory

import (
	"fmt"

	"github.com/dpistack/dpistack/internal/config"
	"github.com/dpistack/dpistack/internal/pktlog"
	"github.com/dpistack/dpistack/internal/pktlog/clickhouse"
	"github.com/dpistack/dpistack/internal/pktlog/postgres"
	"github.com/dpistack/dpistack/internal/pktlog/sqlite"
)

// New returns the packet store selected by cfg.Driver.
func New(cfg config.Database) (pktlog.Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return sqlite.New(cfg.DSN)
	case "postgres", "postgresql":
		return postgres.New(cfg.DSN)
	case "clickhouse":
		return clickhouse.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
