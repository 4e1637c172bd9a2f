// internal/store/open.go
package store

import (
	"context"
	"strings"

	"github.com/harvex/leadharvest/internal/config"
)

// Open selects a JobStore backend from configuration: mongodb:// DSNs get
// the Mongo store, sqlite3/mysql/postgres DSNs the SQL store, and an empty
// DSN the in-memory store.
func Open(ctx context.Context, cfg config.StoreConfig) (JobStore, error) {
	switch {
	case cfg.DSN == "":
		return NewMemoryStore(), nil
	case strings.HasPrefix(cfg.DSN, "mongodb://"), strings.HasPrefix(cfg.DSN, "mongodb+srv://"):
		return NewMongoStore(ctx, cfg.DSN, cfg.Database)
	default:
		return NewSQLStore(cfg.DSN)
	}
}
