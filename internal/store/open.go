package store

import (
	"context"
	"fmt"

	"github.com/albapepper/orderpulse/internal/config"
	"github.com/albapepper/orderpulse/internal/db"
)

// Open returns the Gateway selected by cfg.StorageDriver. For postgres the
// underlying pool is returned too (nil otherwise) so callers can start the
// LISTEN/NOTIFY consumer.
func Open(ctx context.Context, cfg *config.Config) (Gateway, *db.Pool, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgres(pool), pool, nil
	case config.DriverSQLite:
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.DriverMemory:
		return NewMemory(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
