package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/stealthee/radar-cli/internal/store"
)

// initStore opens the configured persistence backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.Store.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "create store directory %s", dir)
			}
		}
		return store.NewSQLite(cfg.Store.DSN)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DSN, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q (want sqlite or postgres)", cfg.Store.Driver)
	}
}
