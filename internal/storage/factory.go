package storage

import (
	"context"
	"fmt"

	"github.com/bher20/ebillmanager/pkg/logger"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver string
	DSN    string
	Logger *logger.Logger
}

// Open constructs a Storage based on the given configuration.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	ctx = log.WithField(ctx, "driver", drv)

	switch drv {
	case "memory":
		log.Info(ctx, "storage: using in-memory backend")
		return NewMemory(), nil

	case "sqlite", "postgres":
		log.Info(ctx, "storage: using gorm backend")
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}
