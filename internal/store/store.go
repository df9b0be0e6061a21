// Package store persists finished extraction runs so they can be listed and
// exported later. Backends: a local JSON file, PostgreSQL via gorm, and
// Cloud Firestore.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/regionscan/internal/config"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// ErrNotFound is returned when no run has the requested ID
var ErrNotFound = errors.New("run not found")

// Store persists runs
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context) ([]RunSummary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open creates the store selected by cfg
func Open(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (Store, error) {
	if log == nil {
		log = logger.Get()
	}
	log = log.WithFields("store", cfg.Driver)

	switch cfg.Driver {
	case "file":
		s, err := OpenFile(cfg.DSN)
		if err != nil {
			return nil, err
		}
		log.Debugw("Opened file store", "path", cfg.DSN)
		return s, nil
	case "postgres":
		s, err := OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		log.Debug("Opened postgres store")
		return s, nil
	case "firestore":
		project, collection, ok := strings.Cut(cfg.DSN, "/")
		if !ok || project == "" || collection == "" {
			return nil, fmt.Errorf("%w: firestore DSN must be project/collection, got %q", model.ErrConfig, cfg.DSN)
		}
		s, err := OpenFirestore(ctx, project, collection)
		if err != nil {
			return nil, err
		}
		log.Debugw("Opened firestore store", "project", project, "collection", collection)
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", model.ErrConfig, cfg.Driver)
	}
}
