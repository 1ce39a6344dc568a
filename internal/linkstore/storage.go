package linkstore

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/database"
	"github.com/tgdrive/paperlink/pkg/models"
	"go.uber.org/zap"
)

// Storage persists share links. SetMaxDownloads, Revoke, IncrementDownloads
// and ReserveDownload are atomic single-row read-modify-writes in every backend.
type Storage interface {
	// Insert stores a new link, database.ErrKeyConflict when the id is taken.
	Insert(ctx context.Context, link *models.ShareLink) error

	// Get returns database.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*models.ShareLink, error)

	// ListByOwner returns up to limit non-revoked links, newest first.
	ListByOwner(ctx context.Context, owner string, limit int) ([]models.ShareLink, error)

	// SetMaxDownloads updates the limit when owner matches. nil is unlimited.
	SetMaxDownloads(ctx context.Context, id, owner string, max *int64) (bool, error)

	// Revoke latches is_revoked when owner matches. Reports true for an
	// already revoked link.
	Revoke(ctx context.Context, id, owner string) (bool, error)

	// IncrementDownloads bumps the counter without checking servability.
	IncrementDownloads(ctx context.Context, id string) (int64, error)

	// ReserveDownload increments only while the link is servable at now.
	// On refusal it returns the current count and false.
	ReserveDownload(ctx context.Context, id string, now time.Time) (int64, bool, error)

	// Type returns the storage backend type
	Type() string

	// Close closes the storage backend
	Close() error
}

// New creates the backend selected by cfg.Driver.
func New(ctx context.Context, cfg *config.StoreConfig, lg *zap.SugaredLogger) (Storage, error) {
	switch cfg.Driver {
	case "bolt":
		return NewBoltStorage(cfg.BoltPath)
	case "postgres":
		pool, err := database.NewDatabase(ctx, cfg, lg)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateDB(ctx, pool, lg); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgresStorage(pool), nil
	case "memory", "":
		return NewMemoryStorage(), nil
	default:
		return nil, errors.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
