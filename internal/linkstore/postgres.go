package linkstore

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tgdrive/paperlink/internal/database"
	"github.com/tgdrive/paperlink/pkg/models"
)

var _ Storage = (*PostgresStorage)(nil)

const linkColumns = `id, chat_ref, message_ref, file_ref, file_unique_ref, file_name, mime_type,
	file_size, owner_id, max_downloads, download_count, expires_at, is_revoked, created_at`

// PostgresStorage keeps links in the share_links table. Mutations are
// single conditional UPDATE statements.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) Insert(ctx context.Context, link *models.ShareLink) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO share_links (`+linkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		link.ID, link.ChatRef, link.MessageRef, link.FileRef, link.FileUniqueRef, link.FileName,
		link.MimeType, link.FileSize, link.OwnerID, link.MaxDownloads, link.DownloadCount,
		link.ExpiresAt, link.IsRevoked, link.CreatedAt)
	if err != nil {
		if database.IsKeyConflictErr(err) {
			return errors.Wrap(database.ErrKeyConflict, link.ID)
		}
		return errors.Wrap(err, "insert link")
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, id string) (*models.ShareLink, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+linkColumns+` FROM share_links WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "query link")
	}
	link, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.ShareLink])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan link")
	}
	normalizeTimes(link)
	return link, nil
}

func (s *PostgresStorage) ListByOwner(ctx context.Context, owner string, limit int) ([]models.ShareLink, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+linkColumns+` FROM share_links
		WHERE owner_id = $1 AND NOT is_revoked
		ORDER BY created_at DESC
		LIMIT $2`, owner, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query links")
	}
	links, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.ShareLink])
	if err != nil {
		return nil, errors.Wrap(err, "scan links")
	}
	for i := range links {
		normalizeTimes(&links[i])
	}
	return links, nil
}

func (s *PostgresStorage) SetMaxDownloads(ctx context.Context, id, owner string, max *int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE share_links SET max_downloads = $3
		WHERE id = $1 AND owner_id = $2`, id, owner, max)
	if err != nil {
		return false, errors.Wrap(err, "update max downloads")
	}
	return tag.RowsAffected() > 0, nil
}

// Revoke matches already revoked rows too, so a repeat call still reports true.
func (s *PostgresStorage) Revoke(ctx context.Context, id, owner string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE share_links SET is_revoked = TRUE
		WHERE id = $1 AND owner_id = $2`, id, owner)
	if err != nil {
		return false, errors.Wrap(err, "revoke link")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStorage) IncrementDownloads(ctx context.Context, id string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `UPDATE share_links SET download_count = download_count + 1
		WHERE id = $1 RETURNING download_count`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, database.ErrNotFound
		}
		return 0, errors.Wrap(err, "increment downloads")
	}
	return count, nil
}

func (s *PostgresStorage) ReserveDownload(ctx context.Context, id string, now time.Time) (int64, bool, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `UPDATE share_links SET download_count = download_count + 1
		WHERE id = $1
			AND NOT is_revoked
			AND (expires_at IS NULL OR expires_at >= $2)
			AND (max_downloads IS NULL OR download_count < max_downloads)
		RETURNING download_count`, id, now).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, errors.Wrap(err, "reserve download")
	}
	link, err := s.Get(ctx, id)
	if err != nil {
		return 0, false, err
	}
	return link.DownloadCount, false, nil
}

func (s *PostgresStorage) Type() string {
	return "postgres"
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func normalizeTimes(link *models.ShareLink) {
	link.CreatedAt = link.CreatedAt.UTC()
	if link.ExpiresAt != nil {
		t := link.ExpiresAt.UTC()
		link.ExpiresAt = &t
	}
}
