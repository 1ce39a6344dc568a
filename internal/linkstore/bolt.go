package linkstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/paperlink/internal/database"
	"github.com/tgdrive/paperlink/internal/utils"
	"github.com/tgdrive/paperlink/pkg/models"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var _ Storage = (*BoltStorage)(nil)

var (
	linksBucket  = []byte("links")
	ownersBucket = []byte("owners")
)

// BoltStorage keeps msgpack encoded links in one bucket and an
// owner/created-at index in another. Bolt allows a single writer, which is
// what makes the read-modify-write updates atomic.
type BoltStorage struct {
	db *bbolt.DB
}

func NewBoltStorage(path string) (*BoltStorage, error) {
	if path == "" {
		path = filepath.Join(utils.DataDir(), "paperlink.db")
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt db")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(linksBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(ownersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create buckets")
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Insert(_ context.Context, link *models.ShareLink) error {
	data, err := msgpack.Marshal(link)
	if err != nil {
		return errors.Wrap(err, "encode link")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(linksBucket)
		if b.Get([]byte(link.ID)) != nil {
			return database.ErrKeyConflict
		}
		if err := b.Put([]byte(link.ID), data); err != nil {
			return err
		}
		return tx.Bucket(ownersBucket).Put(ownerKey(link.OwnerID, link.CreatedAt, link.ID), nil)
	})
}

func (s *BoltStorage) Get(_ context.Context, id string) (*models.ShareLink, error) {
	var link *models.ShareLink
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		link, err = loadLink(tx.Bucket(linksBucket), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *BoltStorage) ListByOwner(_ context.Context, owner string, limit int) ([]models.ShareLink, error) {
	prefix := append([]byte(owner), 0)
	end := append([]byte(owner), 1)
	res := make([]models.ShareLink, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		links := tx.Bucket(linksBucket)
		c := tx.Bucket(ownersBucket).Cursor()

		k, _ := c.Seek(end)
		if k == nil {
			k, _ = c.Last()
		} else {
			k, _ = c.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Prev() {
			if limit > 0 && len(res) >= limit {
				break
			}
			id := string(k[len(prefix)+9:])
			link, err := loadLink(links, id)
			if err != nil {
				return err
			}
			if link.IsRevoked {
				continue
			}
			res = append(res, *link)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *BoltStorage) SetMaxDownloads(_ context.Context, id, owner string, max *int64) (bool, error) {
	updated := false
	err := s.update(id, func(link *models.ShareLink) bool {
		if link.OwnerID != owner {
			return false
		}
		link.MaxDownloads = max
		updated = true
		return true
	})
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	return updated, err
}

func (s *BoltStorage) Revoke(_ context.Context, id, owner string) (bool, error) {
	matched := false
	err := s.update(id, func(link *models.ShareLink) bool {
		if link.OwnerID != owner {
			return false
		}
		matched = true
		if link.IsRevoked {
			return false
		}
		link.IsRevoked = true
		return true
	})
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	return matched, err
}

func (s *BoltStorage) IncrementDownloads(_ context.Context, id string) (int64, error) {
	var count int64
	err := s.update(id, func(link *models.ShareLink) bool {
		link.DownloadCount++
		count = link.DownloadCount
		return true
	})
	return count, err
}

func (s *BoltStorage) ReserveDownload(_ context.Context, id string, now time.Time) (int64, bool, error) {
	var (
		count    int64
		reserved bool
	)
	err := s.update(id, func(link *models.ShareLink) bool {
		if !link.Servable(now) {
			count = link.DownloadCount
			return false
		}
		link.DownloadCount++
		count, reserved = link.DownloadCount, true
		return true
	})
	return count, reserved, err
}

func (s *BoltStorage) Type() string {
	return "bolt"
}

func (s *BoltStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// update runs fn inside a write transaction and stores the link when fn
// returns true.
func (s *BoltStorage) update(id string, fn func(*models.ShareLink) bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(linksBucket)
		link, err := loadLink(b, id)
		if err != nil {
			return err
		}
		if !fn(link) {
			return nil
		}
		data, err := msgpack.Marshal(link)
		if err != nil {
			return errors.Wrap(err, "encode link")
		}
		return b.Put([]byte(id), data)
	})
}

func loadLink(b *bbolt.Bucket, id string) (*models.ShareLink, error) {
	val := b.Get([]byte(id))
	if val == nil {
		return nil, database.ErrNotFound
	}
	var link models.ShareLink
	if err := msgpack.Unmarshal(val, &link); err != nil {
		return nil, errors.Wrapf(err, "decode link %s", id)
	}
	normalizeTimes(&link)
	return &link, nil
}

// ownerKey is owner \x00 created-at (big endian nanos) \x00 id, so a cursor
// walks one owner's links in creation order.
func ownerKey(owner string, createdAt time.Time, id string) []byte {
	key := make([]byte, 0, len(owner)+len(id)+10)
	key = append(key, owner...)
	key = append(key, 0)
	key = binary.BigEndian.AppendUint64(key, uint64(createdAt.UnixNano()))
	key = append(key, 0)
	key = append(key, id...)
	return key
}
