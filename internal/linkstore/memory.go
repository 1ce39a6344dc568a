package linkstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tgdrive/paperlink/internal/database"
	"github.com/tgdrive/paperlink/pkg/models"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps links in a map. Data is lost on restart.
type MemoryStorage struct {
	mu    sync.RWMutex
	links map[string]*models.ShareLink
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{links: make(map[string]*models.ShareLink)}
}

func (s *MemoryStorage) Insert(_ context.Context, link *models.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ID]; ok {
		return database.ErrKeyConflict
	}
	s.links[link.ID] = cloneLink(link)
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, id string) (*models.ShareLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return cloneLink(link), nil
}

func (s *MemoryStorage) ListByOwner(_ context.Context, owner string, limit int) ([]models.ShareLink, error) {
	s.mu.RLock()
	res := make([]models.ShareLink, 0)
	for _, link := range s.links {
		if link.OwnerID == owner && !link.IsRevoked {
			res = append(res, *cloneLink(link))
		}
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *MemoryStorage) SetMaxDownloads(_ context.Context, id, owner string, max *int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok || link.OwnerID != owner {
		return false, nil
	}
	link.MaxDownloads = cloneInt64(max)
	return true, nil
}

func (s *MemoryStorage) Revoke(_ context.Context, id, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok || link.OwnerID != owner {
		return false, nil
	}
	link.IsRevoked = true
	return true, nil
}

func (s *MemoryStorage) IncrementDownloads(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return 0, database.ErrNotFound
	}
	link.DownloadCount++
	return link.DownloadCount, nil
}

func (s *MemoryStorage) ReserveDownload(_ context.Context, id string, now time.Time) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return 0, false, database.ErrNotFound
	}
	if !link.Servable(now) {
		return link.DownloadCount, false, nil
	}
	link.DownloadCount++
	return link.DownloadCount, true, nil
}

func (s *MemoryStorage) Type() string {
	return "memory"
}

func (s *MemoryStorage) Close() error {
	return nil
}

func cloneLink(l *models.ShareLink) *models.ShareLink {
	c := *l
	c.MaxDownloads = cloneInt64(l.MaxDownloads)
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
