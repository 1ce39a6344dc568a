package linkstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/database"
	"github.com/tgdrive/paperlink/internal/utils"
	"github.com/tgdrive/paperlink/pkg/models"
	"go.uber.org/zap"
)

type StorageSuite struct {
	suite.Suite
	open  func() Storage
	store Storage
	ctx   context.Context
}

func (s *StorageSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open()
}

func (s *StorageSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *StorageSuite) link(id, owner string, created time.Time) *models.ShareLink {
	return &models.ShareLink{
		ID:            id,
		ChatRef:       "-100123",
		MessageRef:    42,
		FileRef:       "file-" + id,
		FileUniqueRef: "uniq-" + id,
		FileName:      "report.pdf",
		MimeType:      "application/pdf",
		FileSize:      2048,
		OwnerID:       owner,
		MaxDownloads:  utils.Int64Pointer(2),
		ExpiresAt:     utils.TimePointer(created.Add(48 * time.Hour)),
		CreatedAt:     created,
	}
}

func (s *StorageSuite) TestInsertGet() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.Insert(s.ctx, s.link("a1", "7", now)))

	got, err := s.store.Get(s.ctx, "a1")
	s.Require().NoError(err)
	s.Equal("a1", got.ID)
	s.Equal("7", got.OwnerID)
	s.Equal(int64(0), got.DownloadCount)
	s.False(got.IsRevoked)
	s.Equal(int64(2), *got.MaxDownloads)
	s.True(now.Equal(got.CreatedAt))
	s.True(now.Add(48 * time.Hour).Equal(*got.ExpiresAt))
}

func (s *StorageSuite) TestInsertDuplicate() {
	now := time.Now().UTC()
	s.Require().NoError(s.store.Insert(s.ctx, s.link("dup", "7", now)))
	err := s.store.Insert(s.ctx, s.link("dup", "8", now))
	s.True(database.IsKeyConflictErr(err))
}

func (s *StorageSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "nope")
	s.ErrorIs(err, database.ErrNotFound)
}

func (s *StorageSuite) TestListByOwner() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, id := range []string{"l1", "l2", "l3", "l4"} {
		s.Require().NoError(s.store.Insert(s.ctx, s.link(id, "7", base.Add(time.Duration(i)*time.Second))))
	}
	s.Require().NoError(s.store.Insert(s.ctx, s.link("other", "8", base.Add(time.Hour))))
	ok, err := s.store.Revoke(s.ctx, "l3", "7")
	s.Require().NoError(err)
	s.True(ok)

	links, err := s.store.ListByOwner(s.ctx, "7", 10)
	s.Require().NoError(err)
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	s.Equal([]string{"l4", "l2", "l1"}, ids)

	links, err = s.store.ListByOwner(s.ctx, "7", 2)
	s.Require().NoError(err)
	s.Len(links, 2)
	s.Equal("l4", links[0].ID)

	links, err = s.store.ListByOwner(s.ctx, "nobody", 10)
	s.Require().NoError(err)
	s.Empty(links)
}

func (s *StorageSuite) TestSetMaxDownloads() {
	s.Require().NoError(s.store.Insert(s.ctx, s.link("q1", "7", time.Now().UTC())))

	ok, err := s.store.SetMaxDownloads(s.ctx, "q1", "8", utils.Int64Pointer(99))
	s.Require().NoError(err)
	s.False(ok)
	got, _ := s.store.Get(s.ctx, "q1")
	s.Equal(int64(2), *got.MaxDownloads)

	ok, err = s.store.SetMaxDownloads(s.ctx, "q1", "7", utils.Int64Pointer(5))
	s.Require().NoError(err)
	s.True(ok)
	got, _ = s.store.Get(s.ctx, "q1")
	s.Equal(int64(5), *got.MaxDownloads)

	ok, err = s.store.SetMaxDownloads(s.ctx, "q1", "7", nil)
	s.Require().NoError(err)
	s.True(ok)
	got, _ = s.store.Get(s.ctx, "q1")
	s.Nil(got.MaxDownloads)

	ok, err = s.store.SetMaxDownloads(s.ctx, "missing", "7", nil)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StorageSuite) TestRevoke() {
	s.Require().NoError(s.store.Insert(s.ctx, s.link("r1", "7", time.Now().UTC())))

	ok, err := s.store.Revoke(s.ctx, "r1", "8")
	s.Require().NoError(err)
	s.False(ok)
	got, _ := s.store.Get(s.ctx, "r1")
	s.False(got.IsRevoked)

	ok, err = s.store.Revoke(s.ctx, "r1", "7")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Revoke(s.ctx, "r1", "7")
	s.Require().NoError(err)
	s.True(ok, "repeat revoke by owner reports success")

	got, _ = s.store.Get(s.ctx, "r1")
	s.True(got.IsRevoked)
}

func (s *StorageSuite) TestIncrementDownloadsConcurrent() {
	s.Require().NoError(s.store.Insert(s.ctx, s.link("c1", "7", time.Now().UTC())))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.IncrementDownloads(s.ctx, "c1")
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.store.Get(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(int64(n), got.DownloadCount, "increments do not check the limit")

	_, err = s.store.IncrementDownloads(s.ctx, "missing")
	s.ErrorIs(err, database.ErrNotFound)
}

func (s *StorageSuite) TestReserveDownload() {
	now := time.Now().UTC()
	s.Require().NoError(s.store.Insert(s.ctx, s.link("rs", "7", now)))

	const n = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.store.ReserveDownload(s.ctx, "rs", now)
			s.NoError(err)
			if ok {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(2, reserved)
	got, _ := s.store.Get(s.ctx, "rs")
	s.Equal(int64(2), got.DownloadCount)

	count, ok, err := s.store.ReserveDownload(s.ctx, "rs", now)
	s.NoError(err)
	s.False(ok)
	s.Equal(int64(2), count)

	s.Require().NoError(s.store.Insert(s.ctx, s.link("old", "7", now.Add(-72*time.Hour))))
	_, ok, err = s.store.ReserveDownload(s.ctx, "old", now)
	s.NoError(err)
	s.False(ok, "expired links are not reserved")

	_, _, err = s.store.ReserveDownload(s.ctx, "missing", now)
	s.ErrorIs(err, database.ErrNotFound)
}

func TestMemoryStorage(t *testing.T) {
	suite.Run(t, &StorageSuite{open: func() Storage { return NewMemoryStorage() }})
}

func TestBoltStorage(t *testing.T) {
	s := &StorageSuite{}
	s.open = func() Storage {
		store, err := NewBoltStorage(filepath.Join(s.T().TempDir(), "links.db"))
		s.Require().NoError(err)
		return store
	}
	suite.Run(t, s)
}

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("PAPERLINK_DB_DATASOURCE")
	if dsn == "" {
		t.Skip("PAPERLINK_DB_DATASOURCE not set")
	}
	s := &StorageSuite{}
	s.open = func() Storage {
		ctx := context.Background()
		store, err := New(ctx, &config.StoreConfig{Driver: "postgres", DataSource: dsn}, zap.NewNop().Sugar())
		s.Require().NoError(err)
		_, err = store.(*PostgresStorage).pool.Exec(ctx, "TRUNCATE share_links")
		s.Require().NoError(err)
		return store
	}
	suite.Run(t, s)
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), &config.StoreConfig{Driver: "sqlite"}, zap.NewNop().Sugar())
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
