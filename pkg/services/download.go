package services

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/paperlink/internal/cache"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/logging"
	"github.com/tgdrive/paperlink/internal/tgc"
	"github.com/tgdrive/paperlink/pkg/models"
	"go.uber.org/zap"
)

// Download is an admitted, counted download. The caller must close Body.
type Download struct {
	Link  *models.ShareLink
	Body  io.ReadCloser
	Size  int64
	Count int64
}

type DownloadService struct {
	reg   *Registry
	tg    Telegram
	cache cache.Cacher
	cnf   *config.ServerCmdConfig
}

func NewDownloadService(reg *Registry, tg Telegram, c cache.Cacher, cnf *config.ServerCmdConfig) *DownloadService {
	return &DownloadService{reg: reg, tg: tg, cache: c, cnf: cnf}
}

// Open loads the link, checks it, opens the upstream file and counts the
// download. The count is taken only after Telegram answered, so a failed
// fetch never uses up quota. ctx bounds the whole transfer.
func (s *DownloadService) Open(ctx context.Context, id string) (*Download, error) {
	link, err := s.reg.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckServable(link, s.reg.Now()); err != nil {
		return nil, err
	}

	stream, err := s.openUpstream(ctx, link)
	if err != nil {
		return nil, err
	}

	var count int64
	if s.cnf.Links.StrictQuota {
		count, err = s.reg.ReserveDownload(ctx, link.ID)
	} else {
		count, err = s.reg.RecordDownload(ctx, link.ID)
	}
	if err != nil {
		stream.Body.Close()
		return nil, err
	}
	link.DownloadCount = count

	return &Download{Link: link, Body: stream.Body, Size: stream.Size, Count: count}, nil
}

func (s *DownloadService) openUpstream(ctx context.Context, link *models.ShareLink) (*tgc.FileStream, error) {
	key := cache.KeyFilePath(link.FileRef)
	path, err := cache.Fetch(ctx, s.cache, key, s.filePathTTL(), func() (string, error) {
		f, err := s.tg.GetFile(ctx, link.FileRef)
		if err != nil {
			return "", err
		}
		return f.FilePath, nil
	})
	if err != nil {
		return nil, errors.Wrapf(ErrUpstream, "get file: %v", err)
	}

	fs, err := s.tg.OpenFile(ctx, path)
	if err != nil {
		// the cached path may have expired on Telegram's side
		if derr := s.cache.Delete(ctx, key); derr != nil {
			logging.FromContext(ctx).Warn("drop file path", zap.Error(derr))
		}
		return nil, errors.Wrapf(ErrUpstream, "open file: %v", err)
	}
	return fs, nil
}

func (s *DownloadService) filePathTTL() time.Duration {
	if s.cnf.Cache.FilePathTTL > 0 {
		return s.cnf.Cache.FilePathTTL
	}
	return 30 * time.Minute
}
