package services

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/paperlink/pkg/models"
)

var (
	ErrLinkNotFound   = errors.New("link not found")
	ErrLinkRevoked    = errors.New("link revoked")
	ErrLinkExpired    = errors.New("link expired")
	ErrQuotaExhausted = errors.New("download limit reached")
	ErrUpstream       = errors.New("telegram fetch failed")
	ErrNoFile         = errors.New("no file uploaded")
)

// CheckServable returns the first reason link cannot be downloaded at now,
// checked in the order revoked, expired, quota. nil means servable.
func CheckServable(link *models.ShareLink, now time.Time) error {
	if link.IsRevoked {
		return ErrLinkRevoked
	}
	if link.ExpiresAt != nil && now.After(*link.ExpiresAt) {
		return ErrLinkExpired
	}
	if link.MaxDownloads != nil && link.DownloadCount >= *link.MaxDownloads {
		return ErrQuotaExhausted
	}
	return nil
}
