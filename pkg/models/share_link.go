package models

import (
	"time"
)

// ShareLink is one issued link. The file bytes live in the storage channel,
// only references are kept here.
type ShareLink struct {
	ID            string     `db:"id" msgpack:"id"`
	ChatRef       string     `db:"chat_ref" msgpack:"chat_ref"`
	MessageRef    int64      `db:"message_ref" msgpack:"message_ref"`
	FileRef       string     `db:"file_ref" msgpack:"file_ref"`
	FileUniqueRef string     `db:"file_unique_ref" msgpack:"file_unique_ref"`
	FileName      string     `db:"file_name" msgpack:"file_name"`
	MimeType      string     `db:"mime_type" msgpack:"mime_type"`
	FileSize      int64      `db:"file_size" msgpack:"file_size"`
	OwnerID       string     `db:"owner_id" msgpack:"owner_id"`
	MaxDownloads  *int64     `db:"max_downloads" msgpack:"max_downloads"`
	DownloadCount int64      `db:"download_count" msgpack:"download_count"`
	ExpiresAt     *time.Time `db:"expires_at" msgpack:"expires_at"`
	IsRevoked     bool       `db:"is_revoked" msgpack:"is_revoked"`
	CreatedAt     time.Time  `db:"created_at" msgpack:"created_at"`
}

// Servable reports whether the link may be downloaded at now.
func (l *ShareLink) Servable(now time.Time) bool {
	if l.IsRevoked {
		return false
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return false
	}
	return l.MaxDownloads == nil || l.DownloadCount < *l.MaxDownloads
}
