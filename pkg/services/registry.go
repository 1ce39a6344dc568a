package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/database"
	"github.com/tgdrive/paperlink/internal/linkstore"
	"github.com/tgdrive/paperlink/pkg/models"
)

const (
	shareIDLength     = 21
	maxCreateAttempts = 5
)

// NewLink is what an upload knows about the stored file.
type NewLink struct {
	ChatRef       string
	MessageRef    int64
	FileRef       string
	FileUniqueRef string
	FileName      string
	MimeType      string
	FileSize      int64
	OwnerID       string
}

type createOptions struct {
	maxDownloads    *int64
	maxDownloadsSet bool
	expiresAt       *time.Time
	expiresAtSet    bool
}

type CreateOption func(*createOptions)

// WithMaxDownloads overrides the default limit. nil means unlimited.
func WithMaxDownloads(n *int64) CreateOption {
	return func(o *createOptions) {
		o.maxDownloads, o.maxDownloadsSet = n, true
	}
}

// WithExpiry overrides the default expiry. nil means the link never expires.
func WithExpiry(t *time.Time) CreateOption {
	return func(o *createOptions) {
		o.expiresAt, o.expiresAtSet = t, true
	}
}

// Registry owns the link lifecycle on top of a Storage backend.
type Registry struct {
	store linkstore.Storage
	cnf   *config.LinksConfig
	now   func() time.Time
	newID func() (string, error)
}

func NewRegistry(store linkstore.Storage, cnf *config.LinksConfig) *Registry {
	return &Registry{
		store: store,
		cnf:   cnf,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() (string, error) { return gonanoid.New(shareIDLength) },
	}
}

func (r *Registry) Now() time.Time {
	return r.now()
}

func (r *Registry) Create(ctx context.Context, in NewLink, opts ...CreateOption) (*models.ShareLink, error) {
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}

	now := r.now()
	link := &models.ShareLink{
		ChatRef:       in.ChatRef,
		MessageRef:    in.MessageRef,
		FileRef:       in.FileRef,
		FileUniqueRef: in.FileUniqueRef,
		FileName:      in.FileName,
		MimeType:      in.MimeType,
		FileSize:      in.FileSize,
		OwnerID:       in.OwnerID,
		CreatedAt:     now,
	}

	if o.maxDownloadsSet {
		link.MaxDownloads = o.maxDownloads
	} else if r.cnf.DefaultMaxDownloads > 0 {
		n := r.cnf.DefaultMaxDownloads
		link.MaxDownloads = &n
	}
	if o.expiresAtSet {
		link.ExpiresAt = o.expiresAt
	} else if r.cnf.DefaultTTL > 0 {
		t := now.Add(r.cnf.DefaultTTL)
		link.ExpiresAt = &t
	}

	var err error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		link.ID, err = r.newID()
		if err != nil {
			return nil, errors.Wrap(err, "generate id")
		}
		err = r.store.Insert(ctx, link)
		if err == nil {
			return link, nil
		}
		if !database.IsKeyConflictErr(err) {
			return nil, errors.Wrap(err, "insert link")
		}
	}
	return nil, errors.Wrapf(err, "no free id after %d attempts", maxCreateAttempts)
}

func (r *Registry) Get(ctx context.Context, id string) (*models.ShareLink, error) {
	link, err := r.store.Get(ctx, id)
	if err != nil {
		if database.IsRecordNotFoundErr(err) {
			return nil, ErrLinkNotFound
		}
		return nil, errors.Wrap(err, "get link")
	}
	return link, nil
}

func (r *Registry) ListByOwner(ctx context.Context, owner string, limit int) ([]models.ShareLink, error) {
	links, err := r.store.ListByOwner(ctx, owner, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list links")
	}
	return links, nil
}

// SetQuota reports false for unknown ids and foreign owners alike.
func (r *Registry) SetQuota(ctx context.Context, id, owner string, max *int64) (bool, error) {
	ok, err := r.store.SetMaxDownloads(ctx, id, owner, max)
	if err != nil {
		return false, errors.Wrap(err, "set quota")
	}
	return ok, nil
}

// Revoke reports true whenever owner matches, also for a link that was
// already revoked.
func (r *Registry) Revoke(ctx context.Context, id, owner string) (bool, error) {
	ok, err := r.store.Revoke(ctx, id, owner)
	if err != nil {
		return false, errors.Wrap(err, "revoke link")
	}
	return ok, nil
}

// RecordDownload counts one download. It does not look at the limit: the
// caller checks servability first, so concurrent downloads may overshoot
// MaxDownloads by the number in flight.
func (r *Registry) RecordDownload(ctx context.Context, id string) (int64, error) {
	n, err := r.store.IncrementDownloads(ctx, id)
	if err != nil {
		if database.IsRecordNotFoundErr(err) {
			return 0, ErrLinkNotFound
		}
		return 0, errors.Wrap(err, "record download")
	}
	return n, nil
}

// ReserveDownload counts one download only if the link is still servable.
// On refusal the reason comes from a fresh read of the link.
func (r *Registry) ReserveDownload(ctx context.Context, id string) (int64, error) {
	now := r.now()
	n, ok, err := r.store.ReserveDownload(ctx, id, now)
	if err != nil {
		if database.IsRecordNotFoundErr(err) {
			return 0, ErrLinkNotFound
		}
		return 0, errors.Wrap(err, "reserve download")
	}
	if ok {
		return n, nil
	}
	link, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := CheckServable(link, now); err != nil {
		return link.DownloadCount, err
	}
	return link.DownloadCount, ErrQuotaExhausted
}
