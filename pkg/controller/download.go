package controller

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/tgdrive/paperlink/internal/logging"
	"github.com/tgdrive/paperlink/pkg/httputil"
	"github.com/tgdrive/paperlink/pkg/services"
	"go.uber.org/zap"
)

var filenameReplacer = strings.NewReplacer(
	"/", "_", `\`, "_", "?", "_", "%", "_", "*", "_",
	":", "_", "|", "_", `"`, "_", "<", "_", ">", "_",
)

// SafeFilename makes name usable inside a quoted Content-Disposition value.
func SafeFilename(name string) string {
	if name == "" {
		name = "file"
	}
	return filenameReplacer.Replace(name)
}

// Share keeps the short link stable while the download route evolves.
func (c *Controller) Share(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/d/"+chi.URLParam(r, "id"), http.StatusFound)
}

func (c *Controller) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := c.downloads.Open(r.Context(), id)
	if err != nil {
		status, msg := downloadStatus(err)
		httputil.NewError(w, r, status, msg, err)
		return
	}
	defer d.Body.Close()

	mimeType := d.Link.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", `attachment; filename="`+SafeFilename(d.Link.FileName)+`"`)
	if d.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(d.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, d.Body); err != nil {
		logging.FromContext(r.Context()).Debug("download interrupted",
			zap.String("id", id), zap.Int64("count", d.Count), zap.Error(err))
	}
}

func downloadStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrLinkNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrLinkRevoked):
		return http.StatusGone, "Link revoked"
	case errors.Is(err, services.ErrLinkExpired):
		return http.StatusGone, "Link expired"
	case errors.Is(err, services.ErrQuotaExhausted):
		return http.StatusTooManyRequests, "Download limit reached"
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway, "Telegram fetch failed"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
