package controller

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tgdrive/paperlink/internal/banner"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/pkg/services"
)

type Controller struct {
	bot       *services.BotService
	uploads   *services.UploadService
	downloads *services.DownloadService
	cnf       *config.ServerCmdConfig
}

func NewController(bot *services.BotService, uploads *services.UploadService, downloads *services.DownloadService, cnf *config.ServerCmdConfig) *Controller {
	return &Controller{bot: bot, uploads: uploads, downloads: downloads, cnf: cnf}
}

func (c *Controller) Routes(r chi.Router) {
	r.Get("/", c.Index)
	r.Post("/telegram/webhook", c.Webhook)
	r.Get("/upload", c.UploadForm)
	r.Post("/upload", c.Upload)
	r.Get("/s/{id}", c.Share)
	r.Get("/d/{id}", c.Download)
}

func (c *Controller) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(banner.Text))
}

// baseURL is the configured public URL, or the one the request came in on.
func (c *Controller) baseURL(r *http.Request) string {
	if c.cnf.Server.BaseURL != "" {
		return strings.TrimSuffix(c.cnf.Server.BaseURL, "/")
	}
	proto := firstValue(r.Header.Get("X-Forwarded-Proto"))
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	host := firstValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	return proto + "://" + host
}

// firstValue picks the client side entry of a comma separated proxy header.
func firstValue(h string) string {
	if i := strings.IndexByte(h, ','); i >= 0 {
		h = h[:i]
	}
	return strings.TrimSpace(h)
}
