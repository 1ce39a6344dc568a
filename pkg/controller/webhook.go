package controller

import (
	"net/http"

	"github.com/tgdrive/paperlink/internal/logging"
	"github.com/tgdrive/paperlink/internal/tgc"
	"go.uber.org/zap"
)

// Webhook always answers 200 so Telegram does not redeliver updates the bot
// failed to handle.
func (c *Controller) Webhook(w http.ResponseWriter, r *http.Request) {
	lg := logging.FromContext(r.Context())

	u, err := tgc.DecodeUpdate(r.Body)
	if err != nil {
		lg.Warn("decode update", zap.Error(err))
		writeOK(w)
		return
	}
	if err := c.bot.HandleUpdate(r.Context(), u, c.baseURL(r)); err != nil {
		lg.Error("handle update", zap.Int64("update_id", u.UpdateID), zap.Error(err))
	}
	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
