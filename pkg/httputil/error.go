package httputil

import (
	"net/http"

	"github.com/tgdrive/paperlink/internal/logging"
	"go.uber.org/zap"
)

// NewError writes msg as a plain text body. err is only logged, server side
// failures at error level and client errors at debug.
func NewError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if err != nil {
		lg := logging.FromContext(r.Context())
		if status >= http.StatusInternalServerError {
			lg.Error(msg, zap.Int("status", status), zap.Error(err))
		} else {
			lg.Debug(msg, zap.Int("status", status), zap.Error(err))
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
