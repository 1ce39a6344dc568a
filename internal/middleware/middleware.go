package middleware

import (
	"net/http"

	"github.com/tgdrive/paperlink/internal/logging"
	"go.uber.org/zap"
)

type Middleware = func(http.Handler) http.Handler

func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := r.WithContext(logging.WithLogger(r.Context(), lg))
			next.ServeHTTP(w, req)
		})
	}
}

// SkipBrowserWarning stops ngrok from putting its interstitial page in front
// of downloads.
func SkipBrowserWarning(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ngrok-skip-browser-warning", "true")
		next.ServeHTTP(w, r)
	})
}
