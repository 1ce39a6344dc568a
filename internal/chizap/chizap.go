// Package chizap logs chi requests with zap.
package chizap

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Fn func(ctx context.Context) []zapcore.Field

type Config struct {
	// SkipPrefixes are path prefixes that are never logged.
	SkipPrefixes []string
	Context      Fn
	DefaultLevel zapcore.Level
}

func skip(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// New logs one line per request once the handler returns. Responses with a
// status of 500 and above are logged at error level, 4xx at warn.
func New(logger *zap.Logger, conf *Config) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip(conf.SkipPrefixes, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				fields := []zapcore.Field{
					zap.Int("status", ww.Status()),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("ip", r.RemoteAddr),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
				}
				if id := middleware.GetReqID(r.Context()); id != "" {
					fields = append(fields, zap.String("request-id", id))
				}
				if conf.Context != nil {
					fields = append(fields, conf.Context(r.Context())...)
				}

				level := conf.DefaultLevel
				switch status := ww.Status(); {
				case status >= 500:
					level = zapcore.ErrorLevel
				case status >= 400:
					level = zapcore.WarnLevel
				}
				logger.Log(level, "request", fields...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
