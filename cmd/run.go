package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/tgdrive/paperlink/internal/banner"
	"github.com/tgdrive/paperlink/internal/cache"
	"github.com/tgdrive/paperlink/internal/chizap"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/linkstore"
	"github.com/tgdrive/paperlink/internal/logging"
	"github.com/tgdrive/paperlink/internal/middleware"
	"github.com/tgdrive/paperlink/internal/tgc"
	"github.com/tgdrive/paperlink/internal/version"
	"github.com/tgdrive/paperlink/pkg/controller"
	"github.com/tgdrive/paperlink/pkg/services"
	"go.uber.org/zap/zapcore"
)

func NewRun() *cobra.Command {
	var cfg config.ServerCmdConfig
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start PaperLink Server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd.Context(), &cfg)
		},
	}
	newCommandConfig(cmd, &cfg)
	return cmd
}

func runApplication(ctx context.Context, conf *config.ServerCmdConfig) error {
	lg := setupLogger(&conf.Log)
	defer lg.Sync()

	store, err := linkstore.New(ctx, &conf.Store, lg)
	if err != nil {
		return errors.Wrap(err, "open link store")
	}
	defer store.Close()

	cacher, err := cache.NewCache(ctx, &conf.Cache)
	if err != nil {
		return errors.Wrap(err, "create cache")
	}

	client, err := tgc.New(&conf.TG)
	if err != nil {
		return errors.Wrap(err, "create telegram client")
	}

	reg := services.NewRegistry(store, &conf.Links)
	uploads := services.NewUploadService(reg, client, conf.TG.StorageChatID)
	ctrl := controller.NewController(
		services.NewBotService(reg, uploads, client, &conf.Links),
		uploads,
		services.NewDownloadService(reg, client, cacher, conf),
		conf,
	)

	srv := setupServer(conf, ctrl)

	cacheType := "memory"
	if conf.Cache.RedisAddr != "" {
		cacheType = "redis"
	}
	banner.PrintBanner(os.Stdout, banner.StartupInfo{
		Version:  version.Version,
		Addr:     srv.Addr,
		BaseURL:  conf.Server.BaseURL,
		Store:    store.Type(),
		Cache:    cacheType,
		LogLevel: conf.Log.Level,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "serve")
		}
	case <-ctx.Done():
	}

	lg.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), conf.Server.GracefulShutdown)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Errorw("server shutdown failed", "err", err)
	}

	lg.Info("Server stopped")
	return nil
}

func setupServer(cfg *config.ServerCmdConfig, ctrl *controller.Controller) *http.Server {
	lg := logging.DefaultLogger()

	mux := chi.NewRouter()

	mux.Use(chimiddleware.Recoverer)
	mux.Use(chimiddleware.RequestID)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         86400,
	}))
	mux.Use(chimiddleware.RealIP)
	mux.Use(middleware.InjectLogger(lg))
	mux.Use(chizap.New(lg, &chizap.Config{
		DefaultLevel: zapcore.InfoLevel,
	}))
	mux.Use(middleware.SkipBrowserWarning)
	ctrl.Routes(mux)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
