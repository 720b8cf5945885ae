package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitepages/internal/cache"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/handler"
	"github.com/sitepages/internal/logger"
	"github.com/sitepages/internal/router"
	"github.com/sitepages/internal/service"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout      = 30 * time.Second
	readHeaderTimeout    = 10 * time.Second
	redisKeyPrefix       = "sitepages:"
	cacheCleanupInterval = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(ctx context.Context) error {
	if err := appConfig.CheckSessionSecret(); err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if appConfig.UsesDefaultSessionSecret() {
		log.Warn("using the development session secret, set SESSION_SECRET before deploying",
			logger.String("gin_mode", appConfig.GinMode))
	}

	if err := openDatabase(); err != nil {
		return err
	}

	viewCache, err := newViewCache(ctx, log)
	if err != nil {
		return err
	}
	defer func() { _ = viewCache.Close() }()

	gin.SetMode(appConfig.GinMode)

	api := handler.NewAPI(db.DB, handler.Options{
		UploadDir:     appConfig.UploadDir,
		UploadURL:     appConfig.UploadURLPath,
		SiteBaseURL:   appConfig.SiteBaseURL,
		Cache:         viewCache,
		CacheTTL:      appConfig.CacheTTL,
		SnippetPolicy: service.SnippetDeletePolicy(appConfig.SnippetDeletePolicy),
		Logger:        log,
	})
	r := router.SetupRouter(api, router.Config{
		SessionSecret: appConfig.SessionSecret,
		UploadDir:     appConfig.UploadDir,
		UploadURLPath: appConfig.UploadURLPath,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:              appConfig.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return runWithGracefulShutdown(srv, log)
}

func newViewCache(ctx context.Context, log logger.Logger) (cache.Cache, error) {
	if !appConfig.UseRedisCache() {
		log.Info("using in-memory view cache", logger.Duration("ttl", appConfig.CacheTTL))
		return cache.NewMemoryWithOptions(cache.MemoryOptions{
			DefaultTTL:      appConfig.CacheTTL,
			MaxEntries:      appConfig.CacheMaxEntries,
			CleanupInterval: cacheCleanupInterval,
		}), nil
	}
	c, err := cache.NewRedis(ctx, appConfig.RedisURL, redisKeyPrefix, appConfig.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("connect redis cache: %w", err)
	}
	log.Info("using redis view cache", logger.Duration("ttl", appConfig.CacheTTL))
	return c, nil
}

// runWithGracefulShutdown 在收到 SIGINT/SIGTERM 后等待进行中的请求完成再退出。
func runWithGracefulShutdown(srv *http.Server, log logger.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
