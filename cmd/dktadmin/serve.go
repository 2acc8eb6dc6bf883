package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/config"
	"github.com/alecgard/dktadmin/internal/metrics"
	"github.com/alecgard/dktadmin/internal/ratelimit"
	"github.com/alecgard/dktadmin/internal/session"
	"github.com/alecgard/dktadmin/internal/ui"
	"github.com/alecgard/dktadmin/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin console server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	api, err := apiclient.New(apiclient.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		Transport: m.InstrumentTransport(http.DefaultTransport),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	cache, closeCache, err := profileCache(ctx, cfg.Session.ProfileCache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.LoginAttempts > 0 {
		limiter = ratelimit.New(cfg.RateLimit.LoginAttempts, cfg.RateLimit.Window)
		go limiter.SweepEvery(ctx, cfg.RateLimit.Window)
	}

	renderer, err := web.NewRenderer(ui.Files(), ui.Dev(), logger)
	if err != nil {
		return err
	}

	router := web.NewRouter(web.RouterDeps{
		API:      api,
		Renderer: renderer,
		Cookie: session.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.SecureCookie,
		},
		SessionTTL: cfg.Session.TTL,
		Cache:      cache,
		Metrics:    m,
		Limiter:    limiter,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "backend", cfg.Backend.BaseURL, "dev", ui.Dev())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

// profileCache builds the configured restored-profile cache. The returned
// func releases its resources.
func profileCache(ctx context.Context, cfg config.ProfileCacheConfig, logger *slog.Logger) (session.ProfileCache, func(), error) {
	switch cfg.Backend {
	case "memory":
		slog.Info("profile cache enabled", "backend", "memory", "ttl", cfg.TTL)
		return session.NewMemoryCache(cfg.TTL, cfg.MaxEntries), func() {}, nil
	case "redis":
		client, err := session.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("profile cache enabled", "backend", "redis", "addr", cfg.RedisAddr, "ttl", cfg.TTL)
		return session.NewRedisCache(client, cfg.TTL, logger), func() { _ = client.Close() }, nil
	}
	return nil, func() {}, nil
}
