// Command otherus runs the member-directory auth service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	goredis "github.com/redis/go-redis/v9"

	"github.com/other-realm/otherus"
	"github.com/other-realm/otherus/oauth2"
	"github.com/other-realm/otherus/stores/mem"
	"github.com/other-realm/otherus/stores/redis"
)

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	cfg, err := otherus.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "changeme" {
		slog.Warn("OTHERUS_JWT_SECRET is unset, using an insecure default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var users otherus.UserStore
	var identities otherus.IdentityStore
	var states otherus.StateStore

	switch cfg.Store {
	case "mem":
		store := mem.New()
		users, identities, states = store, store, store
		slog.Warn("using the in-memory store; nothing will persist")
	case "redis", "":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		store := redis.New(client)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			slog.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		users, identities, states = store, store, store
		slog.Info("connected to redis", "addr", cfg.RedisAddr)
	default:
		slog.Error("unknown store backend", "store", cfg.Store)
		os.Exit(1)
	}

	issuer := otherus.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	auth := otherus.NewAuth(users, identities, states, issuer)
	auth.StateTTL = cfg.StateTTL

	if cfg.GoogleConfigured() {
		auth.RegisterProvider(oauth2.NewGoogle(
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, cfg.ProviderTimeout))
		slog.Info("google login enabled")
	}
	if cfg.GitHubConfigured() {
		auth.RegisterProvider(oauth2.NewGitHub(
			cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURI, cfg.ProviderTimeout))
		slog.Info("github login enabled")
	}

	server := otherus.NewServer(auth, cfg.ClientCallbackURL)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}
}
