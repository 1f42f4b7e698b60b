package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gitea.jw6.us/james/calhub/internal/auth"
	"gitea.jw6.us/james/calhub/internal/config"
	httpserver "gitea.jw6.us/james/calhub/internal/http"
	"gitea.jw6.us/james/calhub/internal/store"
)

func main() {
	log.Println("Starting calhub server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	stor := store.New(pool)
	if err := stor.Migrate(ctx); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("failed to initialize tokens: %v", err)
	}
	authService := auth.NewService(stor.Users, tokens)

	var oidc *auth.OIDC
	if cfg.OIDCEnabled() {
		oidc, err = auth.NewOIDC(ctx, cfg, authService)
		if err != nil {
			log.Fatalf("failed to initialize OIDC: %v", err)
		}
		log.Printf("[INFO] OIDC login enabled for issuer %s", cfg.OAuth.IssuerURL)
	}

	r := httpserver.NewRouter(ctx, cfg, stor, authService, oidc)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
