package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"millwright/api/internal/app"
	"millwright/api/internal/config"
	"millwright/api/internal/content"
	"millwright/api/internal/contentapi"
	"millwright/api/internal/preview"
	"millwright/api/internal/search"
	"millwright/api/internal/session"
	"millwright/api/internal/source"
	"millwright/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	var cache *source.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err = source.NewCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Printf("WARNING: content cache disabled: %v", err)
			cache = nil
		}
	}

	var capiClient *contentapi.Client
	resolver := source.NewResolver(source.NewPostgresBackend(dataStore), cache)
	if strings.TrimSpace(cfg.ContentAPIURL) != "" {
		capiClient = contentapi.New(cfg.ContentAPIURL, cfg.ContentAPIKey)
		defer capiClient.Close()
		structured := source.NewStructuredBackend(capiClient)
		for _, typ := range cfg.ContentAPITypes {
			resolver.Assign(content.Type(strings.TrimSpace(typ)), structured)
		}
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = app.NewWithSessionStore(cfg, dataStore, resolver, redisStore, searchService)
	} else {
		log.Printf("WARNING: no REDIS_URL set, refresh tokens disabled")
		service = app.New(cfg, dataStore, resolver, searchService)
	}
	service.AttachCache(cache)
	service.AttachContentAPI(capiClient)

	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	previewResolver := preview.NewResolver(cfg.PreviewSecret, cfg.PreviewCookieTTL)

	httpServer := app.NewHTTPServer(service, previewResolver, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Millwright API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
