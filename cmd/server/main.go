package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"findata/internal/app"
	"findata/internal/config"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	if cfg.EODHD.Enabled && cfg.EODHD.APIKey == "" {
		log.Warn().Msg("eodhd.enabled=true but EODHD_API_KEY not set")
	}
	if cfg.Tavily.Enabled && cfg.Tavily.APIKey == "" {
		log.Warn().Msg("tavily.enabled=true but TAVILY_API_KEY not set")
	}

	services, err := app.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("building services")
	}
	defer services.Close()

	a := &api{quotes: services.Quotes, news: services.News, gold: services.Gold, log: log}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.router(cfg.Server.RequestTimeout()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("server stopped")
}
