// Package main is the entrypoint for the gatekeep API gateway.
//
// The gateway fronts an HTTP application in the same process and enforces
// per-client admission control: tiered rate limiting with a global
// ceiling, static and TOTP device authentication, IP rules, and a live
// analytics feed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/krishna-kudari/gatekeep/config"
	"github.com/krishna-kudari/gatekeep/gateway"
	"github.com/krishna-kudari/gatekeep/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Gateway failed")
	}
}

func run() error {
	// Optional .env for local development; production uses real env vars.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded configuration from .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogFormat == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info().
		Str("service", cfg.ServiceName).
		Str("addr", cfg.Addr()).
		Str("devices", cfg.DevicesPath).
		Msg("Starting gateway")

	gw, err := gateway.New(cfg, demoApp())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gw.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("Gateway stopped")
	return nil
}

// demoApp is the fronted application: a placeholder upstream that echoes
// request details, useful for exercising the pipeline end to end.
func demoApp() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"message":"ok","method":%q,"path":%q}`, r.Method, r.URL.Path)
	})
}
