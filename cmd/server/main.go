package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/arhyth/ledgerxgo"
	"github.com/bwmarrin/snowflake"
	"github.com/joho/godotenv"
	"github.com/sony/gobreaker/v2"
	"gopkg.in/yaml.v3"

	"github.com/rs/zerolog"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// .env is optional; real deployments set the variables directly.
	_ = godotenv.Load()

	var cfg ledgerxgo.Config
	cfp := flag.String("config", envOr("LEDGERXGO_CONFIG", "config.yml"), "path to configuration file")
	flag.Parse()
	cfgfl, err := os.Open(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening config file")
	}
	if err = yaml.NewDecoder(cfgfl).Decode(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("error decoding config file")
	}
	cfgfl.Close()
	if cfg.Listen == "" {
		cfg.Listen = ":3000"
	}

	if err = ledgerxgo.RunMigrations(cfg.Database.ConnectionString); err != nil {
		logger.Fatal().Err(err).Msg("error running migrations")
	}

	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		logger.Fatal().Err(err).Msg("error creating snowflake node")
	}
	pgendpt, err := ledgerxgo.NewPostgresEndpoint(cfg.Database.ConnectionString, node, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting database")
	}
	defer pgendpt.Close()

	cache := ledgerxgo.NewAggregateCache(pgendpt, &logger)
	if cfg.Cache.RefreshSeconds > 0 {
		interval := time.Duration(cfg.Cache.RefreshSeconds) * time.Second
		go func() {
			tick := time.NewTicker(interval)
			defer tick.Stop()
			for range tick.C {
				cache.Invalidate()
				logger.Info().Msg("aggregate cache invalidated")
			}
		}()
	}

	var svc ledgerxgo.Service = ledgerxgo.NewService(pgendpt, cache, &logger)
	limits := ledgerxgo.NewServiceLimits(cfg.Limits)
	svc = ledgerxgo.NewLimitMiddleware(limits, time.Duration(cfg.Limits.AcquireTimeoutMillis)*time.Millisecond)(svc)
	brkrs := ledgerxgo.NewServiceBreaker(gobreaker.Settings{})
	svc = ledgerxgo.NewCircuitBreakMiddleware(brkrs)(svc)

	users := ledgerxgo.NewUserService(pgendpt, &logger)
	hndlr := ledgerxgo.NewHTTPHandler(svc, users, &logger)

	logger.Info().Str("listen", cfg.Listen).Msg("server starting")
	if err = http.ListenAndServe(cfg.Listen, hndlr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
