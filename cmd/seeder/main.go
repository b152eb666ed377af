package main

import (
	"flag"
	"os"

	"github.com/arhyth/ledgerxgo"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	_ = godotenv.Load()

	var cfg ledgerxgo.Config
	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()
	cfgfl, err := os.Open(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening config file")
	}
	if err = yaml.NewDecoder(cfgfl).Decode(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("error decoding config file")
	}
	cfgfl.Close()

	lh, err := ledgerxgo.NewLocalHelper(&cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting local helper")
	}
	if _, err = lh.InitDB(); err != nil {
		logger.Fatal().Err(err).Msg("error initializing database")
	}
	if err = lh.SeedDemoData(); err != nil {
		logger.Fatal().Err(err).Msg("error seeding demo data")
	}
	logger.Info().Msg("demo data seeded")
}
