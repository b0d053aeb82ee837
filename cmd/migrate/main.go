package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/291e/bogofit-shop-sub001/internal/db"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		dbURLFlag string
		maxFlag   int
		verbose   bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	flag.IntVar(&maxFlag, "max", 0, "maximum number of migrations to apply (0 = all; down defaults to 1)")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|status\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := infra.NewCLILogger(verbose).With().Str("cmd", "migrate").Logger()

	command := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	if command == "" {
		command = "up"
	}
	dbURL := strings.TrimSpace(dbURLFlag)
	if dbURL == "" {
		dbURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dbURL == "" {
		logger.Fatal().Err(errors.New("DATABASE_URL is required")).Msg("migrate: missing database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "up", "down":
		dir, max := db.Up, maxFlag
		if command == "down" {
			dir = db.Down
			if max == 0 {
				max = 1
			}
		}
		n, err := db.Migrate(ctx, dbURL, dir, max)
		if err != nil {
			logger.Fatal().Err(err).Int("applied", n).Msg("migrate: failed")
		}
		logger.Info().Str("direction", string(dir)).Int("applied", n).Msg("migrate: done")
	case "status":
		pending, err := db.Pending(ctx, dbURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate: status failed")
		}
		if len(pending) == 0 {
			logger.Info().Msg("migrate: database is up to date")
			return
		}
		for _, id := range pending {
			logger.Info().Str("id", id).Msg("migrate: pending")
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
