// File: cmd/migrate/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"petcare-billing/internal/config"
	"petcare-billing/internal/infra/db/migrations"
	"petcare-billing/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (config file optional)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	runner, err := migrations.New(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrations")
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn().Err(err).Msg("close migrations")
		}
	}()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		if err := runner.Up(); err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
	case "down":
		steps := 1
		if flag.NArg() > 1 {
			n, err := strconv.Atoi(flag.Arg(1))
			if err != nil || n <= 0 {
				logger.Fatal().Str("arg", flag.Arg(1)).Msg("invalid step count")
			}
			steps = n
		}
		if err := runner.Down(steps); err != nil {
			logger.Fatal().Err(err).Msg("migrate down")
		}
	case "force":
		if flag.NArg() < 2 {
			logger.Fatal().Msg("force requires a version")
		}
		v, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			logger.Fatal().Str("arg", flag.Arg(1)).Msg("invalid version")
		}
		if err := runner.Force(v); err != nil {
			logger.Fatal().Err(err).Msg("migrate force")
		}
	case "status":
		v, dirty, err := runner.Version()
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate status")
		}
		logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("migration status")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: migrate [-config path] [-dev] <command>")
	fmt.Println("Commands:")
	fmt.Println("  up        apply all pending migrations")
	fmt.Println("  down [N]  roll back N migrations (default 1)")
	fmt.Println("  force V   set version V and clear the dirty flag")
	fmt.Println("  status    print the current version")
}
