// File: cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"petcare-billing/internal/config"
	payAdapters "petcare-billing/internal/infra/adapters/payment"
	pg "petcare-billing/internal/infra/db/postgres"
	"petcare-billing/internal/infra/logging"
)

// Seeds pending profiles for local testing. Profiles are normally created by the
// registration trigger, which does not exist in a dev database.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", true, "developer mode (config file optional)")
	count := flag.Int("n", 3, "number of profiles to create")
	orderID := flag.String("order", "", "print the checkout signature for this order id")
	paymentID := flag.String("payment", "", "payment id used with -order")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	if *orderID != "" {
		secret := cfg.Payment.Gateway.KeySecret
		if secret == "" {
			secret = "dev-secret"
		}
		fmt.Println(payAdapters.ExpectedSignature(*orderID, *paymentID, secret))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	for i := 0; i < *count; i++ {
		id := uuid.NewString()
		_, err := pool.Exec(ctx,
			`INSERT INTO profiles (id, subscription_status, updated_at) VALUES ($1, 'pending_payment', NOW())
			 ON CONFLICT (id) DO NOTHING`, id)
		if err != nil {
			logger.Fatal().Err(err).Msg("insert profile")
		}
		fmt.Printf("seeded profile %s\n", id)
	}
}
