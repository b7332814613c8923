package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"hotelpms/internal/config"
	"hotelpms/internal/database"
	"hotelpms/internal/domain/booking"
	"hotelpms/internal/domain/ledger"
	"hotelpms/internal/domain/promo"
	"hotelpms/internal/pkg/keylock"
	"hotelpms/internal/pkg/logging"
)

// One-shot maintenance run for cron: replay pending promo usage, then check
// every ledger account. Exits 1 when any account is out of balance.
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	applied, err := promo.NewService(db, logging.Printf).RetryPendingUsage(ctx)
	if err != nil {
		log.Fatalf("promo usage retry failed: %v", err)
	}

	ledgerService := ledger.NewService(db, booking.NewRepository(db), keylock.New(), logging.Printf)
	bad, err := ledgerService.ReconcileAll(ctx)
	if err != nil {
		log.Fatalf("reconcile failed: %v", err)
	}

	log.Printf("reconcile completed: promo_usage_applied=%d inconsistent_accounts=%d", applied, len(bad))
	if len(bad) > 0 {
		os.Exit(1)
	}
}
