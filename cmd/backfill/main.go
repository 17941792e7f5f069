// Command backfill rebuilds stock_summary rows by replaying the ledger. Run it
// after correcting user_transactions by hand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"insightstox/internal/database"
	"insightstox/internal/models"
	"insightstox/internal/portfolio"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	email := flag.String("email", "", "only rebuild positions of this user")
	dryRun := flag.Bool("dry-run", false, "print rebuilt rows without saving them")
	flag.Parse()

	logger := logrus.New()
	_ = godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		logger.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		logger.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := database.New(db, logger)
	owners, err := repo.ListLedgerOwners(ctx, *email)
	if err != nil {
		logger.Fatalf("list positions: %v", err)
	}

	failed := 0
	for _, o := range owners {
		err := repo.Atomically(ctx, func(tx database.Tx) error {
			return replay(ctx, tx, o, *dryRun)
		})
		if err != nil && !errors.Is(err, errDryRun) {
			logger.Errorf("rebuild %s %s: %v", o.Email, o.Symbol, err)
			failed++
		}
	}
	logger.Infof("rebuilt %d positions, %d failed", len(owners)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

var errDryRun = errors.New("dry run")

// replay rebuilds one position inside tx. The row lock keeps new posts out
// while the ledger is read and folded.
func replay(ctx context.Context, tx database.Tx, o database.LedgerOwner, dryRun bool) error {
	if _, err := tx.LockHolding(ctx, o.Email, o.Symbol); err != nil {
		return err
	}
	entries, err := tx.ListLedger(ctx, o.Email, o.Symbol)
	if err != nil {
		return err
	}
	h, err := rebuild(o.Email, o.Symbol, entries)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s holding=%s avg=%s spend=%s realized=%s (%d entries)\n",
		o.Email, o.Symbol, h.CurrentHolding, h.AvgPrice.StringFixed(4), h.SpendedAmount.StringFixed(4), h.RealizedProfit.StringFixed(4), len(entries))
	if dryRun {
		return errDryRun
	}
	return tx.SaveHolding(ctx, h)
}

// rebuild folds entries, oldest first, into a fresh holding.
func rebuild(email, symbol string, entries []models.LedgerEntry) (models.Holding, error) {
	h := models.Holding{Email: email, Symbol: symbol}
	for _, e := range entries {
		var err error
		h, _, err = portfolio.Apply(h, e.TransactionType, e.Quantity.Abs(), e.Price)
		if err != nil {
			return h, fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}
	h.LastUpdated = time.Now().UTC()
	return h, nil
}
