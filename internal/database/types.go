package database

import (
	"context"

	"insightstox/internal/models"
)

// Tx is the unit of work handed to Repo.Atomically. Every call runs inside
// the same SQL transaction.
type Tx interface {
	// LockHolding returns the summary row for (email, symbol), creating an
	// empty one if needed, and holds a row lock until the unit ends.
	LockHolding(ctx context.Context, email, symbol string) (models.Holding, error)
	InsertLedgerEntry(ctx context.Context, e models.LedgerEntry) error
	SaveHolding(ctx context.Context, h models.Holding) error
	// ListLedger reads the entries of one position inside the unit, in
	// posting order.
	ListLedger(ctx context.Context, email, symbol string) ([]models.LedgerEntry, error)
}

// LedgerOwner is one (email, symbol) pair that has ledger rows.
type LedgerOwner struct {
	Email  string `db:"email"`
	Symbol string `db:"symbol"`
}
