package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// Holding is the rolling per-symbol summary row of a user.
type Holding struct {
	Email          string          `db:"email" json:"email"`
	Symbol         string          `db:"symbol" json:"symbol"`
	CurrentHolding decimal.Decimal `db:"current_holding" json:"current_holding"`
	AvgPrice       decimal.Decimal `db:"avg_price" json:"avg_price"`
	SpendedAmount  decimal.Decimal `db:"spended_amount" json:"spended_amount"`
	RealizedProfit decimal.Decimal `db:"realized_profit" json:"realized_profit"`
	LastUpdated    time.Time       `db:"last_updated" json:"last_updated"`
}

// LedgerEntry is an append-only record of one posted transaction. Quantity is
// signed: positive for BUY, negative for SELL.
type LedgerEntry struct {
	ID              string          `db:"id" json:"id"`
	Email           string          `db:"email" json:"email"`
	Symbol          string          `db:"symbol" json:"symbol"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	Price           decimal.Decimal `db:"price" json:"price"`
	TransactionType Side            `db:"transaction_type" json:"transaction_type"`
	TransactionDate time.Time       `db:"transaction_date" json:"transaction_date"`
}

type Instrument struct {
	Symbol    string    `db:"symbol" json:"symbol"`
	ShortName *string   `db:"short_name" json:"short_name"`
	LongName  *string   `db:"long_name" json:"long_name"`
	Sector    *string   `db:"sector" json:"sector"`
	Currency  *string   `db:"currency" json:"currency"`
	QuoteType *string   `db:"quote_type" json:"quote_type"`
	Market    *string   `db:"market" json:"market"`
	Exchange  *string   `db:"exchange" json:"exchange"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HoldingView is a holding joined with its instrument names.
type HoldingView struct {
	Symbol         string          `db:"symbol" json:"symbol"`
	ShortName      *string         `db:"short_name" json:"short_name"`
	LongName       *string         `db:"long_name" json:"long_name"`
	CurrentHolding decimal.Decimal `db:"current_holding" json:"current_holding"`
	SpendedAmount  decimal.Decimal `db:"spended_amount" json:"spended_amount"`
	RealizedProfit decimal.Decimal `db:"realized_profit" json:"realized_profit"`
}

// TransactionView is a ledger entry joined with its instrument names.
type TransactionView struct {
	Symbol          string          `db:"symbol" json:"symbol"`
	ShortName       *string         `db:"short_name" json:"short_name"`
	LongName        *string         `db:"long_name" json:"long_name"`
	TransactionType Side            `db:"transaction_type" json:"transaction_type"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	Price           decimal.Decimal `db:"price" json:"price"`
	TransactionDate time.Time       `db:"transaction_date" json:"transaction_date"`
}
