package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is what the price cache holds for a symbol. Prices are already
// converted to the display currency; Currency is the instrument's own.
type Snapshot struct {
	Symbol           string          `json:"symbol"`
	Current          decimal.Decimal `json:"current"`
	Close            decimal.Decimal `json:"close"`
	Change           decimal.Decimal `json:"change"`
	PercentageChange float64         `json:"percentageChange"`
	Currency         string          `json:"currency"`
	ShortName        string          `json:"shortname"`
	LongName         string          `json:"longname"`
	ExpiresAt        time.Time       `json:"expiresAt"`
}

// Quote is a provider response normalized at the fetch boundary. Optional
// provider fields stay nil when absent.
type Quote struct {
	Symbol string

	// price block
	HasPrice         bool
	Current          decimal.Decimal
	PreviousClose    decimal.Decimal
	Change           decimal.Decimal
	PercentageChange float64
	Currency         string
	MarketTime       time.Time
	Volume           *float64
	MarketCap        *float64

	// metadata block
	ShortName *string
	LongName  *string
	Sector    *string
	QuoteType *string
	Market    *string
	Exchange  *string

	// summary detail
	DayLow       *float64
	DayHigh      *float64
	YearLow      *float64
	YearHigh     *float64
	AvgVolume3M  *float64
	DividendRate *float64
	DividendYld  *float64
	TrailingRate *float64
	TrailingYld  *float64
	ExDivDate    *time.Time

	// key statistics and calendar
	ForwardEPS   *float64
	ForwardPE    *float64
	PriceToBook  *float64
	LastDividend *float64
	DividendDate *time.Time
}

// Snapshot projects the price block of q into a cache value.
func (q Quote) Snapshot() Snapshot {
	s := Snapshot{
		Symbol:           q.Symbol,
		Current:          q.Current,
		Close:            q.PreviousClose,
		Change:           q.Change,
		PercentageChange: q.PercentageChange,
		Currency:         q.Currency,
	}
	if q.ShortName != nil {
		s.ShortName = *q.ShortName
	}
	if q.LongName != nil {
		s.LongName = *q.LongName
	}
	return s
}
