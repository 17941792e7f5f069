package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"insightstox/internal/models"
	"insightstox/internal/quotes"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// HoldingLister lists every summary row of a user.
type HoldingLister interface {
	ListHoldings(ctx context.Context, email string) ([]models.Holding, error)
}

// SummaryRow is one line of the portfolio table. A row for a symbol whose
// quote failed carries only Symbol and Error.
type SummaryRow struct {
	Symbol        string `json:"symbol"`
	ShortName     string `json:"shortname,omitempty"`
	LongName      string `json:"longname,omitempty"`
	LastPrice     string `json:"lastPrice,omitempty"`
	Change        string `json:"change,omitempty"`
	ChangePercent string `json:"changePercent,omitempty"`
	Currency      string `json:"currency,omitempty"`
	MarketTime    string `json:"marketTime,omitempty"`
	Volume        string `json:"volume,omitempty"`
	Shares        string `json:"shares,omitempty"`
	AvgPrice      string `json:"avgPrice,omitempty"`
	Value         string `json:"value,omitempty"`
	AvgVolume     string `json:"avgVolume,omitempty"`
	DayRange      string `json:"dayRange,omitempty"`
	YearRange     string `json:"yearRange,omitempty"`
	MarketCap     string `json:"marketCap,omitempty"`
	Error         string `json:"error,omitempty"`
}

type DashboardRow struct {
	Stock        string `json:"stock"`
	ShortName    string `json:"shortname"`
	Quantity     string `json:"quantity"`
	AvgPrice     string `json:"avg_price"`
	CurrentPrice string `json:"current_price"`
	Value        string `json:"value"`
}

type FundamentalsRow struct {
	Symbol                 string `json:"symbol"`
	LastPrice              string `json:"lastPrice,omitempty"`
	MarketCap              string `json:"marketCap,omitempty"`
	AvgVolume3M            string `json:"avgVolume3M,omitempty"`
	EPSEstimateNextYear    string `json:"epsEstimateNextYear,omitempty"`
	ForwardPE              string `json:"forwardPE,omitempty"`
	DivPaymentDate         string `json:"divPaymentDate,omitempty"`
	ExDivDate              string `json:"exDivDate,omitempty"`
	DividendPerShare       string `json:"dividendPerShare,omitempty"`
	ForwardAnnualDivRate   string `json:"forwardAnnualDivRate,omitempty"`
	ForwardAnnualDivYield  string `json:"forwardAnnualDivYield,omitempty"`
	TrailingAnnualDivRate  string `json:"trailingAnnualDivRate,omitempty"`
	TrailingAnnualDivYield string `json:"trailingAnnualDivYield,omitempty"`
	PriceToBook            string `json:"priceToBook,omitempty"`
	CurrentHolding         string `json:"currentHolding,omitempty"`
	Error                  string `json:"error,omitempty"`
}

// Formatter joins stored holdings with live quotes. Quotes for different
// symbols are fetched concurrently and a failure only affects its own row.
type Formatter struct {
	holdings  HoldingLister
	quotes    quotes.Fetcher
	display   string
	dbTimeout time.Duration
	log       *logrus.Logger
}

func NewFormatter(h HoldingLister, q quotes.Fetcher, display string, dbTimeout time.Duration, log *logrus.Logger) *Formatter {
	if dbTimeout <= 0 {
		dbTimeout = 5 * time.Second
	}
	return &Formatter{holdings: h, quotes: q, display: display, dbTimeout: dbTimeout, log: log}
}

func (f *Formatter) list(ctx context.Context, email string) ([]models.Holding, error) {
	dbCtx, cancel := context.WithTimeout(ctx, f.dbTimeout)
	defer cancel()
	hs, err := f.holdings.ListHoldings(dbCtx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: list holdings: %v", ErrPersistenceFailure, err)
	}
	return hs, nil
}

// BuildDisplaySummary returns one row per holding, in storage order.
func (f *Formatter) BuildDisplaySummary(ctx context.Context, email string) ([]SummaryRow, error) {
	hs, err := f.list(ctx, email)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, hs, func(ctx context.Context, h models.Holding) (SummaryRow, error) {
		q, err := f.quotes.GetExtendedQuote(ctx, h.Symbol)
		if err != nil {
			return SummaryRow{}, err
		}
		return f.summaryRow(h, q), nil
	}, func(h models.Holding, err error) SummaryRow {
		f.log.Warnf("summary row for %s: %v", h.Symbol, err)
		return SummaryRow{Symbol: h.Symbol, Error: noData}
	}), nil
}

func (f *Formatter) summaryRow(h models.Holding, q models.Quote) SummaryRow {
	row := SummaryRow{
		Symbol:        h.Symbol,
		LastPrice:     q.Current.StringFixed(2),
		Change:        q.Change.StringFixed(2),
		ChangePercent: fmt.Sprintf("%.2f", q.PercentageChange),
		Currency:      q.Currency,
		MarketTime:    marketClock(q.MarketTime),
		Volume:        FormatNumber(q.Volume),
		Shares:        h.CurrentHolding.String(),
		AvgPrice:      h.AvgPrice.StringFixed(2),
		Value:         h.CurrentHolding.Mul(q.Current).StringFixed(2),
		AvgVolume:     FormatNumber(q.AvgVolume3M),
		DayRange:      priceRange(f.display, q.DayLow, q.DayHigh),
		YearRange:     priceRange(f.display, q.YearLow, q.YearHigh),
		MarketCap:     FormatNumber(q.MarketCap),
	}
	if q.ShortName != nil {
		row.ShortName = *q.ShortName
	}
	if q.LongName != nil {
		row.LongName = *q.LongName
	}
	return row
}

// Dashboard takes the lightweight price path. A symbol without a price
// shows zeros rather than failing.
func (f *Formatter) Dashboard(ctx context.Context, email string) ([]DashboardRow, error) {
	hs, err := f.list(ctx, email)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, hs, func(ctx context.Context, h models.Holding) (DashboardRow, error) {
		snap, err := f.quotes.GetPrice(ctx, h.Symbol)
		if err != nil {
			return DashboardRow{}, err
		}
		name := snap.ShortName
		if name == "" {
			name = fundamentalNA
		}
		return DashboardRow{
			Stock:        h.Symbol,
			ShortName:    name,
			Quantity:     h.CurrentHolding.String(),
			AvgPrice:     h.AvgPrice.StringFixed(2),
			CurrentPrice: snap.Current.StringFixed(2),
			Value:        h.CurrentHolding.Mul(snap.Current).StringFixed(2),
		}, nil
	}, func(h models.Holding, err error) DashboardRow {
		f.log.Warnf("dashboard price for %s: %v", h.Symbol, err)
		zero := decimal.Zero.StringFixed(2)
		return DashboardRow{
			Stock:        h.Symbol,
			ShortName:    fundamentalNA,
			Quantity:     h.CurrentHolding.String(),
			AvgPrice:     h.AvgPrice.StringFixed(2),
			CurrentPrice: zero,
			Value:        zero,
		}
	}), nil
}

func (f *Formatter) Fundamentals(ctx context.Context, email string) ([]FundamentalsRow, error) {
	hs, err := f.list(ctx, email)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, hs, func(ctx context.Context, h models.Holding) (FundamentalsRow, error) {
		q, err := f.quotes.GetExtendedQuote(ctx, h.Symbol)
		if err != nil {
			return FundamentalsRow{}, err
		}
		return FundamentalsRow{
			Symbol:                 h.Symbol,
			LastPrice:              abbreviate(floatPtr(q.Current), fundamentalNA),
			MarketCap:              abbreviate(q.MarketCap, fundamentalNA),
			AvgVolume3M:            abbreviate(q.AvgVolume3M, fundamentalNA),
			EPSEstimateNextYear:    plain(q.ForwardEPS, fundamentalNA),
			ForwardPE:              plain(q.ForwardPE, fundamentalNA),
			DivPaymentDate:         day(q.DividendDate),
			ExDivDate:              day(q.ExDivDate),
			DividendPerShare:       fixed2(q.LastDividend, fundamentalNA),
			ForwardAnnualDivRate:   fixed2(q.DividendRate, fundamentalNA),
			ForwardAnnualDivYield:  percent(q.DividendYld),
			TrailingAnnualDivRate:  fixed2(q.TrailingRate, fundamentalNA),
			TrailingAnnualDivYield: percent(q.TrailingYld),
			PriceToBook:            fixed2(q.PriceToBook, fundamentalNA),
			CurrentHolding:         h.CurrentHolding.String(),
		}, nil
	}, func(h models.Holding, err error) FundamentalsRow {
		f.log.Warnf("fundamentals for %s: %v", h.Symbol, err)
		return FundamentalsRow{Symbol: h.Symbol, Error: noData}
	}), nil
}

// fanOut runs fn for every holding in its own goroutine and keeps input
// order in the result. A failed holding is replaced by marker(h, err).
func fanOut[T any](ctx context.Context, hs []models.Holding, fn func(context.Context, models.Holding) (T, error), marker func(models.Holding, error) T) []T {
	out := make([]T, len(hs))
	var wg sync.WaitGroup
	for i, h := range hs {
		wg.Add(1)
		go func(i int, h models.Holding) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					out[i] = marker(h, fmt.Errorf("%w: panic: %v", ErrInternal, r))
				}
			}()
			v, err := fn(ctx, h)
			if err != nil {
				out[i] = marker(h, err)
				return
			}
			out[i] = v
		}(i, h)
	}
	wg.Wait()
	return out
}
