package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"insightstox/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	ModulePrice         = "price"
	ModuleSummaryDetail = "summaryDetail"
	ModuleAssetProfile  = "assetProfile"
	ModuleKeyStatistics = "defaultKeyStatistics"
	ModuleCalendar      = "calendarEvents"
)

var AllModules = []string{ModulePrice, ModuleSummaryDetail, ModuleAssetProfile, ModuleKeyStatistics, ModuleCalendar}

var ErrNoResult = errors.New("yahoo: no result")

// Provider is the remote side of the quote fetcher.
type Provider interface {
	Summary(ctx context.Context, symbol string, modules ...string) (models.Quote, error)
}

// YahooClient talks to the v10 quoteSummary endpoint.
type YahooClient struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

func NewYahooClient(baseURL string, log *logrus.Logger) *YahooClient {
	return &YahooClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 8 * time.Second},
		log:     log,
	}
}

func (c *YahooClient) Summary(ctx context.Context, symbol string, modules ...string) (models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.Quote{}, fmt.Errorf("empty symbol")
	}
	if len(modules) == 0 {
		modules = []string{ModulePrice}
	}

	params := url.Values{}
	params.Set("modules", strings.Join(modules, ","))
	reqURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Quote{}, err
	}
	req.Header.Set("User-Agent", "insightstox/1.0")
	req.Header.Set("Accept", "application/json")

	c.log.Debugf("fetching quote summary for %s (%s)", symbol, params.Get("modules"))
	resp, err := c.http.Do(req)
	if err != nil {
		return models.Quote{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Quote{}, fmt.Errorf("yahoo http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var raw summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Quote{}, fmt.Errorf("decode quote summary: %w", err)
	}
	if raw.QuoteSummary.Error != nil && len(raw.QuoteSummary.Result) == 0 {
		return models.Quote{}, fmt.Errorf("%w: %s", ErrNoResult, raw.QuoteSummary.Error.Description)
	}
	if len(raw.QuoteSummary.Result) == 0 {
		return models.Quote{}, ErrNoResult
	}
	q := raw.QuoteSummary.Result[0].normalize()
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []summaryResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

type summaryResult struct {
	Price *struct {
		Symbol                     string `json:"symbol"`
		ShortName                  string `json:"shortName"`
		LongName                   string `json:"longName"`
		Currency                   string `json:"currency"`
		QuoteType                  string `json:"quoteType"`
		Market                     string `json:"market"`
		Exchange                   string `json:"exchange"`
		RegularMarketPrice         number `json:"regularMarketPrice"`
		RegularMarketPreviousClose number `json:"regularMarketPreviousClose"`
		RegularMarketChange        number `json:"regularMarketChange"`
		RegularMarketChangePercent number `json:"regularMarketChangePercent"`
		RegularMarketVolume        number `json:"regularMarketVolume"`
		RegularMarketTime          date   `json:"regularMarketTime"`
		MarketCap                  number `json:"marketCap"`
	} `json:"price"`
	SummaryDetail *struct {
		DayLow                      number `json:"dayLow"`
		DayHigh                     number `json:"dayHigh"`
		FiftyTwoWeekLow             number `json:"fiftyTwoWeekLow"`
		FiftyTwoWeekHigh            number `json:"fiftyTwoWeekHigh"`
		AverageVolume3Month         number `json:"averageVolume3Month"`
		AverageVolume               number `json:"averageVolume"`
		DividendRate                number `json:"dividendRate"`
		DividendYield               number `json:"dividendYield"`
		TrailingAnnualDividendRate  number `json:"trailingAnnualDividendRate"`
		TrailingAnnualDividendYield number `json:"trailingAnnualDividendYield"`
		ExDividendDate              date   `json:"exDividendDate"`
	} `json:"summaryDetail"`
	AssetProfile *struct {
		Sector string `json:"sector"`
	} `json:"assetProfile"`
	DefaultKeyStatistics *struct {
		ForwardEps        number `json:"forwardEps"`
		ForwardPE         number `json:"forwardPE"`
		PriceToBook       number `json:"priceToBook"`
		LastDividendValue number `json:"lastDividendValue"`
	} `json:"defaultKeyStatistics"`
	CalendarEvents *struct {
		DividendDate   date `json:"dividendDate"`
		ExDividendDate date `json:"exDividendDate"`
	} `json:"calendarEvents"`
}

func (r summaryResult) normalize() models.Quote {
	var q models.Quote
	if p := r.Price; p != nil {
		q.Symbol = p.Symbol
		q.ShortName = optString(p.ShortName)
		q.LongName = optString(p.LongName)
		q.Currency = strings.ToUpper(p.Currency)
		q.QuoteType = optString(p.QuoteType)
		q.Market = optString(p.Market)
		q.Exchange = optString(p.Exchange)
		if p.RegularMarketPrice.Valid {
			q.HasPrice = true
			q.Current = decimal.NewFromFloat(p.RegularMarketPrice.Value)
		}
		q.PreviousClose = p.RegularMarketPreviousClose.dec()
		q.Change = p.RegularMarketChange.dec()
		q.PercentageChange = p.RegularMarketChangePercent.Value
		q.MarketTime = p.RegularMarketTime.Time
		q.Volume = p.RegularMarketVolume.ptr()
		q.MarketCap = p.MarketCap.ptr()
	}
	if s := r.SummaryDetail; s != nil {
		q.DayLow = s.DayLow.ptr()
		q.DayHigh = s.DayHigh.ptr()
		q.YearLow = s.FiftyTwoWeekLow.ptr()
		q.YearHigh = s.FiftyTwoWeekHigh.ptr()
		q.AvgVolume3M = s.AverageVolume3Month.ptr()
		if q.AvgVolume3M == nil {
			q.AvgVolume3M = s.AverageVolume.ptr()
		}
		q.DividendRate = s.DividendRate.ptr()
		q.DividendYld = s.DividendYield.ptr()
		q.TrailingRate = s.TrailingAnnualDividendRate.ptr()
		q.TrailingYld = s.TrailingAnnualDividendYield.ptr()
		q.ExDivDate = s.ExDividendDate.ptr()
	}
	if a := r.AssetProfile; a != nil {
		q.Sector = optString(a.Sector)
	}
	if k := r.DefaultKeyStatistics; k != nil {
		q.ForwardEPS = k.ForwardEps.ptr()
		q.ForwardPE = k.ForwardPE.ptr()
		q.PriceToBook = k.PriceToBook.ptr()
		q.LastDividend = k.LastDividendValue.ptr()
	}
	if c := r.CalendarEvents; c != nil {
		q.DividendDate = c.DividendDate.ptr()
		if q.ExDivDate == nil {
			q.ExDivDate = c.ExDividendDate.ptr()
		}
	}
	return q
}

// number accepts a bare JSON number, a numeric string, or Yahoo's
// {"raw": n, "fmt": "..."} wrapper. Anything else leaves it invalid.
type number struct {
	Value float64
	Valid bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	switch b[0] {
	case '{':
		var w struct {
			Raw *float64 `json:"raw"`
		}
		if err := json.Unmarshal(b, &w); err != nil {
			return nil
		}
		if w.Raw != nil {
			n.Value, n.Valid = *w.Raw, true
		}
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			n.Value, n.Valid = f, true
		}
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return nil
		}
		n.Value, n.Valid = f, true
	}
	return nil
}

func (n number) ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func (n number) dec() decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return decimal.NewFromFloat(n.Value)
}

// date accepts unix seconds (bare or wrapped) or an ISO date string.
type date struct {
	time.Time
	Valid bool
}

func (d *date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				d.Time, d.Valid = t.UTC(), true
				return nil
			}
		}
		return nil
	}
	var n number
	_ = n.UnmarshalJSON(b)
	if n.Valid && n.Value > 0 {
		d.Time, d.Valid = time.Unix(int64(n.Value), 0).UTC(), true
	}
	return nil
}

func (d date) ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
