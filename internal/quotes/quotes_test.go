package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"insightstox/internal/cache"
	"insightstox/internal/metrics"
	"insightstox/internal/models"
	"insightstox/internal/rates"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aaplSummary = `{"quoteSummary":{"result":[{
	"price":{"symbol":"AAPL","shortName":"Apple Inc.","longName":"Apple","currency":"USD","quoteType":"EQUITY",
		"market":"us_market","exchange":"NMS",
		"regularMarketPrice":{"raw":150,"fmt":"150.00"},
		"regularMarketPreviousClose":{"raw":145,"fmt":"145.00"},
		"regularMarketChange":{"raw":5},
		"regularMarketChangePercent":{"raw":3.45},
		"regularMarketVolume":{"raw":1000000},
		"regularMarketTime":1700000000,
		"marketCap":{"raw":2000000000000}},
	"summaryDetail":{"dayLow":{"raw":148},"dayHigh":152,"fiftyTwoWeekLow":{"raw":120},"fiftyTwoWeekHigh":{"raw":160},
		"averageVolume3Month":{},"averageVolume":{"raw":2000000},"dividendYield":{"raw":0.02}},
	"assetProfile":{"sector":"Technology"},
	"defaultKeyStatistics":{"forwardEps":{"raw":5},"forwardPE":"30"},
	"calendarEvents":{"dividendDate":"2023-12-01"}
}],"error":null}}`

func newYahooServer(t *testing.T, calls *int32, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if !strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestYahooClient_SummaryNormalizes(t *testing.T) {
	var calls int32
	var gotModules string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotModules = r.URL.Query().Get("modules")
		assert.Equal(t, "/v10/finance/quoteSummary/AAPL", r.URL.Path)
		w.Write([]byte(aaplSummary))
	}))
	defer srv.Close()

	c := NewYahooClient(srv.URL, logrus.New())
	q, err := c.Summary(context.Background(), " aapl ", AllModules...)
	require.NoError(t, err)

	assert.Equal(t, "price,summaryDetail,assetProfile,defaultKeyStatistics,calendarEvents", gotModules)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.True(t, q.HasPrice)
	assert.True(t, q.Current.Equal(decimal.NewFromInt(150)))
	assert.True(t, q.PreviousClose.Equal(decimal.NewFromInt(145)))
	assert.Equal(t, 3.45, q.PercentageChange)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "Apple Inc.", *q.ShortName)
	assert.Equal(t, "Technology", *q.Sector)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), q.MarketTime)
	assert.Equal(t, 152.0, *q.DayHigh)
	assert.Equal(t, 2000000.0, *q.AvgVolume3M, "falls back to averageVolume")
	assert.Equal(t, 30.0, *q.ForwardPE)
	require.NotNil(t, q.DividendDate)
	assert.Equal(t, "2023-12-01", q.DividendDate.Format("2006-01-02"))
	assert.Nil(t, q.PriceToBook)
}

func TestYahooClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/EMPTY"):
			w.Write([]byte(`{"quoteSummary":{"result":[],"error":{"code":"Not Found","description":"Quote not found"}}}`))
		case strings.HasSuffix(r.URL.Path, "/BAD"):
			w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	c := NewYahooClient(srv.URL, logrus.New())
	_, err := c.Summary(context.Background(), "EMPTY")
	assert.ErrorIs(t, err, ErrNoResult)

	_, err = c.Summary(context.Background(), "BAD")
	assert.Error(t, err)

	_, err = c.Summary(context.Background(), "OTHER")
	assert.Error(t, err)

	_, err = c.Summary(context.Background(), "  ")
	assert.Error(t, err)
}

type stubProvider struct {
	calls   int32
	quote   models.Quote
	err     error
	delay   time.Duration
	modules []string
}

func (p *stubProvider) Summary(ctx context.Context, symbol string, modules ...string) (models.Quote, error) {
	atomic.AddInt32(&p.calls, 1)
	p.modules = modules
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return models.Quote{}, ctx.Err()
		}
	}
	if p.err != nil {
		return models.Quote{}, p.err
	}
	q := p.quote
	q.Symbol = symbol
	return q, nil
}

func newService(p Provider, tbl rates.Table, timeout time.Duration) (*Service, *metrics.Metrics) {
	m := metrics.New()
	return NewService(p, cache.NewPriceCache(time.Minute), tbl, m, timeout, logrus.New()), m
}

func usdQuote() models.Quote {
	name := "Apple"
	low, high := 148.0, 152.0
	return models.Quote{
		HasPrice:      true,
		Current:       decimal.NewFromInt(150),
		PreviousClose: decimal.NewFromInt(145),
		Change:        decimal.NewFromInt(5),
		Currency:      "USD",
		ShortName:     &name,
		DayLow:        &low,
		DayHigh:       &high,
	}
}

func TestService_GetPriceUsesCache(t *testing.T) {
	p := &stubProvider{quote: usdQuote()}
	tbl := rates.NewMemoryTable("INR")
	tbl.Replace(map[string]decimal.Decimal{"USD": decimal.NewFromInt(2)})
	svc, m := newService(p, tbl, time.Second)

	s1, err := svc.GetPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, s1.Current.Equal(decimal.NewFromInt(300)), "price is converted, got %s", s1.Current)
	assert.True(t, s1.Close.Equal(decimal.NewFromInt(290)))
	assert.Equal(t, "Apple", s1.ShortName)
	assert.Equal(t, []string{ModulePrice}, p.modules)

	s2, err := svc.GetPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&p.calls))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuoteCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuoteCache.WithLabelValues("miss")))
}

func TestService_GetExtendedQuoteRefreshesCache(t *testing.T) {
	p := &stubProvider{quote: usdQuote()}
	tbl := rates.NewMemoryTable("INR")
	tbl.Replace(map[string]decimal.Decimal{"USD": decimal.NewFromInt(2)})
	svc, _ := newService(p, tbl, time.Second)

	q, err := svc.GetExtendedQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, AllModules, p.modules)
	assert.Equal(t, 296.0, *q.DayLow)
	assert.True(t, q.Change.Equal(decimal.NewFromInt(10)))

	_, err = svc.GetPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&p.calls), "price lookup should hit the cache")
}

func TestService_Failures(t *testing.T) {
	tbl := rates.NewMemoryTable("INR")

	svc, _ := newService(&stubProvider{err: errors.New("boom")}, tbl, time.Second)
	_, err := svc.GetPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable)

	svc, _ = newService(&stubProvider{quote: models.Quote{Currency: "INR"}}, tbl, time.Second)
	_, err = svc.GetExtendedQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable, "a quote without a price is unusable")

	svc, _ = newService(&stubProvider{quote: usdQuote()}, tbl, time.Second)
	_, err = svc.GetPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrRateUnavailable)

	noCurrency := usdQuote()
	noCurrency.Currency = ""
	svc, _ = newService(&stubProvider{quote: noCurrency}, tbl, time.Second)
	_, err = svc.GetExtendedQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrRateUnavailable, "a quote without a currency cannot be converted")

	svc, _ = newService(&stubProvider{quote: usdQuote(), delay: time.Second}, tbl, 20*time.Millisecond)
	_, err = svc.GetPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable, "timeouts surface as unavailable quotes")
}

func TestService_DisplayCurrencyPassesThrough(t *testing.T) {
	var calls int32
	srv := newYahooServer(t, &calls, strings.Replace(aaplSummary, `"currency":"USD"`, `"currency":"INR"`, 1))
	defer srv.Close()

	svc, _ := newService(NewYahooClient(srv.URL, logrus.New()), rates.NewMemoryTable("INR"), time.Second)
	q, err := svc.GetExtendedQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.Current.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, 148.0, *q.DayLow)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
