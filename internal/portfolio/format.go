package portfolio

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	blank         = "-"
	fundamentalNA = "--"
	noData        = "Data not available"
)

// FormatNumber abbreviates large magnitudes with T, B or M and renders
// everything else with two decimals. Missing or NaN values render as "-".
func FormatNumber(v *float64) string {
	return abbreviate(v, blank)
}

func abbreviate(v *float64, missing string) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return missing
	}
	n := *v
	abs := math.Abs(n)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", n/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", n/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", n/1e6)
	}
	return fmt.Sprintf("%.2f", n)
}

func fixed2(v *float64, missing string) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return missing
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func plain(v *float64, missing string) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return missing
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// percent renders a ratio such as 0.02 as "2.00%".
func percent(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fundamentalNA
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

func day(t *time.Time) string {
	if t == nil || t.IsZero() {
		return fundamentalNA
	}
	return t.UTC().Format("2006-01-02")
}

// priceRange renders "₹148 → ₹152" using the grapheme of the display currency.
func priceRange(currency string, lo, hi *float64) string {
	sym := grapheme(currency)
	end := func(v *float64) string {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return sym + blank
		}
		return sym + decimal.NewFromFloat(*v).Round(2).String()
	}
	return end(lo) + " → " + end(hi)
}

func grapheme(currency string) string {
	if c := money.GetCurrency(strings.ToUpper(currency)); c != nil && c.Grapheme != "" {
		return c.Grapheme
	}
	return strings.ToUpper(currency) + " "
}

var marketZone = loadMarketZone()

func loadMarketZone() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+30*60)
}

// marketClock renders the quote time as "03:04 pm" in Indian Standard Time.
func marketClock(t time.Time) string {
	if t.IsZero() {
		return blank
	}
	return strings.ToLower(t.In(marketZone).Format("03:04 PM"))
}

func floatPtr(d decimal.Decimal) *float64 {
	f, _ := d.Float64()
	return &f
}
