package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Client reads rates from exchangerate-api.com. The API quotes foreign units
// per one display unit, so the stored multiplier is the inverse.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

func NewClient(baseURL string, log *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (c *Client) Fetch(ctx context.Context, display string) (map[string]decimal.Decimal, error) {
	display = normalize(display)
	url := fmt.Sprintf("%s/%s", c.baseURL, display)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rates request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates api returned status %d", resp.StatusCode)
	}

	var raw struct {
		Base  string                     `json:"base"`
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if raw.Base != "" && normalize(raw.Base) != display {
		return nil, fmt.Errorf("rates api answered for base %s, want %s", raw.Base, display)
	}

	out := make(map[string]decimal.Decimal, len(raw.Rates))
	for code, perDisplay := range raw.Rates {
		if !perDisplay.IsPositive() {
			c.log.Warnf("skipping non-positive rate for %s: %s", code, perDisplay)
			continue
		}
		out[normalize(code)] = decimal.NewFromInt(1).DivRound(perDisplay, 10)
	}
	return out, nil
}
