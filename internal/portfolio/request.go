package portfolio

import (
	"fmt"
	"strings"
	"time"

	"insightstox/internal/models"

	"github.com/shopspring/decimal"
)

// TransactionRequest is a validated posting request.
type TransactionRequest struct {
	Email     string
	Symbol    string
	Quantity  decimal.Decimal
	Side      models.Side
	Timestamp time.Time
}

// ParseTransaction validates raw request fields. An empty date means now.
func ParseTransaction(email, symbol, quantity, side, date string, now time.Time) (TransactionRequest, error) {
	req := TransactionRequest{
		Email:  strings.TrimSpace(email),
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
	}
	if req.Email == "" {
		return req, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	if req.Symbol == "" {
		return req, fmt.Errorf("%w: symbol required", ErrInvalidInput)
	}

	q, err := decimal.NewFromString(strings.TrimSpace(quantity))
	if err != nil {
		return req, fmt.Errorf("%w: quantity %q is not a number", ErrInvalidInput, quantity)
	}
	if !q.IsPositive() {
		return req, fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}
	req.Quantity = q

	s, err := models.ParseSide(side)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	req.Side = s

	req.Timestamp = now.UTC()
	if d := strings.TrimSpace(date); d != "" {
		ts, err := time.Parse(time.RFC3339, d)
		if err != nil {
			if ts, err = time.Parse("2006-01-02", d); err != nil {
				return req, fmt.Errorf("%w: date %q must be RFC3339", ErrInvalidInput, date)
			}
		}
		req.Timestamp = ts.UTC()
	}
	return req, nil
}
