package portfolio

import (
	"fmt"

	"insightstox/internal/models"

	"github.com/shopspring/decimal"
)

// Apply folds one transaction into a holding and returns the updated row
// with the signed ledger quantity. h is not modified.
//
// BUY recomputes the weighted average cost and adds price*qty to the spend.
// SELL keeps the average, books (price-avg)*qty as realized profit and
// lowers the spend by price*qty. A position sold down to zero has avg 0.
func Apply(h models.Holding, side models.Side, qty, price decimal.Decimal) (models.Holding, decimal.Decimal, error) {
	if !qty.IsPositive() {
		return h, decimal.Zero, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if price.IsNegative() {
		return h, decimal.Zero, fmt.Errorf("%w: negative price %s", ErrInternal, price)
	}

	switch side {
	case models.Buy:
		newHolding := h.CurrentHolding.Add(qty)
		if !newHolding.IsPositive() {
			return h, decimal.Zero, fmt.Errorf("%w: holding %s is negative", ErrInternal, h.CurrentHolding)
		}
		cost := price.Mul(qty)
		h.AvgPrice = h.AvgPrice.Mul(h.CurrentHolding).Add(cost).Div(newHolding)
		h.SpendedAmount = h.SpendedAmount.Add(cost)
		h.CurrentHolding = newHolding
		return h, qty, nil

	case models.Sell:
		if qty.GreaterThan(h.CurrentHolding) {
			return h, decimal.Zero, fmt.Errorf("%w: selling %s of %s held", ErrInsufficientHoldings, qty, h.CurrentHolding)
		}
		signed := qty.Neg()
		newHolding := h.CurrentHolding.Add(signed)
		h.RealizedProfit = h.RealizedProfit.Add(price.Sub(h.AvgPrice).Mul(qty))
		h.SpendedAmount = h.SpendedAmount.Add(price.Mul(signed))
		if newHolding.IsZero() {
			h.AvgPrice = decimal.Zero
		}
		h.CurrentHolding = newHolding
		return h, signed, nil
	}
	return h, decimal.Zero, fmt.Errorf("%w: unknown side %q", ErrInvalidInput, side)
}
