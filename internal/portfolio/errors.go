package portfolio

import (
	"errors"

	"insightstox/internal/quotes"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrQuoteUnavailable     = quotes.ErrUnavailable
	ErrRateUnavailable      = quotes.ErrRateUnavailable
	ErrPersistenceFailure   = errors.New("persistence failure")
	ErrInternal             = errors.New("internal error")
)

type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindInvalidInput         ErrorKind = "invalid_input"
	KindInsufficientHoldings ErrorKind = "insufficient_holdings"
	KindQuoteUnavailable     ErrorKind = "quote_unavailable"
	KindRateUnavailable      ErrorKind = "rate_unavailable"
	KindPersistenceFailure   ErrorKind = "persistence_failure"
	KindInternal             ErrorKind = "internal"
)

// Kind buckets err into the error taxonomy. Unrecognized errors are internal.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInsufficientHoldings):
		return KindInsufficientHoldings
	case errors.Is(err, ErrRateUnavailable):
		return KindRateUnavailable
	case errors.Is(err, ErrQuoteUnavailable):
		return KindQuoteUnavailable
	case errors.Is(err, ErrPersistenceFailure):
		return KindPersistenceFailure
	}
	return KindInternal
}
