package merge

import (
	"fmt"
	"time"

	"github.com/fint-dev/fint/pkg/domain"

	"github.com/shopspring/decimal"
)

// Extractors project a representative date and amount out of a dedup
// group. The first record (in group order) whose projection parses wins;
// a group where every record fails is a data-integrity problem.

var revolutDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func extractDate(group []*domain.RawTransaction) (time.Time, error) {
	var lastErr error
	for _, raw := range group {
		date, err := recordDate(raw)
		if err == nil {
			return date, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("no record in group has a parseable date: %w", lastErr)
}

func recordDate(raw *domain.RawTransaction) (time.Time, error) {
	switch data := raw.Data.(type) {
	case *domain.OpenBankingData:
		if data.BookingDate == "" {
			return time.Time{}, fmt.Errorf("no bookingDate")
		}
		return time.Parse("2006-01-02", data.BookingDate)
	case *domain.NatWestRow:
		return time.Parse("02/01/2006", data.Date)
	case *domain.PayPalRow:
		// PayPal activity exports use US-style dates.
		return time.Parse("01/02/2006", data.Date)
	case *domain.RevolutRow:
		var lastErr error
		for _, layout := range revolutDateLayouts {
			date, err := time.Parse(layout, data.CompletedDate)
			if err == nil {
				return date, nil
			}
			lastErr = err
		}
		return time.Time{}, lastErr
	}
	return time.Time{}, fmt.Errorf("unknown payload type %T", raw.Data)
}

func extractAmount(group []*domain.RawTransaction) (string, error) {
	var lastErr error
	for _, raw := range group {
		amount, err := recordAmount(raw)
		if err == nil {
			return amount, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("no record in group has a parseable amount: %w", lastErr)
}

func recordAmount(raw *domain.RawTransaction) (string, error) {
	var amount string
	switch data := raw.Data.(type) {
	case *domain.OpenBankingData:
		amount = data.TransactionAmount.Amount
	case *domain.NatWestRow:
		amount = data.Value
	case *domain.PayPalRow:
		// Net, not Gross: fee sub-records merge into their parent so
		// the parent's net amount is the spend we want.
		amount = data.Net
	case *domain.RevolutRow:
		amount = data.Amount
	default:
		return "", fmt.Errorf("unknown payload type %T", raw.Data)
	}

	// Validate but keep the source's own string form.
	_, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("amount %q: %w", amount, err)
	}
	return amount, nil
}
