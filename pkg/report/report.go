package report

import (
	"time"

	"github.com/fint-dev/fint/pkg/domain"

	"github.com/shopspring/decimal"
)

// Point is one labelled value in a rollup series.
type Point struct {
	Name    string
	Balance decimal.Decimal
}

// amount parses a canonical transaction's amount, treating unparseable
// values as zero; amounts were validated when the transaction was built.
func amount(tx *domain.Transaction) decimal.Decimal {
	d, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Balance sums every transaction's amount.
func Balance(txns []*domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txns {
		total = total.Add(amount(tx))
	}
	return total
}

// BalanceSeries returns a running balance per day for the given number
// of trailing days, ending at now. The final point always includes every
// transaction, so future-dated records aren't dropped from the total.
func BalanceSeries(txns []*domain.Transaction, now time.Time, days int) []Point {
	points := make([]Point, 0, days)

	for i := -days + 1; i <= 0; i++ {
		cutoff := now.AddDate(0, 0, i)

		total := decimal.Zero
		for _, tx := range txns {
			if i == 0 || tx.Date.Before(cutoff) {
				total = total.Add(amount(tx))
			}
		}

		points = append(points, Point{Name: cutoff.Format(time.RFC3339), Balance: total})
	}
	return points
}

// SpendSeries buckets outgoings (negative amounts, negated for display)
// into trailing windows of bucketDays days each.
func SpendSeries(txns []*domain.Transaction, now time.Time, buckets, bucketDays int) []Point {
	return bucketSeries(txns, now, buckets, bucketDays, true)
}

// IncomeSeries buckets incomings into trailing windows of bucketDays
// days each.
func IncomeSeries(txns []*domain.Transaction, now time.Time, buckets, bucketDays int) []Point {
	return bucketSeries(txns, now, buckets, bucketDays, false)
}

func bucketSeries(txns []*domain.Transaction, now time.Time, buckets, bucketDays int, spend bool) []Point {
	points := make([]Point, 0, buckets)

	for i := -buckets + 1; i <= 0; i++ {
		cutoff := now.AddDate(0, 0, i*bucketDays)
		prior := cutoff.AddDate(0, 0, -bucketDays)

		total := decimal.Zero
		for _, tx := range txns {
			if !tx.Date.After(prior) {
				continue
			}
			if i != 0 && !tx.Date.Before(cutoff) {
				continue
			}

			a := amount(tx)
			if spend && a.IsNegative() {
				total = total.Sub(a)
			} else if !spend && !a.IsNegative() {
				total = total.Add(a)
			}
		}

		points = append(points, Point{Name: cutoff.Format(time.RFC3339), Balance: total})
	}
	return points
}
