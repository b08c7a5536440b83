package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"tola-ledger/internal/domain"
)

var secondsPerYear = decimal.NewFromInt(365 * 24 * 3600)

// EstimateYield computes the display-only yield accrued by the open stake
// positions at the given annual rate: remaining * rate * elapsed/year, summed
// over open positions. Nothing is ever credited from this figure.
func EstimateYield(positions []*domain.StakePosition, annualRate decimal.Decimal, now time.Time) decimal.Decimal {
	total := decimal.Zero
	if annualRate.IsZero() {
		return total
	}

	for _, p := range positions {
		if !p.Open() {
			continue
		}
		elapsed := now.Sub(p.OpenedAt)
		if elapsed <= 0 {
			continue
		}
		accrued := decimal.NewFromInt(p.Remaining).
			Mul(annualRate).
			Mul(decimal.NewFromInt(int64(elapsed.Seconds()))).
			Div(secondsPerYear)
		total = total.Add(accrued)
	}
	return total
}
