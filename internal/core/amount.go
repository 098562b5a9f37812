package core

import (
	"github.com/shopspring/decimal"
)

// divideAmount splits amount evenly across n participants (n is clamped to
// at least 1). Decimal arithmetic avoids the drift of repeated float
// division for typical currency values.
func divideAmount(amount float64, n int) float64 {
	if n < 1 {
		n = 1
	}
	share, _ := decimal.NewFromFloat(amount).
		Div(decimal.NewFromInt(int64(n))).
		Round(10).
		Float64()
	return share
}
