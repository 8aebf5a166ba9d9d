package status

import (
	"github.com/shopspring/decimal"

	"deposit-core/pkg/amount"
)

func formatBTC(v float64) string {
	return amount.FormatBTC(decimal.NewFromFloat(v))
}
