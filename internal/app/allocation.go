package app

import (
	"github.com/shopspring/decimal"

	"dip-trigger/internal/config"
	"dip-trigger/internal/trigger"
)

// deployAmount is the share of the configured amount to deploy for r.
// Errored results deploy nothing.
func deployAmount(cfg config.AllocationConfig, r trigger.Result) decimal.Decimal {
	if !r.OK() {
		return decimal.Zero
	}
	amount := decimal.NewFromFloat(cfg.Amount)
	switch r.Signal {
	case trigger.SignalStrongDip:
		return amount.Mul(decimal.NewFromFloat(cfg.StrongDipFraction))
	case trigger.SignalDip:
		return amount.Mul(decimal.NewFromFloat(cfg.DipFraction))
	default:
		return decimal.Zero
	}
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
