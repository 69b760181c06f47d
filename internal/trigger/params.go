package trigger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	DefaultWindow          = 200
	DefaultMildThreshold   = 5.0
	DefaultStrongThreshold = 15.0
)

// Params hold the averaging window and the dip tiers, expressed as positive
// percentages below the moving average.
type Params struct {
	Window          int
	MildThreshold   decimal.Decimal
	StrongThreshold decimal.Decimal
}

// NewParams validates window > 0 and strong > mild > 0. NaN and infinite
// thresholds are rejected.
func NewParams(window int, mild, strong float64) (Params, error) {
	if !finite(mild) || !finite(strong) {
		return Params{}, fmt.Errorf("%w: thresholds must be finite, got mild=%v strong=%v", ErrInvalidConfig, mild, strong)
	}
	p := Params{
		Window:          window,
		MildThreshold:   decimal.NewFromFloat(mild),
		StrongThreshold: decimal.NewFromFloat(strong),
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// DefaultParams returns the 200-day window with 5% and 15% tiers.
func DefaultParams() Params {
	p, _ := NewParams(DefaultWindow, DefaultMildThreshold, DefaultStrongThreshold)
	return p
}

// Validate reports ErrInvalidConfig for an unusable configuration.
func (p Params) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %d", ErrInvalidConfig, p.Window)
	}
	if !p.MildThreshold.IsPositive() {
		return fmt.Errorf("%w: mild_threshold must be positive, got %s", ErrInvalidConfig, p.MildThreshold)
	}
	if !p.StrongThreshold.GreaterThan(p.MildThreshold) {
		return fmt.Errorf("%w: strong_threshold (%s) must exceed mild_threshold (%s)", ErrInvalidConfig, p.StrongThreshold, p.MildThreshold)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
