package trigger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RawPoint is one provider observation before cleaning. An invalid Close
// stands for a missing price.
type RawPoint struct {
	Time  time.Time
	Close decimal.NullDecimal
}

// NewRawPoint builds a RawPoint with a present close.
func NewRawPoint(t time.Time, price decimal.Decimal) RawPoint {
	return RawPoint{Time: t, Close: decimal.NewNullDecimal(price)}
}

// PricePoint is a cleaned daily close.
type PricePoint struct {
	Date  time.Time
	Close decimal.Decimal
}

// PriceSeries is a symbol's history sorted ascending by date without duplicates.
type PriceSeries struct {
	Symbol Symbol
	Points []PricePoint
}

// Len reports the number of points.
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Latest returns the most recent point. The series must not be empty.
func (s PriceSeries) Latest() PricePoint {
	return s.Points[len(s.Points)-1]
}

// Closes returns the close values in date order.
func (s PriceSeries) Closes() []decimal.Decimal {
	closes := make([]decimal.Decimal, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// SymbolHistory is one symbol's resolved provider result: either raw points or
// the fetch error.
type SymbolHistory struct {
	Symbol Symbol
	Points []RawPoint
	Err    error
}

// Normalize cleans raw into a PriceSeries holding at least window points.
// Missing and non-positive closes are dropped, timestamps collapse to their
// calendar date and the last usable observation for a date wins.
func Normalize(symbol Symbol, raw []RawPoint, window int) (PriceSeries, error) {
	byDate := make(map[time.Time]decimal.Decimal, len(raw))
	for _, rp := range raw {
		if !rp.Close.Valid || !rp.Close.Decimal.IsPositive() {
			continue
		}
		byDate[CalendarDate(rp.Time)] = rp.Close.Decimal
	}

	if len(byDate) == 0 {
		return PriceSeries{}, fmt.Errorf("%s: %w", symbol, ErrEmptyInput)
	}
	if len(byDate) < window {
		return PriceSeries{}, fmt.Errorf("%s: %w: %d points, window %d", symbol, ErrInsufficientData, len(byDate), window)
	}

	points := make([]PricePoint, 0, len(byDate))
	for date, price := range byDate {
		points = append(points, PricePoint{Date: date, Close: price})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	return PriceSeries{Symbol: symbol, Points: points}, nil
}

// CalendarDate returns t's date in t's own location as UTC midnight.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
