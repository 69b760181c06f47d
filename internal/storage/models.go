package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is one persisted daily close for a symbol.
type PriceBar struct {
	Symbol    string
	Date      time.Time
	Close     decimal.Decimal
	FetchedAt time.Time
}

// SymbolSummary describes the stored history of one symbol.
type SymbolSummary struct {
	Symbol      string
	Bars        int64
	FirstDate   time.Time
	LastDate    time.Time
	LastFetched time.Time
}
