package trigger

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Signal is the discrete severity of a deviation.
type Signal string

const (
	SignalNeutral   Signal = "NEUTRAL"
	SignalDip       Signal = "DIP"
	SignalStrongDip Signal = "STRONG_DIP"
)

// Severity orders signals from NEUTRAL (0) to STRONG_DIP (2).
func (s Signal) Severity() int {
	switch s {
	case SignalStrongDip:
		return 2
	case SignalDip:
		return 1
	default:
		return 0
	}
}

const asOfLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// Result is one symbol's evaluation. When Error is set the numeric fields are
// zero and carry no meaning.
type Result struct {
	Symbol        Symbol
	LatestPrice   decimal.Decimal
	MovingAverage decimal.Decimal
	DeviationPct  decimal.Decimal
	Signal        Signal
	AsOfDate      time.Time
	Error         ErrorCode
}

// OK reports whether the evaluation completed.
func (r Result) OK() bool {
	return r.Error == ""
}

type resultJSON struct {
	Symbol        Symbol       `json:"symbol"`
	LatestPrice   *json.Number `json:"latest_price,omitempty"`
	MovingAverage *json.Number `json:"moving_average,omitempty"`
	DeviationPct  *json.Number `json:"deviation_pct,omitempty"`
	Signal        Signal       `json:"signal,omitempty"`
	AsOfDate      string       `json:"as_of_date,omitempty"`
	Error         ErrorCode    `json:"error,omitempty"`
}

// MarshalJSON emits numbers without quotes and omits every numeric field of
// an errored result.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Symbol: r.Symbol, Error: r.Error}
	if r.OK() {
		out.LatestPrice = number(r.LatestPrice)
		out.MovingAverage = number(r.MovingAverage)
		out.DeviationPct = number(r.DeviationPct)
		out.Signal = r.Signal
		out.AsOfDate = r.AsOfDate.Format(asOfLayout)
	}
	return json.Marshal(out)
}

func number(d decimal.Decimal) *json.Number {
	n := json.Number(d.String())
	return &n
}

// BatchResult holds one Result per requested symbol in request order.
type BatchResult struct {
	Results []Result `json:"results"`
}

// Failed counts errored results.
func (b BatchResult) Failed() int {
	n := 0
	for _, r := range b.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Evaluate computes the trailing simple moving average of series and
// classifies the latest close against it. A series shorter than
// params.Window yields an INSUFFICIENT_HISTORY result.
func Evaluate(series PriceSeries, params Params) Result {
	if params.Window <= 0 || series.Len() < params.Window {
		return Result{Symbol: series.Symbol, Error: ErrorInsufficientHistory}
	}
	latest := series.Latest()
	ma := trailingMean(series.Points[series.Len()-params.Window:])
	deviation := latest.Close.Sub(ma).Div(ma).Mul(hundred)

	return Result{
		Symbol:        series.Symbol,
		LatestPrice:   latest.Close,
		MovingAverage: ma,
		DeviationPct:  deviation,
		Signal:        Classify(deviation, params),
		AsOfDate:      latest.Date,
	}
}

// Classify maps a signed deviation percentage onto a signal. Boundaries are
// inclusive and the most severe tier is tested first.
func Classify(deviationPct decimal.Decimal, params Params) Signal {
	switch {
	case deviationPct.LessThanOrEqual(params.StrongThreshold.Neg()):
		return SignalStrongDip
	case deviationPct.LessThanOrEqual(params.MildThreshold.Neg()):
		return SignalDip
	default:
		return SignalNeutral
	}
}

// EvaluateAll normalizes and evaluates each history independently. A symbol
// whose fetch or normalization failed yields an errored Result; the batch
// always has one entry per history, in order.
func EvaluateAll(histories []SymbolHistory, params Params) BatchResult {
	results := make([]Result, 0, len(histories))
	for _, h := range histories {
		results = append(results, evaluateOne(h, params))
	}
	return BatchResult{Results: results}
}

func evaluateOne(h SymbolHistory, params Params) Result {
	if h.Err != nil {
		return Result{Symbol: h.Symbol, Error: ErrorDataUnavailable}
	}
	series, err := Normalize(h.Symbol, h.Points, params.Window)
	if err != nil {
		return Result{Symbol: h.Symbol, Error: classifyError(err)}
	}
	return Evaluate(series, params)
}

// MovingAverages returns the rolling simple moving average aligned with
// series.Points. Entries before the first full window are invalid.
func MovingAverages(series PriceSeries, window int) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, series.Len())
	if window <= 0 {
		return out
	}
	for i := window - 1; i < series.Len(); i++ {
		out[i] = decimal.NewNullDecimal(trailingMean(series.Points[i-window+1 : i+1]))
	}
	return out
}

func trailingMean(points []PricePoint) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(p.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(len(points))))
}
