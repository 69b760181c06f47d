package trigger

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(t *testing.T, closes ...float64) PriceSeries {
	t.Helper()
	raw := make([]RawPoint, len(closes))
	for i, c := range closes {
		raw[i] = NewRawPoint(day0.AddDate(0, 0, i), decimal.NewFromFloat(c))
	}
	series, err := Normalize("SPX", raw, len(closes))
	require.NoError(t, err)
	return series
}

func mustParams(t *testing.T, window int, mild, strong float64) Params {
	t.Helper()
	p, err := NewParams(window, mild, strong)
	require.NoError(t, err)
	return p
}

func TestEvaluateStrongDipScenario(t *testing.T) {
	raw := flatHistory(200, 100)
	raw[199] = NewRawPoint(raw[199].Time, decimal.NewFromFloat(80))

	series, err := Normalize("SPX", raw, DefaultWindow)
	require.NoError(t, err)

	res := Evaluate(series, DefaultParams())
	require.True(t, res.OK())
	assert.True(t, res.MovingAverage.Equal(decimal.RequireFromString("99.9")), "ma %s", res.MovingAverage)
	assert.True(t, res.LatestPrice.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, "-19.92", res.DeviationPct.StringFixed(2))
	assert.Equal(t, SignalStrongDip, res.Signal)
	assert.Equal(t, day0.AddDate(0, 0, 199), res.AsOfDate)
}

func TestEvaluateUsesTrailingWindowOnly(t *testing.T) {
	raw := flatHistory(260, 50)
	for i := 60; i < 260; i++ {
		raw[i] = NewRawPoint(raw[i].Time, decimal.NewFromInt(int64(i)))
	}
	series, err := Normalize("SPX", raw, DefaultWindow)
	require.NoError(t, err)

	res := Evaluate(series, DefaultParams())

	sum := decimal.Zero
	for _, c := range series.Closes()[series.Len()-DefaultWindow:] {
		sum = sum.Add(c)
	}
	expected := sum.Div(decimal.NewFromInt(DefaultWindow))
	assert.True(t, res.MovingAverage.Equal(expected), "ma %s want %s", res.MovingAverage, expected)
	assert.True(t, res.MovingAverage.Equal(decimal.RequireFromString("159.5")))
}

func TestEvaluateFlatSeriesIsNeutral(t *testing.T) {
	series, err := Normalize("SPX", flatHistory(200, 4321.5), DefaultWindow)
	require.NoError(t, err)

	res := Evaluate(series, DefaultParams())
	assert.True(t, res.DeviationPct.IsZero())
	assert.Equal(t, SignalNeutral, res.Signal)
}

func TestEvaluateInclusiveBoundaries(t *testing.T) {
	params := mustParams(t, 2, 5, 15)

	dip := Evaluate(seriesOf(t, 105, 95), params)
	require.True(t, dip.DeviationPct.Equal(decimal.NewFromInt(-5)), "deviation %s", dip.DeviationPct)
	assert.Equal(t, SignalDip, dip.Signal)

	strong := Evaluate(seriesOf(t, 115, 85), params)
	require.True(t, strong.DeviationPct.Equal(decimal.NewFromInt(-15)), "deviation %s", strong.DeviationPct)
	assert.Equal(t, SignalStrongDip, strong.Signal)

	above := Evaluate(seriesOf(t, 90, 110), params)
	assert.True(t, above.DeviationPct.IsPositive())
	assert.Equal(t, SignalNeutral, above.Signal)
}

func TestClassifyMonotonic(t *testing.T) {
	params := DefaultParams()
	prev := -1
	for d := 30.0; d >= -40.0; d -= 0.25 {
		sev := Classify(decimal.NewFromFloat(d), params).Severity()
		assert.GreaterOrEqual(t, sev, prev, "deviation %.2f", d)
		prev = sev
	}
}

func TestEvaluateMonotonicInLatestPrice(t *testing.T) {
	params := mustParams(t, 5, 5, 15)
	prev := -1
	for latest := 130.0; latest >= 40; latest -= 2.5 {
		res := Evaluate(seriesOf(t, 100, 100, 100, 100, latest), params)
		sev := res.Signal.Severity()
		assert.GreaterOrEqual(t, sev, prev, "latest %.2f", latest)
		prev = sev
	}
	assert.Equal(t, SignalStrongDip.Severity(), prev)
}

func TestEvaluateIdempotent(t *testing.T) {
	raw := flatHistory(220, 100)
	for i := range raw {
		raw[i] = NewRawPoint(raw[i].Time, decimal.NewFromFloat(100+float64(i%7)*1.37))
	}
	series, err := Normalize("NDX", raw, DefaultWindow)
	require.NoError(t, err)

	first := Evaluate(series, DefaultParams())
	second := Evaluate(series, DefaultParams())
	assert.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluateAllPreservesOrderAndIsolatesFailures(t *testing.T) {
	good := flatHistory(200, 100)
	histories := []SymbolHistory{
		{Symbol: "SPX", Points: good},
		{Symbol: "NDX", Err: errors.New("provider outage")},
		{Symbol: "NSEI", Points: flatHistory(150, 100)},
		{Symbol: "BTC-USD", Points: nil},
		{Symbol: "IXIC", Points: good},
	}

	batch := EvaluateAll(histories, DefaultParams())
	require.Len(t, batch.Results, len(histories))
	for i, h := range histories {
		assert.Equal(t, h.Symbol, batch.Results[i].Symbol)
	}

	assert.True(t, batch.Results[0].OK())
	assert.Equal(t, ErrorDataUnavailable, batch.Results[1].Error)
	assert.Equal(t, ErrorInsufficientHistory, batch.Results[2].Error)
	assert.Equal(t, ErrorDataUnavailable, batch.Results[3].Error)
	assert.True(t, batch.Results[4].OK())
	assert.Equal(t, 3, batch.Failed())

	series, err := Normalize("SPX", good, DefaultWindow)
	require.NoError(t, err)
	assert.Equal(t, Evaluate(series, DefaultParams()), batch.Results[0])
}

func TestEvaluateAllInsufficientScenario(t *testing.T) {
	batch := EvaluateAll([]SymbolHistory{{Symbol: "NDX", Points: flatHistory(150, 100)}}, DefaultParams())
	require.Len(t, batch.Results, 1)
	res := batch.Results[0]
	assert.Equal(t, ErrorInsufficientHistory, res.Error)
	assert.True(t, res.LatestPrice.IsZero())
	assert.True(t, res.MovingAverage.IsZero())
}

func TestResultJSON(t *testing.T) {
	errored, err := json.Marshal(Result{Symbol: "NDX", Error: ErrorInsufficientHistory})
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"NDX","error":"INSUFFICIENT_HISTORY"}`, string(errored))

	ok := Evaluate(seriesOf(t, 105, 95), mustParams(t, 2, 5, 15))
	body, err := json.Marshal(BatchResult{Results: []Result{ok}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[{"symbol":"SPX","latest_price":95,"moving_average":100,"deviation_pct":-5,"signal":"DIP","as_of_date":"2024-01-02"}]}`, string(body))
}

func TestMovingAveragesMatchesEvaluate(t *testing.T) {
	series := seriesOf(t, 10, 20, 30, 40, 50)
	avgs := MovingAverages(series, 3)
	require.Len(t, avgs, 5)
	assert.False(t, avgs[0].Valid)
	assert.False(t, avgs[1].Valid)
	assert.True(t, avgs[2].Decimal.Equal(decimal.NewFromInt(20)))
	assert.True(t, avgs[4].Decimal.Equal(decimal.NewFromInt(40)))

	res := Evaluate(series, mustParams(t, 3, 5, 15))
	assert.True(t, avgs[4].Decimal.Equal(res.MovingAverage))
}

func TestNewParamsRejectsInvalid(t *testing.T) {
	cases := []struct {
		name         string
		window       int
		mild, strong float64
	}{
		{"strong below mild", 200, 5, 3},
		{"equal thresholds", 200, 5, 5},
		{"zero mild", 200, 0, 15},
		{"negative mild", 200, -5, 15},
		{"zero window", 0, 5, 15},
		{"negative window", -5, 5, 15},
		{"NaN mild", 200, math.NaN(), 15},
		{"NaN strong", 200, 5, math.NaN()},
		{"infinite strong", 200, 5, math.Inf(1)},
		{"negative infinite mild", 200, math.Inf(-1), 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParams(tc.window, tc.mild, tc.strong)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestEvaluateShortSeriesIsInsufficient(t *testing.T) {
	series := seriesOf(t, 100, 101, 102)

	res := Evaluate(series, mustParams(t, 5, 5, 15))
	assert.Equal(t, ErrorInsufficientHistory, res.Error)
	assert.Equal(t, Symbol("SPX"), res.Symbol)
	assert.False(t, res.OK())

	empty := Evaluate(PriceSeries{Symbol: "NDX"}, DefaultParams())
	assert.Equal(t, ErrorInsufficientHistory, empty.Error)
}
