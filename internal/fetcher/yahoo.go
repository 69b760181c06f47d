package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"dip-trigger/internal/trigger"
)

const (
	yahooChartPath   = "/v8/finance/chart/{ticker}"
	defaultYahooBase = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (compatible; diptrigger/1.0)"
)

// YahooOptions parameterise the Yahoo Finance chart provider.
type YahooOptions struct {
	BaseURL           string
	Range             string
	Timeout           time.Duration
	Retries           int
	UserAgent         string
	RequestsPerMinute int
	// Aliases maps configured symbols to Yahoo tickers, e.g. SPX -> ^GSPC.
	Aliases map[string]string
}

// Yahoo fetches daily closes from the Yahoo Finance v8 chart API.
type Yahoo struct {
	opts    YahooOptions
	client  *resty.Client
	limiter *rate.Limiter
	aliases map[trigger.Symbol]string
	logger  zerolog.Logger
}

// NewYahoo constructs a Yahoo provider.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Range == "" {
		opts.Range = "2y"
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultYahooBase
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}

	aliases := make(map[trigger.Symbol]string, len(opts.Aliases))
	for k, v := range opts.Aliases {
		if sym, err := trigger.ParseSymbol(k); err == nil && strings.TrimSpace(v) != "" {
			aliases[sym] = strings.TrimSpace(v)
		}
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", ua).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		})

	return &Yahoo{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		aliases: aliases,
		logger:  logger.With().Str("component", "yahoo_provider").Logger(),
	}
}

// Ticker returns the Yahoo ticker requested for symbol.
func (y *Yahoo) Ticker(symbol trigger.Symbol) string {
	if t, ok := y.aliases[symbol]; ok {
		return t
	}
	return symbol.String()
}

// FetchHistory downloads the configured range of daily bars for symbol.
func (y *Yahoo) FetchHistory(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
	ticker := y.Ticker(symbol)

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("yahoo rate limit wait: %w", err)
	}

	resp, err := y.client.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParams(map[string]string{
			"interval":       "1d",
			"range":          y.opts.Range,
			"includePrePost": "false",
			"events":         "div,split",
		}).
		Get(yahooChartPath)
	if err != nil {
		return nil, fmt.Errorf("yahoo request %s: %w", ticker, err)
	}

	var payload chartResponse
	decodeErr := json.Unmarshal(resp.Body(), &payload)

	if resp.StatusCode() != http.StatusOK {
		return nil, parseChartError(ticker, resp.StatusCode(), payload, decodeErr, resp.Body())
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("yahoo decode %s: %w", ticker, decodeErr)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error %s: %s", ticker, payload.Chart.Error.Description)
	}

	points, err := payload.rawPoints()
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, err)
	}

	y.logger.Debug().Str("symbol", symbol.String()).Str("ticker", ticker).Int("points", len(points)).Msg("history fetched")
	return points, nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GMTOffset            int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// rawPoints keeps null closes as missing points; the normalizer drops them.
func (c chartResponse) rawPoints() ([]trigger.RawPoint, error) {
	if len(c.Chart.Result) == 0 {
		return nil, errors.New("no chart result")
	}
	result := c.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, errors.New("no quote data")
	}
	closes := result.Indicators.Quote[0].Close

	zone := time.FixedZone(result.Meta.ExchangeTimezoneName, result.Meta.GMTOffset)
	points := make([]trigger.RawPoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		rp := trigger.RawPoint{Time: time.Unix(ts, 0).In(zone)}
		if i < len(closes) && closes[i] != nil {
			rp.Close = decimal.NewNullDecimal(decimal.NewFromFloat(*closes[i]))
		}
		points = append(points, rp)
	}
	return points, nil
}

func parseChartError(ticker string, status int, payload chartResponse, decodeErr error, body []byte) error {
	if decodeErr == nil && payload.Chart.Error != nil {
		if payload.Chart.Error.Description != "" {
			return fmt.Errorf("yahoo api error %s (%d): %s", ticker, status, payload.Chart.Error.Description)
		}
		return fmt.Errorf("yahoo api error %s (%d): %s", ticker, status, payload.Chart.Error.Code)
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return fmt.Errorf("yahoo api error %s (%d): %s", ticker, status, trimmed)
	}
	return fmt.Errorf("yahoo api error %s (%d)", ticker, status)
}

var _ HistoryProvider = (*Yahoo)(nil)
