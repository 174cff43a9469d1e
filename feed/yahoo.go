package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const (
	YahooChartBaseURL = "https://query1.finance.yahoo.com"
	chartPathFormat   = "/v8/finance/chart/%s"
	UserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0 Safari/537.36"
)

// chartResponse mirrors the subset of the Yahoo v8 chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooChartFeed is the primary price source. Historical windows come from
// one-minute candles; live quotes come from the chart metadata.
type YahooChartFeed struct {
	BaseURL string
	client  *http.Client
}

// NewYahooChartFeed creates the primary Yahoo chart-API provider.
func NewYahooChartFeed(timeout time.Duration) *YahooChartFeed {
	return &YahooChartFeed{
		BaseURL: YahooChartBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (y *YahooChartFeed) Name() string {
	return ProviderYahooChart
}

// HistoricalWindow fetches one-minute candles between start and end and
// returns them in chronological order. Candles without a close are skipped.
func (y *YahooChartFeed) HistoricalWindow(ctx context.Context, symbol string, start, end time.Time) ([]Candle, error) {
	q := url.Values{}
	q.Set("interval", "1m")
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))

	chart, err := y.fetchChart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := result.Indicators.Quote[0].Close

	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		candles = append(candles, Candle{
			Timestamp: time.Unix(ts, 0),
			Close:     decimal.NewFromFloat(*closes[i]),
		})
	}
	return candles, nil
}

// CurrentPrice reads regularMarketPrice from the chart metadata.
func (y *YahooChartFeed) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("interval", "1m")
	q.Set("range", "1d")

	chart, err := y.fetchChart(ctx, symbol, q)
	if err != nil {
		return decimal.Zero, err
	}

	price := chart.Chart.Result[0].Meta.RegularMarketPrice
	if price == nil {
		return decimal.Zero, fmt.Errorf("no regularMarketPrice for %s", symbol)
	}
	return decimal.NewFromFloat(*price), nil
}

func (y *YahooChartFeed) fetchChart(ctx context.Context, symbol string, q url.Values) (*chartResponse, error) {
	reqURL := y.BaseURL + fmt.Sprintf(chartPathFormat, url.PathEscape(symbol)) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chart API error for %s (status %d): %s", symbol, resp.StatusCode, string(body))
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result for %s", symbol)
	}
	return &chart, nil
}
