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
	YahooQuoteBaseURL = "https://query1.finance.yahoo.com"
	quotePath         = "/v7/finance/quote"
)

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// YahooQuoteFeed is the secondary live-quote source, backed by the v7 quote
// endpoint. It only serves current prices; live fetches fall back to it when
// the primary source has nothing.
type YahooQuoteFeed struct {
	BaseURL string
	client  *http.Client
}

// NewYahooQuoteFeed creates the fallback quote provider.
func NewYahooQuoteFeed(timeout time.Duration) *YahooQuoteFeed {
	return &YahooQuoteFeed{
		BaseURL: YahooQuoteBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (y *YahooQuoteFeed) Name() string {
	return ProviderYahooQuote
}

// CurrentPrice fetches regularMarketPrice from the quote endpoint.
func (y *YahooQuoteFeed) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbols", symbol)
	reqURL := y.BaseURL + quotePath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return decimal.Zero, fmt.Errorf("quote API error for %s (status %d): %s", symbol, resp.StatusCode, string(body))
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse quote response: %w", err)
	}

	result := quote.QuoteResponse.Result
	if len(result) == 0 || result[0].RegularMarketPrice == nil {
		return decimal.Zero, fmt.Errorf("no quote data for %s", symbol)
	}
	return decimal.NewFromFloat(*result[0].RegularMarketPrice), nil
}
