package feed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProviderYahooChart = "yahoo-chart"
	ProviderYahooQuote = "yahoo-quote"
)

// Candle is one historical observation inside a lookup window.
type Candle struct {
	Timestamp time.Time
	Close     decimal.Decimal
}

// QuoteProvider resolves the current market price for a symbol.
type QuoteProvider interface {
	Name() string
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// HistoryProvider resolves candles inside a time window for a symbol.
// Candles are returned in chronological order.
type HistoryProvider interface {
	HistoricalWindow(ctx context.Context, symbol string, start, end time.Time) ([]Candle, error)
}

// Provider is a full price source: live quotes plus historical windows.
type Provider interface {
	QuoteProvider
	HistoryProvider
}
