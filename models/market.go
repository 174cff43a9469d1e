package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for workbook file names and
// API date parameters (MM-DD-YYYY).
const DateLayout = "01-02-2006"

// Slot is one of the fixed trading-day hours at which a price sample is
// recorded. Label is what appears as the column header; Hour anchors the
// trigger time and the historical lookup window.
type Slot struct {
	Hour  int    `json:"hour"`
	Label string `json:"label"`
}

// DefaultSlots returns the tracked trading-day hours in column order.
func DefaultSlots() []Slot {
	return []Slot{
		{Hour: 9, Label: "9:31 AM"},
		{Hour: 10, Label: "10:00 AM"},
		{Hour: 11, Label: "11:00 AM"},
		{Hour: 12, Label: "12 NOON"},
		{Hour: 13, Label: "1:00 PM"},
		{Hour: 14, Label: "2:00 PM"},
		{Hour: 15, Label: "3:00 PM"},
		{Hour: 16, Label: "4:00 PM"},
	}
}

// DefaultBasket returns the tracked DOW 30 symbols in row order.
func DefaultBasket() []string {
	return []string{
		"AAPL", "AMGN", "AXP", "BA", "CAT", "CRM", "CSCO", "CVX", "DIS", "DOW",
		"GS", "HD", "HON", "IBM", "INTC", "JNJ", "JPM", "KO", "MCD", "MMM",
		"MRK", "MSFT", "NKE", "PG", "TRV", "UNH", "V", "VZ", "WBA", "WMT",
	}
}

// SlotByLabel finds a slot by its column label.
func SlotByLabel(slots []Slot, label string) (Slot, error) {
	for _, s := range slots {
		if s.Label == label {
			return s, nil
		}
	}
	return Slot{}, fmt.Errorf("unknown slot label %q", label)
}

// SlotIndex returns the position of a slot within the configured slot table.
func SlotIndex(slots []Slot, label string) (int, error) {
	for i, s := range slots {
		if s.Label == label {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown slot label %q", label)
}

// SlotTime returns the slot's nominal timestamp on the given calendar date.
// The nominal time is the top of the slot's hour in the date's location.
func SlotTime(day time.Time, slot Slot) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), slot.Hour, 0, 0, 0, day.Location())
}

// FetchMode selects between a time-anchored historical lookup and a live
// current-price lookup.
type FetchMode int

const (
	ModeHistorical FetchMode = iota
	ModeLive
)

func (m FetchMode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "historical"
}

// PriceSample is the resolved price for one (symbol, slot) cell. A nil Price
// means the lookup failed or no data was available; the cell stays blank and
// is never coerced to zero.
type PriceSample struct {
	Symbol string           `json:"symbol"`
	Price  *decimal.Decimal `json:"price"`
}

// Present reports whether the sample carries a value.
func (p PriceSample) Present() bool {
	return p.Price != nil
}

// Trend is the columnar up/down marker attached to a cell relative to the
// slot immediately to its left.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = ""
)

// CompareTrend computes the marker for a cell given its left neighbor. Both
// values must be present and strictly ordered for a non-neutral result.
func CompareTrend(prev, cur *decimal.Decimal) Trend {
	if prev == nil || cur == nil {
		return TrendNeutral
	}
	switch cur.Cmp(*prev) {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	}
	return TrendNeutral
}

// GridCell is one (symbol, slot) cell as served to the presentation layer.
type GridCell struct {
	Value *decimal.Decimal `json:"value"`
	Trend Trend            `json:"trend,omitempty"`
}

// GridRow is one basket symbol's row across all slots.
type GridRow struct {
	Ticker string     `json:"ticker"`
	Cells  []GridCell `json:"cells"`
}

// Grid is the full per-day table the presentation layer renders.
type Grid struct {
	Date    string    `json:"date"`
	Columns []string  `json:"columns"`
	Rows    []GridRow `json:"rows"`
}

// SampleRecord is one archived price observation.
type SampleRecord struct {
	Day       string          `json:"day"`
	Slot      string          `json:"slot"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
}
