package workbook

import (
	"os"
	"testing"
	"time"

	"dow_tracker_backend/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var testSlots = []models.Slot{
	{Hour: 10, Label: "10:00 AM"},
	{Hour: 11, Label: "11:00 AM"},
	{Hour: 12, Label: "12 NOON"},
}

func newTestStore(t *testing.T, basket []string) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), basket, testSlots, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func samples(pairs map[string]*decimal.Decimal) []models.PriceSample {
	out := make([]models.PriceSample, 0, len(pairs))
	for sym, p := range pairs {
		out = append(out, models.PriceSample{Symbol: sym, Price: p})
	}
	return out
}

func TestEnsureCreatesHeaderAndRows(t *testing.T) {
	store := newTestStore(t, []string{"AAA", "BBB"})
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

	if err := store.Ensure(day); err != nil {
		t.Fatal(err)
	}

	path := store.Path(day)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("workbook not created: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	header, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Ticker", "10:00 AM", "11:00 AM", "12 NOON"}
	for i, col := range want {
		if header[0][i] != col {
			t.Fatalf("header[%d]: expected %q, got %q", i, col, header[0][i])
		}
	}
	if header[1][0] != "AAA" || header[2][0] != "BBB" {
		t.Fatalf("unexpected ticker rows: %v", header[1:])
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	store := newTestStore(t, []string{"AAA"})
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

	if err := store.Merge(day, testSlots[0], samples(map[string]*decimal.Decimal{"AAA": price("100.00")})); err != nil {
		t.Fatal(err)
	}
	// A second Ensure must not recreate the file and wipe the merged value.
	if err := store.Ensure(day); err != nil {
		t.Fatal(err)
	}

	grid, err := store.Grid(day)
	if err != nil {
		t.Fatal(err)
	}
	if grid.Rows[0].Cells[0].Value == nil {
		t.Fatal("Ensure after Merge lost the written value")
	}
}

func TestMergeTrendMarks(t *testing.T) {
	store := newTestStore(t, []string{"AAA", "BBB", "CCC"})
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

	// Slot 1: all three get a value.
	err := store.Merge(day, testSlots[0], samples(map[string]*decimal.Decimal{
		"AAA": price("100.00"), "BBB": price("50.00"), "CCC": price("75.00"),
	}))
	if err != nil {
		t.Fatal(err)
	}

	// Slot 2: AAA up, BBB down, CCC equal.
	err = store.Merge(day, testSlots[1], samples(map[string]*decimal.Decimal{
		"AAA": price("101.00"), "BBB": price("49.00"), "CCC": price("75.00"),
	}))
	if err != nil {
		t.Fatal(err)
	}

	grid, err := store.Grid(day)
	if err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		row  int
		want models.Trend
	}{
		{0, models.TrendUp},
		{1, models.TrendDown},
		{2, models.TrendNeutral},
	}
	for _, c := range checks {
		if got := grid.Rows[c.row].Cells[1].Trend; got != c.want {
			t.Fatalf("row %d slot 2: expected trend %q, got %q", c.row, c.want, got)
		}
	}

	// First slot column is never tagged: it has no left neighbor.
	for i := range grid.Rows {
		if grid.Rows[i].Cells[0].Trend != models.TrendNeutral {
			t.Fatalf("row %d slot 1: expected neutral first column", i)
		}
	}

	// The up/down cells carry a fill style in the file itself; the equal
	// cell stays on the default style.
	f, err := excelize.OpenFile(store.Path(day))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	upID, _ := f.GetCellStyle(SheetName, "C2")
	downID, _ := f.GetCellStyle(SheetName, "C3")
	eqID, _ := f.GetCellStyle(SheetName, "C4")
	if upID == 0 || downID == 0 {
		t.Fatalf("expected styled up/down cells, got %d and %d", upID, downID)
	}
	if upID == downID {
		t.Fatal("up and down cells must use different styles")
	}
	if eqID != 0 {
		t.Fatalf("equal cell should keep the default style, got %d", eqID)
	}
}

func TestMergeAbsentNeverClobbers(t *testing.T) {
	store := newTestStore(t, []string{"AAA"})
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

	if err := store.Merge(day, testSlots[0], samples(map[string]*decimal.Decimal{"AAA": price("100.00")})); err != nil {
		t.Fatal(err)
	}
	// Re-merge the same slot with an absent sample: the cell must keep 100.00.
	if err := store.Merge(day, testSlots[0], samples(map[string]*decimal.Decimal{"AAA": nil})); err != nil {
		t.Fatal(err)
	}

	grid, err := store.Grid(day)
	if err != nil {
		t.Fatal(err)
	}
	got := grid.Rows[0].Cells[0].Value
	if got == nil || !got.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected 100.00 preserved, got %v", got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	store := newTestStore(t, []string{"AAA"})
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)
	batch := samples(map[string]*decimal.Decimal{"AAA": price("123.45")})

	for i := 0; i < 3; i++ {
		if err := store.Merge(day, testSlots[1], batch); err != nil {
			t.Fatal(err)
		}
	}

	grid, err := store.Grid(day)
	if err != nil {
		t.Fatal(err)
	}
	got := grid.Rows[0].Cells[1].Value
	if got == nil || !got.Equal(decimal.RequireFromString("123.45")) {
		t.Fatalf("expected 123.45 after repeated merges, got %v", got)
	}
}

func TestMergeRoundsToTwoDecimals(t *testing.T) {
	store := newTestStore(t, []string{"AAA"})
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

	if err := store.Merge(day, testSlots[0], samples(map[string]*decimal.Decimal{"AAA": price("100.005")})); err != nil {
		t.Fatal(err)
	}

	grid, err := store.Grid(day)
	if err != nil {
		t.Fatal(err)
	}
	got := grid.Rows[0].Cells[0].Value
	if got == nil || !got.Equal(decimal.RequireFromString("100.01")) {
		t.Fatalf("expected 100.01, got %v", got)
	}
}

func TestMergeUnknownSlot(t *testing.T) {
	store := newTestStore(t, []string{"AAA"})
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

	err := store.Merge(day, models.Slot{Hour: 17, Label: "5:00 PM"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown slot label")
	}
}

func TestSeparateDaysSeparateFiles(t *testing.T) {
	store := newTestStore(t, []string{"AAA"})
	day1 := time.Date(2026, 8, 27, 0, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

	if err := store.Merge(day1, testSlots[0], samples(map[string]*decimal.Decimal{"AAA": price("90.00")})); err != nil {
		t.Fatal(err)
	}
	if err := store.Merge(day2, testSlots[0], samples(map[string]*decimal.Decimal{"AAA": price("91.00")})); err != nil {
		t.Fatal(err)
	}

	if store.Path(day1) == store.Path(day2) {
		t.Fatal("different dates must map to different files")
	}

	g1, err := store.Grid(day1)
	if err != nil {
		t.Fatal(err)
	}
	if !g1.Rows[0].Cells[0].Value.Equal(decimal.RequireFromString("90.00")) {
		t.Fatalf("day1 value clobbered: %v", g1.Rows[0].Cells[0].Value)
	}
}
