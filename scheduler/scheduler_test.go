package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"dow_tracker_backend/feed"
	"dow_tracker_backend/models"
	"dow_tracker_backend/services/snapshot"
	"dow_tracker_backend/services/workbook"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestDispatchFiresDueEntriesOnce(t *testing.T) {
	var mu sync.Mutex
	fired := map[string]int{}
	record := func(name string) Job {
		return func(time.Time) {
			mu.Lock()
			fired[name]++
			mu.Unlock()
		}
	}

	entries := []Entry{
		{Name: "ten", Hour: 10, Run: record("ten")},
		{Name: "eleven", Hour: 11, Run: record("eleven")},
	}
	s := New(entries, SystemClock{}, zap.NewNop().Sugar())

	at := time.Date(2026, 8, 28, 10, 0, 15, 0, time.Local)
	s.dispatch(at)
	s.dispatch(at.Add(20 * time.Second)) // second poll in the same minute

	if fired["ten"] != 1 {
		t.Fatalf("ten should fire exactly once in its minute, got %d", fired["ten"])
	}
	if fired["eleven"] != 0 {
		t.Fatalf("eleven should not fire at 10:00, got %d", fired["eleven"])
	}

	// Next day, same minute: fires again.
	s.dispatch(at.Add(24 * time.Hour))
	if fired["ten"] != 2 {
		t.Fatalf("ten should fire again the next day, got %d", fired["ten"])
	}
}

func TestDispatchSurvivesPanickingJob(t *testing.T) {
	ran := false
	entries := []Entry{
		{Name: "boom", Hour: 10, Run: func(time.Time) { panic("job failure") }},
		{Name: "after", Hour: 10, Run: func(time.Time) { ran = true }},
	}
	s := New(entries, SystemClock{}, zap.NewNop().Sugar())

	s.dispatch(time.Date(2026, 8, 28, 10, 0, 0, 0, time.Local))
	if !ran {
		t.Fatal("a panicking job must not stop subsequent jobs")
	}
}

func TestStartStop(t *testing.T) {
	s := New(nil, SystemClock{}, zap.NewNop().Sugar())
	s.Start()
	if !s.IsRunning() {
		t.Fatal("expected running after Start")
	}
	s.Start() // second Start is a no-op
	s.Stop()
	if s.IsRunning() {
		t.Fatal("expected stopped after Stop")
	}
	s.Stop() // second Stop is a no-op
}

type backfillFeed struct {
	mu    sync.Mutex
	calls int
}

func (f *backfillFeed) Name() string { return "backfill-fake" }

func (f *backfillFeed) CurrentPrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.RequireFromString("100.00"), nil
}

func (f *backfillFeed) HistoricalWindow(_ context.Context, _ string, start, _ time.Time) ([]feed.Candle, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return []feed.Candle{{Timestamp: start, Close: decimal.RequireFromString("100.00")}}, nil
}

func newBackfillService(t *testing.T, slots []models.Slot, primary *backfillFeed) (*snapshot.Service, *workbook.Store) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	store, err := workbook.NewStore(t.TempDir(), []string{"AAA"}, slots, logger)
	if err != nil {
		t.Fatal(err)
	}
	svc := snapshot.NewService(snapshot.Params{
		Basket:   []string{"AAA"},
		Slots:    slots,
		Workers:  2,
		Primary:  primary,
		Fallback: primary,
		Store:    store,
		Log:      logger,
	})
	return svc, store
}

// Process starts at 13:15 with slots at 9..16: hours 9-13 back-fill
// immediately, 14-16 wait for their live triggers.
func TestStartupBackfillSelectsElapsedSlots(t *testing.T) {
	slots := models.DefaultSlots()
	primary := &backfillFeed{}
	svc, store := newBackfillService(t, slots, primary)

	now := time.Date(2026, 8, 28, 13, 15, 0, 0, time.Local)
	n := RunStartupBackfill(context.Background(), now, slots, svc, zap.NewNop().Sugar())
	if n != 5 {
		t.Fatalf("expected 5 back-filled slots at 13:15, got %d", n)
	}

	grid, err := store.Grid(now)
	if err != nil {
		t.Fatal(err)
	}
	for i := range slots {
		got := grid.Rows[0].Cells[i].Value
		if i < 5 && got == nil {
			t.Fatalf("slot %s should be back-filled", slots[i].Label)
		}
		if i >= 5 && got != nil {
			t.Fatalf("slot %s should remain pending, got %v", slots[i].Label, got)
		}
	}
}

func TestBuildEntriesShape(t *testing.T) {
	slots := models.DefaultSlots()
	primary := &backfillFeed{}
	svc, store := newBackfillService(t, slots, primary)

	entries := BuildEntries(slots, svc, store, zap.NewNop().Sugar())
	// one midnight rollover plus historical+live per slot
	if want := len(slots)*2 + 1; len(entries) != want {
		t.Fatalf("expected %d entries, got %d", want, len(entries))
	}
	if entries[0].Hour != 0 || entries[0].Minute != 0 {
		t.Fatalf("first entry should be the midnight rollover, got %d:%d", entries[0].Hour, entries[0].Minute)
	}

	// Each slot job targets its own hour, not a shared captured variable.
	seen := map[int]int{}
	for _, e := range entries[1:] {
		seen[e.Hour]++
	}
	for _, slot := range slots {
		if seen[slot.Hour] != 2 {
			t.Fatalf("hour %d should have a historical and a live entry, got %d", slot.Hour, seen[slot.Hour])
		}
	}
}

// A fetch entry dispatched at a given time writes into that day's workbook,
// so an entry firing tomorrow never touches today's sheet.
func TestFetchEntryUsesDispatchDate(t *testing.T) {
	slots := []models.Slot{{Hour: 10, Label: "10:00 AM"}}
	primary := &backfillFeed{}
	svc, store := newBackfillService(t, slots, primary)

	entries := BuildEntries(slots, svc, store, zap.NewNop().Sugar())

	day1 := time.Date(2026, 8, 28, 10, 0, 0, 0, time.Local)
	day2 := day1.Add(24 * time.Hour)
	for _, e := range entries {
		if e.Hour != 10 {
			continue
		}
		e.Run(day1)
		e.Run(day2)
	}

	g1, err := store.Grid(day1)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := store.Grid(day2)
	if err != nil {
		t.Fatal(err)
	}
	if g1.Rows[0].Cells[0].Value == nil || g2.Rows[0].Cells[0].Value == nil {
		t.Fatal("both days should have been written by their own dispatches")
	}
	if g1.Date == g2.Date {
		t.Fatal("dispatch dates must map to distinct records")
	}
}
