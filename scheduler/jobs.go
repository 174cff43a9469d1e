package scheduler

import (
	"context"
	"time"

	"dow_tracker_backend/models"
	"dow_tracker_backend/services/snapshot"
	"dow_tracker_backend/services/workbook"

	"go.uber.org/zap"
)

// BuildEntries assembles the daily trigger table: a midnight workbook
// rollover, then one historical-mode and one live-mode fetch entry per slot
// at the top of the slot's hour. Slot identity is passed into each job as a
// value, never captured by reference from the loop.
func BuildEntries(slots []models.Slot, snapshots *snapshot.Service, store *workbook.Store, log *zap.SugaredLogger) []Entry {
	entries := make([]Entry, 0, len(slots)*2+1)

	entries = append(entries, Entry{
		Name: "midnight-rollover",
		Hour: 0,
		Run: func(now time.Time) {
			if err := store.Ensure(now); err != nil {
				log.Errorw("Midnight workbook rollover failed", "error", err)
			}
		},
	})

	for _, slot := range slots {
		entries = append(entries, newFetchEntry(slot, models.ModeHistorical, snapshots, log))
		entries = append(entries, newFetchEntry(slot, models.ModeLive, snapshots, log))
	}
	return entries
}

// newFetchEntry builds one slot's fetch job. The slot is resolved by label
// at dispatch time and the target date comes from the dispatch timestamp,
// so a fetch firing tomorrow writes into tomorrow's workbook. A label that
// no longer resolves is logged and skipped; the loop survives.
func newFetchEntry(slot models.Slot, mode models.FetchMode, snapshots *snapshot.Service, log *zap.SugaredLogger) Entry {
	label := slot.Label
	return Entry{
		Name: mode.String() + "-" + label,
		Hour: slot.Hour,
		Run: func(now time.Time) {
			if err := snapshots.FetchByLabel(context.Background(), now, label, mode); err != nil {
				log.Errorw("Scheduled fetch failed", "slot", label, "mode", mode.String(), "error", err)
			}
		},
	}
}

// RunStartupBackfill immediately fetches, in slot order, every slot whose
// hour has already passed today. Called once at process start so a restart
// mid-day repopulates the elapsed columns. Returns the number of slots
// fetched successfully.
func RunStartupBackfill(ctx context.Context, now time.Time, slots []models.Slot, snapshots *snapshot.Service, log *zap.SugaredLogger) int {
	fetched := 0
	for _, slot := range slots {
		if now.Hour() < slot.Hour {
			continue
		}
		if err := snapshots.FetchSlot(ctx, now, slot, models.ModeHistorical); err != nil {
			log.Errorw("Startup back-fill failed", "slot", slot.Label, "error", err)
			continue
		}
		fetched++
	}
	return fetched
}
