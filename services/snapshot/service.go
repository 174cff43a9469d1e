package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dow_tracker_backend/feed"
	"dow_tracker_backend/models"
	"dow_tracker_backend/services/archive"
	"dow_tracker_backend/services/notify"
	"dow_tracker_backend/services/workbook"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Params wires a snapshot Service.
type Params struct {
	Basket   []string
	Slots    []models.Slot
	Workers  int
	Primary  feed.Provider
	Fallback feed.QuoteProvider
	Store    *workbook.Store
	Archive  *archive.Store // optional
	Hub      *notify.Hub    // optional
	Log      *zap.SugaredLogger
}

// Service performs one slot's fetch-merge-persist cycle: a bounded fan-out
// over the basket, then exactly one merge into the day's workbook, one
// archive write, and one change notification.
type Service struct {
	basket   []string
	slots    []models.Slot
	workers  int
	primary  feed.Provider
	fallback feed.QuoteProvider
	store    *workbook.Store
	archive  *archive.Store
	hub      *notify.Hub
	log      *zap.SugaredLogger

	// serializes merge+persist so a manual refresh can never interleave
	// with a scheduled trigger for the same date
	mu sync.Mutex
}

// NewService creates a snapshot service.
func NewService(p Params) *Service {
	workers := p.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Service{
		basket:   p.Basket,
		slots:    p.Slots,
		workers:  workers,
		primary:  p.Primary,
		fallback: p.Fallback,
		store:    p.Store,
		archive:  p.Archive,
		hub:      p.Hub,
		log:      p.Log,
	}
}

// FetchSlot resolves a price for every basket symbol concurrently, then
// merges the batch into the date's workbook. Individual symbol failures
// yield absent samples and never abort the batch.
func (s *Service) FetchSlot(ctx context.Context, day time.Time, slot models.Slot, mode models.FetchMode) error {
	slotTime := models.SlotTime(day, slot)
	samples := make([]models.PriceSample, len(s.basket))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, sym := range s.basket {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			samples[i] = s.lookup(ctx, sym, slotTime, mode)
		}(i, sym)
	}
	wg.Wait()

	present := 0
	for _, sample := range samples {
		if sample.Present() {
			present++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Merge(day, slot, samples); err != nil {
		return fmt.Errorf("merge failed for slot %s: %w", slot.Label, err)
	}
	if s.archive != nil {
		if err := s.archive.SaveSamples(day, slot, samples); err != nil {
			// workbook is the source of truth; a failed archive write is
			// not a failed cycle
			s.log.Warnw("Archive write failed", "slot", slot.Label, "error", err)
		}
	}
	if s.hub != nil {
		s.hub.NotifyUpdated(day.Format(models.DateLayout), slot.Label)
	}

	s.log.Infow("Slot fetch complete",
		"slot", slot.Label, "mode", mode.String(),
		"resolved", present, "missing", len(s.basket)-present)
	return nil
}

// FetchByLabel resolves the slot for a column label at run time, using now's
// calendar date, and fetches it. An unknown label is an error the caller
// logs and skips; it never reaches the basket fan-out.
func (s *Service) FetchByLabel(ctx context.Context, now time.Time, label string, mode models.FetchMode) error {
	slot, err := models.SlotByLabel(s.slots, label)
	if err != nil {
		return err
	}
	return s.FetchSlot(ctx, now, slot, mode)
}

// RefreshDue re-runs a historical fetch for every slot whose hour has
// already passed today, in slot order. Returns the number of slots fetched.
func (s *Service) RefreshDue(ctx context.Context, now time.Time) int {
	fetched := 0
	for _, slot := range s.slots {
		if slot.Hour > now.Hour() {
			continue
		}
		if err := s.FetchSlot(ctx, now, slot, models.ModeHistorical); err != nil {
			s.log.Errorw("Refresh fetch failed", "slot", slot.Label, "error", err)
			continue
		}
		fetched++
	}
	return fetched
}

// lookup resolves one symbol's sample. Failures degrade to an absent sample.
func (s *Service) lookup(ctx context.Context, sym string, slotTime time.Time, mode models.FetchMode) models.PriceSample {
	sample := models.PriceSample{Symbol: sym}

	var price decimal.Decimal
	var err error
	if mode == models.ModeHistorical {
		price, err = s.historicalPrice(ctx, sym, slotTime)
	} else {
		price, err = s.livePrice(ctx, sym)
	}
	if err != nil {
		s.log.Warnw("Price lookup failed", "symbol", sym, "mode", mode.String(), "error", err)
		return sample
	}

	rounded := price.Round(2)
	if rounded.IsNegative() {
		s.log.Warnw("Discarding negative price", "symbol", sym, "price", rounded)
		return sample
	}
	sample.Price = &rounded
	return sample
}

// historicalPrice takes the chronologically last close inside a one-minute
// window around the slot's nominal time. No fallback source is consulted:
// before a slot is truly due there is nothing worth a second network call.
func (s *Service) historicalPrice(ctx context.Context, sym string, slotTime time.Time) (decimal.Decimal, error) {
	start := slotTime.Add(-time.Minute)
	end := slotTime.Add(time.Minute)

	candles, err := s.primary.HistoricalWindow(ctx, sym, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	if len(candles) == 0 {
		return decimal.Zero, fmt.Errorf("no candles in window for %s", sym)
	}
	return candles[len(candles)-1].Close, nil
}

// livePrice asks the primary source first and the fallback second.
func (s *Service) livePrice(ctx context.Context, sym string) (decimal.Decimal, error) {
	price, err := s.primary.CurrentPrice(ctx, sym)
	if err == nil {
		return price, nil
	}
	s.log.Debugw("Primary quote failed, trying fallback", "symbol", sym, "error", err)

	price, ferr := s.fallback.CurrentPrice(ctx, sym)
	if ferr != nil {
		return decimal.Zero, fmt.Errorf("primary: %v; fallback: %w", err, ferr)
	}
	return price, nil
}
