package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"dow_tracker_backend/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	// SheetName is the single worksheet every daily workbook carries.
	SheetName = "Prices"

	upFillColor   = "C6EFCE"
	upFontColor   = "006100"
	downFillColor = "FFC7CE"
	downFontColor = "9C0006"
)

// Store owns the per-day workbook files. One file per calendar date, named
// MM-DD-YYYY.xlsx, header row of slot labels, one row per basket symbol.
// All file access is serialized through the store mutex so a manual refresh
// can never interleave with a scheduled merge.
type Store struct {
	dir    string
	basket []string
	slots  []models.Slot
	mu     sync.Mutex
	log    *zap.SugaredLogger
}

// NewStore creates the store and its output directory.
func NewStore(dir string, basket []string, slots []models.Slot, log *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sheet directory: %w", err)
	}
	return &Store{dir: dir, basket: basket, slots: slots, log: log}, nil
}

// Path returns the workbook file path for a calendar date.
func (s *Store) Path(day time.Time) string {
	return filepath.Join(s.dir, day.Format(models.DateLayout)+".xlsx")
}

// Ensure creates the workbook for the given date if it does not exist yet.
// Existing workbooks are left untouched.
func (s *Store) Ensure(day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(day)
}

func (s *Store) ensureLocked(day time.Time) error {
	path := s.Path(day)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat workbook: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, 0, len(s.slots)+1)
	header = append(header, "Ticker")
	for _, slot := range s.slots {
		header = append(header, slot.Label)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, sym := range s.basket {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetCellValue(SheetName, cell, sym); err != nil {
			return fmt.Errorf("failed to write ticker %s: %w", sym, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	s.log.Infow("Created daily workbook", "path", path)
	return nil
}

// Merge writes one slot's samples into the date's workbook and re-persists
// it. Absent samples leave their cell untouched, so a value already written
// is never reverted to blank. Each written cell is marked up or down against
// the slot immediately to its left; equal or absent neighbors clear the mark.
func (s *Store) Merge(day time.Time, slot models.Slot, samples []models.PriceSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(day); err != nil {
		return err
	}

	slotIdx, err := models.SlotIndex(s.slots, slot.Label)
	if err != nil {
		return err
	}
	col := slotIdx + 2 // column 1 is the ticker column

	path := s.Path(day)
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	upStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{upFillColor}},
		Font: &excelize.Font{Color: upFontColor},
	})
	if err != nil {
		return fmt.Errorf("failed to create up style: %w", err)
	}
	downStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{downFillColor}},
		Font: &excelize.Font{Color: downFontColor},
	})
	if err != nil {
		return fmt.Errorf("failed to create down style: %w", err)
	}

	rowOf := make(map[string]int, len(s.basket))
	for i, sym := range s.basket {
		rowOf[sym] = i + 2
	}

	for _, sample := range samples {
		if !sample.Present() {
			continue
		}
		row, ok := rowOf[sample.Symbol]
		if !ok {
			s.log.Warnw("Sample for symbol outside basket", "symbol", sample.Symbol)
			continue
		}

		value := sample.Price.Round(2)
		if value.IsNegative() {
			s.log.Warnw("Discarding negative price", "symbol", sample.Symbol, "price", value)
			continue
		}

		cell, _ := excelize.CoordinatesToCellName(col, row)
		if err := f.SetCellValue(SheetName, cell, value.InexactFloat64()); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}

		var prev *decimal.Decimal
		if col > 2 {
			prev = s.readPrice(f, col-1, row)
		}

		style := 0
		switch models.CompareTrend(prev, &value) {
		case models.TrendUp:
			style = upStyle
		case models.TrendDown:
			style = downStyle
		}
		if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
			return fmt.Errorf("failed to style cell %s: %w", cell, err)
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Grid reads the full table for a date, computing the columnar trend marks
// from the stored values. Creates the workbook first if the date is new.
func (s *Store) Grid(day time.Time) (*models.Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(day); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.Path(day))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	columns := make([]string, 0, len(s.slots))
	for _, slot := range s.slots {
		columns = append(columns, slot.Label)
	}

	grid := &models.Grid{
		Date:    day.Format(models.DateLayout),
		Columns: columns,
		Rows:    make([]models.GridRow, 0, len(s.basket)),
	}

	for i, sym := range s.basket {
		row := i + 2
		gridRow := models.GridRow{Ticker: sym, Cells: make([]models.GridCell, 0, len(s.slots))}

		var prev *decimal.Decimal
		for slotIdx := range s.slots {
			value := s.readPrice(f, slotIdx+2, row)
			cell := models.GridCell{Value: value, Trend: models.CompareTrend(prev, value)}
			gridRow.Cells = append(gridRow.Cells, cell)
			prev = value
		}
		grid.Rows = append(grid.Rows, gridRow)
	}
	return grid, nil
}

// readPrice reads a numeric cell, returning nil for blank or non-numeric
// content so missing data stays missing.
func (s *Store) readPrice(f *excelize.File, col, row int) *decimal.Decimal {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	raw, err := f.GetCellValue(SheetName, cell)
	if err != nil || raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	d := decimal.NewFromFloat(v)
	return &d
}
