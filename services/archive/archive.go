package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dow_tracker_backend/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store keeps every merged price sample in a local SQLite database, one row
// per (day, slot, symbol). Re-fetches of the same slot replace the row, so
// the archive mirrors the workbook's idempotent-merge behavior.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.SugaredLogger
}

// Open opens (creating if needed) the archive database at path.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping archive: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS price_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day TEXT NOT NULL,
		slot TEXT NOT NULL,
		symbol TEXT NOT NULL,
		price TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		UNIQUE(day, slot, symbol)
	);
	CREATE INDEX IF NOT EXISTS idx_samples_day ON price_samples(day);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// SaveSamples upserts one slot's present samples. Absent samples are skipped
// so an archived price is never replaced by a blank.
func (s *Store) SaveSamples(day time.Time, slot models.Slot, samples []models.PriceSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_samples (day, slot, symbol, price, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(day, slot, symbol) DO UPDATE SET
			price = excluded.price,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	dayKey := day.Format(models.DateLayout)
	now := time.Now().Format(time.RFC3339)
	saved := 0
	for _, sample := range samples {
		if !sample.Present() {
			continue
		}
		if _, err := stmt.Exec(dayKey, slot.Label, sample.Symbol, sample.Price.Round(2).String(), now); err != nil {
			return fmt.Errorf("failed to insert sample for %s: %w", sample.Symbol, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	s.log.Debugw("Archived slot samples", "day", dayKey, "slot", slot.Label, "count", saved)
	return nil
}

// LoadDay returns all archived samples for a calendar date, ordered by slot
// label then symbol.
func (s *Store) LoadDay(day time.Time) ([]models.SampleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT day, slot, symbol, price, fetched_at
		FROM price_samples WHERE day = ?
		ORDER BY slot, symbol
	`, day.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var records []models.SampleRecord
	for rows.Next() {
		var rec models.SampleRecord
		var price, fetchedAt string
		if err := rows.Scan(&rec.Day, &rec.Slot, &rec.Symbol, &price, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			s.log.Warnw("Skipping malformed archived price", "symbol", rec.Symbol, "price", price)
			continue
		}
		rec.Price = p
		if t, err := time.Parse(time.RFC3339, fetchedAt); err == nil {
			rec.FetchedAt = t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
