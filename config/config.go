package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dow_tracker_backend/models"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings. It is built once at startup and passed
// into each component; nothing mutates it afterwards.
type Config struct {
	Port        string
	Environment string

	DataDir     string
	SheetDir    string
	ArchivePath string
	LogFile     string

	FetchWorkers int
	HTTPTimeout  time.Duration

	Basket []string
	Slots  []models.Slot
}

// LoadConfig loads environment variables into a Config.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		DataDir:      dataDir,
		SheetDir:     getEnv("SHEET_DIR", filepath.Join(dataDir, "sheets")),
		ArchivePath:  getEnv("ARCHIVE_PATH", filepath.Join(dataDir, "samples.db")),
		LogFile:      getEnv("LOG_FILE", "logs/tracker.log"),
		FetchWorkers: getEnvInt("FETCH_WORKERS", 8),
		HTTPTimeout:  time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		Basket:       getEnvList("TICKERS", models.DefaultBasket()),
		Slots:        models.DefaultSlots(),
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvList gets a comma-separated environment variable or returns a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
