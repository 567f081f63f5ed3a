package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/mountain-conditions/internal/weather"
)

type AppConfig struct {
	Port      string
	LogLevel  string
	LogFormat string

	// RefreshInterval controls how often every location is refreshed.
	RefreshInterval time.Duration
	// RefreshTimeout bounds one location refresh, backoff sleeps included.
	RefreshTimeout time.Duration
	// StaleAfter marks served reports older than this as stale.
	StaleAfter time.Duration

	// Outbound HTTP.
	HTTPTimeout      time.Duration
	FetchMaxRetries  int
	FetchBackoffUnit time.Duration

	// Sources. Empty base URLs use the public endpoints.
	NWSUserAgent      string
	NWSBaseURL        string
	SnotelBaseURL     string
	OpenMeteoBaseURL  string
	WSDOTBaseURL      string
	WSDOTAccessCode   string
	OpenWeatherAPIKey string
	WeatherAPIKey     string

	// In-memory store retention.
	StoreMaxHistory int           // max number of reports per location (0 = unlimited)
	StoreMaxAge     time.Duration // max age of reports (0 = unlimited)

	// Locations to track, from LOCATIONS_FILE.
	Locations []weather.Location
}

type locationsFile struct {
	Locations []weather.Location `json:"locations" validate:"required,min=1,dive"`
}

const defaultUserAgent = "mountain-conditions (https://github.com/i474232898/mountain-conditions)"

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults, then loads and validates the locations file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &AppConfig{
		Port:              getenvDefault("PORT", "8080"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		LogFormat:         getenvDefault("LOG_FORMAT", "json"),
		NWSUserAgent:      getenvDefault("NWS_USER_AGENT", defaultUserAgent),
		NWSBaseURL:        os.Getenv("NWS_BASE_URL"),
		SnotelBaseURL:     os.Getenv("SNOTEL_BASE_URL"),
		OpenMeteoBaseURL:  os.Getenv("OPENMETEO_BASE_URL"),
		WSDOTBaseURL:      os.Getenv("WSDOT_BASE_URL"),
		WSDOTAccessCode:   os.Getenv("WSDOT_ACCESS_CODE"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		WeatherAPIKey:     os.Getenv("WEATHERAPI_API_KEY"),
		StoreMaxHistory:   getenvInt("STORE_MAX_HISTORY", 96), // roughly 24h at 15-minute intervals
		FetchMaxRetries:   getenvInt("FETCH_MAX_RETRIES", 3),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"REFRESH_INTERVAL", "15m", &cfg.RefreshInterval},
		{"REFRESH_TIMEOUT", "30s", &cfg.RefreshTimeout},
		{"STALE_AFTER", "1h", &cfg.StaleAfter},
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"FETCH_BACKOFF_UNIT", "1s", &cfg.FetchBackoffUnit},
		{"STORE_MAX_AGE", "24h", &cfg.StoreMaxAge},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", d.key)
		}
		*d.dst = v
	}
	if cfg.RefreshInterval == 0 {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: must be positive")
	}
	if cfg.FetchMaxRetries < 1 {
		return nil, fmt.Errorf("invalid FETCH_MAX_RETRIES: must be at least 1")
	}

	path := os.Getenv("LOCATIONS_FILE")
	if path == "" {
		return nil, fmt.Errorf("LOCATIONS_FILE is required")
	}
	locs, err := LoadLocations(path)
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	return cfg, nil
}

// LoadLocations reads and validates a {"locations": [...]} JSON file.
func LoadLocations(path string) ([]weather.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}

	var file locationsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse locations file %s: %w", path, err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("invalid locations file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Locations))
	for _, l := range file.Locations {
		if seen[l.ID] {
			return nil, fmt.Errorf("invalid locations file %s: duplicate id %q", path, l.ID)
		}
		seen[l.ID] = true
	}

	return file.Locations, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
