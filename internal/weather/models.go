package weather

import (
	"time"
)

// GridConfig addresses a weather-service forecast grid cell.
type GridConfig struct {
	Office string `json:"office" validate:"required,len=3"`
	X      int    `json:"x" validate:"gte=0"`
	Y      int    `json:"y" validate:"gte=0"`
}

// Location represents a monitored mountain and the identifiers every source
// adapter needs to address it.
type Location struct {
	ID            string     `json:"id" validate:"required"`
	Name          string     `json:"name" validate:"required"`
	Latitude      float64    `json:"latitude" validate:"latitude"`
	Longitude     float64    `json:"longitude" validate:"longitude"`
	SnotelStation string     `json:"snotelStation,omitempty"` // station triplet, e.g. "679:WA:SNTL"
	Grid          GridConfig `json:"grid" validate:"required"`
	PassKeywords  []string   `json:"passKeywords,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.ID
}

// VisibilityCategory is an ordinal bucket for visibility in miles.
type VisibilityCategory string

const (
	VisibilityExcellent VisibilityCategory = "excellent"
	VisibilityGood      VisibilityCategory = "good"
	VisibilityModerate  VisibilityCategory = "moderate"
	VisibilityPoor      VisibilityCategory = "poor"
	VisibilityVeryPoor  VisibilityCategory = "very-poor"
)

// MountainConditions is the canonical current-conditions record for one location.
// Every numeric field is in the unit named by its suffix. Optional fields are nil
// when no source reported them.
type MountainConditions struct {
	SnowDepthIn           float64            `json:"snowDepthIn"`
	SnowWaterEquivalentIn float64            `json:"snowWaterEquivalentIn"`
	TemperatureF          float64            `json:"temperatureF"`
	Snowfall24hIn         float64            `json:"snowfall24hIn"`
	Snowfall48hIn         float64            `json:"snowfall48hIn"`
	Snowfall7dIn          float64            `json:"snowfall7dIn"`
	WindSpeedMph          float64            `json:"windSpeedMph"`
	WindGustMph           *float64           `json:"windGustMph"`
	WindDirectionCardinal string             `json:"windDirectionCardinal"`
	HumidityPct           *float64           `json:"humidityPct"`
	VisibilityMiles       *float64           `json:"visibilityMiles"`
	VisibilityCategory    VisibilityCategory `json:"visibilityCategory,omitempty"`
	SkyCoverPct           *float64           `json:"skyCoverPct"`
	PrecipProbabilityPct  *float64           `json:"precipProbabilityPct"`
	ConditionsText        string             `json:"conditionsText"`
	LastUpdated           time.Time          `json:"lastUpdated"`
}

// PrecipType classifies the dominant precipitation of a forecast day.
type PrecipType string

const (
	PrecipSnow  PrecipType = "snow"
	PrecipRain  PrecipType = "rain"
	PrecipMixed PrecipType = "mixed"
	PrecipNone  PrecipType = "none"
)

// ForecastWind is the daily wind summary.
type ForecastWind struct {
	SpeedMph float64 `json:"speedMph"`
	GustMph  float64 `json:"gustMph"`
}

// ProcessedForecastDay is one calendar day merged from day/night periods.
// Until both periods of a date were observed, the missing bound is 0 and
// must not be read as a real temperature.
type ProcessedForecastDay struct {
	Date                 string       `json:"date"` // YYYY-MM-DD, local to the forecast grid
	DayOfWeek            string       `json:"dayOfWeek"`
	HighF                float64      `json:"highF"`
	LowF                 float64      `json:"lowF"`
	SnowfallIn           float64      `json:"snowfallIn"`
	PrecipProbabilityPct float64      `json:"precipProbabilityPct"`
	PrecipType           PrecipType   `json:"precipType"`
	Wind                 ForecastWind `json:"wind"`
	ConditionsText       string       `json:"conditionsText"`
	Icon                 string       `json:"icon"`
}

// ScoreFactor is one itemized contribution to a powder score.
type ScoreFactor struct {
	Name        string `json:"name"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// ScoreResult is the 1-10 powder score with its factor breakdown.
type ScoreResult struct {
	Score   int           `json:"score"`
	Factors []ScoreFactor `json:"factors"`
}

// DeepLinks point at the weather provider's own pages for a location.
type DeepLinks struct {
	Forecast    string `json:"forecast"`
	HourlyGraph string `json:"hourlyGraph"`
	Alerts      string `json:"alerts"`
	Discussion  string `json:"discussion"`
}

// SourceStatus records how one source fared during a refresh.
type SourceStatus struct {
	Source string `json:"source"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// ConditionsReport is everything computed for a location in one refresh cycle.
type ConditionsReport struct {
	ID         string                 `json:"id"`
	Location   Location               `json:"location"`
	Conditions MountainConditions     `json:"conditions"`
	Forecast   []ProcessedForecastDay `json:"forecast"`
	Hourly     []RawForecastPeriod    `json:"hourly,omitempty"`
	Alerts     []RawAlert             `json:"alerts"`
	Passes     []RawPassSummary       `json:"passes,omitempty"`
	Score      ScoreResult            `json:"score"`
	Links      DeepLinks              `json:"links"`
	Sources    []SourceStatus         `json:"sources"`
	FetchedAt  time.Time              `json:"fetchedAt"` // always UTC
	Stale      bool                   `json:"stale"`
}
