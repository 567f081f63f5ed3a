package weather

import (
	"context"
	"time"
)

// TemperatureUnit is the native unit a provider reports temperature in.
type TemperatureUnit string

const (
	Fahrenheit TemperatureUnit = "F"
	Celsius    TemperatureUnit = "C"
)

// SpeedUnit is the native unit a provider reports wind in.
type SpeedUnit string

const (
	MilesPerHour      SpeedUnit = "mph"
	KilometersPerHour SpeedUnit = "km/h"
	MetersPerSecond   SpeedUnit = "m/s"
	Knots             SpeedUnit = "kt"
)

// DepthSample is one daily snow depth reading. A nil DepthIn is an
// unreported day, never zero snow.
type DepthSample struct {
	Date    time.Time `json:"date"`
	DepthIn *float64  `json:"depthIn"`
}

// RawDepthSeries is a station's daily depth readings, one per date.
type RawDepthSeries []DepthSample

// RawStationReading is what a snow-sensor station reports for its latest days.
type RawStationReading struct {
	StationID        string
	ObservedAt       time.Time
	Depth            RawDepthSeries
	SWEIn            *float64
	TemperatureF     *float64
	HumidityPct      *float64
	TempMaxF         *float64
	TempMinF         *float64
	WindSpeedMph     *float64
	WindDirectionDeg *float64
}

// RawCurrentWeather is a provider's current-weather reading in its native units.
type RawCurrentWeather struct {
	Provider              string
	ObservedAt            time.Time
	Temperature           *float64
	TemperatureUnit       TemperatureUnit
	WindSpeed             *float64
	WindGust              *float64
	WindUnit              SpeedUnit
	WindDirectionDeg      *float64
	WindDirectionCardinal string
	HumidityPct           *float64
	VisibilityM           *float64
	SkyCoverPct           *float64
	PrecipProbabilityPct  *float64
	ConditionsText        string
}

// RawForecastPeriod is a single ~12h (or hourly) forecast entry.
type RawForecastPeriod struct {
	Number               int       `json:"number"`
	Name                 string    `json:"name"`
	StartTime            time.Time `json:"startTime"`
	EndTime              time.Time `json:"endTime"`
	IsDaytime            bool      `json:"isDaytime"`
	TemperatureF         float64   `json:"temperatureF"`
	WindSpeedText        string    `json:"windSpeed"`
	WindDirection        string    `json:"windDirection"`
	PrecipProbabilityPct *float64  `json:"precipProbabilityPct"`
	ShortForecast        string    `json:"shortForecast"`
	DetailedForecast     string    `json:"detailedForecast,omitempty"`
	IconURL              string    `json:"icon,omitempty"`
}

// GridValue is one time-windowed gridded value covering [Start, Start+Duration).
type GridValue struct {
	Start    time.Time
	Duration time.Duration
	Value    *float64
}

type AlertSeverity string

const (
	SeverityExtreme  AlertSeverity = "Extreme"
	SeveritySevere   AlertSeverity = "Severe"
	SeverityModerate AlertSeverity = "Moderate"
	SeverityMinor    AlertSeverity = "Minor"
	SeverityUnknown  AlertSeverity = "Unknown"
)

type AlertUrgency string

const (
	UrgencyImmediate AlertUrgency = "Immediate"
	UrgencyExpected  AlertUrgency = "Expected"
	UrgencyFuture    AlertUrgency = "Future"
	UrgencyPast      AlertUrgency = "Past"
	UrgencyUnknown   AlertUrgency = "Unknown"
)

type AlertCertainty string

const (
	CertaintyObserved AlertCertainty = "Observed"
	CertaintyLikely   AlertCertainty = "Likely"
	CertaintyPossible AlertCertainty = "Possible"
	CertaintyUnlikely AlertCertainty = "Unlikely"
	CertaintyUnknown  AlertCertainty = "Unknown"
)

// RawAlert is an active weather advisory.
type RawAlert struct {
	ID          string         `json:"id"`
	Event       string         `json:"event"`
	Headline    string         `json:"headline"`
	Description string         `json:"description"`
	Instruction string         `json:"instruction,omitempty"`
	AreaDesc    string         `json:"areaDesc,omitempty"`
	Severity    AlertSeverity  `json:"severity"`
	Urgency     AlertUrgency   `json:"urgency"`
	Certainty   AlertCertainty `json:"certainty"`
	Onset       *time.Time     `json:"onset"`
	Expires     *time.Time     `json:"expires"`
}

// PassRestriction is a directional travel restriction on a mountain pass.
type PassRestriction struct {
	Direction string `json:"direction"`
	Text      string `json:"text"`
}

// RawPassSummary is a highway-department mountain pass record.
type RawPassSummary struct {
	ID               int               `json:"id"`
	Name             string            `json:"name"`
	RoadCondition    string            `json:"roadCondition"`
	WeatherCondition string            `json:"weatherCondition"`
	TemperatureF     *float64          `json:"temperatureF"`
	Restrictions     []PassRestriction `json:"restrictions"`
	TravelAdvisory   bool              `json:"travelAdvisory"`
	ElevationFt      int               `json:"elevationFt"`
	Latitude         float64           `json:"latitude"`
	Longitude        float64           `json:"longitude"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Provider is the common part of every source adapter.
type Provider interface {
	Name() string
}

// StationSource reads snow-sensor stations.
type StationSource interface {
	Provider
	GetCurrentConditions(ctx context.Context, stationID string) (RawStationReading, error)
}

// ForecastSource reads period and hourly grid forecasts.
type ForecastSource interface {
	Provider
	GetForecast(ctx context.Context, grid GridConfig) ([]RawForecastPeriod, error)
	GetHourlyForecast(ctx context.Context, grid GridConfig) ([]RawForecastPeriod, error)
}

// CurrentWeatherSource reads current weather for a location. Several are
// consulted in priority order and coalesced field by field.
type CurrentWeatherSource interface {
	Provider
	GetCurrentWeather(ctx context.Context, loc Location) (RawCurrentWeather, error)
}

// AlertSource reads active advisories for a point.
type AlertSource interface {
	Provider
	GetAlerts(ctx context.Context, lat, lng float64) ([]RawAlert, error)
}

// PassSource reads highway mountain pass conditions.
type PassSource interface {
	Provider
	GetPassConditions(ctx context.Context, accessCode string) ([]RawPassSummary, error)
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveReport(loc Location, report ConditionsReport)
	GetLatest(loc Location) (ConditionsReport, error)
	GetRange(loc Location, from, to time.Time) ([]ConditionsReport, error)
}
