package providers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/mountain-conditions/internal/observability"
	"github.com/i474232898/mountain-conditions/internal/weather"
)

const nwsDefaultBaseURL = "https://api.weather.gov"

// NWSProvider implements the forecast, current-weather and alert sources for
// the National Weather Service API.
type NWSProvider struct {
	name      string
	baseURL   string
	userAgent string
	fetcher   *Fetcher
	clock     clockwork.Clock
}

// NewNWSProvider creates an NWS adapter. The API rejects requests without a
// User-Agent identifying the caller.
func NewNWSProvider(cfg HTTPClientConfig, baseURL, userAgent string, metrics *observability.Metrics) *NWSProvider {
	if baseURL == "" {
		baseURL = nwsDefaultBaseURL
	}
	return &NWSProvider{
		name:      "nws",
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		fetcher:   NewFetcher("nws", cfg, metrics),
		clock:     clockwork.NewRealClock(),
	}
}

// WithClock swaps the clock used to pick the current gridded value.
func (p *NWSProvider) WithClock(c clockwork.Clock) *NWSProvider {
	p.clock = c
	return p
}

func (p *NWSProvider) Name() string {
	return p.name
}

func (p *NWSProvider) headers() map[string]string {
	return map[string]string{
		"User-Agent": p.userAgent,
		"Accept":     "application/geo+json",
	}
}

func (p *NWSProvider) gridURL(grid weather.GridConfig) string {
	return fmt.Sprintf("%s/gridpoints/%s/%d,%d", p.baseURL, strings.ToUpper(grid.Office), grid.X, grid.Y)
}

type nwsForecastResponse struct {
	Properties *struct {
		Periods []nwsPeriod `json:"periods"`
	} `json:"properties"`
}

type nwsPeriod struct {
	Number                     int      `json:"number"`
	Name                       string   `json:"name"`
	StartTime                  string   `json:"startTime"`
	EndTime                    string   `json:"endTime"`
	IsDaytime                  bool     `json:"isDaytime"`
	Temperature                *float64 `json:"temperature"`
	TemperatureUnit            string   `json:"temperatureUnit"`
	WindSpeed                  string   `json:"windSpeed"`
	WindDirection              string   `json:"windDirection"`
	Icon                       string   `json:"icon"`
	ShortForecast              string   `json:"shortForecast"`
	DetailedForecast           string   `json:"detailedForecast"`
	ProbabilityOfPrecipitation struct {
		Value *float64 `json:"value"`
	} `json:"probabilityOfPrecipitation"`
}

// GetForecast returns the ~12 hour day/night periods for a grid cell.
func (p *NWSProvider) GetForecast(ctx context.Context, grid weather.GridConfig) ([]weather.RawForecastPeriod, error) {
	return p.periods(ctx, p.gridURL(grid)+"/forecast")
}

// GetHourlyForecast returns the hourly periods for a grid cell.
func (p *NWSProvider) GetHourlyForecast(ctx context.Context, grid weather.GridConfig) ([]weather.RawForecastPeriod, error) {
	return p.periods(ctx, p.gridURL(grid)+"/forecast/hourly")
}

func (p *NWSProvider) periods(ctx context.Context, u string) ([]weather.RawForecastPeriod, error) {
	body, err := p.fetcher.Fetch(ctx, u, p.headers(), 0)
	if err != nil {
		return nil, err
	}

	var payload nwsForecastResponse
	if err := decodeJSON(p.name, body, &payload); err != nil {
		return nil, err
	}
	if payload.Properties == nil || payload.Properties.Periods == nil {
		return nil, malformed(p.name, "forecast response has no periods")
	}

	out := make([]weather.RawForecastPeriod, 0, len(payload.Properties.Periods))
	for _, np := range payload.Properties.Periods {
		period, err := convertPeriod(np)
		if err != nil {
			return nil, err
		}
		out = append(out, period)
	}
	return out, nil
}

func convertPeriod(np nwsPeriod) (weather.RawForecastPeriod, error) {
	start, err := time.Parse(time.RFC3339, np.StartTime)
	if err != nil {
		return weather.RawForecastPeriod{}, malformed("nws", "period %d startTime %q", np.Number, np.StartTime)
	}
	end, err := time.Parse(time.RFC3339, np.EndTime)
	if err != nil {
		return weather.RawForecastPeriod{}, malformed("nws", "period %d endTime %q", np.Number, np.EndTime)
	}
	if np.Temperature == nil {
		return weather.RawForecastPeriod{}, malformed("nws", "period %d has no temperature", np.Number)
	}

	unit := weather.Fahrenheit
	if strings.EqualFold(np.TemperatureUnit, "C") {
		unit = weather.Celsius
	}

	return weather.RawForecastPeriod{
		Number:               np.Number,
		Name:                 np.Name,
		StartTime:            start,
		EndTime:              end,
		IsDaytime:            np.IsDaytime,
		TemperatureF:         weather.ToFahrenheit(*np.Temperature, unit),
		WindSpeedText:        np.WindSpeed,
		WindDirection:        np.WindDirection,
		PrecipProbabilityPct: np.ProbabilityOfPrecipitation.Value,
		ShortForecast:        np.ShortForecast,
		DetailedForecast:     np.DetailedForecast,
		IconURL:              np.Icon,
	}, nil
}

type nwsGridLayer struct {
	UOM    string `json:"uom"`
	Values []struct {
		ValidTime string   `json:"validTime"`
		Value     *float64 `json:"value"`
	} `json:"values"`
}

type nwsGridResponse struct {
	Properties *struct {
		UpdateTime                 string        `json:"updateTime"`
		Temperature                *nwsGridLayer `json:"temperature"`
		WindSpeed                  *nwsGridLayer `json:"windSpeed"`
		WindGust                   *nwsGridLayer `json:"windGust"`
		WindDirection              *nwsGridLayer `json:"windDirection"`
		RelativeHumidity           *nwsGridLayer `json:"relativeHumidity"`
		Visibility                 *nwsGridLayer `json:"visibility"`
		SkyCover                   *nwsGridLayer `json:"skyCover"`
		ProbabilityOfPrecipitation *nwsGridLayer `json:"probabilityOfPrecipitation"`
	} `json:"properties"`
}

// GetCurrentWeather reads the raw gridded values and picks the ones valid now.
func (p *NWSProvider) GetCurrentWeather(ctx context.Context, loc weather.Location) (weather.RawCurrentWeather, error) {
	body, err := p.fetcher.Fetch(ctx, p.gridURL(loc.Grid), p.headers(), 0)
	if err != nil {
		return weather.RawCurrentWeather{}, err
	}

	var payload nwsGridResponse
	if err := decodeJSON(p.name, body, &payload); err != nil {
		return weather.RawCurrentWeather{}, err
	}
	props := payload.Properties
	if props == nil {
		return weather.RawCurrentWeather{}, malformed(p.name, "gridpoint response has no properties")
	}

	now := p.clock.Now()
	at := func(layer *nwsGridLayer) (*float64, error) {
		if layer == nil {
			return nil, nil
		}
		values, err := gridValues(layer)
		if err != nil {
			return nil, err
		}
		return weather.ValueAt(values, now), nil
	}

	r := weather.RawCurrentWeather{
		Provider:        p.name,
		ObservedAt:      now.UTC(),
		TemperatureUnit: weather.Celsius,
		WindUnit:        weather.KilometersPerHour,
	}
	if t, err := time.Parse(time.RFC3339, props.UpdateTime); err == nil {
		r.ObservedAt = t.UTC()
	}
	if props.Temperature != nil {
		r.TemperatureUnit = temperatureUOM(props.Temperature.UOM)
	}
	if props.WindSpeed != nil {
		r.WindUnit = speedUOM(props.WindSpeed.UOM)
	} else if props.WindGust != nil {
		r.WindUnit = speedUOM(props.WindGust.UOM)
	}

	fields := []struct {
		layer *nwsGridLayer
		dst   **float64
	}{
		{props.Temperature, &r.Temperature},
		{props.WindSpeed, &r.WindSpeed},
		{props.WindGust, &r.WindGust},
		{props.WindDirection, &r.WindDirectionDeg},
		{props.RelativeHumidity, &r.HumidityPct},
		{props.Visibility, &r.VisibilityM},
		{props.SkyCover, &r.SkyCoverPct},
		{props.ProbabilityOfPrecipitation, &r.PrecipProbabilityPct},
	}
	for _, f := range fields {
		v, err := at(f.layer)
		if err != nil {
			return weather.RawCurrentWeather{}, err
		}
		*f.dst = v
	}

	return r, nil
}

func gridValues(layer *nwsGridLayer) ([]weather.GridValue, error) {
	out := make([]weather.GridValue, 0, len(layer.Values))
	for _, v := range layer.Values {
		start, dur, err := parseValidTime(v.ValidTime)
		if err != nil {
			return nil, err
		}
		out = append(out, weather.GridValue{Start: start, Duration: dur, Value: v.Value})
	}
	return out, nil
}

func temperatureUOM(uom string) weather.TemperatureUnit {
	if strings.HasSuffix(uom, "degF") {
		return weather.Fahrenheit
	}
	return weather.Celsius
}

func speedUOM(uom string) weather.SpeedUnit {
	switch {
	case strings.HasSuffix(uom, "m_s-1"):
		return weather.MetersPerSecond
	case strings.HasSuffix(uom, "kt"):
		return weather.Knots
	case strings.HasSuffix(uom, "mi_h-1"):
		return weather.MilesPerHour
	default:
		return weather.KilometersPerHour
	}
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseValidTime parses an ISO-8601 interval such as
// "2024-01-15T12:00:00+00:00/PT3H" into its start and duration.
func parseValidTime(s string) (time.Time, time.Duration, error) {
	startStr, durStr, ok := strings.Cut(s, "/")
	if !ok {
		return time.Time{}, 0, malformed("nws", "validTime %q has no duration", s)
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, 0, malformed("nws", "validTime %q start: %v", s, err)
	}
	m := isoDurationRe.FindStringSubmatch(durStr)
	if m == nil || durStr == "P" || durStr == "PT" {
		return time.Time{}, 0, malformed("nws", "validTime %q duration", s)
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, 0, malformed("nws", "validTime %q duration", s)
		}
		d += time.Duration(n) * unit
	}
	return start, d, nil
}

type nwsAlertsResponse struct {
	Features *[]struct {
		Properties struct {
			ID          string `json:"id"`
			Event       string `json:"event"`
			Headline    string `json:"headline"`
			Description string `json:"description"`
			Instruction string `json:"instruction"`
			AreaDesc    string `json:"areaDesc"`
			Severity    string `json:"severity"`
			Urgency     string `json:"urgency"`
			Certainty   string `json:"certainty"`
			Onset       string `json:"onset"`
			Expires     string `json:"expires"`
		} `json:"properties"`
	} `json:"features"`
}

// GetAlerts returns active advisories covering a point.
func (p *NWSProvider) GetAlerts(ctx context.Context, lat, lng float64) ([]weather.RawAlert, error) {
	u := fmt.Sprintf("%s/alerts/active?point=%.4f,%.4f", p.baseURL, lat, lng)
	body, err := p.fetcher.Fetch(ctx, u, p.headers(), 0)
	if err != nil {
		return nil, err
	}

	var payload nwsAlertsResponse
	if err := decodeJSON(p.name, body, &payload); err != nil {
		return nil, err
	}
	if payload.Features == nil {
		return nil, malformed(p.name, "alerts response has no features")
	}

	alerts := make([]weather.RawAlert, 0, len(*payload.Features))
	for _, f := range *payload.Features {
		pr := f.Properties
		alerts = append(alerts, weather.RawAlert{
			ID:          pr.ID,
			Event:       pr.Event,
			Headline:    pr.Headline,
			Description: pr.Description,
			Instruction: pr.Instruction,
			AreaDesc:    pr.AreaDesc,
			Severity:    alertSeverity(pr.Severity),
			Urgency:     alertUrgency(pr.Urgency),
			Certainty:   alertCertainty(pr.Certainty),
			Onset:       optionalTime(pr.Onset),
			Expires:     optionalTime(pr.Expires),
		})
	}
	return alerts, nil
}

func optionalTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func alertSeverity(s string) weather.AlertSeverity {
	switch v := weather.AlertSeverity(s); v {
	case weather.SeverityExtreme, weather.SeveritySevere, weather.SeverityModerate, weather.SeverityMinor:
		return v
	default:
		return weather.SeverityUnknown
	}
}

func alertUrgency(s string) weather.AlertUrgency {
	switch v := weather.AlertUrgency(s); v {
	case weather.UrgencyImmediate, weather.UrgencyExpected, weather.UrgencyFuture, weather.UrgencyPast:
		return v
	default:
		return weather.UrgencyUnknown
	}
}

func alertCertainty(s string) weather.AlertCertainty {
	switch v := weather.AlertCertainty(s); v {
	case weather.CertaintyObserved, weather.CertaintyLikely, weather.CertaintyPossible, weather.CertaintyUnlikely:
		return v
	default:
		return weather.CertaintyUnknown
	}
}
