package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/mountain-conditions/internal/observability"
	"github.com/i474232898/mountain-conditions/internal/weather"
)

const openMeteoDefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

var openMeteoCurrentFields = []string{
	"temperature_2m", "relative_humidity_2m", "weather_code", "cloud_cover",
	"wind_speed_10m", "wind_direction_10m", "wind_gusts_10m", "visibility",
}

// OpenMeteoProvider implements weather.CurrentWeatherSource for Open-Meteo.
// It needs no key and is the usual fallback behind the gridded forecast.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	fetcher *Fetcher
	clock   clockwork.Clock
}

func NewOpenMeteoProvider(cfg HTTPClientConfig, baseURL string, metrics *observability.Metrics) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = openMeteoDefaultBaseURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		fetcher: NewFetcher("openmeteo", cfg, metrics),
		clock:   clockwork.NewRealClock(),
	}
}

// WithClock swaps the clock used when the response carries no observation time.
func (p *OpenMeteoProvider) WithClock(c clockwork.Clock) *OpenMeteoProvider {
	p.clock = c
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoResponse struct {
	CurrentUnits map[string]string `json:"current_units"`
	Current      *struct {
		Time             string   `json:"time"`
		Temperature      *float64 `json:"temperature_2m"`
		RelativeHumidity *float64 `json:"relative_humidity_2m"`
		WeatherCode      *int     `json:"weather_code"`
		CloudCover       *float64 `json:"cloud_cover"`
		WindSpeed        *float64 `json:"wind_speed_10m"`
		WindDirection    *float64 `json:"wind_direction_10m"`
		WindGusts        *float64 `json:"wind_gusts_10m"`
		Visibility       *float64 `json:"visibility"`
	} `json:"current"`
}

func (p *OpenMeteoProvider) GetCurrentWeather(ctx context.Context, loc weather.Location) (weather.RawCurrentWeather, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", loc.Latitude))
	values.Set("longitude", fmt.Sprintf("%f", loc.Longitude))
	values.Set("current", strings.Join(openMeteoCurrentFields, ","))
	values.Set("timezone", "UTC")

	body, err := p.fetcher.Fetch(ctx, p.baseURL+"?"+values.Encode(), nil, 0)
	if err != nil {
		return weather.RawCurrentWeather{}, err
	}

	var payload openMeteoResponse
	if err := decodeJSON(p.name, body, &payload); err != nil {
		return weather.RawCurrentWeather{}, err
	}
	cur := payload.Current
	if cur == nil {
		return weather.RawCurrentWeather{}, malformed(p.name, "response has no current block")
	}

	r := weather.RawCurrentWeather{
		Provider:         p.name,
		ObservedAt:       p.clock.Now().UTC(),
		Temperature:      cur.Temperature,
		TemperatureUnit:  weather.Celsius,
		WindSpeed:        cur.WindSpeed,
		WindGust:         cur.WindGusts,
		WindUnit:         weather.KilometersPerHour,
		WindDirectionDeg: cur.WindDirection,
		HumidityPct:      cur.RelativeHumidity,
		VisibilityM:      cur.Visibility,
		SkyCoverPct:      cur.CloudCover,
	}
	// Open-Meteo reports times without an offset when timezone=UTC.
	if ts, err := time.Parse("2006-01-02T15:04", cur.Time); err == nil {
		r.ObservedAt = ts.UTC()
	}
	if u := payload.CurrentUnits["temperature_2m"]; strings.Contains(u, "F") {
		r.TemperatureUnit = weather.Fahrenheit
	}
	switch payload.CurrentUnits["wind_speed_10m"] {
	case "mp/h", "mph":
		r.WindUnit = weather.MilesPerHour
	case "m/s":
		r.WindUnit = weather.MetersPerSecond
	case "kn":
		r.WindUnit = weather.Knots
	}
	if cur.WeatherCode != nil {
		r.ConditionsText = describeWMOCode(*cur.WeatherCode)
	}

	return r, nil
}

// describeWMOCode maps a WMO weather interpretation code to short text.
func describeWMOCode(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code == 1:
		return "Mostly Clear"
	case code == 2:
		return "Partly Cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code == 66 || code == 67:
		return "Freezing Rain"
	case code >= 61 && code <= 65, code >= 80 && code <= 82:
		return "Rain"
	case code >= 71 && code <= 77, code == 85, code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return ""
	}
}
