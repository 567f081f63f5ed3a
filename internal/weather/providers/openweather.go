package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/mountain-conditions/internal/observability"
	"github.com/i474232898/mountain-conditions/internal/weather"
)

const openWeatherDefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherProvider implements weather.CurrentWeatherSource for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	fetcher *Fetcher
	clock   clockwork.Clock
}

func NewOpenWeatherProvider(cfg HTTPClientConfig, baseURL, apiKey string, metrics *observability.Metrics) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = openWeatherDefaultBaseURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		fetcher: NewFetcher("openweathermap", cfg, metrics),
		clock:   clockwork.NewRealClock(),
	}
}

// WithClock swaps the clock used when the response carries no observation time.
func (p *OpenWeatherProvider) WithClock(c clockwork.Clock) *OpenWeatherProvider {
	p.clock = c
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherResponse struct {
	Dt   int64 `json:"dt"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
		Gust  *float64 `json:"gust"`
		Deg   *float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Visibility *float64 `json:"visibility"`
	Weather    []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

func (p *OpenWeatherProvider) GetCurrentWeather(ctx context.Context, loc weather.Location) (weather.RawCurrentWeather, error) {
	if p.apiKey == "" {
		return weather.RawCurrentWeather{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("lat", fmt.Sprintf("%f", loc.Latitude))
	values.Set("lon", fmt.Sprintf("%f", loc.Longitude))

	body, err := p.fetcher.Fetch(ctx, p.baseURL+"?"+values.Encode(), nil, 0)
	if err != nil {
		return weather.RawCurrentWeather{}, err
	}

	var payload openWeatherResponse
	if err := decodeJSON(p.name, body, &payload); err != nil {
		return weather.RawCurrentWeather{}, err
	}
	if payload.Main == nil {
		return weather.RawCurrentWeather{}, malformed(p.name, "response has no main block")
	}

	ts := p.clock.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	r := weather.RawCurrentWeather{
		Provider:         p.name,
		ObservedAt:       ts,
		Temperature:      payload.Main.Temp,
		TemperatureUnit:  weather.Celsius,
		WindSpeed:        payload.Wind.Speed,
		WindGust:         payload.Wind.Gust,
		WindUnit:         weather.MetersPerSecond,
		WindDirectionDeg: payload.Wind.Deg,
		HumidityPct:      payload.Main.Humidity,
		VisibilityM:      payload.Visibility,
		SkyCoverPct:      payload.Clouds.All,
	}
	if len(payload.Weather) > 0 {
		r.ConditionsText = payload.Weather[0].Main
	}
	return r, nil
}
