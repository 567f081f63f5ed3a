package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/mountain-conditions/internal/common"
	"github.com/i474232898/mountain-conditions/internal/observability"
	"github.com/i474232898/mountain-conditions/internal/weather"
)

const weatherAPIDefaultBaseURL = "https://api.weatherapi.com/v1/current.json"

// WeatherAPIProvider implements weather.CurrentWeatherSource for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	fetcher *Fetcher
	clock   clockwork.Clock
}

func NewWeatherAPIProvider(cfg HTTPClientConfig, baseURL, apiKey string, metrics *observability.Metrics) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = weatherAPIDefaultBaseURL
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: baseURL,
		fetcher: NewFetcher("weatherapi", cfg, metrics),
		clock:   clockwork.NewRealClock(),
	}
}

// WithClock swaps the clock used when the response carries no observation time.
func (p *WeatherAPIProvider) WithClock(c clockwork.Clock) *WeatherAPIProvider {
	p.clock = c
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIResponse struct {
	Current *struct {
		LastUpdatedEpoch int64    `json:"last_updated_epoch"`
		TempC            *float64 `json:"temp_c"`
		Humidity         *float64 `json:"humidity"`
		WindKph          *float64 `json:"wind_kph"`
		GustKph          *float64 `json:"gust_kph"`
		WindDegree       *float64 `json:"wind_degree"`
		WindDir          string   `json:"wind_dir"`
		VisKm            *float64 `json:"vis_km"`
		Cloud            *float64 `json:"cloud"`
		Condition        struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

func (p *WeatherAPIProvider) GetCurrentWeather(ctx context.Context, loc weather.Location) (weather.RawCurrentWeather, error) {
	if p.apiKey == "" {
		return weather.RawCurrentWeather{}, fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location and accepts "lat,lon".
	values.Set("q", fmt.Sprintf("%f,%f", loc.Latitude, loc.Longitude))

	body, err := p.fetcher.Fetch(ctx, p.baseURL+"?"+values.Encode(), nil, 0)
	if err != nil {
		return weather.RawCurrentWeather{}, err
	}

	var payload weatherAPIResponse
	if err := decodeJSON(p.name, body, &payload); err != nil {
		return weather.RawCurrentWeather{}, err
	}
	cur := payload.Current
	if cur == nil {
		return weather.RawCurrentWeather{}, malformed(p.name, "response has no current block")
	}

	ts := p.clock.Now().UTC()
	if cur.LastUpdatedEpoch > 0 {
		ts = time.Unix(cur.LastUpdatedEpoch, 0).UTC()
	}

	var visibilityM *float64
	if cur.VisKm != nil {
		visibilityM = common.Float(*cur.VisKm * 1000)
	}

	return weather.RawCurrentWeather{
		Provider:              p.name,
		ObservedAt:            ts,
		Temperature:           cur.TempC,
		TemperatureUnit:       weather.Celsius,
		WindSpeed:             cur.WindKph,
		WindGust:              cur.GustKph,
		WindUnit:              weather.KilometersPerHour,
		WindDirectionDeg:      cur.WindDegree,
		WindDirectionCardinal: cur.WindDir,
		HumidityPct:           cur.Humidity,
		VisibilityM:           visibilityM,
		SkyCoverPct:           cur.Cloud,
		ConditionsText:        cur.Condition.Text,
	}, nil
}
