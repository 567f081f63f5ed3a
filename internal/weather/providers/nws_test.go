package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/mountain-conditions/internal/weather"
)

var testGrid = weather.GridConfig{Office: "sew", X: 152, Y: 54}

const nwsForecastPayload = `{
  "properties": {
    "periods": [
      {
        "number": 1,
        "name": "Today",
        "startTime": "2024-01-15T06:00:00-08:00",
        "endTime": "2024-01-15T18:00:00-08:00",
        "isDaytime": true,
        "temperature": 28,
        "temperatureUnit": "F",
        "windSpeed": "10 to 20 mph",
        "windDirection": "SW",
        "icon": "https://api.weather.gov/icons/land/day/snow",
        "shortForecast": "Snow",
        "detailedForecast": "Snow. New snow accumulation of 4 to 8 inches.",
        "probabilityOfPrecipitation": {"unitCode": "wmoUnit:percent", "value": 90}
      },
      {
        "number": 2,
        "name": "Tonight",
        "startTime": "2024-01-15T18:00:00-08:00",
        "endTime": "2024-01-16T06:00:00-08:00",
        "isDaytime": false,
        "temperature": -2,
        "temperatureUnit": "C",
        "windSpeed": "5 mph",
        "windDirection": "S",
        "shortForecast": "Mostly Cloudy",
        "detailedForecast": "Mostly cloudy.",
        "probabilityOfPrecipitation": {"unitCode": "wmoUnit:percent", "value": null}
      }
    ]
  }
}`

func TestNWS_GetForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gridpoints/SEW/152,54/forecast", r.URL.Path)
		assert.Equal(t, "mountain-conditions (test@example.com)", r.Header.Get("User-Agent"))
		w.Header().Set(headerContentType, "application/geo+json")
		_, _ = w.Write([]byte(nwsForecastPayload))
	}))
	defer srv.Close()

	p := NewNWSProvider(testConfig(), srv.URL, "mountain-conditions (test@example.com)", testMetrics())
	periods, err := p.GetForecast(context.Background(), testGrid)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	first := periods[0]
	assert.Equal(t, "Today", first.Name)
	assert.True(t, first.IsDaytime)
	assert.Equal(t, 28.0, first.TemperatureF)
	assert.Equal(t, "10 to 20 mph", first.WindSpeedText)
	require.NotNil(t, first.PrecipProbabilityPct)
	assert.Equal(t, 90.0, *first.PrecipProbabilityPct)
	_, offset := first.StartTime.Zone()
	assert.Equal(t, -8*3600, offset)

	second := periods[1]
	assert.InDelta(t, 28.4, second.TemperatureF, 0.001)
	assert.Nil(t, second.PrecipProbabilityPct)
}

func TestNWS_GetHourlyForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gridpoints/SEW/152,54/forecast/hourly", r.URL.Path)
		_, _ = w.Write([]byte(nwsForecastPayload))
	}))
	defer srv.Close()

	p := NewNWSProvider(testConfig(), srv.URL, "ua", testMetrics())
	periods, err := p.GetHourlyForecast(context.Background(), testGrid)
	require.NoError(t, err)
	assert.Len(t, periods, 2)
}

func TestNWS_GetForecast_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"no properties", `{}`},
		{"no periods", `{"properties":{}}`},
		{"bad start time", `{"properties":{"periods":[{"number":1,"startTime":"soon","endTime":"2024-01-15T18:00:00-08:00","temperature":30}]}}`},
		{"no temperature", `{"properties":{"periods":[{"number":1,"startTime":"2024-01-15T06:00:00-08:00","endTime":"2024-01-15T18:00:00-08:00"}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := jsonServer(t, tt.body)
			p := NewNWSProvider(testConfig(), srv.URL, "ua", testMetrics())
			_, err := p.GetForecast(context.Background(), testGrid)
			assert.ErrorIs(t, err, weather.ErrMalformedSourceData)
			assert.Equal(t, int32(1), atomic.LoadInt32(hits), "malformed data is never retried")
		})
	}
}

const nwsGridPayload = `{
  "properties": {
    "updateTime": "2024-01-15T17:30:00+00:00",
    "temperature": {
      "uom": "wmoUnit:degC",
      "values": [
        {"validTime": "2024-01-15T15:00:00+00:00/PT3H", "value": -5},
        {"validTime": "2024-01-15T18:00:00+00:00/PT1H", "value": -3}
      ]
    },
    "windSpeed": {
      "uom": "wmoUnit:km_h-1",
      "values": [{"validTime": "2024-01-15T12:00:00+00:00/PT12H", "value": 32.2}]
    },
    "windDirection": {
      "uom": "wmoUnit:degree_(angle)",
      "values": [{"validTime": "2024-01-15T12:00:00+00:00/P1DT2H", "value": 225}]
    },
    "relativeHumidity": {
      "uom": "wmoUnit:percent",
      "values": [{"validTime": "2024-01-15T16:00:00+00:00/PT2H", "value": 88}]
    },
    "visibility": {
      "uom": "wmoUnit:m",
      "values": []
    }
  }
}`

func TestNWS_GetCurrentWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gridpoints/SEW/152,54", r.URL.Path)
		_, _ = w.Write([]byte(nwsGridPayload))
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 15, 17, 45, 0, 0, time.UTC))
	p := NewNWSProvider(testConfig(), srv.URL, "ua", testMetrics()).WithClock(clock)

	r, err := p.GetCurrentWeather(context.Background(), weather.Location{ID: "stevens", Grid: testGrid})
	require.NoError(t, err)

	assert.Equal(t, "nws", r.Provider)
	assert.Equal(t, weather.Celsius, r.TemperatureUnit)
	assert.Equal(t, weather.KilometersPerHour, r.WindUnit)
	require.NotNil(t, r.Temperature)
	assert.Equal(t, -5.0, *r.Temperature)
	require.NotNil(t, r.WindSpeed)
	assert.Equal(t, 32.2, *r.WindSpeed)
	require.NotNil(t, r.WindDirectionDeg)
	assert.Equal(t, 225.0, *r.WindDirectionDeg)
	require.NotNil(t, r.HumidityPct)
	assert.Equal(t, 88.0, *r.HumidityPct)
	assert.Nil(t, r.VisibilityM)
	assert.Nil(t, r.WindGust)
	assert.Equal(t, time.Date(2024, 1, 15, 17, 30, 0, 0, time.UTC), r.ObservedAt)
}

func TestParseValidTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"2024-01-15T12:00:00+00:00/PT1H", time.Hour},
		{"2024-01-15T12:00:00+00:00/PT30M", 30 * time.Minute},
		{"2024-01-15T12:00:00+00:00/P1D", 24 * time.Hour},
		{"2024-01-15T12:00:00+00:00/P2DT6H", 54 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, d, err := parseValidTime(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
			assert.Equal(t, 12, start.Hour())
		})
	}

	for _, bad := range []string{"2024-01-15T12:00:00+00:00", "2024-01-15T12:00:00+00:00/PT", "noon/PT1H", "2024-01-15T12:00:00+00:00/1H"} {
		_, _, err := parseValidTime(bad)
		assert.ErrorIs(t, err, weather.ErrMalformedSourceData, bad)
	}
}

func TestSpeedUOM(t *testing.T) {
	assert.Equal(t, weather.KilometersPerHour, speedUOM("wmoUnit:km_h-1"))
	assert.Equal(t, weather.MetersPerSecond, speedUOM("wmoUnit:m_s-1"))
	assert.Equal(t, weather.Knots, speedUOM("wmoUnit:kt"))
	assert.Equal(t, weather.Fahrenheit, temperatureUOM("wmoUnit:degF"))
	assert.Equal(t, weather.Celsius, temperatureUOM("wmoUnit:degC"))
}

const nwsAlertsPayload = `{
  "features": [
    {
      "properties": {
        "id": "urn:oid:2.49.0.1.840.0.1",
        "event": "Winter Storm Warning",
        "headline": "Winter Storm Warning issued January 15",
        "description": "Heavy snow expected.",
        "instruction": "Avoid travel.",
        "areaDesc": "West Slopes of the Central Cascades",
        "severity": "Severe",
        "urgency": "Expected",
        "certainty": "Likely",
        "onset": "2024-01-15T18:00:00-08:00",
        "expires": "2024-01-16T10:00:00-08:00"
      }
    },
    {
      "properties": {
        "id": "urn:oid:2",
        "event": "Special Weather Statement",
        "severity": "Catastrophic",
        "urgency": "",
        "certainty": "Observed",
        "onset": null
      }
    }
  ]
}`

func TestNWS_GetAlerts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alerts/active", r.URL.Path)
		assert.Equal(t, "47.7448,-121.0890", r.URL.Query().Get("point"))
		_, _ = w.Write([]byte(nwsAlertsPayload))
	}))
	defer srv.Close()

	p := NewNWSProvider(testConfig(), srv.URL, "ua", testMetrics())
	alerts, err := p.GetAlerts(context.Background(), 47.7448, -121.089)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, "Winter Storm Warning", alerts[0].Event)
	assert.Equal(t, weather.SeveritySevere, alerts[0].Severity)
	assert.Equal(t, weather.UrgencyExpected, alerts[0].Urgency)
	assert.Equal(t, weather.CertaintyLikely, alerts[0].Certainty)
	require.NotNil(t, alerts[0].Onset)
	require.NotNil(t, alerts[0].Expires)

	assert.Equal(t, weather.SeverityUnknown, alerts[1].Severity)
	assert.Equal(t, weather.UrgencyUnknown, alerts[1].Urgency)
	assert.Equal(t, weather.CertaintyObserved, alerts[1].Certainty)
	assert.Nil(t, alerts[1].Onset)
}

func TestNWS_GetAlerts_NoFeaturesIsMalformed(t *testing.T) {
	srv, _ := jsonServer(t, `{"type":"FeatureCollection"}`)
	p := NewNWSProvider(testConfig(), srv.URL, "ua", testMetrics())
	_, err := p.GetAlerts(context.Background(), 47.7, -121.1)
	assert.ErrorIs(t, err, weather.ErrMalformedSourceData)
}

func TestNWS_GetAlerts_Empty(t *testing.T) {
	srv, _ := jsonServer(t, `{"features":[]}`)
	p := NewNWSProvider(testConfig(), srv.URL, "ua", testMetrics())
	alerts, err := p.GetAlerts(context.Background(), 47.7, -121.1)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
