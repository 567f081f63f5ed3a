package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/mountain-conditions/internal/common"
	"github.com/i474232898/mountain-conditions/internal/observability"
)

var (
	serviceNow = time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)
	errDown    = fmt.Errorf("%w: test: connection refused", ErrSourceUnavailable)
	stevens    = Location{
		ID:            "stevens-pass",
		Name:          "Stevens Pass",
		Latitude:      47.7448,
		Longitude:     -121.089,
		SnotelStation: "791:WA:SNTL",
		Grid:          GridConfig{Office: "SEW", X: 163, Y: 66},
		PassKeywords:  []string{"stevens"},
	}
)

type memStore struct {
	mu      sync.Mutex
	reports map[string][]ConditionsReport
}

func newMemStore() *memStore {
	return &memStore{reports: map[string][]ConditionsReport{}}
}

func (m *memStore) SaveReport(loc Location, r ConditionsReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[loc.Key()] = append(m.reports[loc.Key()], r)
}

func (m *memStore) GetLatest(loc Location) (ConditionsReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := m.reports[loc.Key()]
	if len(rs) == 0 {
		return ConditionsReport{}, errors.New("not found")
	}
	return rs[len(rs)-1], nil
}

func (m *memStore) GetRange(loc Location, from, to time.Time) ([]ConditionsReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ConditionsReport
	for _, r := range m.reports[loc.Key()] {
		if !r.FetchedAt.Before(from) && !r.FetchedAt.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeStation struct {
	err     error
	reading RawStationReading
}

func (f *fakeStation) Name() string { return "snotel" }

func (f *fakeStation) GetCurrentConditions(context.Context, string) (RawStationReading, error) {
	return f.reading, f.err
}

type fakeForecast struct {
	err     error
	periods []RawForecastPeriod
	hourly  []RawForecastPeriod
}

func (f *fakeForecast) Name() string { return "nws" }

func (f *fakeForecast) GetForecast(context.Context, GridConfig) ([]RawForecastPeriod, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.periods, nil
}

func (f *fakeForecast) GetHourlyForecast(context.Context, GridConfig) ([]RawForecastPeriod, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hourly, nil
}

type fakeCurrent struct {
	name    string
	err     error
	reading RawCurrentWeather
	// block waits for ctx before returning, to prove fetches are concurrent.
	block bool
}

func (f *fakeCurrent) Name() string { return f.name }

func (f *fakeCurrent) GetCurrentWeather(ctx context.Context, _ Location) (RawCurrentWeather, error) {
	if f.block {
		<-ctx.Done()
		return RawCurrentWeather{}, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, f.name, ctx.Err())
	}
	return f.reading, f.err
}

type fakeAlerts struct{ err error }

func (f *fakeAlerts) Name() string { return "nws" }

func (f *fakeAlerts) GetAlerts(context.Context, float64, float64) ([]RawAlert, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []RawAlert{{ID: "a1", Event: "Winter Storm Warning", Severity: SeveritySevere}}, nil
}

type fakePasses struct{}

func (fakePasses) Name() string { return "wsdot" }

func (fakePasses) GetPassConditions(_ context.Context, code string) ([]RawPassSummary, error) {
	if code == "" {
		return nil, errors.New("not configured")
	}
	return []RawPassSummary{
		{ID: 10, Name: "Stevens Pass US 2"},
		{ID: 11, Name: "Snoqualmie Pass I-90"},
	}, nil
}

func goodStation() *fakeStation {
	return &fakeStation{reading: RawStationReading{
		StationID:    "791:WA:SNTL",
		ObservedAt:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Depth:        series(142, 134, 128),
		TemperatureF: common.Float(28),
	}}
}

func goodForecast() *fakeForecast {
	day := RawForecastPeriod{
		StartTime:        time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC),
		EndTime:          time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC),
		IsDaytime:        true,
		TemperatureF:     27,
		WindSpeedText:    "10 mph",
		ShortForecast:    "Snow",
		DetailedForecast: "Snow. New snow accumulation of 3 to 5 inches.",
	}
	hour := RawForecastPeriod{
		StartTime:            serviceNow,
		EndTime:              serviceNow.Add(time.Hour),
		TemperatureF:         26,
		WindSpeedText:        "15 mph",
		WindDirection:        "SW",
		ShortForecast:        "Light Snow",
		PrecipProbabilityPct: common.Float(70),
	}
	return &fakeForecast{periods: []RawForecastPeriod{day}, hourly: []RawForecastPeriod{hour}}
}

func newTestService(store Store, sources Sources) (*Service, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(serviceNow)
	svc := NewService(store, sources, []Location{stevens}, time.Hour, zap.NewNop(), observability.NewMetricsForTesting()).WithClock(clock)
	return svc, clock
}

func statusOf(t *testing.T, r ConditionsReport, source string) SourceStatus {
	t.Helper()
	for _, s := range r.Sources {
		if s.Source == source {
			return s
		}
	}
	t.Fatalf("no status for source %q in %+v", source, r.Sources)
	return SourceStatus{}
}

func TestRefresh_AllSourcesSucceed(t *testing.T) {
	svc, _ := newTestService(newMemStore(), Sources{
		Station:        goodStation(),
		Forecast:       goodForecast(),
		CurrentWeather: []CurrentWeatherSource{&fakeCurrent{name: "openmeteo", reading: RawCurrentWeather{Provider: "openmeteo", WindGust: common.Float(40), WindUnit: KilometersPerHour}}},
		Alerts:         &fakeAlerts{},
		Passes:         fakePasses{},
		PassAccessCode: "code",
	})

	r, err := svc.Refresh(context.Background(), stevens)
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, serviceNow, r.FetchedAt)
	assert.Len(t, r.Sources, 6)
	for _, s := range r.Sources {
		assert.True(t, s.OK, s.Source)
	}

	assert.Equal(t, 142.0, r.Conditions.SnowDepthIn)
	assert.Equal(t, 8.0, r.Conditions.Snowfall24hIn)
	assert.Equal(t, 28.0, r.Conditions.TemperatureF)
	// Speed comes from the hourly period, gust from the primary source.
	assert.Equal(t, 15.0, r.Conditions.WindSpeedMph)
	require.NotNil(t, r.Conditions.WindGustMph)
	assert.Equal(t, 25.0, *r.Conditions.WindGustMph)
	assert.Equal(t, "Light Snow", r.Conditions.ConditionsText)

	require.Len(t, r.Forecast, 1)
	assert.Equal(t, 5.0, r.Forecast[0].SnowfallIn)
	require.Len(t, r.Hourly, 1)
	require.Len(t, r.Alerts, 1)
	require.Len(t, r.Passes, 1)
	assert.Equal(t, 10, r.Passes[0].ID)

	// 5 + 2 fresh snow + 0 temp + 0 wind + 1 base
	assert.Equal(t, 8, r.Score.Score)
	assert.Contains(t, r.Links.Discussion, "SEW")
}

func TestRefresh_OneSourceFailureDegradesOnlyItsFields(t *testing.T) {
	svc, _ := newTestService(newMemStore(), Sources{
		Station:  goodStation(),
		Forecast: goodForecast(),
		Alerts:   &fakeAlerts{err: errDown},
	})

	r, err := svc.Refresh(context.Background(), stevens)
	require.NoError(t, err)

	alerts := statusOf(t, r, SourceAlerts)
	assert.False(t, alerts.OK)
	assert.Contains(t, alerts.Error, "connection refused")
	assert.NotNil(t, r.Alerts)
	assert.Empty(t, r.Alerts)

	assert.True(t, statusOf(t, r, SourceStation).OK)
	assert.Equal(t, 142.0, r.Conditions.SnowDepthIn)
	assert.Len(t, r.Forecast, 1)
}

func TestRefresh_StationDownStillUsesWeather(t *testing.T) {
	svc, _ := newTestService(newMemStore(), Sources{
		Station: &fakeStation{err: fmt.Errorf("%w: snotel: bad payload", ErrMalformedSourceData)},
		CurrentWeather: []CurrentWeatherSource{&fakeCurrent{name: "openmeteo", reading: RawCurrentWeather{
			Provider:        "openmeteo",
			Temperature:     common.Float(-5),
			TemperatureUnit: Celsius,
		}}},
	})

	r, err := svc.Refresh(context.Background(), stevens)
	require.NoError(t, err)

	assert.False(t, statusOf(t, r, SourceStation).OK)
	assert.Equal(t, 23.0, r.Conditions.TemperatureF)
	assert.Equal(t, 0.0, r.Conditions.SnowDepthIn)
	assert.Nil(t, r.Conditions.WindGustMph)
}

func TestRefresh_NoConditionsSource(t *testing.T) {
	svc, _ := newTestService(newMemStore(), Sources{
		Station:        &fakeStation{err: errDown},
		CurrentWeather: []CurrentWeatherSource{&fakeCurrent{name: "openmeteo", err: errDown}},
		Alerts:         &fakeAlerts{},
	})

	r, err := svc.Refresh(context.Background(), stevens)
	require.ErrorIs(t, err, ErrSourceUnavailable)
	// The partial report is still built.
	assert.Len(t, r.Alerts, 1)
	assert.Equal(t, DefaultTemperatureF, r.Conditions.TemperatureF)
	assert.GreaterOrEqual(t, r.Score.Score, 1)
}

func TestRefresh_SourcesRunConcurrently(t *testing.T) {
	svc, _ := newTestService(newMemStore(), Sources{
		Station: goodStation(),
		CurrentWeather: []CurrentWeatherSource{
			&fakeCurrent{name: "slow", block: true},
			&fakeCurrent{name: "openmeteo", reading: RawCurrentWeather{Provider: "openmeteo", WindSpeed: common.Float(10), WindUnit: MilesPerHour}},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r, err := svc.Refresh(ctx, stevens)
	require.NoError(t, err)
	assert.False(t, statusOf(t, r, "slow").OK)
	assert.True(t, statusOf(t, r, "openmeteo").OK)
	assert.Equal(t, 10.0, r.Conditions.WindSpeedMph)
}

func TestRefresh_SourceStatusOrderIsStable(t *testing.T) {
	svc, _ := newTestService(newMemStore(), Sources{
		Station:  goodStation(),
		Forecast: goodForecast(),
		CurrentWeather: []CurrentWeatherSource{
			&fakeCurrent{name: "slow", block: true},
			&fakeCurrent{name: "openmeteo", reading: RawCurrentWeather{Provider: "openmeteo"}},
		},
		Alerts:         &fakeAlerts{},
		Passes:         fakePasses{},
		PassAccessCode: "code",
	})
	want := []string{SourceStation, "slow", "openmeteo", SourceForecast, SourceHourly, SourceAlerts, SourcePasses}

	for range 3 {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		r, err := svc.Refresh(ctx, stevens)
		cancel()
		require.NoError(t, err)

		got := make([]string, 0, len(r.Sources))
		for _, st := range r.Sources {
			got = append(got, st.Source)
		}
		assert.Equal(t, want, got)
	}
}

func TestRefresh_SkipsInapplicableSources(t *testing.T) {
	loc := stevens
	loc.SnotelStation = ""
	loc.PassKeywords = nil

	svc, _ := newTestService(newMemStore(), Sources{
		Station:        goodStation(),
		CurrentWeather: []CurrentWeatherSource{&fakeCurrent{name: "openmeteo", reading: RawCurrentWeather{Provider: "openmeteo"}}},
		Passes:         fakePasses{},
		PassAccessCode: "code",
	})

	r, err := svc.Refresh(context.Background(), loc)
	require.NoError(t, err)
	require.Len(t, r.Sources, 1)
	assert.Equal(t, "openmeteo", r.Sources[0].Source)
}

func TestFetchAndStore_KeepsLastKnownGood(t *testing.T) {
	store := newMemStore()
	station := goodStation()
	svc, clock := newTestService(store, Sources{Station: station})

	require.NoError(t, svc.FetchAndStore(context.Background(), stevens))
	first, err := store.GetLatest(stevens)
	require.NoError(t, err)

	station.err = errDown
	clock.Advance(2 * time.Hour)

	err = svc.FetchAndStore(context.Background(), stevens)
	require.ErrorIs(t, err, ErrSourceUnavailable)

	latest, err := store.GetLatest(stevens)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	report, err := svc.GetReport(context.Background(), stevens.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, report.ID)
	assert.True(t, report.Stale)
	assert.Equal(t, first.Score, report.Score)
}

func TestFetchAndStore_CarriesForecastForward(t *testing.T) {
	store := newMemStore()
	forecast := goodForecast()
	svc, clock := newTestService(store, Sources{Station: goodStation(), Forecast: forecast})

	require.NoError(t, svc.FetchAndStore(context.Background(), stevens))

	forecast.err = errDown
	clock.Advance(15 * time.Minute)
	require.NoError(t, svc.FetchAndStore(context.Background(), stevens))

	latest, err := store.GetLatest(stevens)
	require.NoError(t, err)
	assert.False(t, latest.SourceOK(SourceForecast))
	require.Len(t, latest.Forecast, 1)
	assert.Equal(t, 5.0, latest.Forecast[0].SnowfallIn)
	assert.Equal(t, serviceNow.Add(15*time.Minute), latest.FetchedAt)
}

func TestGetReport_RefreshesOnDemand(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store, Sources{Station: goodStation()})

	r, err := svc.GetReport(context.Background(), stevens.ID)
	require.NoError(t, err)
	assert.False(t, r.Stale)
	assert.Equal(t, 142.0, r.Conditions.SnowDepthIn)

	_, err = svc.GetReport(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestGetReport_NothingStoredAndAllDown(t *testing.T) {
	svc, _ := newTestService(newMemStore(), Sources{Station: &fakeStation{err: errDown}})

	_, err := svc.GetReport(context.Background(), stevens.ID)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestGetRange(t *testing.T) {
	store := newMemStore()
	svc, clock := newTestService(store, Sources{Station: goodStation()})

	require.NoError(t, svc.FetchAndStore(context.Background(), stevens))
	clock.Advance(time.Hour)
	require.NoError(t, svc.FetchAndStore(context.Background(), stevens))

	got, err := svc.GetRange(stevens.ID, serviceNow, serviceNow.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.GetRange("nowhere", serviceNow, serviceNow)
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestLocationsIsACopy(t *testing.T) {
	svc, _ := newTestService(newMemStore(), Sources{})
	locs := svc.Locations()
	locs[0].ID = "mutated"

	loc, err := svc.Lookup(stevens.ID)
	require.NoError(t, err)
	assert.Equal(t, stevens.ID, loc.ID)
	assert.Equal(t, stevens.ID, svc.Locations()[0].ID)
}
