package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/mountain-conditions/internal/observability"
)

// Source names used in SourceStatus entries and metrics.
const (
	SourceStation  = "station"
	SourceForecast = "forecast"
	SourceHourly   = "hourly"
	SourceAlerts   = "alerts"
	SourcePasses   = "passes"
)

// hourlyPeriodsKept bounds the hourly forecast carried in a report.
const hourlyPeriodsKept = 24

// Sources bundles the adapters a Service fans out to. Any of them may be nil.
type Sources struct {
	Station        StationSource
	Forecast       ForecastSource
	CurrentWeather []CurrentWeatherSource // priority order
	Alerts         AlertSource
	Passes         PassSource
	PassAccessCode string
}

// Service orchestrates fetching from every source for a location, builds the
// canonical report and keeps the last good one in the store.
type Service struct {
	store      Store
	sources    Sources
	locations  []Location
	byID       map[string]Location
	staleAfter time.Duration
	clock      clockwork.Clock
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewService creates a new Service.
func NewService(store Store, sources Sources, locations []Location, staleAfter time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Service {
	byID := make(map[string]Location, len(locations))
	for _, l := range locations {
		byID[l.ID] = l
	}
	return &Service{
		store:      store,
		sources:    sources,
		locations:  locations,
		byID:       byID,
		staleAfter: staleAfter,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
		metrics:    metrics,
	}
}

// WithClock swaps the time source. Tests use a fake clock.
func (s *Service) WithClock(c clockwork.Clock) *Service {
	s.clock = c
	return s
}

// Locations returns the configured locations.
func (s *Service) Locations() []Location {
	out := make([]Location, len(s.locations))
	copy(out, s.locations)
	return out
}

// Lookup resolves a location id.
func (s *Service) Lookup(id string) (Location, error) {
	loc, ok := s.byID[id]
	if !ok {
		return Location{}, fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	return loc, nil
}

// Refresh fetches every applicable source for loc concurrently and builds a
// report from whatever succeeded. A failing source only degrades the fields it
// feeds. If neither the station nor any current-weather source answered, the
// report is still returned but the error wraps ErrSourceUnavailable.
func (s *Service) Refresh(ctx context.Context, loc Location) (ConditionsReport, error) {
	start := s.clock.Now()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		started int

		station *RawStationReading
		periods []RawForecastPeriod
		hourly  []RawForecastPeriod
		alerts  []RawAlert
		allPass []RawPassSummary
	)
	current := make([]*RawCurrentWeather, len(s.sources.CurrentWeather))
	results := make(map[int]SourceStatus)

	// Every goroutine reports nil so one failure never cancels the others.
	// Statuses are keyed by start order so the report lists them stably.
	run := func(source string, fn func(ctx context.Context) error) {
		slot := started
		started++
		g.Go(func() error {
			err := fn(ctx)
			st := s.recordSource(loc, source, err)
			mu.Lock()
			results[slot] = st
			mu.Unlock()
			return nil
		})
	}

	if s.sources.Station != nil && loc.SnotelStation != "" {
		run(SourceStation, func(ctx context.Context) error {
			r, err := s.sources.Station.GetCurrentConditions(ctx, loc.SnotelStation)
			if err == nil {
				station = &r
			}
			return err
		})
	}

	for i, src := range s.sources.CurrentWeather {
		run(src.Name(), func(ctx context.Context) error {
			r, err := src.GetCurrentWeather(ctx, loc)
			if err == nil {
				current[i] = &r
			}
			return err
		})
	}

	if s.sources.Forecast != nil {
		run(SourceForecast, func(ctx context.Context) error {
			p, err := s.sources.Forecast.GetForecast(ctx, loc.Grid)
			periods = p
			return err
		})
		run(SourceHourly, func(ctx context.Context) error {
			p, err := s.sources.Forecast.GetHourlyForecast(ctx, loc.Grid)
			hourly = p
			return err
		})
	}

	if s.sources.Alerts != nil {
		run(SourceAlerts, func(ctx context.Context) error {
			a, err := s.sources.Alerts.GetAlerts(ctx, loc.Latitude, loc.Longitude)
			alerts = a
			return err
		})
	}

	if s.sources.Passes != nil && len(loc.PassKeywords) > 0 {
		run(SourcePasses, func(ctx context.Context) error {
			p, err := s.sources.Passes.GetPassConditions(ctx, s.sources.PassAccessCode)
			allPass = p
			return err
		})
	}

	_ = g.Wait()

	statuses := make([]SourceStatus, started)
	for i := range statuses {
		statuses[i] = results[i]
	}

	now := s.clock.Now()
	readings := s.weatherReadings(current, hourly, now)

	conditions := NormalizeConditions(NormalizeInput{
		Station: station,
		Weather: readings,
		Now:     now,
	})
	if station != nil {
		if deltas := CalculateSnowfall(station.Depth); deltas.Degraded() {
			s.logger.Debug("snowfall computed from short depth history",
				zap.String("location", loc.ID),
				zap.String("station", loc.SnotelStation),
				zap.Bool("24h", deltas.Insufficient24h),
				zap.Bool("48h", deltas.Insufficient48h),
				zap.Bool("7d", deltas.Insufficient7d),
			)
		}
	}

	forecast := AggregateForecast(periods)
	if len(hourly) > hourlyPeriodsKept {
		hourly = hourly[:hourlyPeriodsKept]
	}

	report := ConditionsReport{
		ID:         uuid.NewString(),
		Location:   loc,
		Conditions: conditions,
		Forecast:   forecast,
		Hourly:     hourly,
		Alerts:     alerts,
		Passes:     MatchPasses(allPass, loc.PassKeywords),
		Score:      ScoreConditions(conditions, forecast),
		Links:      BuildDeepLinks(loc),
		Sources:    statuses,
		FetchedAt:  now.UTC(),
	}
	if report.Alerts == nil {
		report.Alerts = []RawAlert{}
	}

	s.metrics.RefreshDuration.WithLabelValues(loc.ID).Observe(s.clock.Since(start).Seconds())

	if station == nil && len(readings) == 0 {
		return report, fmt.Errorf("%w: no conditions source answered for %s", ErrSourceUnavailable, loc.ID)
	}
	return report, nil
}

// weatherReadings orders successful readings by priority. The reading derived
// from the hourly forecast slots in right after the primary source so it fills
// fields (conditions text, precip chance) the gridded data lacks.
func (s *Service) weatherReadings(current []*RawCurrentWeather, hourly []RawForecastPeriod, now time.Time) []RawCurrentWeather {
	var hourlyReading *RawCurrentWeather
	if p, ok := currentPeriod(hourly, now); ok {
		r := CurrentFromHourly(SourceHourly, p)
		hourlyReading = &r
	}

	readings := make([]RawCurrentWeather, 0, len(current)+1)
	for i, r := range current {
		if r != nil {
			readings = append(readings, *r)
		}
		if i == 0 && hourlyReading != nil {
			readings = append(readings, *hourlyReading)
			hourlyReading = nil
		}
	}
	if hourlyReading != nil {
		readings = append(readings, *hourlyReading)
	}
	return readings
}

// currentPeriod finds the hourly period containing now, falling back to the first.
func currentPeriod(periods []RawForecastPeriod, now time.Time) (RawForecastPeriod, bool) {
	if len(periods) == 0 {
		return RawForecastPeriod{}, false
	}
	for _, p := range periods {
		if !now.Before(p.StartTime) && now.Before(p.EndTime) {
			return p, true
		}
	}
	return periods[0], true
}

func (s *Service) recordSource(loc Location, source string, err error) SourceStatus {
	if err == nil {
		s.metrics.SourceResults.WithLabelValues(source, "ok").Inc()
		return SourceStatus{Source: source, OK: true}
	}

	s.metrics.SourceResults.WithLabelValues(source, "error").Inc()
	fields := []zap.Field{
		zap.String("location", loc.ID),
		zap.String("source", source),
		zap.Error(err),
	}
	if errors.Is(err, ErrMalformedSourceData) {
		s.logger.Error("source returned malformed data", fields...)
	} else {
		s.logger.Warn("source fetch failed", fields...)
	}
	return SourceStatus{Source: source, OK: false, Error: err.Error()}
}

// FetchAndStore refreshes a location and stores the report. When no conditions
// source answered, the last good report stays in place and the error is returned.
// A forecast outage alone carries the previous forecast forward.
func (s *Service) FetchAndStore(ctx context.Context, loc Location) error {
	report, err := s.Refresh(ctx, loc)
	if err != nil {
		s.metrics.RefreshFailures.WithLabelValues(loc.ID).Inc()
		s.logger.Warn("no fresh conditions; keeping last good report",
			zap.String("location", loc.ID), zap.Error(err))
		return err
	}

	if !report.SourceOK(SourceForecast) {
		if prev, prevErr := s.store.GetLatest(loc); prevErr == nil && len(prev.Forecast) > 0 {
			report.Forecast = prev.Forecast
			report.Score = ScoreConditions(report.Conditions, report.Forecast)
			s.logger.Info("forecast unavailable; reusing previous forecast",
				zap.String("location", loc.ID), zap.Time("previous", prev.FetchedAt))
		}
	}

	s.store.SaveReport(loc, report)
	s.metrics.PowderScore.WithLabelValues(loc.ID).Set(float64(report.Score.Score))
	s.logger.Info("location refreshed",
		zap.String("location", loc.ID),
		zap.Int("score", report.Score.Score),
		zap.Int("sources", len(report.Sources)),
	)
	return nil
}

// GetReport returns the latest stored report, refreshing on demand when the
// store has nothing yet. Reports older than the staleness window are flagged.
func (s *Service) GetReport(ctx context.Context, id string) (ConditionsReport, error) {
	loc, err := s.Lookup(id)
	if err != nil {
		return ConditionsReport{}, err
	}

	report, err := s.store.GetLatest(loc)
	if err != nil {
		if fetchErr := s.FetchAndStore(ctx, loc); fetchErr != nil {
			return ConditionsReport{}, fetchErr
		}
		report, err = s.store.GetLatest(loc)
		if err != nil {
			return ConditionsReport{}, err
		}
	}

	if s.staleAfter > 0 && s.clock.Since(report.FetchedAt) > s.staleAfter {
		report.Stale = true
	}
	return report, nil
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(id string, from, to time.Time) ([]ConditionsReport, error) {
	loc, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	return s.store.GetRange(loc, from, to)
}

// SourceOK reports whether the named source succeeded in this report's refresh.
func (r ConditionsReport) SourceOK(source string) bool {
	for _, st := range r.Sources {
		if st.Source == source {
			return st.OK
		}
	}
	return false
}
