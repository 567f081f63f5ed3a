package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/mountain-conditions/internal/observability"
	"github.com/i474232898/mountain-conditions/internal/weather"
)

var (
	// ErrNotFound is returned when no report is available for a given location.
	ErrNotFound = errors.New("no conditions report for location")
)

// ReportHistory holds a time-ordered list of reports for a location.
type ReportHistory struct {
	Reports []weather.ConditionsReport
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// The newest report per location is the last known good one.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*ReportHistory

	// retention configuration
	maxHistory int           // max number of reports per location
	maxAge     time.Duration // optional max age for reports

	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited. metrics may be nil.
func NewMemoryStore(maxHistory int, maxAge time.Duration, metrics *observability.Metrics) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ReportHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
	}
}

// WithClock swaps the clock used for age-based retention.
func (s *MemoryStore) WithClock(c clockwork.Clock) *MemoryStore {
	s.clock = c
	return s
}

// SaveReport appends a report for a location and enforces retention.
// The newest report always survives retention.
func (s *MemoryStore) SaveReport(loc weather.Location, report weather.ConditionsReport) {
	key := loc.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &ReportHistory{}
		s.data[key] = history
	}

	history.Reports = append(history.Reports, report)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Reports) > s.maxHistory {
		over := len(history.Reports) - s.maxHistory
		history.Reports = history.Reports[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Reports)-1; i++ {
			if !history.Reports[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		history.Reports = history.Reports[i:]
	}

	s.updateGauge()
}

func (s *MemoryStore) updateGauge() {
	if s.metrics == nil {
		return
	}
	total := 0
	for _, h := range s.data {
		total += len(h.Reports)
	}
	s.metrics.StoredReports.Set(float64(total))
}

// GetLatest returns the most recent report for a location.
func (s *MemoryStore) GetLatest(loc weather.Location) (weather.ConditionsReport, error) {
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Reports) == 0 {
		return weather.ConditionsReport{}, ErrNotFound
	}
	return history.Reports[len(history.Reports)-1], nil
}

// GetRange returns all reports for a location fetched between from and to (inclusive).
func (s *MemoryStore) GetRange(loc weather.Location, from, to time.Time) ([]weather.ConditionsReport, error) {
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Reports) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.ConditionsReport
	for _, r := range history.Reports {
		if !r.FetchedAt.Before(from) && !r.FetchedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
