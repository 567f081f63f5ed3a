package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/mountain-conditions/internal/weather"
)

// DefaultTimeout bounds a single location refresh when none is configured.
const DefaultTimeout = 30 * time.Second

// Refresher is the part of weather.Service the scheduler drives.
type Refresher interface {
	FetchAndStore(ctx context.Context, loc weather.Location) error
}

// Scheduler periodically refreshes conditions for configured locations.
// Scheduled runs derive from a root context that Stop cancels.
type Scheduler struct {
	ctx       context.Context
	cancel    context.CancelFunc
	scheduler *gocron.Scheduler
	service   Refresher
	locations []weather.Location
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(locations []weather.Location, interval, timeout time.Duration, service Refresher, logger *zap.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:       ctx,
		cancel:    cancel,
		scheduler: s,
		service:   service,
		locations: locations,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Warn("scheduler: no locations configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		s.RunOnce(s.ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every location concurrently, each bounded by the refresh
// timeout, and waits for all of them.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	s.logger.Debug("scheduler: running refresh job", zap.Int("locations", len(s.locations)))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, loc := range s.locations {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			if err := s.service.FetchAndStore(ctx, loc); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				s.logger.Warn("scheduler: refresh failed",
					zap.String("location", loc.Key()), zap.Error(err))
			}
		}()
	}
	wg.Wait()

	s.logger.Info("scheduler: completed refresh job",
		zap.Int("locations", len(s.locations)),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)),
	)
}

// Stop cancels refreshes in flight and stops future runs.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
