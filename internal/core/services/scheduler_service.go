package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	portssvc "github.com/SscSPs/currency_exchanger/internal/core/ports/services"
	"github.com/SscSPs/currency_exchanger/internal/middleware"
	"github.com/robfig/cron/v3"
)

// DefaultRefreshSchedule runs ingestion daily at 00:05 UTC. The first field is seconds.
const DefaultRefreshSchedule = "0 5 0 * * *"

// SchedulerService triggers rate ingestion on a cron schedule.
type SchedulerService struct {
	BaseService
	ingestion portssvc.RateIngestionSvc
	cron      *cron.Cron
	logger    *slog.Logger
	timeout   time.Duration
}

// NewSchedulerService creates a scheduler that calls ingestion.FetchAndStore on schedule.
// Each run gets its own context bounded by timeout.
func NewSchedulerService(ingestion portssvc.RateIngestionSvc, schedule string, timeout time.Duration, logger *slog.Logger) (*SchedulerService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SchedulerService{
		ingestion: ingestion,
		cron:      cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		logger:    logger.With(slog.String("component", "scheduler")),
		timeout:   timeout,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *SchedulerService) Start() {
	s.logger.Info("Scheduler started", slog.Time("next_run", s.NextRun()))
	s.cron.Start()
}

// Stop prevents further runs and waits for a running one to finish or ctx to be done.
func (s *SchedulerService) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out", slog.String("error", ctx.Err().Error()))
	}
}

// NextRun reports when the schedule fires next.
func (s *SchedulerService) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().UTC())
}

// RunOnce performs a single scheduled ingestion cycle.
func (s *SchedulerService) RunOnce() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx = middleware.WithLogger(ctx, s.logger)

	s.logger.Info("Fetching exchange rates")
	if err := s.ingestion.FetchAndStore(ctx); err != nil {
		s.logger.Error("Scheduled exchange rates refresh failed", slog.String("error", err.Error()))
	}
}
