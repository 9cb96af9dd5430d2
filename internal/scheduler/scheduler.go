// Package scheduler runs the periodic keyword reweighting job.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
	"github.com/jonesrussell/north-cloud/milkmob/internal/telemetry"
)

const (
	defaultSchedule = "@every 10m"
	defaultTimeout  = time.Minute
)

// Store supplies learned keyword weights.
type Store interface {
	KeywordWeights(ctx context.Context) (map[string]map[string]float64, error)
}

// CountSource supplies current category member counts for the gauges.
type CountSource interface {
	Stats(ctx context.Context, topN int) (*domain.CohortStats, error)
}

// WeightApplier rebuilds a live keyword table from stored weights.
type WeightApplier interface {
	ApplyWeights(weights map[string]map[string]float64)
}

// Config configures the scheduler.
type Config struct {
	Schedule string
	Timeout  time.Duration
}

// Scheduler reloads keyword weights into the classifier on a cron schedule.
type Scheduler struct {
	cfg       Config
	store     Store
	counts    CountSource
	applier   WeightApplier
	cron      *cron.Cron
	logger    logger.Logger
	telemetry *telemetry.Provider
}

// New builds a Scheduler. counts may be nil.
func New(cfg Config, store Store, counts CountSource, applier WeightApplier, log logger.Logger, tp *telemetry.Provider) *Scheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		counts:    counts,
		applier:   applier,
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:    log,
		telemetry: tp,
	}
}

// Start registers the job and starts the cron runner. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if runErr := s.RunOnce(ctx); runErr != nil {
			s.logger.Error("Keyword reweighting failed", logger.Error(runErr))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", logger.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop stops the runner and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

// RunOnce reloads keyword weights and refreshes the member-count gauges.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	defer func() { s.telemetry.RecordReweight(err) }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	weights, err := s.store.KeywordWeights(ctx)
	if err != nil {
		return fmt.Errorf("load keyword weights: %w", err)
	}
	s.applier.ApplyWeights(weights)

	s.logger.Info("Keyword weights reloaded",
		logger.Int("categories", len(weights)),
		logger.Duration("duration", time.Since(start)),
	)

	if s.counts == nil {
		return nil
	}
	stats, err := s.counts.Stats(ctx, 0)
	if err != nil {
		return fmt.Errorf("load category counts: %w", err)
	}
	for _, c := range stats.CategoryCounts {
		s.telemetry.SetCategoryMembers(c.CategoryID, c.MemberCount)
	}
	return nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []any) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
