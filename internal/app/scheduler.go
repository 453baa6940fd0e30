package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger deletes read notifications older than a retention window.
type Purger interface {
	PurgeRead(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Scheduler runs periodic maintenance on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	purger    Purger
	retention time.Duration
	logger    *zap.Logger
}

// NewScheduler parses spec, a standard five-field cron expression evaluated in loc.
func NewScheduler(spec string, loc *time.Location, purger Purger, retention time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		purger:    purger,
		retention: retention,
		logger:    logger,
	}
	if _, err := s.cron.AddFunc(spec, s.purgeNotifications); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("starting maintenance scheduler")
	s.cron.Start()
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("maintenance scheduler stopped")
}

func (s *Scheduler) purgeNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.purger.PurgeRead(ctx, s.retention); err != nil {
		s.logger.Error("notification purge failed", zap.Error(err))
	}
}
