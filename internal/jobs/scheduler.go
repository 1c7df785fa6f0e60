// Package jobs hosts periodic maintenance. A background image task that
// dies mid-flight leaves its request pending forever; the sweep makes
// those visible to operators instead of silent.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"contentmod/api/internal/config"
	"contentmod/api/internal/models"
)

const sweepBatchSize = 100

type PendingLister interface {
	ListStuckPending(ctx context.Context, cutoff time.Time, limit int) ([]models.ModerationRequest, error)
}

type Scheduler struct {
	cron     *cron.Cron
	requests PendingLister
	cfg      config.JobsConfig
	log      zerolog.Logger
}

func NewScheduler(requests PendingLister, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		requests: requests,
		cfg:      cfg,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.sweepStuckPending); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) sweepStuckPending() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.cfg.StuckAfter)
	stuck, err := s.requests.ListStuckPending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("stuck pending sweep failed")
		return
	}
	if len(stuck) == 0 {
		return
	}

	for _, req := range stuck {
		s.log.Warn().
			Int64("request_id", req.ID).
			Str("content_type", string(req.ContentType)).
			Time("created_at", req.CreatedAt).
			Msg("moderation request stuck in pending")
	}
	s.log.Warn().Int("count", len(stuck)).Dur("stuck_after", s.cfg.StuckAfter).Msg("stuck pending sweep complete")
}
