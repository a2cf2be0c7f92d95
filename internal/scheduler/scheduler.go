package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"civiclens/internal/ratelimit"
)

// Client cardinality is bounded in the deployment model, but buckets
// of one-off clients still pile up over a long process lifetime; the
// periodic prune keeps the map from growing without bound.
const (
	PruneSpec     = "@every 10m"
	bucketMaxIdle = 30 * time.Minute
)

type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	limiter *ratelimit.Limiter
	log     *slog.Logger
}

func New(ctx context.Context, limiter *ratelimit.Limiter, log *slog.Logger) *Scheduler {
	return &Scheduler{
		ctx:     ctx,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		limiter: limiter,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(PruneSpec, s.pruneBuckets); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) pruneBuckets() {
	select {
	case <-s.ctx.Done():
		s.log.InfoContext(s.ctx, "Scheduler context is done",
			"error", s.ctx.Err())
		return
	default:
	}

	removed := s.limiter.PruneIdle(bucketMaxIdle)
	if removed > 0 {
		s.log.InfoContext(s.ctx, "Pruned idle rate-limit buckets",
			"removed", removed,
			"remaining", s.limiter.Size(),
			"maxIdleMinutes", bucketMaxIdle.Minutes())
	}
}
