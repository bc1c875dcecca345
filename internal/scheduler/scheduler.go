package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultPruneSpec      = "0 * * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	pruneRunsTimeout      = 5 * time.Minute
)

// RunPruner removes journal entries older than a cutoff.
type RunPruner interface {
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler periodically trims the run journal to the retention window.
type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	pruner    RunPruner
	spec      string
	retention time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func New(ctx context.Context, pruner RunPruner, spec string, retention time.Duration, log *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))
	if spec == "" {
		spec = DefaultPruneSpec
	}
	if log == nil {
		log = slog.Default()
	}

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		pruner:    pruner,
		spec:      spec,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.pruneRuns); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop halts the cron loop and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) pruneRuns() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneRunsTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	// zero retention keeps everything
	if s.retention <= 0 {
		return
	}

	cutoff := s.now().UTC().Add(-s.retention)
	pruned, err := s.pruner.PruneRuns(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune runs",
			"error", err,
			"cutoff", cutoff)
		return
	}

	s.log.InfoContext(ctx, "Run pruning is done",
		"cutoff", cutoff,
		"pruned", pruned)
}
