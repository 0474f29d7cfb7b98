package rewrite

import (
	"context"
	"log/slog"
	"time"

	"lectoria/internal/db"
	"lectoria/internal/metrics"
)

// Scheduler runs the description refresh exactly once, a fixed delay after
// process start. There is no recurring schedule; a restart arms it again.
type Scheduler struct {
	lectures   *db.LectureRepository
	rewriter   Rewriter
	metrics    metrics.Recorder
	startDelay time.Duration
	staleAfter time.Duration
}

func NewScheduler(lectures *db.LectureRepository, rewriter Rewriter, recorder metrics.Recorder, startDelay, staleAfter time.Duration) *Scheduler {
	return &Scheduler{
		lectures:   lectures,
		rewriter:   rewriter,
		metrics:    recorder,
		startDelay: startDelay,
		staleAfter: staleAfter,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("arming description rewrite job", "component", "rewrite", "delay", s.startDelay)

	timer := time.NewTimer(s.startDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		slog.Info("stopping rewrite job before it fired", "component", "rewrite")
		return
	case <-timer.C:
	}

	s.run(ctx)
}

// run rewrites every stale lecture, committing per lecture so one failure
// never discards the rest.
func (s *Scheduler) run(ctx context.Context) {
	cutoff := time.Now().Add(-s.staleAfter)
	lectures, err := s.lectures.ListStale(ctx, cutoff)
	if err != nil {
		slog.Error("error listing stale lectures", "component", "rewrite", "error", err)
		return
	}

	slog.Info("running description rewrite job", "component", "rewrite", "candidates", len(lectures))

	applied := 0
	for _, lecture := range lectures {
		if ctx.Err() != nil {
			return
		}
		if lecture.Description == "" {
			continue
		}

		text, err := s.rewriter.Rewrite(ctx, lecture.Title, lecture.Description)
		if err != nil {
			slog.Error("error rewriting lecture description",
				"component", "rewrite", "lecture_id", lecture.ID, "error", err)
			continue
		}

		if err := s.lectures.UpdateDescription(ctx, lecture.ID, text); err != nil {
			slog.Error("error saving rewritten description",
				"component", "rewrite", "lecture_id", lecture.ID, "error", err)
			continue
		}
		applied++
	}

	s.metrics.RecordRewriteApplied(applied)
	slog.Info("description rewrite job finished", "component", "rewrite", "applied", applied)
}
