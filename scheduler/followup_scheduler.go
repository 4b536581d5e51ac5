package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// passTimeout bounds one pass; the next tick picks up whatever is left
const passTimeout = 10 * time.Minute

type passFunc func(ctx context.Context) (PassResult, error)

type job struct {
	name  string
	spec  string
	lease time.Duration
	run   passFunc
}

// FollowupScheduler runs the follow-up passes on their fixed intervals.
// Overlapping runs of the same pass are skipped and a panicking pass is
// recovered, so the scheduler itself never stops.
type FollowupScheduler struct {
	cron   *cron.Cron
	passes *Passes
	lease  Lease
	logger *zap.Logger
}

func NewFollowupScheduler(passes *Passes, lease Lease, logger *zap.Logger) *FollowupScheduler {
	cronLogger := zapCronLogger{logger.Sugar()}
	return &FollowupScheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		passes: passes,
		lease:  lease,
		logger: logger,
	}
}

func (s *FollowupScheduler) jobs() []job {
	return []job{
		{name: PassExpertCheck, spec: "@every 1m", lease: 55 * time.Second, run: s.passes.ExpertCheck},
		{name: PassReviewRequest, spec: "@every 1h", lease: 50 * time.Minute, run: s.passes.ReviewRequest},
		{name: PassStaleAudit, spec: "@every 30m", lease: 25 * time.Minute, run: s.passes.StaleAudit},
		{name: PassSuggestions, spec: "@every 1h", lease: 50 * time.Minute, run: s.passes.Suggestions},
	}
}

// Start registers every pass and starts the cron loop
func (s *FollowupScheduler) Start() error {
	for _, j := range s.jobs() {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() { s.RunPass(j.name, j.lease, j.run) }); err != nil {
			return err
		}
		s.logger.Info("follow-up pass scheduled",
			zap.String("pass", j.name),
			zap.String("spec", j.spec))
	}
	s.cron.Start()
	return nil
}

// Stop waits for running passes until ctx is done
func (s *FollowupScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("follow-up scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("follow-up scheduler stop timed out")
	}
}

// RunPass executes one pass under the lease. A pass error is logged; it
// never propagates to the cron loop.
func (s *FollowupScheduler) RunPass(name string, leaseTTL time.Duration, run passFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	if s.lease != nil {
		release, acquired, err := s.lease.Acquire(ctx, name, leaseTTL)
		switch {
		case err != nil:
			// redis down: run anyway, the claim stamps still prevent double sends
			s.logger.Warn("pass lease unavailable, running unguarded",
				zap.String("pass", name),
				zap.Error(err))
		case !acquired:
			passRuns.WithLabelValues(name, "skipped").Inc()
			s.logger.Debug("pass held by another poller", zap.String("pass", name))
			return
		default:
			defer release()
		}
	}

	start := time.Now()
	res, err := run(ctx)
	passDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	observeResult(name, res)

	if err != nil {
		passRuns.WithLabelValues(name, "error").Inc()
		s.logger.Error("follow-up pass failed",
			zap.String("pass", name),
			zap.Error(err))
		return
	}
	passRuns.WithLabelValues(name, "ok").Inc()
	if res.Scanned > 0 {
		s.logger.Info("follow-up pass completed",
			zap.String("pass", name),
			zap.Int("scanned", res.Scanned),
			zap.Int("dispatched", res.Dispatched),
			zap.Int("failed", res.Failed),
			zap.Duration("duration", time.Since(start)))
	}
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	l *zap.SugaredLogger
}

func (z zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Debugw(msg, keysAndValues...)
}

func (z zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
