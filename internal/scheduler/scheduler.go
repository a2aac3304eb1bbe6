package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/inventaire/internal/config"
	"github.com/mamadbah2/inventaire/internal/service/importer"
)

const runTimeout = 30 * time.Minute

// Importer runs one import of a source.
type Importer interface {
	Run(ctx context.Context, source string) (importer.Summary, error)
}

// Scheduler re-imports a source on a cron schedule. A run still in progress
// when the next tick fires makes that tick a no-op.
type Scheduler struct {
	cron     *cron.Cron
	importer Importer
	source   string
	spec     string
	logger   *zap.Logger

	// cancel ends the context of scheduled runs.
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.ScheduleConfig, imp Importer, source string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	cronLogger := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:     c,
		importer: imp,
		source:   source,
		spec:     cfg.CronSchedule,
		logger:   logger,
	}, nil
}

// Start registers the import job and starts the scheduler. Scheduled runs
// are cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.spec, func() { s.runImport(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule import %q: %w", s.spec, err)
	}
	s.cancel = cancel

	s.logger.Info("starting scheduler", zap.String("schedule", s.spec), zap.String("source", s.source))
	s.cron.Start()
	return nil
}

// Stop cancels a running import and waits for it to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("stopping scheduler")
	if s.cancel != nil {
		s.cancel()
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow imports the source once, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.runImport(ctx)
}

func (s *Scheduler) runImport(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, runTimeout)
	defer cancel()

	sum, err := s.importer.Run(ctx, s.source)
	if err != nil {
		s.logger.Error("scheduled import failed", zap.String("source", s.source), zap.Error(err))
		return
	}
	s.logger.Info("scheduled import done",
		zap.Int("created", sum.Created),
		zap.Int("skipped", sum.Skipped),
		zap.Int("qr_failed", sum.QRFailed),
	)
}

// cronLogger sends cron's own messages to zap.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, zap.Error(err), zap.Any("details", keysAndValues))
}
