package jobs

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Scheduler runs registered jobs on their cron specs.
type Scheduler struct {
	*cron.Cron
}

// cronLogger adapts the process logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

// Info logs routine messages about cron's operation.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

// Error logs an error condition.
func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}

// NewScheduler returns a Scheduler logging through the context logger. Overlapping runs of a
// job are skipped.
func NewScheduler(ctx context.Context) *Scheduler {
	logger := cronLogger{log.FromContext(ctx).WithPrefix("cron")}
	return &Scheduler{
		Cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Register schedules runner under name.
func (s *Scheduler) Register(ctx context.Context, name string, runner Runner) (int, error) {
	id, err := s.Cron.AddFunc(runner.Spec(ctx), runner.Func(ctx))
	if err != nil {
		return 0, err
	}
	log.FromContext(ctx).WithPrefix("cron").Info("job registered", "name", name, "spec", runner.Spec(ctx))
	return int(id), nil
}

// Shutdown stops the scheduler and waits up to 30s for running jobs.
func (s *Scheduler) Shutdown() {
	ctx, cancel := context.WithTimeout(s.Cron.Stop(), 30*time.Second)
	defer cancel()
	<-ctx.Done()
}
