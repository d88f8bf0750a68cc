package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Task is one unit of periodic work. It reports how many items it handled.
type Task interface {
	Tick(ctx context.Context) (int, error)
}

type TaskFunc func(ctx context.Context) (int, error)

func (f TaskFunc) Tick(ctx context.Context) (int, error) { return f(ctx) }

type Manager struct {
	cron   *cron.Cron
	log    logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(log logger.Logger) *Manager {
	log = log.With(logger.String("component", "jobs"))
	adapter := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers task under a cron spec such as "@every 30s".
func (m *Manager) Add(name, spec string, task Task) error {
	_, err := m.cron.AddFunc(spec, func() { m.run(name, task) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	m.log.Info(m.ctx, "job scheduled", logger.String("job", name), logger.String("spec", spec))
	return nil
}

func (m *Manager) run(name string, task Task) {
	if m.ctx.Err() != nil {
		return
	}
	start := time.Now()
	n, err := task.Tick(m.ctx)
	if err != nil {
		m.log.Error(m.ctx, "job failed",
			logger.String("job", name),
			logger.Duration("took", time.Since(start)),
			logger.WithError(err),
		)
		return
	}
	if n > 0 {
		m.log.Info(m.ctx, "job finished",
			logger.String("job", name),
			logger.Int("items", n),
			logger.Duration("took", time.Since(start)),
		)
	}
}

func (m *Manager) Start() {
	m.cron.Start()
	m.log.Info(m.ctx, "jobs started", logger.Int("count", len(m.cron.Entries())))
}

// Stop cancels running ticks and blocks until they return or ctx expires.
func (m *Manager) Stop(ctx context.Context) {
	m.cancel()
	select {
	case <-m.cron.Stop().Done():
		m.log.Info(ctx, "jobs stopped")
	case <-ctx.Done():
		m.log.Warn(ctx, "jobs still running at shutdown deadline")
	}
}

// cronLogger routes cron's own logging through the service logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(context.Background(), msg, append(fields(keysAndValues), logger.WithError(err))...)
}

func fields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, logger.Any(key, kv[i+1]))
	}
	return out
}
