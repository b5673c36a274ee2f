package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"supik-server/internal/logger"
)

// JobFunc is one run of a scheduled job.
type JobFunc func(ctx context.Context) error

// Manager runs named jobs on cron schedules. Runs of the same job never
// overlap; a run that finds the previous one still active is skipped.
type Manager struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]JobFunc
}

func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]JobFunc),
	}
}

// Register schedules fn under name using a standard five-field cron spec.
func (m *Manager) Register(name, spec string, fn JobFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}

	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		m.run(name, fn)
	}))
	if _, err := m.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}
	m.jobs[name] = fn
	logger.Info("job scheduled", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

// RunNow runs a registered job synchronously, outside its schedule.
func (m *Manager) RunNow(ctx context.Context, name string) error {
	m.mu.Lock()
	fn, ok := m.jobs[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q is not registered", name)
	}
	return fn(ctx)
}

func (m *Manager) run(name string, fn JobFunc) {
	start := time.Now()
	if err := fn(m.ctx); err != nil {
		logger.Error("job failed", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	logger.Info("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

func (m *Manager) Start() {
	m.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (m *Manager) Stop(ctx context.Context) {
	m.cancel()
	done := m.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn("scheduler stop timed out")
	}
}
