package agent

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SchedulerConfig controls the outer loop.
type SchedulerConfig struct {
	// Interval between cycle starts. Ignored when RunOnce is set.
	Interval time.Duration
	// RunOnce executes a single cycle and returns its error directly.
	RunOnce bool
}

// Scheduler drives a cycle at a fixed interval. It owns the report: the
// report survives cycle boundaries and is cleared only by an explicit
// ResetReport call.
type Scheduler struct {
	cycle  *Cycle
	report *Report
	cfg    SchedulerConfig
	logger *zap.Logger
}

// NewScheduler wires a scheduler around a cycle.
func NewScheduler(cycle *Cycle, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Scheduler{
		cycle:  cycle,
		report: NewReport(),
		cfg:    cfg,
		logger: logger,
	}
}

// Report exposes the scheduler-owned accumulator.
func (s *Scheduler) Report() *Report { return s.report }

// ResetReport clears the accumulated report.
func (s *Scheduler) ResetReport() { s.report.Reset() }

// Run blocks until the context is cancelled (or, in run-once mode, until
// the single cycle finishes). In loop mode a failed cycle is logged and the
// loop waits for the next tick; one bad pass must not kill the operator.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.RunOnce {
		s.logger.Info("running single cycle")
		return s.cycle.Run(ctx, s.report)
	}

	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.cycle.Run(ctx, s.report); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("scheduler stopping")
				return nil
			}
			s.logger.Error("cycle failed, will retry next tick", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// Operator pairs a named inbox with its scheduler.
type Operator struct {
	Name      string
	Scheduler *Scheduler
}

// Manager runs several operators concurrently, one loop each. The first
// hard failure cancels the rest.
type Manager struct {
	operators []Operator
	logger    *zap.Logger
}

// NewManager creates a manager over the given operators.
func NewManager(operators []Operator, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{operators: operators, logger: logger}
}

// Run blocks until every operator loop returns.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, op := range m.operators {
		m.logger.Info("starting operator", zap.String("operator", op.Name))
		g.Go(func() error {
			return op.Scheduler.Run(ctx)
		})
	}
	return g.Wait()
}
