package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// GenerationWorker runs the batch generation driver for the current month on
// a cron schedule
type GenerationWorker struct {
	generationService *GenerationService
	logger            zerolog.Logger
	cronExpr          string
	schedule          cron.Schedule
	runOnStartup      bool
	now               func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// GenerationWorkerConfig holds configuration for the generation worker
type GenerationWorkerConfig struct {
	Schedule     string // Standard five-field cron expression, UTC
	RunOnStartup bool   // Generate the current month once when started
}

// DefaultGenerationWorkerConfig returns sensible defaults
func DefaultGenerationWorkerConfig() GenerationWorkerConfig {
	return GenerationWorkerConfig{
		Schedule:     "0 2 1 * *", // 02:00 UTC on the first of every month
		RunOnStartup: true,
	}
}

// NewGenerationWorker creates a new generation worker
func NewGenerationWorker(
	generationService *GenerationService,
	logger zerolog.Logger,
	config GenerationWorkerConfig,
) (*GenerationWorker, error) {
	if config.Schedule == "" {
		config.Schedule = DefaultGenerationWorkerConfig().Schedule
	}
	schedule, err := cron.ParseStandard(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid generation schedule %q: %w", config.Schedule, err)
	}

	return &GenerationWorker{
		generationService: generationService,
		logger:            logger.With().Str("component", "generation_worker").Logger(),
		cronExpr:          config.Schedule,
		schedule:          schedule,
		runOnStartup:      config.RunOnStartup,
		now:               time.Now,
	}, nil
}

// Start schedules the generation job. Calling Start on a running worker is a no-op.
func (w *GenerationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	doneCh := w.doneCh
	w.mu.Unlock()

	cronLog := cronLogger{logger: w.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	c.Schedule(w.schedule, cron.FuncJob(func() {
		w.generateCurrentMonth(runCtx)
	}))

	w.logger.Info().
		Str("schedule", w.cronExpr).
		Bool("run_on_startup", w.runOnStartup).
		Msg("Starting generation worker")

	c.Start()
	go w.run(runCtx, c, doneCh)
}

// run blocks until the worker is stopped or ctx ends, then drains the scheduler
func (w *GenerationWorker) run(ctx context.Context, c *cron.Cron, doneCh chan struct{}) {
	defer close(doneCh)

	if w.runOnStartup {
		w.generateCurrentMonth(ctx)
	}

	<-ctx.Done()
	<-c.Stop().Done()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Stop gracefully stops the worker, waiting for an in-flight run to finish
func (w *GenerationWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel, doneCh := w.cancel, w.doneCh
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping generation worker")
	cancel()
	<-doneCh
	w.logger.Info().Msg("Generation worker stopped")
}

// RunNow triggers a generation run for month (YYYY-MM) outside the schedule
func (w *GenerationWorker) RunNow(ctx context.Context, month string) (*GenerationResult, error) {
	w.logger.Debug().Str("month", month).Msg("Manual generation triggered")
	return w.generationService.RunGeneration(ctx, month)
}

// IsRunning returns whether the worker is currently running
func (w *GenerationWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *GenerationWorker) generateCurrentMonth(ctx context.Context) {
	month := util.MonthKey(w.now())
	if _, err := w.generationService.RunGeneration(ctx, month); err != nil {
		w.logger.Error().Err(err).Str("month", month).Msg("Scheduled generation failed")
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
