package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGenerationWorker(t *testing.T, config GenerationWorkerConfig) (*GenerationWorker, *generationFixture) {
	t.Helper()
	f := setupGenerationService(testOwner)
	worker, err := NewGenerationWorker(f.service, zerolog.Nop(), config)
	require.NoError(t, err)
	return worker, f
}

func TestGenerationWorker_New(t *testing.T) {
	worker, _ := setupGenerationWorker(t, GenerationWorkerConfig{Schedule: "*/5 * * * *"})

	assert.Equal(t, "*/5 * * * *", worker.cronExpr)
	assert.False(t, worker.runOnStartup)
	assert.False(t, worker.IsRunning())
}

func TestGenerationWorker_DefaultConfig(t *testing.T) {
	config := DefaultGenerationWorkerConfig()

	assert.Equal(t, "0 2 1 * *", config.Schedule)
	assert.True(t, config.RunOnStartup)

	worker, _ := setupGenerationWorker(t, GenerationWorkerConfig{})
	assert.Equal(t, config.Schedule, worker.cronExpr)
}

func TestGenerationWorker_InvalidSchedule(t *testing.T) {
	f := setupGenerationService()

	_, err := NewGenerationWorker(f.service, zerolog.Nop(), GenerationWorkerConfig{Schedule: "every tuesday"})

	assert.Error(t, err)
}

func TestGenerationWorker_StartStop(t *testing.T) {
	worker, _ := setupGenerationWorker(t, GenerationWorkerConfig{Schedule: "0 2 1 * *"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	assert.True(t, worker.IsRunning())

	worker.Stop()
	assert.False(t, worker.IsRunning())
}

func TestGenerationWorker_StartTwice(t *testing.T) {
	worker, _ := setupGenerationWorker(t, GenerationWorkerConfig{Schedule: "0 2 1 * *"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	worker.Start(ctx)
	assert.True(t, worker.IsRunning())

	worker.Stop()
	assert.False(t, worker.IsRunning())
}

func TestGenerationWorker_StopWithoutStart(t *testing.T) {
	worker, _ := setupGenerationWorker(t, GenerationWorkerConfig{})

	worker.Stop()

	assert.False(t, worker.IsRunning())
}

func TestGenerationWorker_ContextCancelStops(t *testing.T) {
	worker, _ := setupGenerationWorker(t, GenerationWorkerConfig{Schedule: "0 2 1 * *"})
	ctx, cancel := context.WithCancel(context.Background())

	worker.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !worker.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestGenerationWorker_RunOnStartup(t *testing.T) {
	worker, f := setupGenerationWorker(t, GenerationWorkerConfig{Schedule: "0 2 1 * *", RunOnStartup: true})
	worker.now = func() time.Time { return date(2024, 3, 10) }
	f.rules.AddRule(ownedRule(testOwner, monthlyRule(15, date(2024, 1, 15))))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	defer worker.Stop()

	assert.Eventually(t, func() bool { return f.transactions.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestGenerationWorker_RunNow(t *testing.T) {
	worker, f := setupGenerationWorker(t, GenerationWorkerConfig{})
	f.rules.AddRule(ownedRule(testOwner, monthlyRule(15, date(2024, 1, 15))))

	result, err := worker.RunNow(context.Background(), "2024-02")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, f.transactions.Count())

	_, err = worker.RunNow(context.Background(), "02/2024")
	assert.Error(t, err)
}

func TestCronLogger(t *testing.T) {
	l := cronLogger{logger: zerolog.Nop()}

	l.Info("job scheduled", "entry", 1)
	l.Error(assert.AnError, "job failed", "entry", 1)
}
