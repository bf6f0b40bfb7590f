package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/observability"
	"github.com/spec-kit/ticket-warden/internal/service"
)

type blockingRunner struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	err     error
}

func (r *blockingRunner) SweepInactive(ctx context.Context, now time.Time) ([]service.SweepAction, error) {
	r.calls.Add(1)
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return []service.SweepAction{{ChannelID: "A", Retired: true, SanctionedGuilds: []string{"g"}}}, r.err
}

var policy = config.TicketPolicyConfig{SweepInterval: 5 * time.Minute}

func TestRunOnceReturnsActions(t *testing.T) {
	runner := &blockingRunner{}
	metrics := observability.NewMetrics()
	sweeper := NewSweeper(runner, policy, metrics, zap.NewNop())

	actions, ran, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Len(t, actions, 1)
	assert.Equal(t, int64(1), metrics.Counter(observability.MetricSweepRuns))
}

func TestRunOnceSurfacesErrors(t *testing.T) {
	runner := &blockingRunner{err: errors.New("gateway down")}
	sweeper := NewSweeper(runner, policy, observability.NewMetrics(), zap.NewNop())

	_, ran, err := sweeper.RunOnce(context.Background())
	assert.True(t, ran)
	assert.EqualError(t, err, "gateway down")
}

func TestSweepsNeverOverlap(t *testing.T) {
	runner := &blockingRunner{entered: make(chan struct{}, 1), release: make(chan struct{})}
	metrics := observability.NewMetrics()
	sweeper := NewSweeper(runner, policy, metrics, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, ran, err := sweeper.RunOnce(context.Background())
		assert.NoError(t, err)
		assert.True(t, ran)
	}()
	<-runner.entered

	_, ran, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	close(runner.release)
	wg.Wait()

	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, int64(1), metrics.Counter(observability.MetricSweepsSkipped))
}

func TestStartIsIdempotent(t *testing.T) {
	sweeper := NewSweeper(&blockingRunner{}, policy, observability.NewMetrics(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, sweeper.Start(ctx))
	require.NoError(t, sweeper.Start(ctx))
	assert.Len(t, sweeper.cron.Entries(), 1)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, sweeper.Stop(stopCtx))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	sweeper := NewSweeper(&blockingRunner{}, config.TicketPolicyConfig{}, observability.NewMetrics(), zap.NewNop())
	sweeper.spec = "not a schedule"

	assert.Error(t, sweeper.Start(context.Background()))
	assert.NoError(t, sweeper.Stop(context.Background()))
}
