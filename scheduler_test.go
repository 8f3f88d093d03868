package specrun

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRunScheduler_RunOnce(t *testing.T) {
	var calls atomic.Int32
	scheduler := NewDefaultRunScheduler(10*time.Millisecond, true, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	// No periodic goroutine in run-once mode
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDefaultRunScheduler_Periodic(t *testing.T) {
	callChan := make(chan struct{}, 10)
	expectedCalls := 4

	scheduler := NewDefaultRunScheduler(10*time.Millisecond, false, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func() error {
		select {
		case callChan <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))

	for i := 0; i < expectedCalls; i++ {
		select {
		case <-callChan:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for run %d/%d", i+1, expectedCalls)
		}
	}

	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.WaitForShutdown(ctx))
	assert.True(t, scheduler.Stopped())

	// Drain anything queued before Stop, then expect silence
	for len(callChan) > 0 {
		<-callChan
	}
	select {
	case <-callChan:
		t.Fatal("callback ran after the scheduler stopped")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDefaultRunScheduler_PeriodicErrorsAreLogged(t *testing.T) {
	var calls atomic.Int32
	scheduler := NewDefaultRunScheduler(5*time.Millisecond, false, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func() error {
		if calls.Add(1) > 1 {
			return errors.New("ledger unavailable")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.WaitForShutdown(ctx))
}

func TestDefaultRunScheduler_ContextCancelStops(t *testing.T) {
	scheduler := NewDefaultRunScheduler(time.Hour, false, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func() error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	assert.False(t, scheduler.Stopped())

	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, scheduler.WaitForShutdown(waitCtx))
	assert.True(t, scheduler.Stopped())
}

func TestDefaultRunScheduler_StartErrors(t *testing.T) {
	tests := []struct {
		name     string
		runOnce  bool
		callback func() error
		wantErr  string
	}{
		{
			name:    "no callback",
			runOnce: true,
			wantErr: "callback must be registered",
		},
		{
			name:     "run-once callback error",
			runOnce:  true,
			callback: func() error { return errors.New("first run failed") },
			wantErr:  "first run failed",
		},
		{
			name:     "periodic first run error",
			runOnce:  false,
			callback: func() error { return errors.New("first run failed") },
			wantErr:  "first run failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := NewDefaultRunScheduler(time.Hour, tt.runOnce, log.NewLogger(log.DiscardHandler()))
			if tt.callback != nil {
				scheduler.RegisterCallback(tt.callback)
			}
			err := scheduler.Start(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultRunScheduler_StopIsIdempotent(t *testing.T) {
	scheduler := NewDefaultRunScheduler(time.Hour, true, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func() error { return nil })

	assert.NoError(t, scheduler.Stop())
	assert.NoError(t, scheduler.Stop())

	require.NoError(t, scheduler.Start(context.Background()))
	assert.NoError(t, scheduler.Stop())
	assert.NoError(t, scheduler.Stop())
	assert.True(t, scheduler.Stopped())
}

func TestDefaultRunScheduler_LastRun(t *testing.T) {
	failure := errors.New("ledger unavailable")
	tests := []struct {
		name     string
		callback func() error
		wantErr  error
	}{
		{name: "successful run", callback: func() error { return nil }},
		{name: "failed run", callback: func() error { return failure }, wantErr: failure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := NewDefaultRunScheduler(time.Hour, true, log.NewLogger(log.DiscardHandler()))
			assert.Zero(t, scheduler.LastRun().Runs)

			scheduler.RegisterCallback(tt.callback)
			before := time.Now()
			err := scheduler.Start(context.Background())
			assert.Equal(t, tt.wantErr, err)

			last := scheduler.LastRun()
			assert.Equal(t, 1, last.Runs)
			assert.Equal(t, tt.wantErr, last.Err)
			assert.False(t, last.Started.Before(before))
			assert.Zero(t, last.Skipped)
		})
	}
}

func TestDefaultRunScheduler_OverrunSkipsMissedRuns(t *testing.T) {
	var (
		active  atomic.Int32
		overlap atomic.Bool
		calls   atomic.Int32
	)
	scheduler := NewDefaultRunScheduler(5*time.Millisecond, false, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func() error {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		defer active.Add(-1)
		if calls.Add(1) > 1 {
			time.Sleep(20 * time.Millisecond)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))
	require.Eventually(t, func() bool { return scheduler.LastRun().Skipped >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.WaitForShutdown(ctx))

	last := scheduler.LastRun()
	assert.False(t, overlap.Load())
	assert.Greater(t, last.Duration, 5*time.Millisecond)
	assert.GreaterOrEqual(t, last.Runs, 3)
}
