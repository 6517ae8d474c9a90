package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/erpauth/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_Wait_OnFailure(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		Floor:  100 * time.Millisecond,
		Jitter: 50 * time.Millisecond,
	})
	startTime := time.Now()

	timing.Wait(context.Background(), false)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestTimingDelay_Wait_OnSuccess_NoDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		Floor:  100 * time.Millisecond,
		Jitter: 50 * time.Millisecond,
	})
	startTime := time.Now()

	timing.Wait(context.Background(), true)

	assert.Less(t, time.Since(startTime), 50*time.Millisecond)
}

func TestTimingDelay_Wait_OnSuccess_WithDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		Floor:          100 * time.Millisecond,
		DelayOnSuccess: true,
	})
	startTime := time.Now()

	timing.Wait(context.Background(), true)

	assert.GreaterOrEqual(t, time.Since(startTime), 100*time.Millisecond)
}

func TestTimingDelay_WaitFrom_AdjustsForElapsedTime(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{Floor: 100 * time.Millisecond})
	startTime := time.Now()

	// Simulate some work already done
	time.Sleep(50 * time.Millisecond)

	timing.WaitFrom(context.Background(), startTime, false)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond, "should not add the full floor on top of elapsed work")
}

func TestTimingDelay_WaitFrom_StopsOnCancel(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{Floor: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	startTime := time.Now()
	timing.WaitFrom(ctx, startTime, false)

	assert.Less(t, time.Since(startTime), time.Second)
}

func TestTimingDelay_NilIsNoop(t *testing.T) {
	var timing *auth.TimingDelay
	startTime := time.Now()
	timing.WaitFrom(context.Background(), startTime, false)
	assert.Less(t, time.Since(startTime), 50*time.Millisecond)
}
