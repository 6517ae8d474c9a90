package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	Floor          time.Duration // Minimum response time
	Jitter         time.Duration // Random extra delay range
	DelayOnSuccess bool          // If true, pad successful operations too
}

// TimingDelay pads responses so that "no such account" and "wrong password"
// or "email sent" take approximately the same time.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
	}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int64) (int64, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int64(randomValue % uint64(max)), nil
}

func (td *TimingDelay) target() time.Duration {
	var jitter time.Duration
	if td.config.Jitter > 0 {
		if v, err := cryptoRandIntn(int64(td.config.Jitter)); err == nil {
			jitter = time.Duration(v)
		}
	}
	return td.config.Floor + jitter
}

// Wait sleeps for floor+jitter unless the operation succeeded and
// DelayOnSuccess is off.
func (td *TimingDelay) Wait(ctx context.Context, success bool) {
	td.WaitFrom(ctx, time.Now(), success)
}

// WaitFrom sleeps until at least floor+jitter has elapsed since startTime.
// It returns early when ctx is done.
func (td *TimingDelay) WaitFrom(ctx context.Context, startTime time.Time, success bool) {
	if td == nil || (success && !td.config.DelayOnSuccess) {
		return
	}

	remaining := td.target() - time.Since(startTime)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
