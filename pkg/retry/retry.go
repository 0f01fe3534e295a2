package retry

import (
	"context"
	"math/rand"
	"time"
)

// Outcome is what a retried function tells the loop to do next.
type Outcome int

const (
	// Stop ends the loop.
	Stop Outcome = iota
	// Again waits for the next backoff interval and retries.
	Again
)

// Config bounds a retry loop.
type Config struct {
	Attempts     int
	BaseInterval time.Duration
	MaxBackoff   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Attempts:     3,
		BaseInterval: 15 * time.Second,
		MaxBackoff:   60 * time.Second,
	}
}

// Backoff computes the exponential backoff for the given attempt with +/-10%
// jitter, clamped to maxBackoff.
func Backoff(attempt int, baseInterval, maxBackoff time.Duration) time.Duration {
	d := baseInterval << attempt
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}

	jitter := time.Duration(int64(d) * int64(9+rand.Intn(3)) / 10)
	return jitter
}

// Run calls f up to cfg.Attempts times, waiting one backoff interval before
// every call. The loop ends when f returns Stop, attempts are exhausted, or
// the context is cancelled.
func Run(ctx context.Context, cfg Config, f func(attempt int) Outcome) {
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		timer := time.NewTimer(Backoff(attempt, cfg.BaseInterval, cfg.MaxBackoff))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if f(attempt) == Stop {
			return
		}
	}
}
