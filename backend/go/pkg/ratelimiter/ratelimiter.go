package ratelimiter

import (
	"fmt"
	"time"
)

// RateLimiter reports whether one more request may proceed right now.
type RateLimiter interface {
	Allow() bool
}

// Clock returns the current time. Tests substitute a fake one.
type Clock func() time.Time

// New builds a limiter by algorithm name: "tokenBucket" (default) or "fixedWindow".
func New(algorithm string, rate float64, capacity int, limit int, window time.Duration) (RateLimiter, error) {
	switch algorithm {
	case "", "tokenBucket":
		if rate <= 0 || capacity <= 0 {
			return nil, fmt.Errorf("tokenBucket requires positive rate and capacity, got rate=%v capacity=%d", rate, capacity)
		}
		return NewTokenBucket(rate, capacity, time.Now), nil
	case "fixedWindow":
		if limit <= 0 || window <= 0 {
			return nil, fmt.Errorf("fixedWindow requires positive limit and window, got limit=%d window=%s", limit, window)
		}
		return NewFixedWindowCounter(limit, window, time.Now), nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %s", algorithm)
	}
}
