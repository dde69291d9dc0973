package strava

import (
	"sync"
	"time"

	"strava-training-load/internal/metrics"
)

// RateLimiter tracks the Strava API rate limits reported in response headers
type RateLimiter struct {
	mu          sync.RWMutex
	limit15Min  int
	usage15Min  int
	limitDaily  int
	usageDaily  int
	lastUpdated time.Time
}

// RateLimitStatus represents the current rate limit status
type RateLimitStatus struct {
	Limit15Min    int
	Usage15Min    int
	LimitDaily    int
	UsageDaily    int
	Usage15MinPct float64
	UsageDailyPct float64
	LastUpdated   time.Time
}

// NewRateLimiter creates a tracker seeded with Strava's default limits
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limit15Min: 200,
		limitDaily: 2000,
	}
}

// Update records new figures and mirrors them into the rate limit gauges
func (rl *RateLimiter) Update(limit15Min, usage15Min, limitDaily, usageDaily int) {
	rl.mu.Lock()
	rl.limit15Min = limit15Min
	rl.usage15Min = usage15Min
	rl.limitDaily = limitDaily
	rl.usageDaily = usageDaily
	rl.lastUpdated = time.Now()
	rl.mu.Unlock()

	metrics.StravaRateLimitUsage.WithLabelValues(metrics.RateLimitOverall15Min, metrics.BucketLimit).Set(float64(limit15Min))
	metrics.StravaRateLimitUsage.WithLabelValues(metrics.RateLimitOverall15Min, metrics.BucketUsage).Set(float64(usage15Min))
	metrics.StravaRateLimitUsage.WithLabelValues(metrics.RateLimitOverallDaily, metrics.BucketLimit).Set(float64(limitDaily))
	metrics.StravaRateLimitUsage.WithLabelValues(metrics.RateLimitOverallDaily, metrics.BucketUsage).Set(float64(usageDaily))
}

// Status returns the current rate limit status
func (rl *RateLimiter) Status() RateLimitStatus {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return RateLimitStatus{
		Limit15Min:    rl.limit15Min,
		Usage15Min:    rl.usage15Min,
		LimitDaily:    rl.limitDaily,
		UsageDaily:    rl.usageDaily,
		Usage15MinPct: percent(rl.usage15Min, rl.limit15Min),
		UsageDailyPct: percent(rl.usageDaily, rl.limitDaily),
		LastUpdated:   rl.lastUpdated,
	}
}

// IsNearLimit reports whether either window is at or above threshold percent
func (rl *RateLimiter) IsNearLimit(threshold float64) bool {
	status := rl.Status()
	return status.Usage15MinPct >= threshold || status.UsageDailyPct >= threshold
}

func percent(usage, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(usage) / float64(limit) * 100
}
