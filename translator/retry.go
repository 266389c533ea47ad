package translator

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryConfig controls how the fallback retries failed model calls.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// Chat replies are interactive, so waits stay short.
const (
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 10 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// NewDefaultRetryConfig returns the stock retry policy.
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// IsRateLimitError reports whether err looks like a quota rejection.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "quota")
}

var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay returns the delay the API asked for, or 0.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	m := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	seconds, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff returns the wait before retry number attempt+1. An API
// suggested delay replaces the initial backoff. The result never exceeds
// MaxBackoff.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay
	}
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}
	backoff := time.Duration(float64(base) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}
