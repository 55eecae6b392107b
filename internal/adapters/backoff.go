package adapters

import "time"

const maxReconnectAttempts = 5

// ReconnectDelay returns the backoff before reconnect attempt N (1-indexed):
// min(1000*2^(N-1), 30000) milliseconds, per the stream reconnect policy
// shared by every platform-family adapter.
func ReconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	ms := 1000 << (attempt - 1)
	if ms > 30000 {
		ms = 30000
	}
	return time.Duration(ms) * time.Millisecond
}

// MaxReconnectAttempts bounds how many times an adapter retries a dropped
// stream before falling back to polling.
func MaxReconnectAttempts() int { return maxReconnectAttempts }
