package presence

import "time"

const (
	DefaultPingTTL = 2 * time.Second
	MinPingTTL     = 100 * time.Millisecond
	MaxPingTTL     = 10 * time.Second
)

// PingExpiry computes the advisory expiry of a transient ping. The relay
// never enforces it; receivers drop the marker on their own timer.
func PingExpiry(now time.Time, requestedMs int64) time.Time {
	if requestedMs <= 0 {
		return now.Add(DefaultPingTTL)
	}
	// Clamp in milliseconds so huge requests cannot overflow the Duration.
	requestedMs = min(max(requestedMs, MinPingTTL.Milliseconds()), MaxPingTTL.Milliseconds())
	return now.Add(time.Duration(requestedMs) * time.Millisecond)
}
