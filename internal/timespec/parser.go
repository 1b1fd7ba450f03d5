package timespec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseTTL parses a time-to-live specification into whole seconds, the unit
// payloads carry on the wire.
// Supports two formats:
//   - Bare numbers: "6", "0", "-5", "2.5" (seconds)
//   - Go duration format: "6s", "1m30s", "500ms"
//
// Zero and negative values are returned as-is; they mean "expire now".
// Fractional durations are rounded up to the next second so that a positive
// TTL never collapses to zero.
func ParseTTL(spec string) (float64, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("empty ttl specification")
	}

	if n, err := strconv.ParseFloat(spec, 64); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("invalid ttl specification: %s (must be finite)", spec)
		}
		return n, nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		seconds := d.Seconds()
		if seconds > 0 {
			seconds = math.Ceil(seconds)
		}
		return seconds, nil
	}

	return 0, fmt.Errorf("invalid ttl specification: %s (use seconds like '6' or a duration like '1m30s')", spec)
}

// ParseExpiry turns a TTL specification into an absolute expiry relative to now.
// Zero and negative TTLs expire at now.
func ParseExpiry(spec string, now time.Time) (time.Time, error) {
	ttl, err := ParseTTL(spec)
	if err != nil {
		return time.Time{}, err
	}
	return ExpiryAt(now, ttl), nil
}

// maxTTLSeconds is the largest TTL a time.Duration can hold.
const maxTTLSeconds = float64(math.MaxInt64) / float64(time.Second)

// ExpiryAt returns now plus ttl seconds. Zero and negative TTLs expire at
// now; TTLs beyond the range of time.Duration saturate at the largest one.
func ExpiryAt(now time.Time, ttl float64) time.Time {
	if ttl <= 0 {
		return now
	}
	if ttl >= maxTTLSeconds {
		return now.Add(time.Duration(math.MaxInt64))
	}
	return now.Add(time.Duration(ttl * float64(time.Second)))
}
