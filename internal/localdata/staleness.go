package localdata

import "time"

// IsStale reports whether an entry updated at lastUpdate needs a refresh at
// now. A non-positive maxAge means no threshold is configured, in which case
// entries only refresh on demand.
func IsStale(now, lastUpdate time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(lastUpdate) > maxAge
}
