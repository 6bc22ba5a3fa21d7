package knowledge

import (
	"strconv"
	"time"
)

// defaultBackoffSchedule is the fixed wait table between attempts. Attempts
// beyond the table length reuse the last entry.
var defaultBackoffSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

// scheduleBackOff implements backoff.BackOff over a fixed wait table.
type scheduleBackOff struct {
	schedule []time.Duration
	attempt  int
}

// NextBackOff returns the table entry for the current attempt, capped at the
// last entry.
func (b *scheduleBackOff) NextBackOff() time.Duration {
	i := b.attempt
	if i >= len(b.schedule) {
		i = len(b.schedule) - 1
	}
	b.attempt++
	return b.schedule[i]
}

// Reset rewinds the schedule to the first entry.
func (b *scheduleBackOff) Reset() {
	b.attempt = 0
}

// parseRetryAfter parses a Retry-After header value as whole seconds. An
// absent or unparseable value reports false and the caller falls back to the
// schedule.
func parseRetryAfter(value string) (int, bool) {
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return seconds, true
}
