package postgres

import "time"

// stamp fills the zero timestamps in ts with now. Timestamps the service
// already set from its own clock are written unchanged.
func stamp(now time.Time, ts ...*time.Time) {
	for _, t := range ts {
		if t.IsZero() {
			*t = now
		}
	}
}
