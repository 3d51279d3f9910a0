package terminal

import "time"

// dedupGuard remembers the last submitted fingerprint id. Sensor jitter and
// repeated placement produce bursts of identical matches; the guard swallows
// them before any network traffic happens.
type dedupGuard struct {
	lastID int
	lastAt time.Time
}

// suppress reports whether a submission for id at now falls within the
// cooldown window of the previously submitted id.
func (g *dedupGuard) suppress(id int, now time.Time, cooldown time.Duration) bool {
	return id == g.lastID && !g.lastAt.IsZero() && now.Sub(g.lastAt) < cooldown
}

func (g *dedupGuard) update(id int, now time.Time) {
	g.lastID = id
	g.lastAt = now
}
