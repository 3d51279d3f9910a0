package terminal

import (
	"log/slog"
	"time"
)

// Clock provides submission timestamps.
type Clock func() time.Time

// FallbackEpoch is the fixed timestamp used when the real-time clock never
// got set. Attendance logged against it is detectable and can be fixed up
// server-side; halting the device would lose the records entirely.
var FallbackEpoch = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

// clockSaneAfter: a system clock before this never got set by an RTC or NTP.
var clockSaneAfter = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

// DetectClock returns the system clock when it is plausible, or a fixed
// fallback when the device clearly booted without a working RTC.
func DetectClock(logger *slog.Logger) (Clock, bool) {
	if time.Now().After(clockSaneAfter) {
		return time.Now, true
	}
	logger.Warn("system clock predates build era. falling back to fixed epoch")
	return func() time.Time { return FallbackEpoch }, false
}
