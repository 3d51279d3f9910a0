package terminal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupGuard(t *testing.T) {
	t0 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	cooldown := 5 * time.Second

	var guard dedupGuard
	assert.False(t, guard.suppress(42, t0, cooldown), "first sighting is never suppressed")
	guard.update(42, t0)

	assert.True(t, guard.suppress(42, t0.Add(time.Second), cooldown))
	assert.True(t, guard.suppress(42, t0.Add(cooldown-time.Millisecond), cooldown))
	assert.False(t, guard.suppress(42, t0.Add(cooldown), cooldown), "the window is exclusive at the boundary")
	assert.False(t, guard.suppress(7, t0.Add(time.Second), cooldown), "a different id resets the window")

	guard.update(7, t0.Add(time.Second))
	assert.False(t, guard.suppress(42, t0.Add(2*time.Second), cooldown), "only the last id is tracked")
}
