// Package event holds the terminal's view of the backend's active event,
// together with the set of fingerprint ids that already logged Time-In for
// that event. The set is scoped to one event: any change of the event
// identifier invalidates it.
package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/clambin/go-common/set"
	"github.com/mvaldes-ph/attendance-terminal/internal/backend"
)

// Client is the part of the backend client the cache needs.
type Client interface {
	ActiveEvent(ctx context.Context) (backend.Event, error)
}

type Cache struct {
	client Client
	logger *slog.Logger
	lock   sync.RWMutex
	event  backend.Event
	timeIn set.Set[int]
}

func New(client Client, logger *slog.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
		timeIn: set.New[int](),
	}
}

// Refresh queries the backend and applies the answer. A definitive answer
// (event present, or no active event) replaces the cached state; an
// indeterminate one (backend unreachable) leaves it untouched, preferring
// stale-but-available over discarding known-good state. The returned error is
// non-nil only for the indeterminate case.
func (c *Cache) Refresh(ctx context.Context) error {
	current, err := c.client.ActiveEvent(ctx)
	if err != nil {
		if errors.Is(err, backend.ErrNoActiveEvent) {
			c.apply(backend.Event{})
			return nil
		}
		c.logger.Warn("active event query failed. keeping cached event", slog.Any("err", err))
		return err
	}
	c.apply(current)
	return nil
}

func (c *Cache) apply(current backend.Event) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if current.ID != c.event.ID {
		c.logger.Info("active event changed",
			slog.String("eventId", current.ID),
			slog.String("eventName", current.Name))
		c.timeIn = set.New[int]()
	}
	c.event = current
}

// Current returns the cached event. ok is false when no active event is known.
func (c *Cache) Current() (backend.Event, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.event, c.event.ID != ""
}

// MarkTimeIn records a successful Time-In submission for the current event.
func (c *Cache) MarkTimeIn(fingerprintID int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.timeIn.Add(fingerprintID)
}

// HasTimeIn reports whether the id already logged Time-In for the current event.
func (c *Cache) HasTimeIn(fingerprintID int) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.timeIn.Contains(fingerprintID)
}
