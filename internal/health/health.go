// Package health exposes the terminal's last published status as a JSON
// health endpoint.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mvaldes-ph/attendance-terminal/internal/terminal"
)

// StatusSource publishes terminal status updates.
type StatusSource interface {
	Subscribe() chan terminal.Status
	Unsubscribe(chan terminal.Status)
}

type Health struct {
	source  StatusSource
	logger  *slog.Logger
	status  terminal.Status
	updated bool
	lock    sync.RWMutex
}

func New(source StatusSource, logger *slog.Logger) *Health {
	return &Health{
		source: source,
		logger: logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.source.Subscribe()
	defer h.source.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-ch:
			h.lock.Lock()
			h.status = status
			h.updated = true
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if !h.updated {
		http.Error(w, "no status yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h.status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
