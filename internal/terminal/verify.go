package terminal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mvaldes-ph/attendance-terminal/internal/backend"
	"github.com/mvaldes-ph/attendance-terminal/internal/display"
	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint"
	"github.com/mvaldes-ph/attendance-terminal/internal/journal"
)

// verifyOnce performs one verification attempt: capture, extract, search.
// With no finger on the window it returns immediately so the loop keeps
// servicing input events.
func (t *Terminal) verifyOnce(ctx context.Context, recordType backend.Type) {
	if !t.sensorOK {
		return
	}

	err := t.sensor.Capture(ctx)
	if errors.Is(err, fingerprint.ErrNoFinger) {
		return
	}
	if err != nil {
		t.counters.Errors++
		t.flash(display.StateBadImage, display.Data{}, false)
		return
	}
	t.counters.Scans++

	if err = t.sensor.Extract(ctx, fingerprint.Buffer1); err != nil {
		t.counters.Errors++
		t.flash(display.StateBadImage, display.Data{}, false)
		return
	}

	id, err := t.sensor.Search(ctx)
	if errors.Is(err, fingerprint.ErrNoMatch) {
		t.counters.NoMatches++
		t.flash(display.StateNoMatch, display.Data{}, false)
		return
	}
	if err != nil {
		t.counters.Errors++
		t.flash(display.StateBadImage, display.Data{}, false)
		return
	}
	t.counters.Matches++

	now := t.cfg.Clock()
	if t.dedup.suppress(id, now, t.cfg.Cooldown) {
		t.counters.Suppressed++
		t.logger.Debug("duplicate suppressed", slog.Int("fingerprintID", id))
		t.showMode()
		return
	}
	t.dedup.update(id, now)

	if recordType == backend.TypeTimeIn && t.cache.HasTimeIn(id) {
		t.counters.AlreadyLogged++
		t.flash(display.StateAlreadyLogged, display.Data{ID: id}, false)
		return
	}

	t.submit(ctx, id, recordType, now)
	t.publish()
}

func (t *Terminal) submit(ctx context.Context, id int, recordType backend.Type, now time.Time) {
	current, _ := t.cache.Current()
	t.counters.Submitted++

	result, err := t.relay.SubmitAttendance(ctx, id, current.ID, recordType, now)
	if err != nil {
		t.counters.Errors++
		t.logger.Warn("submission failed", slog.Int("fingerprintID", id), slog.Any("err", err))
		t.record(ctx, id, current.ID, recordType, now, "network unavailable", 0)
		t.flash(display.StateNetworkDown, display.Data{}, false)
		return
	}

	switch result.Status {
	case backend.StatusSuccess:
		t.counters.Succeeded++
		if recordType == backend.TypeTimeIn {
			t.cache.MarkTimeIn(id)
		}
		t.logger.Info("attendance logged",
			slog.Int("fingerprintID", id),
			slog.String("type", string(recordType)),
			slog.String("eventId", current.ID))
		t.record(ctx, id, current.ID, recordType, now, "success", 0)
		t.flash(display.StateLogged, display.Data{ID: id, Event: modeLabel(recordType)}, true)

	case backend.StatusNoActiveEvent:
		t.record(ctx, id, current.ID, recordType, now, "no active event", 0)
		// the one automatic corrective action: re-learn the active event
		// before any further submission is attempted
		_ = t.cache.Refresh(ctx)
		t.flash(display.StateNoActiveEvent, display.Data{}, false)

	case backend.StatusServerError:
		t.counters.Errors++
		t.record(ctx, id, current.ID, recordType, now, "server error", result.Code)
		t.flash(display.StateServerError, display.Data{Code: result.Code}, false)
	}
}

func (t *Terminal) record(ctx context.Context, id int, eventID string, recordType backend.Type, now time.Time, outcome string, code int) {
	if t.journal == nil {
		return
	}
	err := t.journal.Record(ctx, journal.Entry{
		FingerprintID: id,
		EventID:       eventID,
		Type:          string(recordType),
		Outcome:       outcome,
		Code:          code,
		SubmittedAt:   now,
	})
	if err != nil {
		t.logger.Warn("journal write failed", slog.Any("err", err))
	}
}

func modeLabel(recordType backend.Type) string {
	if recordType == backend.TypeTimeIn {
		return "TIME-IN"
	}
	return "TIME-OUT"
}
