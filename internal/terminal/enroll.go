package terminal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mvaldes-ph/attendance-terminal/internal/display"
	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint"
	"github.com/mvaldes-ph/attendance-terminal/internal/input"
)

var errWaitExpired = errors.New("finger wait expired")

// enroll runs the two-scan enrollment protocol. Every abort path leaves the
// sensor's template store unchanged; a template is written only after both
// scans were captured and judged consistent.
func (t *Terminal) enroll(ctx context.Context) {
	if !t.sensorOK {
		t.flash(display.StateSensorOffline, display.Data{}, false)
		return
	}

	t.screen.Show(display.StateEnrollEntry, display.Data{})
	id, err := t.reader.ReadID(ctx, t.homePressed)
	switch {
	case errors.Is(err, input.ErrCancelled):
		t.flash(display.StateCancelled, display.Data{}, false)
		return
	case err != nil:
		t.flash(display.StateBadID, display.Data{}, false)
		return
	}

	data := display.Data{ID: id}
	t.logger.Info("enrollment started", slog.Int("fingerprintID", id))

	// deliberate overwrite: an existing template under this id is replaced
	t.screen.Show(display.StateEnrollCheck, data)
	exists, err := t.sensor.Exists(ctx, id)
	if err == nil && exists {
		err = t.sensor.Delete(ctx, id)
	}
	if err != nil {
		t.counters.Errors++
		t.flash(display.StateStorageFail, data, false)
		return
	}

	// scan 1
	t.screen.Show(display.StateEnrollScan1, data)
	if !t.captureScan(ctx, fingerprint.Buffer1, data) {
		return
	}

	// the finger must leave the window between scans, or the same contact
	// would count as two independent captures
	t.screen.Show(display.StateEnrollRemove, data)
	switch err = t.waitFinger(ctx, false); {
	case err == nil:
	case errors.Is(err, input.ErrCancelled), errors.Is(err, errWaitExpired):
		t.flash(display.StateCancelled, data, false)
		return
	default:
		t.counters.Errors++
		t.flash(display.StateBadImage, data, false)
		return
	}

	// scan 2
	t.screen.Show(display.StateEnrollScan2, data)
	if !t.captureScan(ctx, fingerprint.Buffer2, data) {
		return
	}

	t.screen.Show(display.StateEnrollModel, data)
	if err = t.sensor.CreateModel(ctx); err != nil {
		if errors.Is(err, fingerprint.ErrMismatch) {
			t.flash(display.StateMismatch, data, false)
		} else {
			t.counters.Errors++
			t.flash(display.StateBadImage, data, false)
		}
		return
	}

	if err = t.sensor.Store(ctx, id); err != nil {
		t.counters.Errors++
		t.flash(display.StateStorageFail, data, false)
		return
	}

	t.counters.Enrolled++
	t.refreshTemplateCount(ctx)
	t.logger.Info("enrollment completed", slog.Int("fingerprintID", id))
	t.flash(display.StateEnrollDone, data, true)
}

// captureScan waits for a finger, captures it and extracts its features into
// the given buffer. It reports false after displaying the matching failure.
func (t *Terminal) captureScan(ctx context.Context, buffer fingerprint.Buffer, data display.Data) bool {
	err := t.waitFinger(ctx, true)
	switch {
	case errors.Is(err, input.ErrCancelled), errors.Is(err, errWaitExpired):
		t.flash(display.StateCancelled, data, false)
		return false
	case err != nil:
		t.counters.Errors++
		t.flash(display.StateBadImage, data, false)
		return false
	}

	if err = t.sensor.Extract(ctx, buffer); err != nil {
		t.counters.Errors++
		t.flash(display.StateBadImage, data, false)
		return false
	}
	return true
}

// waitFinger polls the sensor until a finger arrives (wantPresent) or leaves
// (!wantPresent). The loop is bounded and checks the Home cancellation signal
// on every iteration; cancellation is only observed at these checkpoints.
func (t *Terminal) waitFinger(ctx context.Context, wantPresent bool) error {
	for polls := 0; polls < t.cfg.WaitPolls; polls++ {
		if ctx.Err() != nil || t.homePressed() {
			return input.ErrCancelled
		}

		err := t.sensor.Capture(ctx)
		if wantPresent {
			if err == nil {
				return nil
			}
			if !errors.Is(err, fingerprint.ErrNoFinger) {
				return err
			}
		} else {
			if errors.Is(err, fingerprint.ErrNoFinger) {
				return nil
			}
			if err != nil {
				return err
			}
		}

		time.Sleep(t.cfg.ScanInterval)
	}
	return errWaitExpired
}
