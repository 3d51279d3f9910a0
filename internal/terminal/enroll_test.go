package terminal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint"
	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint/fake"
	"github.com/mvaldes-ph/attendance-terminal/internal/input"
	"github.com/stretchr/testify/assert"
)

func TestTerminal_Enroll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.terminal.startup(ctx)

	f.keys.Push('4', '2', '#')
	f.sensor.PlaceFinger("alice")
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.sensor.RemoveFinger()
		time.Sleep(20 * time.Millisecond)
		f.sensor.PlaceFinger("alice")
	}()

	f.terminal.enroll(ctx)

	assert.Equal(t, map[int]string{42: "alice"}, f.sensor.Templates())
	assert.Equal(t, uint64(1), f.terminal.counters.Enrolled)
	assert.Equal(t, 1, f.terminal.templates)
}

func TestTerminal_Enroll_Overwrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sensor.Enroll(42, "old")
	f.terminal.startup(ctx)

	f.keys.Push('4', '2', '#')
	f.sensor.PlaceFinger("alice")
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.sensor.RemoveFinger()
		time.Sleep(20 * time.Millisecond)
		f.sensor.PlaceFinger("alice")
	}()

	f.terminal.enroll(ctx)

	assert.Equal(t, map[int]string{42: "alice"}, f.sensor.Templates())
}

func TestTerminal_Enroll_Mismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.terminal.startup(ctx)

	f.keys.Push('7', '#')
	f.sensor.PlaceFinger("alice")
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.sensor.RemoveFinger()
		time.Sleep(20 * time.Millisecond)
		f.sensor.PlaceFinger("bob")
	}()

	f.terminal.enroll(ctx)

	assert.Empty(t, f.sensor.Templates(), "mismatched scans store nothing")
	assert.Zero(t, f.terminal.counters.Enrolled)
}

func TestTerminal_Enroll_NoInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.terminal.startup(ctx)

	f.keys.Push('#')
	f.terminal.enroll(ctx)

	assert.Empty(t, f.sensor.Templates())
}

func TestTerminal_Enroll_HomeCancelsEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.terminal.startup(ctx)

	f.buttons.Edge(input.HomePressed).Trigger()
	f.terminal.enroll(ctx)

	assert.Empty(t, f.sensor.Templates())
}

func TestTerminal_Enroll_HomeCancelsFirstScan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.terminal.startup(ctx)

	f.keys.Push('7', '#')
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.buttons.Edge(input.HomePressed).Trigger()
	}()

	f.terminal.enroll(ctx)

	assert.Empty(t, f.sensor.Templates())
}

func TestTerminal_Enroll_HomeCancelsRemovalWait(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.terminal.startup(ctx)

	f.keys.Push('7', '#')
	f.sensor.PlaceFinger("alice")
	// the finger never leaves; Home aborts the removal wait
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.buttons.Edge(input.HomePressed).Trigger()
	}()

	f.terminal.enroll(ctx)

	assert.Empty(t, f.sensor.Templates())
}

// faultySensor fails every capture after the first failAfter calls.
type faultySensor struct {
	*fake.Sensor
	lock      sync.Mutex
	failAfter int
	calls     int
	err       error
}

func (s *faultySensor) Capture(ctx context.Context) error {
	s.lock.Lock()
	s.calls++
	fail := s.calls > s.failAfter
	s.lock.Unlock()
	if fail {
		return s.err
	}
	return s.Sensor.Capture(ctx)
}

func TestTerminal_Enroll_RemovalWaitSensorFault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// the first capture (scan 1) succeeds; the removal wait then hits a
	// persistent sensor fault, which must not be reported as a cancellation
	f.terminal.sensor = &faultySensor{Sensor: f.sensor, failAfter: 1, err: fingerprint.ErrStorage}
	f.terminal.startup(ctx)

	f.keys.Push('7', '#')
	f.sensor.PlaceFinger("alice")
	f.terminal.enroll(ctx)

	assert.Empty(t, f.sensor.Templates())
	assert.Equal(t, uint64(1), f.terminal.counters.Errors)
}

func TestTerminal_Enroll_CaptureFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.terminal.startup(ctx)

	f.keys.Push('7', '#')
	f.sensor.CaptureErr = fingerprint.ErrBadImage
	f.terminal.enroll(ctx)

	assert.Empty(t, f.sensor.Templates())
	assert.Equal(t, uint64(1), f.terminal.counters.Errors)
}

func TestTerminal_Enroll_DeleteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sensor.Enroll(7, "old")
	f.terminal.startup(ctx)

	f.keys.Push('7', '#')
	f.sensor.DeleteErr = fingerprint.ErrStorage
	f.terminal.enroll(ctx)

	assert.Equal(t, map[int]string{7: "old"}, f.sensor.Templates(), "the existing template survives a failed delete")
}

func TestTerminal_Enroll_StoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.terminal.startup(ctx)

	f.keys.Push('7', '#')
	f.sensor.StoreErr = fingerprint.ErrStorage
	f.sensor.PlaceFinger("alice")
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.sensor.RemoveFinger()
		time.Sleep(20 * time.Millisecond)
		f.sensor.PlaceFinger("alice")
	}()

	f.terminal.enroll(ctx)

	assert.Empty(t, f.sensor.Templates())
	assert.Zero(t, f.terminal.counters.Enrolled)
}

func TestTerminal_Enroll_SensorOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.terminal.sensor = nil
	f.terminal.startup(ctx)

	f.terminal.enroll(ctx)

	assert.Equal(t, "SENSOR OFFLINE", f.device.topLine())
}
