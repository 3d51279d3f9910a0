// Package terminal implements the device's top-level controller: a single
// loop that owns the operating mode, polls the debounced inputs, runs the
// biometric protocols and relays attendance to the backend. All sensor,
// display and relay operations happen on this loop, so at most one of them is
// ever in flight.
package terminal

import (
	"context"
	"log/slog"
	"time"

	"github.com/mvaldes-ph/attendance-terminal/internal/backend"
	"github.com/mvaldes-ph/attendance-terminal/internal/display"
	"github.com/mvaldes-ph/attendance-terminal/internal/event"
	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint"
	"github.com/mvaldes-ph/attendance-terminal/internal/input"
	"github.com/mvaldes-ph/attendance-terminal/internal/journal"
	"github.com/mvaldes-ph/attendance-terminal/pkg/pubsub"
)

// Mode is the terminal's operating mode.
type Mode int

const (
	ModeHome Mode = iota
	ModeTimeIn
	ModeTimeOut
	ModeEnroll
)

func (m Mode) String() string {
	switch m {
	case ModeHome:
		return "home"
	case ModeTimeIn:
		return "time-in"
	case ModeTimeOut:
		return "time-out"
	case ModeEnroll:
		return "enroll"
	default:
		return "unknown"
	}
}

// Relay submits attendance records to the backend.
type Relay interface {
	SubmitAttendance(ctx context.Context, fingerprintID int, eventID string, recordType backend.Type, timestamp time.Time) (backend.Result, error)
}

// Journal records submission attempts locally.
type Journal interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// Counters are the terminal's lifetime counters, published with each status
// update.
type Counters struct {
	Scans         uint64 `json:"scans"`
	Matches       uint64 `json:"matches"`
	NoMatches     uint64 `json:"noMatches"`
	Submitted     uint64 `json:"submitted"`
	Succeeded     uint64 `json:"succeeded"`
	Suppressed    uint64 `json:"suppressed"`
	AlreadyLogged uint64 `json:"alreadyLogged"`
	Enrolled      uint64 `json:"enrolled"`
	Errors        uint64 `json:"errors"`
}

// Status is a snapshot of the terminal, published on every mode change and
// submission outcome.
type Status struct {
	Mode      string    `json:"mode"`
	EventID   string    `json:"eventId"`
	EventName string    `json:"eventName"`
	SensorOK  bool      `json:"sensorOk"`
	ClockOK   bool      `json:"clockOk"`
	Templates int       `json:"templates"`
	Counters  Counters  `json:"counters"`
	Updated   time.Time `json:"updated"`
}

// Config tunes the control loop. The zero value picks sensible defaults.
type Config struct {
	// Cooldown is the minimum time between two accepted submissions for the
	// same fingerprint id.
	Cooldown time.Duration
	// LoopInterval paces the main loop.
	LoopInterval time.Duration
	// ScanInterval paces the bounded finger wait loops during enrollment.
	ScanInterval time.Duration
	// WaitPolls bounds the finger wait loops; once exhausted the wait is
	// treated as abandoned.
	WaitPolls int
	// MessageHold is how long a result message stays on the display before
	// the mode screen returns.
	MessageHold time.Duration
	// StatusInterval paces periodic status republishing, so subscribers that
	// attach after startup still receive a snapshot while the terminal idles.
	StatusInterval time.Duration
	// Clock provides submission timestamps. ClockOK marks whether it is the
	// real time of day or the degraded fallback.
	Clock   Clock
	ClockOK bool
}

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = 5 * time.Second
	}
	if c.LoopInterval <= 0 {
		c.LoopInterval = 50 * time.Millisecond
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = 100 * time.Millisecond
	}
	if c.WaitPolls <= 0 {
		c.WaitPolls = 200
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = 15 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
		c.ClockOK = true
	}
	return c
}

type Terminal struct {
	*pubsub.Publisher[Status]
	sensor  fingerprint.Sensor
	buttons *input.Buttons
	reader  *input.Reader
	screen  *display.Screen
	relay   Relay
	cache   *event.Cache
	journal Journal
	cfg     Config
	logger  *slog.Logger

	mode      Mode
	dedup     dedupGuard
	counters  Counters
	sensorOK  bool
	templates int
}

func New(sensor fingerprint.Sensor, buttons *input.Buttons, reader *input.Reader, screen *display.Screen,
	relay Relay, cache *event.Cache, jrnl Journal, cfg Config, logger *slog.Logger) *Terminal {
	t := Terminal{
		Publisher: pubsub.New[Status](logger.With(slog.String("component", "registry"))),
		sensor:    sensor,
		buttons:   buttons,
		reader:    reader,
		screen:    screen,
		relay:     relay,
		cache:     cache,
		journal:   jrnl,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
	t.reader.Echo = func(digits string) {
		t.screen.Show(display.StateEnrollEntry, display.Data{Digits: digits})
	}
	return &t
}

// Run drives the terminal until the context is cancelled.
func (t *Terminal) Run(ctx context.Context) error {
	t.logger.Debug("started")
	defer t.logger.Debug("stopped")

	t.startup(ctx)

	ticker := time.NewTicker(t.cfg.LoopInterval)
	defer ticker.Stop()
	statusTicker := time.NewTicker(t.cfg.StatusInterval)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-statusTicker.C:
			t.publish()
			continue
		case <-ticker.C:
		}

		if event, ok := t.buttons.Poll(); ok {
			t.handleEvent(ctx, event)
			continue
		}

		switch t.mode {
		case ModeTimeIn:
			t.verifyOnce(ctx, backend.TypeTimeIn)
		case ModeTimeOut:
			t.verifyOnce(ctx, backend.TypeTimeOut)
		}
	}
}

func (t *Terminal) startup(ctx context.Context) {
	t.screen.Show(display.StateBoot, display.Data{})

	t.sensorOK = t.sensor != nil && t.sensor.Handshake(ctx) == nil
	if !t.sensorOK {
		t.logger.Warn("fingerprint sensor not detected. biometrics disabled")
		t.screen.Show(display.StateSensorOffline, display.Data{})
		t.screen.Failure()
	} else {
		t.refreshTemplateCount(ctx)
	}
	if !t.cfg.ClockOK {
		t.logger.Warn("real-time clock not detected. timestamps use a fixed epoch")
	}

	t.goHome()
}

func (t *Terminal) handleEvent(ctx context.Context, ev input.Event) {
	t.logger.Debug("input event", slog.String("event", ev.String()))
	switch ev {
	case input.HomePressed:
		t.goHome()
	case input.TimeInPressed:
		t.enterAttendanceMode(ctx, ModeTimeIn)
	case input.TimeOutPressed:
		t.enterAttendanceMode(ctx, ModeTimeOut)
	case input.EnrollPressed:
		t.mode = ModeEnroll
		t.publish()
		t.enroll(ctx)
		t.goHome()
	}
}

func (t *Terminal) goHome() {
	t.mode = ModeHome
	t.showMode()
	t.publish()
}

// enterAttendanceMode refreshes the active event before the mode becomes
// effective, so the first scan already runs against current state.
func (t *Terminal) enterAttendanceMode(ctx context.Context, mode Mode) {
	_ = t.cache.Refresh(ctx)
	t.mode = mode
	t.showMode()
	t.publish()
}

func (t *Terminal) showMode() {
	switch t.mode {
	case ModeHome:
		t.screen.Show(display.StateHome, display.Data{})
	case ModeTimeIn, ModeTimeOut:
		current, ok := t.cache.Current()
		if !ok {
			t.screen.Show(display.StateNoEvent, display.Data{})
			return
		}
		state := display.StateTimeIn
		if t.mode == ModeTimeOut {
			state = display.StateTimeOut
		}
		t.screen.Show(state, display.Data{Event: current.Name})
	}
}

// flash shows a result message with the matching indicator, holds it briefly
// and restores the mode screen.
func (t *Terminal) flash(state display.State, data display.Data, ok bool) {
	t.screen.Show(state, data)
	if ok {
		t.screen.Success()
	} else {
		t.screen.Failure()
	}
	if t.cfg.MessageHold > 0 {
		time.Sleep(t.cfg.MessageHold)
	}
	t.showMode()
}

// homePressed drains pending button events and reports whether Home is among
// them. Used as the cancellation predicate inside blocking waits.
func (t *Terminal) homePressed() bool {
	for {
		event, ok := t.buttons.Poll()
		if !ok {
			return false
		}
		if event == input.HomePressed {
			return true
		}
	}
}

func (t *Terminal) refreshTemplateCount(ctx context.Context) {
	count, err := t.sensor.Count(ctx)
	if err != nil {
		t.logger.Warn("failed to read template count", slog.Any("err", err))
		return
	}
	t.templates = count
}

func (t *Terminal) publish() {
	current, _ := t.cache.Current()
	t.Publish(Status{
		Mode:      t.mode.String(),
		EventID:   current.ID,
		EventName: current.Name,
		SensorOK:  t.sensorOK,
		ClockOK:   t.cfg.ClockOK,
		Templates: t.templates,
		Counters:  t.counters,
		Updated:   t.cfg.Clock(),
	})
}
