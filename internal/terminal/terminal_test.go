package terminal

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mvaldes-ph/attendance-terminal/internal/backend"
	"github.com/mvaldes-ph/attendance-terminal/internal/display"
	"github.com/mvaldes-ph/attendance-terminal/internal/event"
	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint"
	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint/fake"
	"github.com/mvaldes-ph/attendance-terminal/internal/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendStub counts the terminal's network calls.
type backendStub struct {
	lock         sync.Mutex
	eventBody    string // empty means 404
	submitStatus int
	queries      int
	submissions  int
}

func (b *backendStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/active", func(w http.ResponseWriter, _ *http.Request) {
		b.lock.Lock()
		defer b.lock.Unlock()
		b.queries++
		if b.eventBody == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(b.eventBody))
	})
	mux.HandleFunc("POST /esp-log", func(w http.ResponseWriter, _ *http.Request) {
		b.lock.Lock()
		defer b.lock.Unlock()
		b.submissions++
		w.WriteHeader(b.submitStatus)
	})
	return mux
}

func (b *backendStub) counts() (queries, submissions int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.queries, b.submissions
}

type fakeDevice struct {
	lock  sync.Mutex
	lines [display.Rows]string
}

func (f *fakeDevice) Show(lines [display.Rows]string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.lines = lines
}

func (f *fakeDevice) Indicate(bool) {}

func (f *fakeDevice) topLine() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lines[0]
}

type fakeClock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	terminal *Terminal
	sensor   *fake.Sensor
	buttons  *input.Buttons
	keys     *input.Queue
	clock    *fakeClock
	stub     *backendStub
	device   *fakeDevice
	cache    *event.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.Default()

	stub := &backendStub{submitStatus: http.StatusCreated}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client := backend.New(server.URL, nil, logger)
	cache := event.New(client, logger)

	sensor := fake.New()
	buttons := input.NewButtons(time.Millisecond)
	keys := input.NewQueue()
	reader := input.NewReader(keys, fingerprint.MaxID, time.Millisecond)
	device := &fakeDevice{}
	screen := display.NewScreen(device, display.DefaultTemplates(), logger)
	clock := &fakeClock{now: time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)}

	term := New(sensor, buttons, reader, screen, client, cache, nil, Config{
		Cooldown:       5 * time.Second,
		LoopInterval:   time.Millisecond,
		ScanInterval:   time.Millisecond,
		WaitPolls:      1000,
		StatusInterval: 10 * time.Millisecond,
		Clock:          clock.Now,
		ClockOK:        true,
	}, logger)

	return &fixture{
		terminal: term,
		sensor:   sensor,
		buttons:  buttons,
		keys:     keys,
		clock:    clock,
		stub:     stub,
		device:   device,
		cache:    cache,
	}
}

// TestTerminal_AttendanceScenario walks the full Time-In flow: mode entry
// fetches the event, a match submits once, a duplicate within the cooldown is
// suppressed without I/O, and a later rescan is rejected locally as already
// logged.
func TestTerminal_AttendanceScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stub.eventBody = `{"eventId":"E1","eventName":"Sports Day"}`
	f.sensor.Enroll(42, "alice")
	f.terminal.startup(ctx)

	f.terminal.enterAttendanceMode(ctx, ModeTimeIn)
	queries, _ := f.stub.counts()
	assert.Equal(t, 1, queries)
	assert.Equal(t, "TIME-IN", f.device.topLine())

	current, ok := f.cache.Current()
	require.True(t, ok)
	assert.Equal(t, "Sports Day", current.Name)

	// first scan: submitted
	f.sensor.PlaceFinger("alice")
	f.terminal.verifyOnce(ctx, backend.TypeTimeIn)
	_, submissions := f.stub.counts()
	assert.Equal(t, 1, submissions)
	assert.True(t, f.cache.HasTimeIn(42))

	// second scan within the cooldown: suppressed, zero network calls
	f.clock.Advance(time.Second)
	f.terminal.verifyOnce(ctx, backend.TypeTimeIn)
	queries, submissions = f.stub.counts()
	assert.Equal(t, 1, submissions)
	assert.Equal(t, 1, queries)
	assert.Equal(t, uint64(1), f.terminal.counters.Suppressed)

	// after the cooldown but before an event change: rejected locally
	f.clock.Advance(10 * time.Second)
	f.terminal.verifyOnce(ctx, backend.TypeTimeIn)
	queries, submissions = f.stub.counts()
	assert.Equal(t, 1, submissions)
	assert.Equal(t, 1, queries)
	assert.Equal(t, uint64(1), f.terminal.counters.AlreadyLogged)
}

func TestTerminal_Verify_NoFinger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stub.eventBody = `{"eventId":"E1","eventName":"Sports Day"}`
	f.terminal.startup(ctx)
	f.terminal.enterAttendanceMode(ctx, ModeTimeIn)

	f.terminal.verifyOnce(ctx, backend.TypeTimeIn)

	_, submissions := f.stub.counts()
	assert.Zero(t, submissions)
	assert.Zero(t, f.terminal.counters.Scans)
}

func TestTerminal_Verify_NoMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stub.eventBody = `{"eventId":"E1","eventName":"Sports Day"}`
	f.terminal.startup(ctx)
	f.terminal.enterAttendanceMode(ctx, ModeTimeIn)

	f.sensor.PlaceFinger("stranger")
	f.terminal.verifyOnce(ctx, backend.TypeTimeIn)

	_, submissions := f.stub.counts()
	assert.Zero(t, submissions)
	assert.Equal(t, uint64(1), f.terminal.counters.NoMatches)
	assert.Equal(t, "TIME-IN", f.device.topLine(), "mode screen restored after the error flash")
}

// TestTerminal_Submit_NoActiveEvent covers the 404 path: the rejected
// submission triggers exactly one active-event query, and no further
// submission happens while the event id stays empty.
func TestTerminal_Submit_NoActiveEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stub.eventBody = `{"eventId":"E1","eventName":"Sports Day"}`
	f.sensor.Enroll(42, "alice")
	f.terminal.startup(ctx)
	f.terminal.enterAttendanceMode(ctx, ModeTimeIn)

	// the event ends between the mode entry and the scan
	f.stub.lock.Lock()
	f.stub.eventBody = ""
	f.stub.submitStatus = http.StatusNotFound
	f.stub.lock.Unlock()

	f.sensor.PlaceFinger("alice")
	f.terminal.verifyOnce(ctx, backend.TypeTimeIn)

	queries, submissions := f.stub.counts()
	assert.Equal(t, 1, submissions)
	assert.Equal(t, 2, queries, "the 404 triggers exactly one refresh")
	_, ok := f.cache.Current()
	assert.False(t, ok)
	assert.False(t, f.cache.HasTimeIn(42))

	// while no event is known, scans submit nothing
	f.clock.Advance(time.Minute)
	f.terminal.verifyOnce(ctx, backend.TypeTimeIn)
	_, submissions = f.stub.counts()
	assert.Equal(t, 1, submissions)
}

func TestTerminal_Submit_ServerError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stub.eventBody = `{"eventId":"E1","eventName":"Sports Day"}`
	f.stub.submitStatus = http.StatusServiceUnavailable
	f.sensor.Enroll(42, "alice")
	f.terminal.startup(ctx)
	f.terminal.enterAttendanceMode(ctx, ModeTimeIn)

	f.sensor.PlaceFinger("alice")
	f.terminal.verifyOnce(ctx, backend.TypeTimeIn)

	assert.False(t, f.cache.HasTimeIn(42), "a rejected Time-In is not recorded locally")
	assert.Equal(t, uint64(1), f.terminal.counters.Errors)
}

func TestTerminal_TimeOut_SkipsLocalSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stub.eventBody = `{"eventId":"E1","eventName":"Sports Day"}`
	f.sensor.Enroll(42, "alice")
	f.terminal.startup(ctx)
	f.terminal.enterAttendanceMode(ctx, ModeTimeOut)

	f.sensor.PlaceFinger("alice")
	f.terminal.verifyOnce(ctx, backend.TypeTimeOut)
	_, submissions := f.stub.counts()
	assert.Equal(t, 1, submissions)
	assert.False(t, f.cache.HasTimeIn(42))

	// Time-Out is not gated on the Time-In set; only the cooldown applies
	f.clock.Advance(10 * time.Second)
	f.terminal.verifyOnce(ctx, backend.TypeTimeOut)
	_, submissions = f.stub.counts()
	assert.Equal(t, 2, submissions)
}

func TestTerminal_Run_ModeSwitch(t *testing.T) {
	f := newFixture(t)
	f.stub.eventBody = `{"eventId":"E1","eventName":"Sports Day"}`

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := f.terminal.Subscribe()
	defer f.terminal.Unsubscribe(ch)

	errCh := make(chan error)
	go func() { errCh <- f.terminal.Run(ctx) }()

	// wait for startup to settle in home
	require.Eventually(t, func() bool {
		select {
		case status := <-ch:
			return status.Mode == "home"
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	f.buttons.Edge(input.TimeInPressed).Trigger()

	require.Eventually(t, func() bool {
		select {
		case status := <-ch:
			return status.Mode == "time-in" && status.EventID == "E1"
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	f.buttons.Edge(input.HomePressed).Trigger()
	require.Eventually(t, func() bool {
		select {
		case status := <-ch:
			return status.Mode == "home"
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

// TestTerminal_Run_LateSubscriber verifies an idle terminal republishes its
// status, so subscribers that attach after startup still get a snapshot.
func TestTerminal_Run_LateSubscriber(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error)
	go func() { errCh <- f.terminal.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	ch := f.terminal.Subscribe()
	defer f.terminal.Unsubscribe(ch)

	require.Eventually(t, func() bool {
		select {
		case status := <-ch:
			return status.Mode == "home"
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestTerminal_DegradedSensor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stub.eventBody = `{"eventId":"E1","eventName":"Sports Day"}`

	f.terminal.sensor = nil
	f.terminal.startup(ctx)
	f.terminal.enterAttendanceMode(ctx, ModeTimeIn)

	// the loop keeps running; verification attempts are no-ops
	f.terminal.verifyOnce(ctx, backend.TypeTimeIn)
	_, submissions := f.stub.counts()
	assert.Zero(t, submissions)
}
