// Package shell provides a line-based debug console on the terminal's serial
// or ssh session. It reports the controller's state and can simulate button
// and keypad input, which makes a terminal without hardware fully drivable.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mvaldes-ph/attendance-terminal/internal/input"
	"github.com/mvaldes-ph/attendance-terminal/internal/journal"
	"github.com/mvaldes-ph/attendance-terminal/internal/terminal"
)

// StatusSource publishes terminal status updates.
type StatusSource interface {
	Subscribe() chan terminal.Status
	Unsubscribe(chan terminal.Status)
}

// Refresher triggers an out-of-schedule active-event poll.
type Refresher interface {
	Refresh()
}

// Journal serves the recent submission log.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Shell struct {
	In      io.Reader
	Out     io.Writer
	Source  StatusSource
	Poller  Refresher
	Journal Journal
	Buttons *input.Buttons
	Keys    *input.Queue
	Logger  *slog.Logger

	commands map[string]func(ctx context.Context, args []string) string
	started  time.Time
	lock     sync.RWMutex
	status   terminal.Status
	updated  bool
}

func New(source StatusSource, p Refresher, jrnl Journal, buttons *input.Buttons, keys *input.Queue, in io.Reader, out io.Writer, logger *slog.Logger) *Shell {
	s := Shell{
		In:      in,
		Out:     out,
		Source:  source,
		Poller:  p,
		Journal: jrnl,
		Buttons: buttons,
		Keys:    keys,
		Logger:  logger,
	}
	s.commands = map[string]func(ctx context.Context, args []string) string{
		"help":      s.onHelp,
		"status":    s.onStatus,
		"event":     s.onEvent,
		"refresh":   s.onRefresh,
		"log":       s.onLog,
		"templates": s.onTemplates,
		"uptime":    s.onUptime,
		"press":     s.onPress,
		"key":       s.onKey,
	}
	return &s
}

// Run serves the console until the context is cancelled or the input closes.
func (s *Shell) Run(ctx context.Context) error {
	s.Logger.Debug("started")
	defer s.Logger.Debug("stopped")

	s.started = time.Now()

	ch := s.Source.Subscribe()
	defer s.Source.Unsubscribe(ch)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.In)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-ch:
			s.setStatus(status)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			s.dispatch(ctx, line)
		}
	}
}

func (s *Shell) setStatus(status terminal.Status) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.status = status
	s.updated = true
}

func (s *Shell) getStatus() (terminal.Status, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.status, s.updated
}

func (s *Shell) dispatch(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	cmd, ok := s.commands[fields[0]]
	if !ok {
		s.reply(fmt.Sprintf("unknown command %q. try help", fields[0]))
		return
	}
	s.reply(cmd(ctx, fields[1:]))
}

func (s *Shell) reply(text string) {
	if _, err := fmt.Fprintln(s.Out, text); err != nil {
		s.Logger.Warn("console write failed", slog.Any("err", err))
	}
}

func (s *Shell) onHelp(_ context.Context, _ []string) string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return "commands: " + strings.Join(names, ", ")
}

func (s *Shell) onStatus(_ context.Context, _ []string) string {
	status, ok := s.getStatus()
	if !ok {
		return "no status yet"
	}

	event := "none"
	if status.EventID != "" {
		event = fmt.Sprintf("%s (%s)", status.EventName, status.EventID)
	}
	return strings.Join([]string{
		"mode: " + status.Mode,
		"event: " + event,
		"sensor: " + upDown(status.SensorOK),
		"clock: " + upDown(status.ClockOK),
		"templates: " + strconv.Itoa(status.Templates),
		fmt.Sprintf("scans: %d (matched %d, unmatched %d)", status.Counters.Scans, status.Counters.Matches, status.Counters.NoMatches),
		fmt.Sprintf("submitted: %d (ok %d, suppressed %d, already logged %d)",
			status.Counters.Submitted, status.Counters.Succeeded, status.Counters.Suppressed, status.Counters.AlreadyLogged),
		fmt.Sprintf("enrolled: %d, errors: %d", status.Counters.Enrolled, status.Counters.Errors),
	}, "\n")
}

func (s *Shell) onEvent(_ context.Context, _ []string) string {
	status, ok := s.getStatus()
	if !ok {
		return "no status yet"
	}
	if status.EventID == "" {
		return "no active event"
	}
	return fmt.Sprintf("%s (%s)", status.EventName, status.EventID)
}

func (s *Shell) onRefresh(_ context.Context, _ []string) string {
	s.Poller.Refresh()
	return "refresh requested"
}

func (s *Shell) onLog(ctx context.Context, args []string) string {
	if s.Journal == nil {
		return "journal disabled"
	}

	limit := 10
	if len(args) > 0 {
		var err error
		if limit, err = strconv.Atoi(args[0]); err != nil || limit < 1 {
			return "usage: log [count]"
		}
	}

	entries, err := s.Journal.Recent(ctx, limit)
	if err != nil {
		return "journal error: " + err.Error()
	}
	if len(entries) == 0 {
		return "journal is empty"
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		line := fmt.Sprintf("%s id=%d event=%s %s: %s",
			entry.SubmittedAt.Format(time.RFC3339), entry.FingerprintID, entry.EventID, entry.Type, entry.Outcome)
		if entry.Code != 0 {
			line += " (" + strconv.Itoa(entry.Code) + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (s *Shell) onTemplates(_ context.Context, _ []string) string {
	status, ok := s.getStatus()
	if !ok {
		return "no status yet"
	}
	return strconv.Itoa(status.Templates) + " templates stored"
}

func (s *Shell) onUptime(_ context.Context, _ []string) string {
	return time.Since(s.started).Round(time.Second).String()
}

func (s *Shell) onPress(_ context.Context, args []string) string {
	if len(args) != 1 {
		return "usage: press home|in|out|enroll"
	}

	events := map[string]input.Event{
		"home":   input.HomePressed,
		"in":     input.TimeInPressed,
		"out":    input.TimeOutPressed,
		"enroll": input.EnrollPressed,
	}
	event, ok := events[args[0]]
	if !ok {
		return "usage: press home|in|out|enroll"
	}

	s.Buttons.Edge(event).Trigger()
	return "pressed " + args[0]
}

func (s *Shell) onKey(_ context.Context, args []string) string {
	if len(args) != 1 {
		return "usage: key <digits, * or #>"
	}
	for _, key := range []byte(args[0]) {
		if !(key >= '0' && key <= '9' || key == '*' || key == '#') {
			return "usage: key <digits, * or #>"
		}
	}

	s.Keys.Push([]byte(args[0])...)
	return "queued " + args[0]
}

func upDown(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}
