package input

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrCancelled means entry was aborted by a Home press or shutdown.
	ErrCancelled = errors.New("entry cancelled")
	// ErrNoInput means entry finished without any digits. Distinct from an
	// entered value of zero, which cannot occur (valid ids start at 1).
	ErrNoInput = errors.New("no id entered")
	// ErrOutOfRange means the entered id is outside the valid range.
	ErrOutOfRange = errors.New("id out of range")
)

const (
	keyEnter     = '#'
	keyBackspace = '*'
	maxDigits    = 4
)

// Keypad scans the matrix keypad. ReadKey is non-blocking: it returns the
// next pressed key, or false when none is pending.
type Keypad interface {
	ReadKey() (byte, bool)
}

// Queue is a Keypad fed programmatically, used by tests and by the debug
// shell's key command.
type Queue struct {
	keys chan byte
}

func NewQueue() *Queue {
	return &Queue{keys: make(chan byte, 32)}
}

// Push queues key presses. Keys beyond the queue's capacity are dropped.
func (q *Queue) Push(keys ...byte) {
	for _, key := range keys {
		select {
		case q.keys <- key:
		default:
		}
	}
}

func (q *Queue) ReadKey() (byte, bool) {
	select {
	case key := <-q.keys:
		return key, true
	default:
		return 0, false
	}
}

// Reader reads a numeric id from the keypad: digits append (up to four),
// '*' removes the last digit, '#' finishes.
type Reader struct {
	keypad   Keypad
	maxID    int
	interval time.Duration
	// Echo, when set, is called with the digits entered so far.
	Echo func(digits string)
}

func NewReader(keypad Keypad, maxID int, pollInterval time.Duration) *Reader {
	return &Reader{keypad: keypad, maxID: maxID, interval: pollInterval}
}

// ReadID polls the keypad until an id is entered or entry is cancelled. The
// cancelled predicate is checked on every poll iteration so a Home press
// aborts entry promptly.
func (r *Reader) ReadID(ctx context.Context, cancelled func() bool) (int, error) {
	var digits []byte
	for {
		if ctx.Err() != nil || (cancelled != nil && cancelled()) {
			return 0, ErrCancelled
		}

		key, ok := r.keypad.ReadKey()
		if !ok {
			time.Sleep(r.interval)
			continue
		}

		switch {
		case key >= '0' && key <= '9':
			if len(digits) < maxDigits {
				digits = append(digits, key)
				r.echo(digits)
			}
		case key == keyBackspace:
			if len(digits) > 0 {
				digits = digits[:len(digits)-1]
				r.echo(digits)
			}
		case key == keyEnter:
			if len(digits) == 0 {
				return 0, ErrNoInput
			}
			id, err := strconv.Atoi(string(digits))
			if err != nil || id < 1 || id > r.maxID {
				return 0, ErrOutOfRange
			}
			return id, nil
		}
	}
}

func (r *Reader) echo(digits []byte) {
	if r.Echo != nil {
		r.Echo(string(digits))
	}
}
