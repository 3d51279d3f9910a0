// Package display renders the terminal's status on a 4-line, 20-column text
// display and drives the success/failure indicator.
package display

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	// Rows and Columns are the dimensions of the character display.
	Rows    = 4
	Columns = 20
)

// Device is the hardware-facing side of the display.
type Device interface {
	// Show replaces the display contents.
	Show(lines [Rows]string)
	// Indicate flashes the success or failure indicator.
	Indicate(ok bool)
}

// Console renders the display to a writer. The development stand-in for the
// character LCD.
type Console struct {
	W io.Writer
}

func (c Console) Show(lines [Rows]string) {
	border := "+" + strings.Repeat("-", Columns) + "+"
	_, _ = fmt.Fprintln(c.W, border)
	for _, line := range lines {
		_, _ = fmt.Fprintf(c.W, "|%-*s|\n", Columns, line)
	}
	_, _ = fmt.Fprintln(c.W, border)
}

func (c Console) Indicate(ok bool) {
	if ok {
		_, _ = fmt.Fprintln(c.W, "[ OK ]")
		return
	}
	_, _ = fmt.Fprintln(c.W, "[FAIL]")
}

// Screen formats state templates and writes them to the device.
type Screen struct {
	device    Device
	templates Templates
	logger    *slog.Logger
}

func NewScreen(device Device, templates Templates, logger *slog.Logger) *Screen {
	return &Screen{device: device, templates: templates, logger: logger}
}

// Data fills template placeholders.
type Data struct {
	Event  string
	ID     int
	Code   int
	Digits string
}

// Show renders the template for the given state.
func (s *Screen) Show(state State, data Data) {
	template, ok := s.templates[state]
	if !ok {
		s.logger.Warn("no template for state", slog.String("state", string(state)))
		return
	}

	replacer := strings.NewReplacer(
		"{event}", data.Event,
		"{id}", fmt.Sprintf("%d", data.ID),
		"{code}", fmt.Sprintf("%d", data.Code),
		"{digits}", data.Digits,
	)

	var lines [Rows]string
	for i := range min(len(template), Rows) {
		line := replacer.Replace(template[i])
		if len(line) > Columns {
			line = line[:Columns]
		}
		lines[i] = line
	}
	s.device.Show(lines)
}

// Success flashes the success indicator.
func (s *Screen) Success() { s.device.Indicate(true) }

// Failure flashes the failure indicator.
func (s *Screen) Failure() { s.device.Indicate(false) }
