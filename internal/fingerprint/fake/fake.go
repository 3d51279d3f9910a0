// Package fake provides an in-memory fingerprint sensor for tests and for
// running the terminal without hardware (sensor.fake).
//
// A "fingerprint" is an arbitrary string: PlaceFinger puts it on the window,
// RemoveFinger clears it. Two scans of the same string are consistent;
// different strings fail model creation, which is enough to exercise every
// path of the enrollment and verification protocols.
package fake

import (
	"context"
	"sync"

	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint"
)

var _ fingerprint.Sensor = &Sensor{}

type Sensor struct {
	lock      sync.Mutex
	finger    string
	image     string
	buffers   map[fingerprint.Buffer]string
	model     string
	templates map[int]string

	// error injection, applied on the next matching call
	CaptureErr error
	ExtractErr error
	StoreErr   error
	DeleteErr  error
}

func New() *Sensor {
	return &Sensor{
		buffers:   make(map[fingerprint.Buffer]string),
		templates: make(map[int]string),
	}
}

// PlaceFinger puts a finger on the window until RemoveFinger is called.
func (s *Sensor) PlaceFinger(print string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.finger = print
}

func (s *Sensor) RemoveFinger() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.finger = ""
}

// Enroll stores a template directly, bypassing the capture protocol.
func (s *Sensor) Enroll(id int, print string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.templates[id] = print
}

// Templates returns a copy of the stored templates.
func (s *Sensor) Templates() map[int]string {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make(map[int]string, len(s.templates))
	for id, print := range s.templates {
		out[id] = print
	}
	return out
}

func (s *Sensor) Handshake(_ context.Context) error { return nil }

func (s *Sensor) Capture(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.CaptureErr; err != nil {
		s.CaptureErr = nil
		return err
	}
	if s.finger == "" {
		return fingerprint.ErrNoFinger
	}
	s.image = s.finger
	return nil
}

func (s *Sensor) Extract(_ context.Context, buffer fingerprint.Buffer) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.ExtractErr; err != nil {
		s.ExtractErr = nil
		return err
	}
	if s.image == "" {
		return fingerprint.ErrBadImage
	}
	s.buffers[buffer] = s.image
	return nil
}

func (s *Sensor) Search(_ context.Context) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	print := s.buffers[fingerprint.Buffer1]
	if print == "" {
		return 0, fingerprint.ErrBadImage
	}
	for id, stored := range s.templates {
		if stored == print {
			return id, nil
		}
	}
	return 0, fingerprint.ErrNoMatch
}

func (s *Sensor) CreateModel(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	one, two := s.buffers[fingerprint.Buffer1], s.buffers[fingerprint.Buffer2]
	if one == "" || two == "" {
		return fingerprint.ErrBadImage
	}
	if one != two {
		return fingerprint.ErrMismatch
	}
	s.model = one
	return nil
}

func (s *Sensor) Store(_ context.Context, id int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.StoreErr; err != nil {
		s.StoreErr = nil
		return err
	}
	if id < 1 || id > fingerprint.MaxID {
		return fingerprint.ErrBadLocation
	}
	if s.model == "" {
		return fingerprint.ErrStorage
	}
	s.templates[id] = s.model
	return nil
}

func (s *Sensor) Delete(_ context.Context, id int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.DeleteErr; err != nil {
		s.DeleteErr = nil
		return err
	}
	delete(s.templates, id)
	return nil
}

func (s *Sensor) Exists(_ context.Context, id int) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.templates[id]
	return ok, nil
}

func (s *Sensor) Count(_ context.Context) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.templates), nil
}
