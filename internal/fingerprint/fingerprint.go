// Package fingerprint defines the capability set the terminal needs from a
// fingerprint sensor: capture an image, extract its features into one of two
// buffers, search the stored templates, combine both buffers into a template,
// and store or delete a template by id.
package fingerprint

import (
	"context"
	"errors"
)

// Buffer selects one of the sensor's two feature buffers.
type Buffer int

const (
	Buffer1 Buffer = 1
	Buffer2 Buffer = 2
)

// MaxID is the highest template id the terminal hands out.
const MaxID = 1000

var (
	// ErrNoFinger means no finger was on the sensor window. Benign: the
	// verification loop simply has nothing to do yet.
	ErrNoFinger = errors.New("no finger detected")
	// ErrBadImage means a finger was present but no usable features could be
	// extracted from the capture.
	ErrBadImage = errors.New("failed to process fingerprint image")
	// ErrNoMatch means the extracted features match no stored template.
	ErrNoMatch = errors.New("no matching template")
	// ErrMismatch means the two enrollment scans are not the same finger.
	ErrMismatch = errors.New("enrollment scans do not match")
	// ErrBadLocation means the template id is out of range or not occupied.
	ErrBadLocation = errors.New("invalid template location")
	// ErrStorage means the sensor failed to read or write its template store.
	ErrStorage = errors.New("template storage failure")
)

type Sensor interface {
	// Handshake verifies the sensor is present and responding.
	Handshake(ctx context.Context) error
	// Capture takes one image of the sensor window. ErrNoFinger when empty.
	Capture(ctx context.Context) error
	// Extract converts the captured image into features in the given buffer.
	Extract(ctx context.Context, buffer Buffer) error
	// Search matches Buffer1 against all stored templates and returns the
	// matched template id, or ErrNoMatch.
	Search(ctx context.Context) (int, error)
	// CreateModel combines Buffer1 and Buffer2 into a template, or returns
	// ErrMismatch when the two scans disagree.
	CreateModel(ctx context.Context) error
	// Store writes the combined template under the given id.
	Store(ctx context.Context, id int) error
	// Delete removes the template stored under the given id.
	Delete(ctx context.Context, id int) error
	// Exists reports whether a template is stored under the given id.
	Exists(ctx context.Context, id int) (bool, error)
	// Count returns the number of stored templates.
	Count(ctx context.Context) (int, error)
}
