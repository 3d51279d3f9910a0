// Package backend implements the terminal's two outbound operations against
// the attendance backend: submitting an attendance record and querying the
// currently active event.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Type is the attendance record type.
type Type string

const (
	TypeTimeIn  Type = "Time-In"
	TypeTimeOut Type = "Time-Out"
)

// Event is the backend's currently active event.
type Event struct {
	ID   string
	Name string
}

// Status is the outcome of a submission that reached the backend (or was
// rejected before a network call was needed).
type Status int

const (
	StatusSuccess Status = iota
	StatusNoActiveEvent
	StatusServerError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoActiveEvent:
		return "no active event"
	case StatusServerError:
		return "server error"
	default:
		return "unknown"
	}
}

// Result is the outcome of SubmitAttendance. Code holds the HTTP status code
// for StatusServerError.
type Result struct {
	Status Status
	Code   int
}

// ErrNoActiveEvent indicates the backend has no event in progress.
var ErrNoActiveEvent = errors.New("no active event")

// Client calls the attendance backend. The HTTP client is injected so the
// caller controls timeouts, bounded connection retries and instrumentation.
// Methods are safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type attendanceRecord struct {
	FingerprintID int    `json:"fingerprintID"`
	EventID       string `json:"eventId"`
	Type          Type   `json:"type"`
	Timestamp     string `json:"timestamp"`
}

// SubmitAttendance posts one attendance record. An empty eventID short-circuits
// to StatusNoActiveEvent without a network call. A returned error means the
// backend could not be reached; the caller reports it as network unavailable.
func (c *Client) SubmitAttendance(ctx context.Context, fingerprintID int, eventID string, recordType Type, timestamp time.Time) (Result, error) {
	if eventID == "" {
		return Result{Status: StatusNoActiveEvent}, nil
	}

	body, err := json.Marshal(attendanceRecord{
		FingerprintID: fingerprintID,
		EventID:       eventID,
		Type:          recordType,
		Timestamp:     timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/esp-log", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("submit: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return Result{Status: StatusSuccess}, nil
	case resp.StatusCode == http.StatusNotFound:
		return Result{Status: StatusNoActiveEvent}, nil
	default:
		c.logger.Warn("submission rejected", slog.Int("code", resp.StatusCode), slog.Int("fingerprintID", fingerprintID))
		return Result{Status: StatusServerError, Code: resp.StatusCode}, nil
	}
}

// ActiveEvent queries the backend for the event currently in progress. It
// returns ErrNoActiveEvent when the backend reports none, or when the response
// body lacks a recognizable event identifier. Any other error means the answer
// is indeterminate and the caller should keep its cached state.
func (c *Client) ActiveEvent(ctx context.Context) (Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events/active", nil)
	if err != nil {
		return Event{}, fmt.Errorf("request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Event{}, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return Event{}, ErrNoActiveEvent
	}
	if resp.StatusCode != http.StatusOK {
		return Event{}, fmt.Errorf("query: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Event{}, fmt.Errorf("query: %w", err)
	}
	return parseEvent(body)
}

// parseEvent extracts the event identifier and name. A body without a usable
// identifier - malformed JSON included - means "no active event": absent a
// trustworthy signal the terminal must not submit against a stale event.
func parseEvent(body []byte) (Event, error) {
	if !gjson.ValidBytes(body) {
		return Event{}, ErrNoActiveEvent
	}
	var id string
	for _, field := range []string{"eventId", "id", "_id"} {
		if v := gjson.GetBytes(body, field); v.Exists() {
			id = v.String()
			break
		}
	}
	if id == "" {
		return Event{}, ErrNoActiveEvent
	}
	name := gjson.GetBytes(body, "eventName").String()
	if name == "" {
		name = gjson.GetBytes(body, "name").String()
	}
	return Event{ID: id, Name: name}, nil
}
