// Package collector exports the terminal's status as Prometheus metrics.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mvaldes-ph/attendance-terminal/internal/terminal"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	terminalMode = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "mode"),
		"Current operating mode. Always 1. See label 'mode'",
		[]string{"mode"},
		nil,
	)
	terminalActiveEvent = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "active_event"),
		"Active event known to the terminal. Always 1. 'event_id' is empty when no event is active",
		[]string{"event_id", "event_name"},
		nil,
	)
	terminalSensorUp = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "sensor_up"),
		"1 if the fingerprint sensor answered the handshake",
		nil,
		nil,
	)
	terminalClockOK = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "clock_ok"),
		"1 if submission timestamps use the real time of day",
		nil,
		nil,
	)
	terminalTemplates = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "templates"),
		"Number of fingerprint templates stored on the sensor",
		nil,
		nil,
	)
	terminalScans = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "scans_total"),
		"Fingerprint captures attempted",
		nil,
		nil,
	)
	terminalMatches = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "matches_total"),
		"Captures matched to an enrolled template",
		nil,
		nil,
	)
	terminalNoMatches = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "no_matches_total"),
		"Captures with no matching template",
		nil,
		nil,
	)
	terminalSubmitted = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "submissions_total"),
		"Attendance submissions attempted",
		nil,
		nil,
	)
	terminalSucceeded = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "submissions_succeeded_total"),
		"Attendance submissions accepted by the backend",
		nil,
		nil,
	)
	terminalSuppressed = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "suppressed_total"),
		"Duplicate scans swallowed by the cooldown guard",
		nil,
		nil,
	)
	terminalAlreadyLogged = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "already_logged_total"),
		"Time-In scans rejected locally as already logged",
		nil,
		nil,
	)
	terminalEnrolled = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "enrolled_total"),
		"Enrollments completed",
		nil,
		nil,
	)
	terminalErrors = prometheus.NewDesc(
		prometheus.BuildFQName("attendance", "terminal", "errors_total"),
		"Sensor, network and storage errors",
		nil,
		nil,
	)
)

// StatusSource publishes terminal status updates.
type StatusSource interface {
	Subscribe() chan terminal.Status
	Unsubscribe(chan terminal.Status)
}

type Collector struct {
	Source StatusSource
	Logger *slog.Logger
	lock   sync.RWMutex
	status *terminal.Status
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Source.Subscribe()
	defer c.Source.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-ch:
			c.process(status)
		}
	}
}

func (c *Collector) process(status terminal.Status) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.status = &status
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- terminalMode
	ch <- terminalActiveEvent
	ch <- terminalSensorUp
	ch <- terminalClockOK
	ch <- terminalTemplates
	ch <- terminalScans
	ch <- terminalMatches
	ch <- terminalNoMatches
	ch <- terminalSubmitted
	ch <- terminalSucceeded
	ch <- terminalSuppressed
	ch <- terminalAlreadyLogged
	ch <- terminalEnrolled
	ch <- terminalErrors
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.status == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(terminalMode, prometheus.GaugeValue, 1, c.status.Mode)
	ch <- prometheus.MustNewConstMetric(terminalActiveEvent, prometheus.GaugeValue, 1, c.status.EventID, c.status.EventName)
	ch <- prometheus.MustNewConstMetric(terminalSensorUp, prometheus.GaugeValue, boolValue(c.status.SensorOK))
	ch <- prometheus.MustNewConstMetric(terminalClockOK, prometheus.GaugeValue, boolValue(c.status.ClockOK))
	ch <- prometheus.MustNewConstMetric(terminalTemplates, prometheus.GaugeValue, float64(c.status.Templates))

	counters := c.status.Counters
	ch <- prometheus.MustNewConstMetric(terminalScans, prometheus.CounterValue, float64(counters.Scans))
	ch <- prometheus.MustNewConstMetric(terminalMatches, prometheus.CounterValue, float64(counters.Matches))
	ch <- prometheus.MustNewConstMetric(terminalNoMatches, prometheus.CounterValue, float64(counters.NoMatches))
	ch <- prometheus.MustNewConstMetric(terminalSubmitted, prometheus.CounterValue, float64(counters.Submitted))
	ch <- prometheus.MustNewConstMetric(terminalSucceeded, prometheus.CounterValue, float64(counters.Succeeded))
	ch <- prometheus.MustNewConstMetric(terminalSuppressed, prometheus.CounterValue, float64(counters.Suppressed))
	ch <- prometheus.MustNewConstMetric(terminalAlreadyLogged, prometheus.CounterValue, float64(counters.AlreadyLogged))
	ch <- prometheus.MustNewConstMetric(terminalEnrolled, prometheus.CounterValue, float64(counters.Enrolled))
	ch <- prometheus.MustNewConstMetric(terminalErrors, prometheus.CounterValue, float64(counters.Errors))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
