package run

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/clambin/go-common/taskmanager"
	"github.com/clambin/go-common/taskmanager/httpserver"
	promserver "github.com/clambin/go-common/taskmanager/prometheus"
	"github.com/mvaldes-ph/attendance-terminal/internal/backend"
	"github.com/mvaldes-ph/attendance-terminal/internal/collector"
	"github.com/mvaldes-ph/attendance-terminal/internal/display"
	"github.com/mvaldes-ph/attendance-terminal/internal/event"
	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint"
	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint/fake"
	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint/r30x"
	"github.com/mvaldes-ph/attendance-terminal/internal/health"
	"github.com/mvaldes-ph/attendance-terminal/internal/input"
	"github.com/mvaldes-ph/attendance-terminal/internal/journal"
	"github.com/mvaldes-ph/attendance-terminal/internal/shell"
	"github.com/mvaldes-ph/attendance-terminal/internal/terminal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

func New(cfg *viper.Viper, registry prometheus.Registerer, logger *slog.Logger) (*taskmanager.Manager, error) {
	// Do we have display template overrides?
	templates, err := maybeLoadTemplates(filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "display.yaml"), logger)
	if err != nil {
		return nil, fmt.Errorf("display templates: %w", err)
	}
	return taskmanager.New(makeTasks(cfg, templates, registry, logger)...), nil
}

func maybeLoadTemplates(path string, logger *slog.Logger) (display.Templates, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return display.DefaultTemplates(), nil
		}
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	logger.Info("loading display templates", "path", path)
	return display.Load(f)
}

// idMax caps keypad id entry. It can be lowered for small fleets but never
// exceeds the sensor's template capacity.
func idMax(cfg *viper.Viper) int {
	id := cfg.GetInt("terminal.idmax")
	if id < 1 || id > fingerprint.MaxID {
		return fingerprint.MaxID
	}
	return id
}

func makeTasks(cfg *viper.Viper, templates display.Templates, registry prometheus.Registerer, l *slog.Logger) []taskmanager.Task {
	var tasks []taskmanager.Task

	// Backend client
	registry.MustRegister(requestCounter, requestDuration)
	client := backend.New(
		cfg.GetString("backend.url"),
		newHTTPClient(cfg.GetDuration("backend.timeout")),
		l.With("component", "backend"),
	)

	// Active event cache
	cache := event.New(client, l.With("component", "event"))
	p := event.NewPoller(cache, cfg.GetDuration("poller.interval"), l.With("component", "poller"))
	tasks = append(tasks, p)

	// Fingerprint sensor. A missing sensor does not stop the terminal: it
	// starts degraded and keeps serving status and the shell.
	var sensor fingerprint.Sensor
	if cfg.GetBool("sensor.fake") {
		sensor = fake.New()
	} else if dev, err := r30x.Open(cfg.GetString("sensor.port"), cfg.GetInt("sensor.baud"), l.With("component", "r30x")); err == nil {
		sensor = dev
	} else {
		l.Warn("failed to open fingerprint sensor. starting degraded", "err", err)
	}

	// Submission journal
	var store *journal.Store
	if path := cfg.GetString("journal.path"); path != "" {
		var err error
		if store, err = journal.Open(path); err != nil {
			l.Warn("failed to open journal. submissions will not be recorded locally", "err", err)
		} else {
			tasks = append(tasks, store)
		}
	}

	// Terminal
	buttons := input.NewButtons(cfg.GetDuration("terminal.debounce"))
	keys := input.NewQueue()
	reader := input.NewReader(keys, idMax(cfg), 50*time.Millisecond)
	screen := display.NewScreen(display.Console{W: os.Stdout}, templates, l.With("component", "display"))
	clock, clockOK := terminal.DetectClock(l)

	var jrnl terminal.Journal
	if store != nil {
		jrnl = store
	}
	term := terminal.New(sensor, buttons, reader, screen, client, cache, jrnl, terminal.Config{
		Cooldown: cfg.GetDuration("terminal.cooldown"),
		Clock:    clock,
		ClockOK:  clockOK,
	}, l.With("component", "terminal"))
	tasks = append(tasks, term)

	// Collector
	coll := collector.Collector{Source: term, Logger: l.With("component", "collector")}
	registry.MustRegister(&coll)
	tasks = append(tasks, &coll)

	// Prometheus server
	tasks = append(tasks, promserver.New(promserver.WithAddr(cfg.GetString("exporter.addr"))))

	// Health endpoint
	h := health.New(term, l.With("component", "health"))
	tasks = append(tasks, h)
	mux := http.NewServeMux()
	mux.Handle("/health", h)
	tasks = append(tasks, httpserver.New(cfg.GetString("health.addr"), mux))

	// Debug shell
	if cfg.GetBool("shell.enabled") {
		var shellJournal shell.Journal
		if store != nil {
			shellJournal = store
		}
		tasks = append(tasks, shell.New(term, p, shellJournal, buttons, keys, os.Stdin, os.Stdout, l.With("component", "shell")))
	}

	return tasks
}
