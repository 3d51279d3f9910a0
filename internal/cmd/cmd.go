package cmd

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/mvaldes-ph/attendance-terminal/internal/cmd/run"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "terminal",
		Short: "Campus attendance terminal controller",
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))

	RootCmd.AddCommand(&run.Cmd)
}

var args = charmer.Arguments{
	"debug":             charmer.Argument{Default: false, Help: "Log debug messages"},
	"backend.url":       charmer.Argument{Default: "http://localhost:3000", Help: "Attendance backend URL"},
	"backend.timeout":   charmer.Argument{Default: 10 * time.Second, Help: "Backend request timeout"},
	"sensor.port":       charmer.Argument{Default: "/dev/ttyAMA0", Help: "Serial port of the fingerprint sensor"},
	"sensor.baud":       charmer.Argument{Default: 57600, Help: "Baud rate of the fingerprint sensor"},
	"sensor.fake":       charmer.Argument{Default: false, Help: "Use an in-memory fingerprint sensor"},
	"terminal.debounce": charmer.Argument{Default: 200 * time.Millisecond, Help: "Button debounce window"},
	"terminal.cooldown": charmer.Argument{Default: 5 * time.Second, Help: "Duplicate-scan cooldown window"},
	"terminal.idmax":    charmer.Argument{Default: 1000, Help: "Highest enrollable fingerprint id"},
	"poller.interval":   charmer.Argument{Default: 30 * time.Second, Help: "Active-event poll interval"},
	"journal.path":      charmer.Argument{Default: "", Help: "Path of the submission journal (empty disables it)"},
	"exporter.addr":     charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"health.addr":       charmer.Argument{Default: ":8080", Help: "Address of /health endpoint"},
	"shell.enabled":     charmer.Argument{Default: false, Help: "Serve the debug shell on stdin"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/attendance-terminal/")
		viper.AddConfigPath("$HOME/.attendance-terminal")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("TERMINAL")
	viper.AutomaticEnv()

	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		slog.Error("failed to read config file", "err", err)
		os.Exit(1)
	}
}
