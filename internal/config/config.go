// Package config resolves the settings every skdbsim command needs: where
// the skdb binary lives, which bootstrap SQL file to run against a fresh
// peer, and the defaults an enumerator or executor falls back to when a
// caller doesn't override them. Resolution order is flags > environment >
// .env file > built-in defaults, layered with spf13/viper over spf13/cobra
// flags, with joho/godotenv loading an optional .env file first.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Defaults for the corresponding Config fields below.
const (
	DefaultBatchSize           = 16
	DefaultReservoirSampleSize = 100
	DefaultLogFormat           = "text"
	DefaultLogLevel            = "info"
)

// Config is the fully resolved set of settings for one skdbsim invocation.
type Config struct {
	// SkdbBinaryPath is the path to the skdb executable invoked for every
	// database operation (init, apply, query, subscribe, tail, write-csv).
	SkdbBinaryPath string `json:"skdbBinaryPath"`

	// BootstrapSQLPath is the SQL file run against every peer's database
	// immediately after creation, before any schema or data task runs.
	BootstrapSQLPath string `json:"bootstrapSQLPath"`

	// BatchSize bounds how many Schedules the executor runs concurrently.
	BatchSize int `json:"batchSize"`

	// ReservoirSampleSize is the default N for enumerate.ReservoirSampled
	// when a caller doesn't pick one explicitly.
	ReservoirSampleSize int `json:"reservoirSampleSize"`

	// LogFormat selects the log/slog handler: "text" or "json".
	LogFormat string `json:"logFormat"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"logLevel"`
}

// BindFlags registers the persistent flags a cobra root command exposes for
// every recognized config key, and binds them into v so viper's own
// precedence rules (flag > env > config file > default) apply.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.PersistentFlags()
	flags.String("skdb-binary", "", "path to the skdb executable")
	flags.String("bootstrap-sql", "", "path to the bootstrap SQL file run against each fresh peer")
	flags.Int("batch-size", DefaultBatchSize, "max number of schedules executed concurrently")
	flags.Int("reservoir-sample-size", DefaultReservoirSampleSize, "default sample size for reservoir-sampled enumeration")
	flags.String("log-format", DefaultLogFormat, `log output format, "text" or "json"`)
	flags.String("log-level", DefaultLogLevel, "log level: debug, info, warn, or error")

	for _, name := range []string{
		"skdb-binary", "bootstrap-sql", "batch-size",
		"reservoir-sample-size", "log-format", "log-level",
	} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads an optional .env file (ignored if absent), applies defaults,
// and returns the Config resolved from v (which BindFlags must have already
// wired up). v.SetEnvPrefix/AutomaticEnv is configured here so SKDBSIM_*
// environment variables override the .env file and defaults, and flags (via
// BindFlags) override everything.
func Load(v *viper.Viper) (Config, error) {
	_ = godotenv.Load()

	v.SetDefault("batch-size", DefaultBatchSize)
	v.SetDefault("reservoir-sample-size", DefaultReservoirSampleSize)
	v.SetDefault("log-format", DefaultLogFormat)
	v.SetDefault("log-level", DefaultLogLevel)

	v.SetEnvPrefix("skdbsim")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	return Config{
		SkdbBinaryPath:      v.GetString("skdb-binary"),
		BootstrapSQLPath:    v.GetString("bootstrap-sql"),
		BatchSize:           v.GetInt("batch-size"),
		ReservoirSampleSize: v.GetInt("reservoir-sample-size"),
		LogFormat:           v.GetString("log-format"),
		LogLevel:            v.GetString("log-level"),
	}, nil
}
