package config_test

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/bennostein/skdbsim/internal/config"
)

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	v := viper.New()
	cmd := &cobra.Command{Use: "test"}
	require.NoError(t, config.BindFlags(cmd, v))

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, config.DefaultBatchSize, cfg.BatchSize)
	require.Equal(t, config.DefaultReservoirSampleSize, cfg.ReservoirSampleSize)
	require.Equal(t, config.DefaultLogFormat, cfg.LogFormat)
	require.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	require.Empty(t, cfg.SkdbBinaryPath)
}

func TestLoadPrefersExplicitFlagOverDefault(t *testing.T) {
	v := viper.New()
	cmd := &cobra.Command{Use: "test"}
	require.NoError(t, config.BindFlags(cmd, v))
	require.NoError(t, cmd.PersistentFlags().Set("skdb-binary", "/opt/skdb/bin/skdb"))
	require.NoError(t, cmd.PersistentFlags().Set("batch-size", "4"))

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, "/opt/skdb/bin/skdb", cfg.SkdbBinaryPath)
	require.Equal(t, 4, cfg.BatchSize)
}
