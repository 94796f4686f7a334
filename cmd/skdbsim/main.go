// Command skdbsim is the operator-facing entry point for the replication
// exploration harness: it doesn't run Schedules itself (that's driven by `go
// test`), but it shares the same internal/config resolution path a test run
// uses, so `skdbsim doctor`/`skdbsim config` double as a pre-flight check of
// whatever environment a test suite is about to run in.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bennostein/skdbsim/internal/config"
)

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "skdbsim",
		Short: "Operator tooling for the skdb replication exploration harness.",
	}

	if err := config.BindFlags(rootCmd, v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd.AddCommand(newDoctorCmd(v), newConfigCmd(v))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the fully resolved configuration as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

func newDoctorCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured skdb binary and bootstrap SQL file are usable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runDoctor(cmd, cfg)
		},
	}
}

// doctorCheck is one pass/fail line of the doctor report.
type doctorCheck struct {
	Name string
	OK   bool
	Err  string
}

func runDoctor(cmd *cobra.Command, cfg config.Config) error {
	checks := []doctorCheck{
		checkExecutable("skdb binary", cfg.SkdbBinaryPath),
		checkReadable("bootstrap SQL", cfg.BootstrapSQLPath),
	}

	failed := false
	for _, c := range checks {
		status := "ok"
		if !c.OK {
			status = "FAIL: " + c.Err
			failed = true
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", c.Name, status)
	}

	if failed {
		return fmt.Errorf("one or more doctor checks failed")
	}
	return nil
}

func checkExecutable(name, path string) doctorCheck {
	if path == "" {
		return doctorCheck{Name: name, OK: false, Err: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return doctorCheck{Name: name, OK: false, Err: err.Error()}
	}
	if info.IsDir() {
		return doctorCheck{Name: name, OK: false, Err: "is a directory"}
	}
	if info.Mode()&0111 == 0 {
		return doctorCheck{Name: name, OK: false, Err: "not executable"}
	}
	return doctorCheck{Name: name, OK: true}
}

func checkReadable(name, path string) doctorCheck {
	if path == "" {
		return doctorCheck{Name: name, OK: false, Err: "not configured"}
	}
	f, err := os.Open(path)
	if err != nil {
		return doctorCheck{Name: name, OK: false, Err: err.Error()}
	}
	_ = f.Close()
	return doctorCheck{Name: name, OK: true}
}
