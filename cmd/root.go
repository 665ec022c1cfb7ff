package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saschahauer/barebox-bringup/pkg/config"
)

var (
	cfgFile   string
	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   "bringup",
	Short: "Bring up barebox on target hardware and attach to its console",
	Long: `Power up a target (hardware behind a BMC or power switch, or a local
emulator), attach to its serial console, and multiplex the console between
your terminal, a log file, and an automation FIFO.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbosity)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "target configuration file (YAML)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v, -vv, -vvv)")
}

// setupLogging configures zerolog for human-friendly console output on
// stderr, so session output on stdout stays clean.
func setupLogging(verbosity int) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(logLevel(verbosity))
}

func logLevel(verbosity int) zerolog.Level {
	switch {
	case verbosity >= 3:
		return zerolog.TraceLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	default:
		return zerolog.WarnLevel
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
