package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saschahauer/barebox-bringup/pkg/config"
	"github.com/saschahauer/barebox-bringup/pkg/console"
	"github.com/saschahauer/barebox-bringup/pkg/target"
)

var (
	nonInteractive bool
	outputPath     string
	inputFIFO      string
	timeoutSecs    int
	noPowerCycle   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Power up the target and open a console session",
	// The FIFO path must be attached to the flag (-i=PATH or --input PATH);
	// rejecting positional args catches "-i PATH", which would otherwise
	// auto-create a temp FIFO and silently ignore PATH.
	Args: cobra.NoArgs,
	Long: `Activate the target console, power-cycle the target, and enter a console
session. Console output goes to the terminal and optionally to a log file;
input comes from the keyboard and optionally from a FIFO fed by another
process. Press Ctrl-] to exit an interactive session.`,
	Example: `  # Interactive session with output logging
  bringup run -c riotboard.yaml -o session.log

  # Auto-created FIFO for programmatic control
  bringup run -c riotboard.yaml -i -o boot.log &
  echo "version" > /tmp/barebox-input-<pid>.fifo

  # Non-interactive, output to file only, unlimited
  bringup run -c riotboard.yaml -n -o boot.log --timeout 0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logPath := outputPath
		if logPath == "" {
			logPath = cfg.Session.Log
		}
		if nonInteractive && logPath == "" {
			return fmt.Errorf("--non-interactive requires --output")
		}

		timeout := cfg.Session.Timeout
		if cmd.Flags().Changed("timeout") {
			// 0 means unlimited, matching the documented CLI contract.
			timeout = time.Duration(timeoutSecs) * time.Second
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSession(ctx, cfg, logPath, timeout)
	},
}

func runSession(ctx context.Context, cfg *config.Config, logPath string, timeout time.Duration) error {
	sinks := console.NewSinkSet()
	if !nonInteractive {
		sinks.AddWriter("terminal", os.Stdout)
	}
	// The log file is opened before the target is touched so that
	// `tail -f` can attach before the first boot output arrives.
	if logPath != "" {
		if err := sinks.AddLogFile(logPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Output logging to: %s\n", logPath)
	}
	defer sinks.Close()

	var fifo *console.FIFO
	if inputFIFO != "" {
		path := inputFIFO
		if path == "auto" {
			path = ""
		}
		var err error
		fifo, err = console.OpenFIFO(path)
		if err != nil {
			return err
		}
		defer fifo.Close()
		// Announced once, after the pipe object exists, so a process
		// parsing this line can open it for writing immediately.
		if fifo.Created() {
			fmt.Printf("Created FIFO: %s\n", fifo.Path())
		} else {
			fmt.Printf("Using FIFO: %s\n", fifo.Path())
		}
	}

	driver, err := target.NewDriver(&cfg.Target.Console)
	if err != nil {
		return err
	}
	power, err := target.NewPower(&cfg.Target.Power)
	if err != nil {
		return err
	}

	// Console first, power second: this captures all boot output
	// including the boot ROM.
	fmt.Fprintln(os.Stderr, "Activating console...")
	if err := driver.Activate(ctx); err != nil {
		return fmt.Errorf("failed to activate console: %w", err)
	}
	defer driver.Close()

	if power != nil && !noPowerCycle {
		fmt.Fprintln(os.Stderr, "Power cycling target...")
		if err := power.PowerCycle(ctx); err != nil {
			return fmt.Errorf("failed to power cycle target: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Target is up")
	}

	interactive := !nonInteractive
	var keyboard io.Reader
	if interactive {
		keyboard = os.Stdin
		fmt.Fprintln(os.Stderr, "=== Interactive console, press Ctrl-] to exit ===")
	}

	mux := console.NewMux(driver.Console(), console.Options{
		Keyboard:    keyboard,
		FIFO:        fifo,
		Sinks:       sinks,
		Timeout:     timeout,
		Interactive: interactive,
	})

	reason, err := mux.Run(ctx)
	switch reason {
	case console.ReasonInterrupted:
		// Expected interactive exit, leave quietly.
	case console.ReasonTimedOut:
		fmt.Fprintln(os.Stderr, "\nTimeout reached")
	case console.ReasonClosed:
		fmt.Fprintln(os.Stderr, "\nConsole closed by target")
	case console.ReasonError:
		return fmt.Errorf("console session failed: %w", err)
	}
	return nil
}

func init() {
	runCmd.Flags().BoolVarP(&nonInteractive, "non-interactive", "n", false, "no keyboard input, output to file only")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file for console log")
	runCmd.Flags().StringVarP(&inputFIFO, "input", "i", "", "input FIFO: bare -i creates a temp FIFO, --input=PATH uses PATH")
	runCmd.Flags().Lookup("input").NoOptDefVal = "auto"
	runCmd.Flags().IntVar(&timeoutSecs, "timeout", 60, "session timeout in seconds (0 = no timeout)")
	runCmd.Flags().BoolVar(&noPowerCycle, "no-power-cycle", false, "skip power cycle, assume target is already on")

	rootCmd.AddCommand(runCmd)
}
