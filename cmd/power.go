package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saschahauer/barebox-bringup/pkg/target"
)

var powerCmd = &cobra.Command{
	Use:   "power",
	Short: "Target power management commands",
	Long:  "Switch or query target power without opening a console session.",
}

func powerController() (target.PowerController, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	power, err := target.NewPower(&cfg.Target.Power)
	if err != nil {
		return nil, err
	}
	if power == nil {
		return nil, fmt.Errorf("no power control configured for this target")
	}
	return power, nil
}

var powerOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Power on the target",
	RunE: func(cmd *cobra.Command, args []string) error {
		power, err := powerController()
		if err != nil {
			return err
		}
		if err := power.PowerOn(context.Background()); err != nil {
			return fmt.Errorf("failed to power on target: %w", err)
		}
		fmt.Println("Target powered on")
		return nil
	},
}

var powerOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Power off the target",
	RunE: func(cmd *cobra.Command, args []string) error {
		power, err := powerController()
		if err != nil {
			return err
		}
		if err := power.PowerOff(context.Background()); err != nil {
			return fmt.Errorf("failed to power off target: %w", err)
		}
		fmt.Println("Target powered off")
		return nil
	},
}

var powerCycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Power cycle the target",
	RunE: func(cmd *cobra.Command, args []string) error {
		power, err := powerController()
		if err != nil {
			return err
		}
		if err := power.PowerCycle(context.Background()); err != nil {
			return fmt.Errorf("failed to power cycle target: %w", err)
		}
		fmt.Println("Target power cycled")
		return nil
	},
}

var powerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query target power state",
	RunE: func(cmd *cobra.Command, args []string) error {
		power, err := powerController()
		if err != nil {
			return err
		}
		state, err := power.PowerState(context.Background())
		if err != nil {
			return fmt.Errorf("failed to query power state: %w", err)
		}
		fmt.Printf("Power state: %s\n", state)
		return nil
	},
}

func init() {
	powerCmd.AddCommand(powerOnCmd)
	powerCmd.AddCommand(powerOffCmd)
	powerCmd.AddCommand(powerCycleCmd)
	powerCmd.AddCommand(powerStatusCmd)

	rootCmd.AddCommand(powerCmd)
}
