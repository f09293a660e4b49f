package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/puzzlepup/puzzlepup/internal/daemon"
)

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the active configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("API:        %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("Data dir:   %s\n", cfg.Data.Dir)
		fmt.Printf("Weekly target:  %d clears\n", cfg.Engagement.WeeklyTarget)
		fmt.Printf("Comeback hints: %d\n", cfg.Engagement.ComebackHints)
		fmt.Printf("Prometheus: %v\n", cfg.Telemetry.Prometheus)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemon.SaveConfig(daemon.DefaultConfig()); err != nil {
			return err
		}
		fmt.Println("Wrote default config.")
		return nil
	},
}
