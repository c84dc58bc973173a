package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dpistack/dpistack"
)

func loadConfig(path string) (*dpistack.Config, error) {
	if path == "" {
		return dpistack.DefaultConfig(), nil
	}
	return dpistack.LoadConfig(path)
}

func newStartCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the DPI stack and run until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			closeLog, err := dpistack.SetupLogging(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			// The signal context only unblocks the wait; the unwind is the
			// orchestrator's own Stop.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orc := dpistack.New(cfg)
			if err := orc.Run(ctx); err != nil {
				return fmt.Errorf("stack failed to start: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config/dpi_config.toml", "configuration file")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the last persisted health snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			b, err := os.ReadFile(cfg.Monitoring.HealthFile)
			if err != nil {
				return fmt.Errorf("no health snapshot at %s: %w", cfg.Monitoring.HealthFile, err)
			}
			var pretty json.RawMessage = b
			out, err := json.MarshalIndent(pretty, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config/dpi_config.toml", "configuration file")
	return cmd
}
