// Package dpistack embeds the DPI demo-stack orchestrator: compile the P4
// artifact, bring up the emulated network, the per-device controller
// workers, the packet logger, the traffic generator and the data-serving
// API in order, supervise them, and tear everything down deterministically.
package dpistack

import (
	"github.com/dpistack/dpistack/internal/config"
	"github.com/dpistack/dpistack/internal/health"
	"github.com/dpistack/dpistack/internal/logger"
	"github.com/dpistack/dpistack/internal/orchestrator"
	"github.com/dpistack/dpistack/internal/pktlog"
	"github.com/dpistack/dpistack/internal/proc"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type Config = config.Config

type Switch = config.Switch

type Orchestrator = orchestrator.Orchestrator

type Option = orchestrator.Option

type HealthSnapshot = health.Snapshot

type ProcessStatus = proc.Status

type Stats = pktlog.Stats

type LogConfig = logger.Config

// New builds an orchestrator around cfg.
func New(cfg *Config, opts ...Option) *Orchestrator {
	return orchestrator.New(cfg, opts...)
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config { return config.Default() }

// LoadConfig reads and validates a configuration file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// SetupLogging installs the process-wide structured logger described by c
// and returns a closer for the rotated log file.
func SetupLogging(c LogConfig) (func() error, error) { return logger.Setup(c) }
