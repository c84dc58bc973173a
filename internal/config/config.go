package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/dpistack/dpistack/internal/logger"
)

// Switch describes one managed P4 device. Each entry results in one
// controller worker process.
type Switch struct {
	Name        string `toml:"name" mapstructure:"name"`
	DeviceID    int    `toml:"device_id" mapstructure:"device_id"`
	GRPCPort    int    `toml:"grpc_port" mapstructure:"grpc_port"`
	P4InfoFile  string `toml:"p4info_file" mapstructure:"p4info_file"`
	RuntimeFile string `toml:"runtime_json_file" mapstructure:"runtime_json_file"`
}

// Compiler configures the p4c invocation performed once at startup.
type Compiler struct {
	Bin         string `toml:"bin" mapstructure:"bin"`
	Source      string `toml:"source" mapstructure:"source"`
	P4InfoFile  string `toml:"p4info_file" mapstructure:"p4info_file"`
	RuntimeFile string `toml:"runtime_json_file" mapstructure:"runtime_json_file"`
}

// Topology configures the network-emulation collaborator at its command
// boundary. SetupCommand blocks for the lifetime of the emulated network and
// runs inside a background task.
type Topology struct {
	SetupCommand   string        `toml:"setup_command" mapstructure:"setup_command"`
	TrafficCommand string        `toml:"traffic_command" mapstructure:"traffic_command"`
	StopCommand    string        `toml:"stop_command" mapstructure:"stop_command"`
	SettleDelay    time.Duration `toml:"settle_delay" mapstructure:"settle_delay"`
}

// Worker configures the per-device controller worker processes.
type Worker struct {
	Command string `toml:"command" mapstructure:"command"`
}

// API configures the external data-serving process.
type API struct {
	Command string `toml:"command" mapstructure:"command"`
	Host    string `toml:"host" mapstructure:"host"`
	Port    int    `toml:"port" mapstructure:"port"`
}

// Monitoring configures the health monitor loop.
type Monitoring struct {
	Interval   time.Duration `toml:"stats_interval" mapstructure:"stats_interval"`
	HealthFile string        `toml:"health_file" mapstructure:"health_file"`
}

// Export configures the delayed one-shot export.
type Export struct {
	Command      string        `toml:"command" mapstructure:"command"`
	InitialDelay time.Duration `toml:"initial_delay" mapstructure:"initial_delay"`
	OutDir       string        `toml:"out_dir" mapstructure:"out_dir"`
}

// Database selects the packet store backend.
type Database struct {
	Driver string `toml:"driver" mapstructure:"driver"` // sqlite | postgres | clickhouse
	DSN    string `toml:"dsn" mapstructure:"dsn"`       // file path for sqlite
}

// TrafficProfile describes one synthetic flow the generator cycles through.
type TrafficProfile struct {
	Name       string `toml:"name" mapstructure:"name"`
	SrcIP      string `toml:"src_ip" mapstructure:"src_ip"`
	DstIP      string `toml:"dst_ip" mapstructure:"dst_ip"`
	DstPort    int    `toml:"dst_port" mapstructure:"dst_port"`
	Protocol   string `toml:"protocol" mapstructure:"protocol"`
	SizeBytes  int    `toml:"size_bytes" mapstructure:"size_bytes"`
	Suspicious bool   `toml:"suspicious" mapstructure:"suspicious"`
}

// Traffic configures the in-process traffic generator.
type Traffic struct {
	Interval time.Duration    `toml:"interval" mapstructure:"interval"`
	Profiles []TrafficProfile `toml:"profiles" mapstructure:"profiles"`
}

// Admin configures the orchestrator's own status HTTP endpoint.
type Admin struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Orchestrator holds the sequencing and shutdown knobs.
type Orchestrator struct {
	SettleDelay  time.Duration `toml:"settle_delay" mapstructure:"settle_delay"`
	StopTimeout  time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`
	JoinTimeout  time.Duration `toml:"join_timeout" mapstructure:"join_timeout"`
	WorkerSettle time.Duration `toml:"worker_settle" mapstructure:"worker_settle"`
}

// Config is the immutable top-level configuration, loaded once at
// construction and read-only thereafter.
type Config struct {
	Switches     []Switch      `toml:"switches" mapstructure:"switches"`
	Compiler     Compiler      `toml:"compiler" mapstructure:"compiler"`
	Topology     Topology      `toml:"topology" mapstructure:"topology"`
	Worker       Worker        `toml:"worker" mapstructure:"worker"`
	API          API           `toml:"api" mapstructure:"api"`
	Monitoring   Monitoring    `toml:"monitoring" mapstructure:"monitoring"`
	Export       Export        `toml:"export" mapstructure:"export"`
	Database     Database      `toml:"database" mapstructure:"database"`
	Traffic      Traffic       `toml:"traffic" mapstructure:"traffic"`
	Admin        Admin         `toml:"admin" mapstructure:"admin"`
	Orchestrator Orchestrator  `toml:"orchestrator" mapstructure:"orchestrator"`
	Log          logger.Config `toml:"log" mapstructure:"log"`
}

// Default returns a Config with every knob at its documented default.
func Default() *Config {
	return &Config{
		Compiler: Compiler{
			Bin:         "p4c",
			Source:      "p4_programs/dpi_l2_l4.p4",
			P4InfoFile:  "p4_programs/dpi_l2_l4.p4info.txt",
			RuntimeFile: "p4_programs/dpi_l2_l4.json",
		},
		Topology: Topology{SettleDelay: 10 * time.Second},
		Worker:   Worker{Command: "dpistack-worker"},
		API:      API{Command: "dpistack-api", Host: "0.0.0.0", Port: 5000},
		Monitoring: Monitoring{
			Interval:   10 * time.Second,
			HealthFile: "logs/health_status.json",
		},
		Export: Export{
			Command:      "dpistack export",
			InitialDelay: 20 * time.Second,
			OutDir:       "logs",
		},
		Database: Database{Driver: "sqlite", DSN: "logs/packets.db"},
		Traffic:  Traffic{Interval: time.Second},
		Admin:    Admin{Listen: "127.0.0.1:9400"},
		Orchestrator: Orchestrator{
			SettleDelay:  2 * time.Second,
			StopTimeout:  5 * time.Second,
			JoinTimeout:  5 * time.Second,
			WorkerSettle: 3 * time.Second,
		},
		Log: logger.Config{Dir: "logs", Level: "info"},
	}
}

// Load reads path with viper into a Config on top of defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the system assumes.
func (c *Config) Validate() error {
	if c.Compiler.Bin == "" {
		return errors.New("compiler.bin must not be empty")
	}
	if c.Compiler.Source == "" {
		return errors.New("compiler.source must not be empty")
	}
	if c.Database.Driver == "" {
		return errors.New("database.driver must not be empty")
	}
	if c.Monitoring.Interval <= 0 {
		return errors.New("monitoring.stats_interval must be positive")
	}
	seen := make(map[string]bool, len(c.Switches))
	for i, sw := range c.Switches {
		if sw.Name == "" {
			return fmt.Errorf("switches[%d]: name must not be empty", i)
		}
		if seen[sw.Name] {
			return fmt.Errorf("switches[%d]: duplicate switch name %q", i, sw.Name)
		}
		seen[sw.Name] = true
		if sw.GRPCPort <= 0 {
			return fmt.Errorf("switch %q: grpc_port must be positive", sw.Name)
		}
	}
	return nil
}

// SwitchDefaults fills per-switch file paths from the compiler section when
// a switch entry leaves them empty.
func (c *Config) SwitchDefaults() {
	for i := range c.Switches {
		if c.Switches[i].P4InfoFile == "" {
			c.Switches[i].P4InfoFile = c.Compiler.P4InfoFile
		}
		if c.Switches[i].RuntimeFile == "" {
			c.Switches[i].RuntimeFile = c.Compiler.RuntimeFile
		}
	}
}
