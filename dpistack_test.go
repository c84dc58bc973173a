package dpistack

import (
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("default driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestNewOrchestrator(t *testing.T) {
	o := New(DefaultConfig())
	if o == nil {
		t.Fatal("New returned nil")
	}
	if o.Running() {
		t.Fatal("fresh orchestrator reports running")
	}
	if len(o.Processes()) != 0 {
		t.Fatal("fresh orchestrator tracks processes")
	}
	o.Stop() // no-op before start
}

func TestSetupLogging(t *testing.T) {
	closeFn, err := SetupLogging(LogConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("setup logging: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
