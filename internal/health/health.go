// Package health defines the point-in-time component status snapshot the
// monitor persists for external inspection.
package health

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Component states as written to the health file.
const (
	StateRunning = "running"
	StateStopped = "stopped"
)

// Fixed component set; the snapshot schema stays stable across runs even
// when a collaborator never came up.
const (
	ComponentController       = "controller"
	ComponentPacketLogger     = "packet_logger"
	ComponentTrafficGenerator = "traffic_generator"
	ComponentTopology         = "topology"
)

// Components lists every component that appears in a snapshot.
var Components = []string{
	ComponentController,
	ComponentPacketLogger,
	ComponentTrafficGenerator,
	ComponentTopology,
}

// Snapshot is one health record. Timestamp is ISO-8601.
type Snapshot struct {
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// NewSnapshot returns a snapshot stamped now with every component stopped.
func NewSnapshot() Snapshot {
	s := Snapshot{
		Timestamp:  time.Now().Format(time.RFC3339),
		Components: make(map[string]string, len(Components)),
	}
	for _, c := range Components {
		s.Components[c] = StateStopped
	}
	return s
}

// Set marks one component's state.
func (s Snapshot) Set(component string, running bool) {
	if running {
		s.Components[component] = StateRunning
	} else {
		s.Components[component] = StateStopped
	}
}

// Write overwrites the health file at path with s. Each write fully
// replaces the previous snapshot; no history is kept.
func Write(path string, s Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// Read loads the snapshot currently persisted at path.
func Read(path string) (Snapshot, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- operator-configured path
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
