// Package compile runs the P4 compiler once at startup. It is the single
// unconditionally fatal step: nothing downstream can function without the
// compiled artifact.
package compile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dpistack/dpistack/internal/config"
)

// ErrCompilerNotFound distinguishes a missing toolchain from a failed
// compilation.
var ErrCompilerNotFound = errors.New("p4 compiler not found")

// Run verifies the compiler is reachable, compiles cfg.Source for the
// bmv2/v1model/p4_16 target requesting P4Runtime info generation, and
// relocates the produced JSON artifact to cfg.RuntimeFile.
func Run(ctx context.Context, cfg config.Compiler) error {
	bin, err := exec.LookPath(cfg.Bin)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrCompilerNotFound, cfg.Bin)
	}

	args := []string{
		"--target", "bmv2",
		"--arch", "v1model",
		"--p4runtime-files", cfg.P4InfoFile,
		"--std", "p4_16",
		cfg.Source,
	}
	slog.Info("compiling P4 program", "compiler", bin, "source", cfg.Source)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 -- operator-configured toolchain
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("p4 compilation failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	if err := relocateArtifact(cfg); err != nil {
		return fmt.Errorf("relocate compiled artifact: %w", err)
	}
	slog.Info("P4 program compiled", "runtime_json", cfg.RuntimeFile)
	return nil
}

// relocateArtifact moves the JSON the compiler drops in the working
// directory to its expected path. Nothing to do when the compiler already
// wrote it in place.
func relocateArtifact(cfg config.Compiler) error {
	base := strings.TrimSuffix(filepath.Base(cfg.Source), filepath.Ext(cfg.Source)) + ".json"
	if base == filepath.Base(cfg.RuntimeFile) && sameDir(base, cfg.RuntimeFile) {
		return nil
	}
	if _, err := os.Stat(base); err != nil {
		// compiler wrote directly to the target, or produced nothing extra
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.RuntimeFile), 0o750); err != nil {
		return err
	}
	return os.Rename(base, cfg.RuntimeFile)
}

func sameDir(produced, target string) bool {
	pa, err1 := filepath.Abs(filepath.Dir(produced))
	ta, err2 := filepath.Abs(filepath.Dir(target))
	return err1 == nil && err2 == nil && pa == ta
}
