package proc

import (
	"os/exec"

	"github.com/dpistack/dpistack/internal/logger"
)

// Spec describes an external process to be launched and tracked.
type Spec struct {
	Name    string   `json:"name"`
	Command string   `json:"command"` // executable; may contain leading args ("python3 worker.py")
	Args    []string `json:"args"`    // appended to Command's fields
	WorkDir string   `json:"work_dir,omitempty"`
	Env     []string `json:"env,omitempty"` // optional extra env (KEY=VALUE)
	Log     logger.Config
}

// buildCommand constructs an *exec.Cmd from Command plus Args.
func (s *Spec) buildCommand() *exec.Cmd {
	argv := splitCommand(s.Command)
	argv = append(argv, s.Args...)
	// ok: intentional execution of an operator-configured command
	// #nosec G204
	cmd := exec.Command(argv[0], argv[1:]...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}
	return cmd
}

func splitCommand(s string) []string {
	fields := fieldsQuoted(s)
	if len(fields) == 0 {
		return []string{"/bin/true"}
	}
	return fields
}

// fieldsQuoted splits on spaces while honoring single/double quoted segments,
// enough for commands like `sh -c 'sleep 1'` in config files.
func fieldsQuoted(s string) []string {
	var out []string
	var cur []rune
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur = append(cur, r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t':
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
		default:
			cur = append(cur, r)
		}
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
