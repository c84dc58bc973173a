package proc

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// killGrace is the window allowed for the reaper to observe exit after SIGKILL.
const killGrace = 200 * time.Millisecond

// Status is a point-in-time view of a tracked process.
type Status struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	ExitErr   string    `json:"exit_error,omitempty"`
}

// Handle owns one launched external process from launch until termination.
// A reaper goroutine waits on the process and closes waitDone when it exits,
// so Stop/Kill never race cmd.Wait.
type Handle struct {
	mu        sync.Mutex
	spec      Spec
	cmd       *exec.Cmd
	status    Status
	waitDone  chan struct{}
	outCloser io.WriteCloser
	errCloser io.WriteCloser
}

// Launch starts the process described by spec and begins reaping it.
func Launch(spec Spec) (*Handle, error) {
	cmd := spec.buildCommand()
	configureSysProcAttr(cmd)

	h := &Handle{spec: spec, waitDone: make(chan struct{})}
	if spec.Log.Dir != "" {
		if err := os.MkdirAll(spec.Log.Dir, 0o750); err == nil {
			h.outCloser, h.errCloser = spec.Log.ChildWriters(spec.Name)
		}
	}
	if h.outCloser != nil {
		cmd.Stdout = h.outCloser
	} else {
		cmd.Stdout, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	if h.errCloser != nil {
		cmd.Stderr = h.errCloser
	} else {
		cmd.Stderr, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}

	if err := cmd.Start(); err != nil {
		h.closeWriters()
		return nil, err
	}
	h.cmd = cmd
	h.status = Status{
		Name:      spec.Name,
		PID:       cmd.Process.Pid,
		Running:   true,
		StartedAt: time.Now(),
	}
	go h.reap()
	return h, nil
}

// reap waits for the process to exit and finalizes state.
func (h *Handle) reap() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.status.Running = false
	h.status.StoppedAt = time.Now()
	if err != nil {
		h.status.ExitErr = err.Error()
	}
	close(h.waitDone)
	h.mu.Unlock()
	h.closeWriters()
}

func (h *Handle) closeWriters() {
	h.mu.Lock()
	out, errw := h.outCloser, h.errCloser
	h.outCloser, h.errCloser = nil, nil
	h.mu.Unlock()
	if out != nil {
		_ = out.Close()
	}
	if errw != nil {
		_ = errw.Close()
	}
}

// Name returns the logical name the handle was launched under.
func (h *Handle) Name() string { return h.spec.Name }

// Spec returns a copy of the launch spec (command and arguments included).
func (h *Handle) Spec() Spec {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.spec
}

// PID returns the OS process id.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status.PID
}

// Alive reports whether the process has not yet been reaped.
func (h *Handle) Alive() bool {
	select {
	case <-h.waitDone:
		return false
	default:
		return true
	}
}

// Snapshot returns a copy of the current status.
func (h *Handle) Snapshot() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Stop requests graceful termination of the process group and waits up to
// wait for exit; it escalates to SIGKILL when the deadline passes.
// It reports whether escalation was required.
func (h *Handle) Stop(wait time.Duration) (killed bool) {
	if !h.Alive() {
		return false
	}
	pid := h.PID()
	terminateGroup(pid)
	select {
	case <-h.waitDone:
		return false
	case <-time.After(wait):
	}
	killGroup(pid)
	select {
	case <-h.waitDone:
	case <-time.After(killGrace):
		// best-effort; the reaper will finish once the kernel reaps it
	}
	return true
}

// Kill forcibly terminates the process group without a graceful phase.
func (h *Handle) Kill() {
	if !h.Alive() {
		return
	}
	killGroup(h.PID())
	select {
	case <-h.waitDone:
	case <-time.After(killGrace):
	}
}
