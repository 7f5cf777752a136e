//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// IsRunning reports the recorded PID and whether that process is alive.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	return pid, proc.Signal(syscall.Signal(0)) == nil
}

// Stop terminates the recorded server. Windows cannot deliver SIGTERM to
// another process, so force is implied and the PID file may be left behind
// for the next Acquire to replace.
func (p *PIDFile) Stop(force bool) (int, error) {
	pid, running := p.IsRunning()
	if !running {
		return pid, ErrNotRunning
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return pid, fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return pid, nil
}
