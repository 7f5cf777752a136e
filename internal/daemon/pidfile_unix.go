//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
)

// IsRunning reports the recorded PID and whether that process is alive.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	// Signal 0 probes for the process without delivering anything.
	return pid, syscall.Kill(pid, 0) == nil
}

// Stop asks the recorded server to shut down with SIGTERM, letting it
// drain requests and release the file. force sends SIGKILL instead.
func (p *PIDFile) Stop(force bool) (int, error) {
	pid, running := p.IsRunning()
	if !running {
		return pid, ErrNotRunning
	}
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return pid, fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return pid, nil
}
