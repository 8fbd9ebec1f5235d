//go:build unix

package build

import (
	"os/exec"
	"syscall"
)

// killGroup runs the tool in its own process group and kills the whole group
// on cancellation, so RUN steps spawned by the tool die with it.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
