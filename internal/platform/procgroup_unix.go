//go:build !windows

package platform

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup places the child in its own process group so that
// cancellation takes down yt-dlp together with any helper it spawned, such
// as an ffmpeg merge step.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
