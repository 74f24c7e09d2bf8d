//go:build windows

package platform

import "os/exec"

// configureProcessGroup is a no-op on Windows; the context kills the child
// process directly.
func configureProcessGroup(cmd *exec.Cmd) {}
