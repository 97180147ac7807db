//go:build windows

package executor

import "os/exec"

// setProcessGroup is a no-op on Windows; CommandContext kills the
// spawned process directly.
func setProcessGroup(cmd *exec.Cmd) {}
