//go:build !unix

package sweep

import "os/exec"

// killProcessGroup is a no-op where process groups are unavailable;
// cancellation kills only the direct child and WaitDelay bounds the wait.
func killProcessGroup(cmd *exec.Cmd) {}
