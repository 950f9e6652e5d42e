//go:build unix

package script

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts the script in its own process group and makes
// cancellation kill the whole group, so children such as easyrsa or openssl
// cannot outlive a timeout.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
