//go:build unix

package executor

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}

		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}

func cleanupProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	// the group outlives its leader while any child is still running
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
