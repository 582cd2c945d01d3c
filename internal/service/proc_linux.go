//go:build linux

package service

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// awaitExit blocks until p exits, but leaves it for cmd.Wait to reap, so its
// pid and process group can't be reused meanwhile.
func awaitExit(p *os.Process) error {
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, p.Pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}
