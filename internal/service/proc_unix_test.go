//go:build !windows

package service_test

import (
	"bytes"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// alive reports if pid runs. Zombies count as dead, nobody may reap them
// inside a container without an init process.
func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	if errors.Is(err, unix.ESRCH) {
		return false
	}
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		// no procfs, rely on the signal
		return true
	}
	// pid (comm) state ...
	idx := bytes.LastIndexByte(stat, ')')
	if idx < 0 || idx+2 >= len(stat) {
		return true
	}
	return stat[idx+2] != 'Z'
}

func requireDead(t *testing.T, pid int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !alive(pid)
	}, 5*time.Second, 20*time.Millisecond, "process %d still runs", pid)
}
