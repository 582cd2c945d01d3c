//go:build !linux

package service

import "os"

// awaitExit is a no-op, cmd.Wait both waits and reaps here.
func awaitExit(_ *os.Process) error {
	return nil
}
