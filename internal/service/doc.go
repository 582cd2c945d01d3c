// Package service implements supervision of a single dev server subprocess.
//
// Overview
// A DevServer owns one session: it starts a process through a Runner,
// consumes its events in a single event loop, discovers the URL the dev
// server listens on and kills the process tree when stopped.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - starts the process in its own process group
//   - keeps stdin open for the whole life of the process
//   - reads stdout and stderr line by line (one goroutine each)
//   - exposes an ordered channel of Event values
//
// Data flow:
//
//	host app              DevServer                 Runner{cmd}
//	    |                     |                          |
//	    | Start() ----------->| Start() ---------------->| os/exec.Start
//	    |                     |<------ EventStarted -----|
//	    |                     |<------ EventStdout ------| classify.URL, first hit
//	    |<-- WaitUntilReady --|                          |   closes the ready gate
//	    |                     |<------ EventStderr ------|
//	    | Stop() ------------>| kill(-pgid) ------------>|
//	    |                     |<------ EventExited ------| cmd.Wait
//	    |<-- Wait/Done -------|                          |
//
// Invariants:
//   - The URL and the ready signal change together and only once.
//   - Only stdout lines containing classify.Marker are classified.
//   - Cancellation is not an error, Wait returns nil after Stop.
//   - A session is never restarted, a new one needs NewDevServer.
//   - A session ending without an URL releases WaitUntilReady with
//     ErrExitedNotReady.
package service
