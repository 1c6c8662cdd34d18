package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/deck-run/deck/session"
)

// DetachEnvVar, when set to "1" in a re-exec'd child's environment,
// tells cmd/deck to call Run directly instead of re-entering Start.
// This is the Go-idiomatic stand-in for a POSIX fork: the Go runtime's
// multithreading makes a bare fork(2) unsafe, so daemonizing instead
// re-execs the same binary and detaches it into a new session.
const DetachEnvVar = "DECK_DAEMON_CHILD"

// Start launches a detached daemon child for layout by re-executing the
// current binary (as located by os.Executable) with args, after marking the child via
// DetachEnvVar. The child is placed in a new session
// (Setsid) so it is disassociated from the controlling terminal, per
// spec.md §4.5 step a. Start returns once the child process exists; it
// does not wait for the child to finish starting up its own processes.
func Start(layout session.Layout, args []string) (int, error) {
	running, _, err := layout.IsRunning()
	if err != nil {
		return 0, fmt.Errorf("checking existing daemon: %w", err)
	}
	if running {
		return 0, ErrAlreadyRunning
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locating executable: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), DetachEnvVar+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting daemon: %w", err)
	}
	// The daemon child owns its own lifetime from here; the parent
	// does not wait for it; reaping it would race the child's own
	// supervision of its grandchildren.
	if err := cmd.Process.Release(); err != nil {
		return 0, fmt.Errorf("releasing daemon child: %w", err)
	}
	return cmd.Process.Pid, nil
}

// Stop implements spec.md §4.5's stop path: read daemon.pid, send
// SIGTERM. If the process is already gone, the stale PID file is
// unlinked and ErrNotRunning is returned; otherwise the daemon is
// trusted to clean up after itself.
func Stop(layout session.Layout) error {
	pid, err := layout.ReadPid()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotRunning
		}
		return fmt.Errorf("reading pid file: %w", err)
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			_ = layout.RemovePidFile()
			return ErrNotRunning
		}
		return fmt.Errorf("signaling daemon pid %d: %w", pid, err)
	}
	return nil
}
