// Package supervisor owns a fixed-size, ordered collection of
// process.Process values and drives them as a single unit: spawn them
// all, poll each one once per tick, and kill them all on shutdown.
//
// A Supervisor does not run its own goroutine or event loop; it is a
// thin fan-out helper called from the foreground or daemon driver's own
// poll loop, matching the cooperative, single-threaded model those
// drivers use instead of the teacher's goroutine-per-process engine.
package supervisor

import (
	"fmt"

	"github.com/deck-run/deck/process"
)

// Supervisor holds the processes for one session, in the order given to
// New. The set is fixed for the lifetime of the Supervisor: there is no
// AddProcess/RemoveProcess, mirroring spec.md's framing of a session as
// a fixed roster chosen at start time.
type Supervisor struct {
	procs []*process.Process
}

// New builds a Supervisor over procs. Names are not validated for
// uniqueness; keeping them unique is the caller's responsibility.
func New(procs []*process.Process) *Supervisor {
	return &Supervisor{procs: procs}
}

// Processes returns the supervised processes in display order. Callers
// (renderers, CLI lookups) may read from the returned Process values but
// must not spawn, kill or restart them outside the driver's poll loop.
func (s *Supervisor) Processes() []*process.Process {
	return s.procs
}

// ByName returns the first Process with the given name, or nil.
func (s *Supervisor) ByName(name string) *process.Process {
	for _, p := range s.procs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Len reports how many processes the Supervisor holds.
func (s *Supervisor) Len() int { return len(s.procs) }

// SpawnAll spawns every process in order, stopping at the first failure.
// Processes already spawned before the failing one are left running;
// the caller is responsible for deciding whether to kill them (the
// foreground and daemon drivers both treat a SpawnAll failure as fatal
// startup and kill everything spawned so far before exiting).
func (s *Supervisor) SpawnAll() error {
	for _, p := range s.procs {
		if err := p.Spawn(); err != nil {
			return fmt.Errorf("spawning %q: %w", p.Name, err)
		}
	}
	return nil
}

// ReadAll performs one non-blocking drain pass over every process's
// stdout and stderr. It returns true if any process produced output
// during this pass, which drivers use to decide whether to sleep before
// the next tick or loop again immediately.
func (s *Supervisor) ReadAll() bool {
	any := false
	for _, p := range s.procs {
		if p.ReadStdout() {
			any = true
		}
		if p.ReadStderr() {
			any = true
		}
	}
	return any
}

// KillAll kills every supervised process. Processes already terminated
// are left untouched (Process.Kill is idempotent).
func (s *Supervisor) KillAll() {
	for _, p := range s.procs {
		p.Kill()
	}
}

// AnyAlive reports whether at least one supervised process is still
// Running.
func (s *Supervisor) AnyAlive() bool {
	for _, p := range s.procs {
		if p.IsAlive() {
			return true
		}
	}
	return false
}

// AllTerminal reports whether every supervised process has reached a
// terminal state (Exited or Crashed). A Pending process is not terminal.
func (s *Supervisor) AllTerminal() bool {
	for _, p := range s.procs {
		if st := p.Status(); st != process.Exited && st != process.Crashed {
			return false
		}
	}
	return true
}
