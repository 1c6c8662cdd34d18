// Package foreground implements the interactive driver: a cooperative
// loop that interleaves draining supervised processes with servicing a
// pluggable UI. It defines the UI-collaborator contract from spec.md
// §6.2 and leaves keybindings, layout, and rendering entirely to the
// UI implementation it is handed — the default one lives in package
// tui, but any type satisfying UI can be substituted.
package foreground

import (
	"fmt"
	"time"

	"github.com/deck-run/deck/process"
	"github.com/deck-run/deck/supervisor"
)

// pollInterval is the idle sleep between drain cycles when nothing
// flowed, matching spec.md §5's 16 ms foreground poll.
const pollInterval = 16 * time.Millisecond

// Controller is what a UI is allowed to do to the driver: read the
// supervised processes, and invoke the three actions spec.md §6.2
// names (quit, restart(selected), kill(selected)). The engine makes no
// re-entrancy guarantees beyond single-threaded cooperative — a UI must
// only call these from within PollAndRender.
type Controller interface {
	Supervisor() *supervisor.Supervisor
	Restart(name string) error
	Kill(name string)
	Quit()
}

// UI is the external collaborator spec.md §1/§6.2 describes: it renders
// whatever it wants from Controller.Supervisor() and may poll for and
// react to user input, calling back into ctrl as needed. PollAndRender
// is called once per driver tick and must not block — UI event
// retrieval is non-blocking by contract (spec.md §5).
type UI interface {
	PollAndRender(ctrl Controller)
}

// Driver is the foreground driver. It owns the Supervisor exclusively
// and is the sole implementation of Controller.
type Driver struct {
	sup  *supervisor.Supervisor
	ui   UI
	quit bool
}

// New builds a Driver over sup, to be serviced by ui.
func New(sup *supervisor.Supervisor, ui UI) *Driver {
	return &Driver{sup: sup, ui: ui}
}

// Supervisor implements Controller.
func (d *Driver) Supervisor() *supervisor.Supervisor { return d.sup }

// Restart implements Controller: restarts the named process, or
// reports an error if no process with that name exists.
func (d *Driver) Restart(name string) error {
	p := d.sup.ByName(name)
	if p == nil {
		return fmt.Errorf("restart: no such process %q", name)
	}
	return p.Restart()
}

// Kill implements Controller: kills the named process. A missing name
// is a silent no-op, since a UI may race a process's own natural exit
// with a user-triggered kill of the same pane.
func (d *Driver) Kill(name string) {
	if p := d.sup.ByName(name); p != nil {
		p.Kill()
	}
}

// Quit implements Controller: requests the driver's loop to exit at the
// next tick boundary.
func (d *Driver) Quit() { d.quit = true }

// Run spawns every process and drives the drain/UI loop until the user
// quits or every process has reached a terminal state, then kills
// anything still running and returns a process exit code: 0 if every
// process that ran exited cleanly, 1 otherwise. This mirrors the
// teacher's runner.Run aggregate-exit-code contract, generalized to the
// four-state process.Status this module uses in place of a plain error.
func (d *Driver) Run() int {
	if err := d.sup.SpawnAll(); err != nil {
		d.sup.KillAll()
		return 1
	}

	for !d.quit && d.sup.AnyAlive() {
		any := d.sup.ReadAll()
		d.ui.PollAndRender(d)
		if !any {
			time.Sleep(pollInterval)
		}
	}
	d.sup.KillAll()

	return exitCode(d.sup)
}

// exitCode aggregates per-process status into the process's overall
// exit code, matching the teacher's renderer.ExitCodeFromStates
// contract: 0 only if every process ended Exited, never Crashed.
func exitCode(sup *supervisor.Supervisor) int {
	for _, p := range sup.Processes() {
		if p.Status() == process.Crashed {
			return 1
		}
	}
	return 0
}
