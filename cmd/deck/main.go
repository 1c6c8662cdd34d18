// Command deck is a terminal process multiplexer: it runs several
// shell commands concurrently, captures and bounds their output, and
// exposes them either through an interactive TUI or as a detached
// daemon with a log-tailing companion command. See cliargs for the
// full command surface.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/deck-run/deck/cliargs"
	"github.com/deck-run/deck/daemon"
	"github.com/deck-run/deck/foreground"
	"github.com/deck-run/deck/process"
	"github.com/deck-run/deck/session"
	"github.com/deck-run/deck/supervisor"
	"github.com/deck-run/deck/tui"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, `deck - terminal process multiplexer

USAGE:
  deck [-n NAMES] [-s SESSION] CMD [CMD...]   run CMD(s), attached to a TUI
  deck start [-n NAMES] [-s SESSION] CMD...    run CMD(s) detached
  deck stop [-s SESSION]                       stop a detached session
  deck logs NAME [--head=N|--tail=N|--full] [-s SESSION]   print a process's log

-n/--names takes a comma-separated list; its length must match the
number of commands. If omitted, each name is derived from the first
whitespace-separated token of its command.
`)
}

func run() int {
	cmd, err := cliargs.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "deck:", err)
		printUsage()
		return 2
	}

	switch cmd.Kind {
	case cliargs.Foreground:
		return runForeground(cmd)
	case cliargs.Start:
		return runStart(cmd)
	case cliargs.Stop:
		return runStop(cmd)
	case cliargs.Logs:
		return runLogs(cmd)
	default:
		return 2
	}
}

func buildSupervisor(cmd cliargs.Command) *supervisor.Supervisor {
	procs := make([]*process.Process, len(cmd.Commands))
	for i, c := range cmd.Commands {
		procs[i] = process.New(cmd.Names[i], c)
	}
	return supervisor.New(procs)
}

func runForeground(cmd cliargs.Command) int {
	sup := buildSupervisor(cmd)
	ui := tui.New()
	defer ui.Close()

	d := foreground.New(sup, ui)
	return d.Run()
}

func runStart(cmd cliargs.Command) int {
	layout, err := session.Resolve(cmd.Session)
	if err != nil {
		fmt.Fprintln(os.Stderr, "deck: resolving session:", err)
		return 1
	}

	// A re-exec'd detached child carries DetachEnvVar and runs the
	// daemon directly instead of forking again.
	if os.Getenv(daemon.DetachEnvVar) == "1" {
		return runDaemonChild(layout, cmd)
	}

	pid, err := daemon.Start(layout, os.Args[1:])
	if err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "deck: daemon already running for session", layout.ID)
			return 1
		}
		fmt.Fprintln(os.Stderr, "deck: starting daemon:", err)
		return 1
	}
	fmt.Printf("deck: started session %s (pid %d)\n", layout.ID, pid)
	return 0
}

func runDaemonChild(layout session.Layout, cmd cliargs.Command) int {
	sup := buildSupervisor(cmd)
	d, err := daemon.New(layout, sup)
	if err != nil {
		return 1
	}
	if err := d.Run(); err != nil {
		return 1
	}
	return 0
}

func runStop(cmd cliargs.Command) int {
	layout, err := session.Resolve(cmd.Session)
	if err != nil {
		fmt.Fprintln(os.Stderr, "deck: resolving session:", err)
		return 1
	}
	if err := daemon.Stop(layout); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Fprintln(os.Stderr, "deck: no daemon running for session", layout.ID)
			return 1
		}
		fmt.Fprintln(os.Stderr, "deck: stopping daemon:", err)
		return 1
	}
	fmt.Printf("deck: stopped session %s\n", layout.ID)
	return 0
}

func runLogs(cmd cliargs.Command) int {
	layout, err := session.Resolve(cmd.Session)
	if err != nil {
		fmt.Fprintln(os.Stderr, "deck: resolving session:", err)
		return 1
	}
	lines, err := daemon.Logs(layout, cmd.LogName, daemon.Quantifier{Head: cmd.Quant.Head, Tail: cmd.Quant.Tail, Full: cmd.Quant.Full})
	if err != nil {
		if errors.Is(err, daemon.ErrLogNotFound) {
			fmt.Fprintln(os.Stderr, "deck: no log found for", cmd.LogName)
			return 1
		}
		fmt.Fprintln(os.Stderr, "deck: reading log:", err)
		return 1
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return 0
}

func main() {
	os.Exit(run())
}
