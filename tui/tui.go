// Package tui is the bundled default implementation of the foreground
// driver's UI-collaborator contract (spec.md §6.2). It is deliberately
// thin: spec.md treats the TUI as an external collaborator and only
// specifies the contract it consumes, not its keybindings, layout, or
// rendering — those choices here exist only so `deck` is runnable end
// to end without a user supplying their own front end.
//
// Rendering follows the teacher's renderer.RenderScreen shape (clear
// screen, header line per process, indented body, footer hint),
// generalized from the teacher's single always-visible-process layout
// to one-pane-at-a-time with a tab strip, since spec.md's log panes are
// switchable rather than all shown at once.
package tui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/deck-run/deck/foreground"
	"github.com/deck-run/deck/process"
	"github.com/deck-run/deck/supervisor"
)

// visibleBodyLines caps how many log lines are drawn per render, so a
// process with thousands of buffered lines doesn't blow past the
// terminal height.
const visibleBodyLines = 30

// TUI is the bundled UI. It owns pane-selection and scroll state; the
// driver never inspects or mutates it directly (spec.md's contract runs
// the other way: the UI inspects the driver's Supervisor).
type TUI struct {
	selected    int
	scrollOff   map[string]int
	scrolledOff map[string]bool // true once the user has scrolled away from the bottom
	out         *os.File
	keys        chan byte
	rawRestore  func()
	initialized bool
}

// New builds a TUI that reads keys from stdin and renders to stdout.
// If stdin is not a TTY, key handling is disabled and the TUI only
// renders (useful for tests and non-interactive environments).
func New() *TUI {
	return &TUI{
		scrollOff:   make(map[string]int),
		scrolledOff: make(map[string]bool),
		out:         os.Stdout,
	}
}

// PollAndRender implements foreground.UI: it drains any pending
// keypress (non-blocking), applies it, and redraws the selected pane.
func (t *TUI) PollAndRender(ctrl foreground.Controller) {
	t.ensureStarted()

	sup := ctrl.Supervisor()
	if sup.Len() == 0 {
		return
	}
	if t.selected >= sup.Len() {
		t.selected = sup.Len() - 1
	}

	select {
	case k := <-t.keys:
		t.handleKey(k, ctrl)
	default:
	}

	t.render(sup)
}

// Close restores the terminal to its original mode, if it was changed.
// cmd/deck calls this once on exit via a defer.
func (t *TUI) Close() {
	if t.rawRestore != nil {
		t.rawRestore()
		t.rawRestore = nil
	}
}

// ensureStarted puts the terminal into raw mode and starts the
// background stdin reader the first time PollAndRender is called. It
// is idempotent.
func (t *TUI) ensureStarted() {
	if t.initialized {
		return
	}
	t.initialized = true

	t.keys = make(chan byte, 16)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}

	prev, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err == nil {
		t.rawRestore = func() { _ = term.Restore(int(os.Stdin.Fd()), prev) }
	}

	go func() {
		r := bufio.NewReader(os.Stdin)
		for {
			b, err := r.ReadByte()
			if err != nil {
				return
			}
			select {
			case t.keys <- b:
			default:
				// Drop the keystroke rather than block; the UI is
				// allowed to be lossy under event pressure per
				// spec.md's non-blocking event-retrieval contract.
			}
		}
	}()
}

// handleKey applies one keystroke. Digits 1-9 select a pane directly;
// tab cycles forward; j/u/d scroll the selected pane a line/page-up/
// page-down and disable auto-scroll until it reaches the bottom again;
// r/k/q invoke the driver actions spec.md §6.2 names.
func (t *TUI) handleKey(k byte, ctrl foreground.Controller) {
	sup := ctrl.Supervisor()
	switch {
	case k >= '1' && k <= '9':
		idx := int(k - '1')
		if idx < sup.Len() {
			t.selected = idx
		}
	case k == '\t':
		t.selected = (t.selected + 1) % sup.Len()
	case k == 'q' || k == 0x03: // ctrl+c
		ctrl.Quit()
	case k == 'r':
		if p := t.selectedProcess(sup); p != nil {
			_ = ctrl.Restart(p.Name)
		}
	case k == 'k':
		if p := t.selectedProcess(sup); p != nil {
			ctrl.Kill(p.Name)
		}
	case k == 'j': // scroll down
		t.scroll(sup, 1)
	case k == 'u': // scroll up (pgup-style, avoids needing escape sequences)
		t.scroll(sup, -visibleBodyLines)
	case k == 'd':
		t.scroll(sup, visibleBodyLines)
	}
}

func (t *TUI) selectedProcess(sup *supervisor.Supervisor) *process.Process {
	procs := sup.Processes()
	if t.selected < 0 || t.selected >= len(procs) {
		return nil
	}
	return procs[t.selected]
}

func (t *TUI) scroll(sup *supervisor.Supervisor, delta int) {
	p := t.selectedProcess(sup)
	if p == nil {
		return
	}
	base := t.scrollOff[p.Name]
	if !t.scrolledOff[p.Name] {
		// Auto-scroll is showing the bottom; scroll relative to that view.
		base = p.Log.Len() - visibleBodyLines
	}
	off := base + delta
	if off < 0 {
		off = 0
	}
	max := p.Log.Len() - visibleBodyLines
	if max < 0 {
		max = 0
	}
	if off >= max {
		// Scrolled (back) to the bottom: resume auto-scroll.
		off = max
		t.scrolledOff[p.Name] = false
	} else {
		t.scrolledOff[p.Name] = true
	}
	t.scrollOff[p.Name] = off
}

// render redraws the header tab strip and the selected pane's body,
// following the teacher's clear-screen-then-redraw full render shape.
func (t *TUI) render(sup *supervisor.Supervisor) {
	fmt.Fprint(t.out, "\x1b[H\x1b[2J")

	var tabs []string
	for i, p := range sup.Processes() {
		marker := " "
		if i == t.selected {
			marker = ">"
		}
		tabs = append(tabs, fmt.Sprintf("%s%d:%s[%s]", marker, i+1, p.Name, p.Status().String()))
	}
	fmt.Fprintln(t.out, strings.Join(tabs, "  "))
	fmt.Fprintln(t.out, strings.Repeat("-", 40))

	p := t.selectedProcess(sup)
	if p == nil {
		return
	}
	start := t.scrollOff[p.Name]
	if !t.scrolledOff[p.Name] {
		// Auto-scroll: always show the most recent lines.
		if max := p.Log.Len() - visibleBodyLines; max > 0 {
			start = max
		} else {
			start = 0
		}
	}
	for _, line := range p.Log.Snapshot()[clampStart(start, p.Log.Len()):] {
		fmt.Fprintln(t.out, string(line.Text))
	}

	fmt.Fprintln(t.out, strings.Repeat("-", 40))
	fmt.Fprintln(t.out, "tab/1-9 switch pane  j/u/d scroll  r restart  k kill  q quit")
}

func clampStart(start, length int) int {
	if start < 0 {
		return 0
	}
	if start > length {
		return length
	}
	return start
}
