package tui_test

import (
	"testing"

	"github.com/deck-run/deck/foreground"
	"github.com/deck-run/deck/process"
	"github.com/deck-run/deck/supervisor"
	"github.com/deck-run/deck/tui"
)

func TestPollAndRender_NoPanicOnEmptySupervisor(t *testing.T) {
	sup := supervisor.New(nil)
	d := foreground.New(sup, tui.New())
	ui := tui.New()
	ui.PollAndRender(d)
}

func TestPollAndRender_NoPanicWithProcesses(t *testing.T) {
	p := process.New("a", "echo hi")
	sup := supervisor.New([]*process.Process{p})
	d := foreground.New(sup, tui.New())

	if err := p.Spawn(); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	defer p.Kill()

	ui := tui.New()
	// Drive a few ticks; under a non-TTY test runner stdin handling is
	// disabled, so this only exercises rendering, not key dispatch.
	for i := 0; i < 3; i++ {
		ui.PollAndRender(d)
	}
	ui.Close()
}
