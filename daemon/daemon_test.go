package daemon_test

import (
	"os"
	"testing"
	"time"

	"github.com/deck-run/deck/daemon"
	"github.com/deck-run/deck/process"
	"github.com/deck-run/deck/session"
	"github.com/deck-run/deck/supervisor"
)

func newTestLayout(t *testing.T) session.Layout {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	l, err := session.Resolve(t.Name())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return l
}

func TestRun_RemovesPidFileAndLogsOnExit(t *testing.T) {
	layout := newTestLayout(t)
	p := process.New("echoer", "echo hi")
	sup := supervisor.New([]*process.Process{p})

	d, err := daemon.New(layout, sup)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(layout.LogFile("echoer")); err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after the single echo process exited")
	}

	// cleanup deletes per-process logs and the pid file on exit.
	if _, err := os.Stat(layout.PidFile()); !os.IsNotExist(err) {
		t.Error("pid file still exists after Run returned")
	}
	if _, err := os.Stat(layout.LogFile("echoer")); !os.IsNotExist(err) {
		t.Error("log file still exists after Run returned")
	}
}

func TestRun_AlreadyRunning(t *testing.T) {
	layout := newTestLayout(t)
	if err := layout.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if err := layout.WritePid(os.Getpid()); err != nil {
		t.Fatalf("WritePid() error = %v", err)
	}

	p := process.New("sleeper", "sleep 5")
	sup := supervisor.New([]*process.Process{p})
	d, err := daemon.New(layout, sup)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := d.Run(); err != daemon.ErrAlreadyRunning {
		t.Fatalf("Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRun_StopCleansUpLongRunningProcess(t *testing.T) {
	layout := newTestLayout(t)
	p := process.New("sleeper", "sleep 30")
	sup := supervisor.New([]*process.Process{p})

	d, err := daemon.New(layout, sup)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(layout.PidFile()); err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	d.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Stop()")
	}

	if _, err := os.Stat(layout.PidFile()); !os.IsNotExist(err) {
		t.Error("pid file still exists after stop-triggered shutdown")
	}
}

func TestLogs_DefaultTail(t *testing.T) {
	layout := newTestLayout(t)
	if err := layout.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	f, err := os.Create(layout.LogFile("a"))
	if err != nil {
		t.Fatalf("creating log file: %v", err)
	}
	for i := 0; i < 150; i++ {
		_, _ = f.WriteString("line\n")
	}
	f.Close()

	lines, err := daemon.Logs(layout, "a", daemon.Quantifier{})
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	if len(lines) != 100 {
		t.Errorf("len(lines) = %d, want 100 (default tail)", len(lines))
	}
}

func TestLogs_Head(t *testing.T) {
	layout := newTestLayout(t)
	_ = layout.EnsureDir()
	f, _ := os.Create(layout.LogFile("a"))
	for i := 0; i < 10; i++ {
		_, _ = f.WriteString(string(rune('a'+i)) + "\n")
	}
	f.Close()

	lines, err := daemon.Logs(layout, "a", daemon.Quantifier{Head: 3})
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLogs_Full(t *testing.T) {
	layout := newTestLayout(t)
	_ = layout.EnsureDir()
	f, err := os.Create(layout.LogFile("a"))
	if err != nil {
		t.Fatalf("creating log file: %v", err)
	}
	for i := 0; i < 150; i++ {
		_, _ = f.WriteString("line\n")
	}
	f.Close()

	lines, err := daemon.Logs(layout, "a", daemon.Quantifier{Full: true})
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	if len(lines) != 150 {
		t.Errorf("len(lines) = %d, want 150 (full file, not default tail)", len(lines))
	}
}

func TestLogs_NotFound(t *testing.T) {
	layout := newTestLayout(t)
	_ = layout.EnsureDir()
	if _, err := daemon.Logs(layout, "missing", daemon.Quantifier{}); err != daemon.ErrLogNotFound {
		t.Errorf("Logs() error = %v, want ErrLogNotFound", err)
	}
}

func TestStop_NotRunning(t *testing.T) {
	layout := newTestLayout(t)
	_ = layout.EnsureDir()
	if err := daemon.Stop(layout); err != daemon.ErrNotRunning {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}
