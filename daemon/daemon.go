// Package daemon implements the background driver: detaching from the
// controlling terminal, persisting per-process logs and a PID file, and
// tearing everything down cleanly on SIGTERM/SIGINT. It is the
// headless counterpart of the interactive foreground driver.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deck-run/deck/session"
	"github.com/deck-run/deck/supervisor"
)

// pollInterval is the idle sleep between drain cycles when no bytes
// flowed, matching spec.md §4.5's 50 ms daemon poll.
const pollInterval = 50 * time.Millisecond

// internalLogName is the daemon's own diagnostic log, kept separate
// from the raw per-process capture files in logs/.
const internalLogName = "daemon-internal.log"

var (
	// ErrAlreadyRunning is returned by Run when the session's
	// daemon.pid names a live process.
	ErrAlreadyRunning = errors.New("daemon already running for this session")
	// ErrNotRunning is returned by Stop (package-level) when no live
	// daemon is found for the session.
	ErrNotRunning = errors.New("daemon is not running for this session")
)

// Daemon is one running background supervisor: its session layout, the
// processes it owns, the open per-process log files, and its own
// diagnostic logger.
type Daemon struct {
	layout  session.Layout
	sup     *supervisor.Supervisor
	logger  *zap.SugaredLogger
	logFile *os.File

	procLogs       map[string]*os.File
	terminalLogged map[string]bool
	stopRequested  atomic.Bool
}

// New builds a Daemon for the given session layout and process set. It
// creates the session directory and opens the daemon's own diagnostic
// log, but does not spawn anything yet; call Run for that.
func New(layout session.Layout, sup *supervisor.Supervisor) (*Daemon, error) {
	if err := layout.EnsureDir(); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(filepath.Join(layout.Dir, internalLogName),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening daemon log: %w", err)
	}

	logger := newLogger(logFile)

	return &Daemon{
		layout:         layout,
		sup:            sup,
		logger:         logger,
		logFile:        logFile,
		procLogs:       make(map[string]*os.File),
		terminalLogged: make(map[string]bool),
	}, nil
}

// newLogger wires a zap logger writing structured JSON lines to f. This
// is the daemon's own operational log, distinct from the raw captured
// child output flushNewLines writes to logs/<name>.log.
func newLogger(f *os.File) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel)
	return zap.New(core).Sugar()
}

// Run executes the full daemon lifecycle described in spec.md §4.5
// steps a-f: check-and-fail-if-running, write the PID file, open
// per-process log files, install signal handlers, spawn everything, and
// drive the drain loop until stop_requested or every process has
// terminated, then clean up.
//
// Run is expected to be called from an already-detached child (the
// caller performs the fork/session-leader dance before invoking Run);
// Run itself only owns the parts spec.md assigns to the engine, not to
// process detachment.
func (d *Daemon) Run() error {
	defer d.logFile.Close()

	running, _, err := d.layout.IsRunning()
	if err != nil {
		return fmt.Errorf("checking existing daemon: %w", err)
	}
	if running {
		return ErrAlreadyRunning
	}

	if err := d.layout.WritePid(os.Getpid()); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	d.logger.Infow("daemon starting", "pid", os.Getpid(), "session_dir", d.layout.Dir)

	if err := d.openProcessLogs(); err != nil {
		_ = d.layout.RemovePidFile()
		return err
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		d.logger.Infow("received signal, requesting stop", "signal", sig.String())
		d.stopRequested.Store(true)
	}()

	if err := d.sup.SpawnAll(); err != nil {
		d.logger.Errorw("spawn failed, tearing down", "error", err)
		d.cleanup()
		return fmt.Errorf("spawning processes: %w", err)
	}
	for _, p := range d.sup.Processes() {
		d.logger.Infow("process spawned", "name", p.Name)
	}

	d.loop()
	d.cleanup()
	return nil
}

// loop is the cooperative drain loop: while not stopped and at least
// one process is alive, drain everything once, append freshly drained
// text to each process's log file, and sleep pollInterval if nothing
// flowed.
func (d *Daemon) loop() {
	for !d.stopRequested.Load() && d.sup.AnyAlive() {
		before := make(map[string]int, d.sup.Len())
		for _, p := range d.sup.Processes() {
			before[p.Name] = p.Log.Len()
		}

		any := d.sup.ReadAll()
		d.flushNewLines(before)
		d.logTransitions()

		if !any {
			time.Sleep(pollInterval)
		}
	}
}

// flushNewLines appends to each process's on-disk log file the lines
// committed since `before` was snapshotted, writing raw bytes with no
// timestamps or prefixing, matching spec.md §6.3.
//
// Per spec.md §4.5, a write failure here is swallowed: losing log bytes
// is preferred to crashing the supervisor.
func (d *Daemon) flushNewLines(before map[string]int) {
	for _, p := range d.sup.Processes() {
		f := d.procLogs[p.Name]
		if f == nil {
			continue
		}
		chunk := p.Log.TextRange(before[p.Name], p.Log.Len())
		if len(chunk) == 0 {
			continue
		}
		if _, err := f.Write(chunk); err != nil {
			d.logger.Debugw("log write failed, dropping bytes", "process", p.Name, "error", err)
		}
	}
}

// logTransitions emits one diagnostic line the first time each process
// is observed in a terminal state, using terminalLogged to avoid
// repeating the line on every later poll.
func (d *Daemon) logTransitions() {
	for _, p := range d.sup.Processes() {
		if p.IsAlive() || d.terminalLogged[p.Name] {
			continue
		}
		d.terminalLogged[p.Name] = true
		code, _ := p.ExitCode()
		d.logger.Infow("process terminated", "name", p.Name, "status", p.Status().String(), "exit_code", code)
	}
}

// cleanup performs spec.md §4.5 step f: kill everything, delete the
// per-process log files, delete the PID file.
func (d *Daemon) cleanup() {
	d.logger.Infow("daemon stopping, killing all processes")
	d.sup.KillAll()

	for name, f := range d.procLogs {
		_ = f.Close()
		if err := os.Remove(d.layout.LogFile(name)); err != nil && !os.IsNotExist(err) {
			d.logger.Debugw("failed to remove log file", "process", name, "error", err)
		}
	}

	if err := d.layout.RemovePidFile(); err != nil {
		d.logger.Warnw("failed to remove pid file", "error", err)
	}
	d.logger.Infow("daemon stopped")
}

// openProcessLogs creates (truncating) one raw log file per supervised
// process.
func (d *Daemon) openProcessLogs() error {
	for _, p := range d.sup.Processes() {
		f, err := os.OpenFile(d.layout.LogFile(p.Name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file for %q: %w", p.Name, err)
		}
		d.procLogs[p.Name] = f
	}
	return nil
}

// Stop requests the daemon's own loop to exit, as if a termination
// signal had been received. It is exported so an in-process embedder
// (primarily tests) can trigger a clean shutdown without sending a real
// signal.
func (d *Daemon) Stop() {
	d.stopRequested.Store(true)
}
