package process

import (
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// command abstracts process creation so tests can substitute a fake
// child without forking a real one. The production implementation
// wraps os/exec.Cmd, wiring stdout/stderr to pipes whose read ends are
// put into non-blocking mode before the child starts.
//
// This mirrors the Command/ProcessHandle seam the teacher repo uses to
// decouple the engine from os/exec, generalized here to expose
// non-blocking reader ends instead of io.ReadCloser, since the drain
// loop needs EWOULDBLOCK, not blocking Read semantics.
type command interface {
	// Start launches the child. Pipes must already be wired by the
	// factory that built this command.
	Start() error
	// Wait blocks until the child exits and reaps it.
	Wait() error
	// Handle returns the live process handle, or nil if Start has not
	// been called or the child has already been reaped.
	Handle() processHandle
	// Stdout and Stderr return the non-blocking read ends of the
	// child's output pipes.
	Stdout() nonBlockingReader
	Stderr() nonBlockingReader
}

// nonBlockingReader is a pipe read-end in non-blocking mode: Read
// returns an error for which errWouldBlock reports true (EAGAIN/
// EWOULDBLOCK) when no data is currently available instead of blocking
// the caller.
type nonBlockingReader interface {
	io.ReadCloser
}

// processHandle abstracts the signaling surface of a live child.
type processHandle interface {
	Pid() int
	// Signal sends sig to the child's entire process group, so that
	// descendants spawned by a shell (e.g. "cmd & other-cmd") are
	// reached too.
	Signal(sig syscall.Signal) error
}

// errWouldBlock reports whether err represents a non-blocking read that
// found no data yet (EAGAIN/EWOULDBLOCK are the same errno on Linux).
func errWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// execCommand is the production command backed by os/exec.
type execCommand struct {
	cmd            *exec.Cmd
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func newExecCommand(shellCommand string) (*execCommand, error) {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, err
	}
	if err := unix.SetNonblock(int(stdoutR.Fd()), true); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, err
	}
	if err := unix.SetNonblock(int(stderrR.Fd()), true); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, err
	}

	cmd := exec.Command("/bin/sh", "-c", shellCommand)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.Stdin = nil
	// Setpgid isolates the child (and anything it forks) into its own
	// process group so kill() can reach grandchildren a shell script
	// backgrounds, not just the immediate /bin/sh.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	return &execCommand{
		cmd:     cmd,
		stdoutR: stdoutR, stdoutW: stdoutW,
		stderrR: stderrR, stderrW: stderrW,
	}, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func (e *execCommand) Start() error {
	err := e.cmd.Start()
	// The parent no longer needs the write ends once the child has
	// inherited them; holding them open would prevent EOF from ever
	// being observed on the read ends.
	e.stdoutW.Close()
	e.stderrW.Close()
	return err
}

func (e *execCommand) Wait() error {
	return e.cmd.Wait()
}

func (e *execCommand) Handle() processHandle {
	if e.cmd.Process == nil || e.cmd.ProcessState != nil {
		return nil
	}
	return pgidHandle{pid: e.cmd.Process.Pid}
}

func (e *execCommand) Stdout() nonBlockingReader { return fdReader{e.stdoutR} }
func (e *execCommand) Stderr() nonBlockingReader { return fdReader{e.stderrR} }

// fdReader issues read(2) directly on the pipe's descriptor, so an empty
// pipe yields EAGAIN instead of parking in the runtime poller the way
// (*os.File).Read does.
type fdReader struct{ f *os.File }

func (r fdReader) Read(p []byte) (n int, err error) {
	rc, err := r.f.SyscallConn()
	if err != nil {
		return 0, err
	}
	if cerr := rc.Control(func(fd uintptr) { n, err = unix.Read(int(fd), p) }); cerr != nil {
		return 0, cerr
	}
	return n, err
}

func (r fdReader) Close() error { return r.f.Close() }

// pgidHandle signals a child's whole process group.
type pgidHandle struct{ pid int }

func (h pgidHandle) Pid() int { return h.pid }

func (h pgidHandle) Signal(sig syscall.Signal) error {
	return syscall.Kill(-h.pid, sig)
}
