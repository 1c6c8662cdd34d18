package daemon

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/deck-run/deck/session"
)

// defaultTailLines is the line count used when a Logs call specifies
// neither head nor tail, per spec.md §4.5 ("Default behaviour when no
// quantifier is given is tail=100").
const defaultTailLines = 100

// ErrLogNotFound is returned when the named process has no log file in
// the session directory.
var ErrLogNotFound = errors.New("log file not found")

// Quantifier selects how much of a log file Logs returns.
type Quantifier struct {
	// Head, if positive, returns the first Head lines.
	Head int
	// Tail, if positive, returns the last Tail lines. Ignored if Head
	// is positive.
	Tail int
	// Full, if true, returns the entire file. Ignored if Head or Tail
	// is positive.
	Full bool
}

// defaultQuantifier is tail=100.
func defaultQuantifier() Quantifier { return Quantifier{Tail: defaultTailLines} }

// Logs reads processName's log file from layout and returns the
// selected lines (without trailing newlines), per spec.md's head/tail/
// full semantics. A zero Quantifier means "use the default" (tail=100).
func Logs(layout session.Layout, processName string, q Quantifier) ([]string, error) {
	if q.Head <= 0 && q.Tail <= 0 && !q.Full {
		q = defaultQuantifier()
	}

	path := layout.LogFile(processName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	switch {
	case q.Head > 0:
		return readHead(f, q.Head)
	case q.Tail > 0:
		return readTail(f, q.Tail)
	default:
		return readFull(f)
	}
}

// readFull returns every line in the file, in order.
func readFull(f *os.File) ([]string, error) {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading log file: %w", err)
	}
	return lines, nil
}

func readHead(f *os.File, n int) ([]string, error) {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lines := make([]string, 0, n)
	for len(lines) < n && sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading log file: %w", err)
	}
	return lines, nil
}

// readTail keeps a ring of the last n lines while scanning the whole
// file once; this module doesn't expect multi-gigabyte logs, so a
// single forward pass with a bounded ring is simpler than seeking from
// the end.
func readTail(f *os.File, n int) ([]string, error) {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	ring := make([]string, 0, n)
	pos := 0
	for sc.Scan() {
		line := sc.Text()
		if len(ring) < n {
			ring = append(ring, line)
		} else {
			ring[pos] = line
			pos = (pos + 1) % n
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading log file: %w", err)
	}
	if len(ring) < n {
		return ring, nil
	}
	out := make([]string, 0, n)
	out = append(out, ring[pos:]...)
	out = append(out, ring[:pos]...)
	return out, nil
}
