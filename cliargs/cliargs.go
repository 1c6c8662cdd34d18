// Package cliargs implements the flat CLI surface spec.md §6.1 describes:
// `deck [-n NAMES] [-s SESSION] CMD [CMD...]`, `deck start ...`, `deck
// stop [-s SESSION]`, and `deck logs NAME [--head=N|--tail=N|--full] [-s
// SESSION]`. It is kept thin per spec.md's non-goals (no config file, no
// shell completion) and uses the standard library `flag` package in the
// teacher's own `cmd/multiproc/main.go` style, trading `flag.Usage`
// magic for explicit error sentinels cmd/deck can match on.
package cliargs

import (
	"errors"
	"flag"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind distinguishes which of the four command surfaces was parsed.
type Kind int

const (
	// Foreground runs the supervised commands attached to a TUI.
	Foreground Kind = iota
	// Start runs the supervised commands detached, as a daemon.
	Start
	// Stop signals a running daemon for the session to shut down.
	Stop
	// Logs prints a slice of one process's captured log.
	Logs
)

// Argument errors, named after spec.md §7's taxonomy. cmd/deck reports
// these with usage text and a non-zero exit before any side effect.
var (
	ErrMissingCommands     = errors.New("at least one CMD is required")
	ErrMissingNamesValue   = errors.New("-n/--names requires a value")
	ErrMissingLogName      = errors.New("logs requires a NAME argument")
	ErrMissingSessionValue = errors.New("-s/--session requires a value")
	ErrNameCountMismatch   = errors.New("number of names does not match number of commands")
	ErrInvalidHeadValue    = errors.New("--head requires a positive integer")
	ErrInvalidTailValue    = errors.New("--tail requires a positive integer")
	ErrHeadAndTail         = errors.New("--head, --tail, and --full are mutually exclusive")
)

// Quantifier selects a head-N, tail-N, or full-file slice of a log; the
// zero value means "use the default tail".
type Quantifier struct {
	Head int
	Tail int
	Full bool
}

// Command is the fully parsed, validated result of one invocation.
type Command struct {
	Kind Kind

	// Foreground/Start only.
	Names    []string
	Commands []string

	// Stop/Logs/Foreground/Start.
	Session string

	// Logs only.
	LogName string
	Quant   Quantifier
}

// Parse parses args (as in os.Args[1:]) into a Command, or returns one
// of the sentinel errors above.
func Parse(args []string) (Command, error) {
	if len(args) > 0 {
		switch args[0] {
		case "start":
			return parseRun(Start, args[1:])
		case "stop":
			return parseStop(args[1:])
		case "logs":
			return parseLogs(args[1:])
		}
	}
	return parseRun(Foreground, args)
}

func parseRun(kind Kind, args []string) (Command, error) {
	fs := flag.NewFlagSet(kindName(kind), flag.ContinueOnError)
	var names, session string
	fs.StringVar(&names, "n", "", "comma-separated process names")
	fs.StringVar(&names, "names", "", "comma-separated process names")
	fs.StringVar(&session, "s", "", "session id override")
	fs.StringVar(&session, "session", "", "session id override")
	fs.SetOutput(discardWriter{})
	if err := fs.Parse(args); err != nil {
		return Command{}, translateFlagErr(err)
	}

	commands := fs.Args()
	if len(commands) == 0 {
		return Command{}, ErrMissingCommands
	}

	var nameList []string
	if names != "" {
		nameList = strings.Split(names, ",")
		if len(nameList) != len(commands) {
			return Command{}, ErrNameCountMismatch
		}
	} else {
		nameList = make([]string, len(commands))
		for i, c := range commands {
			nameList[i] = defaultName(c)
		}
	}

	return Command{
		Kind:     kind,
		Names:    nameList,
		Commands: commands,
		Session:  session,
	}, nil
}

func parseStop(args []string) (Command, error) {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	var session string
	fs.StringVar(&session, "s", "", "session id override")
	fs.StringVar(&session, "session", "", "session id override")
	fs.SetOutput(discardWriter{})
	if err := fs.Parse(args); err != nil {
		return Command{}, translateFlagErr(err)
	}
	return Command{Kind: Stop, Session: session}, nil
}

func parseLogs(args []string) (Command, error) {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	var session, head, tail string
	var full bool
	fs.StringVar(&session, "s", "", "session id override")
	fs.StringVar(&session, "session", "", "session id override")
	fs.StringVar(&head, "head", "", "print the first N lines")
	fs.StringVar(&tail, "tail", "", "print the last N lines")
	fs.BoolVar(&full, "full", false, "print the entire log file")
	fs.SetOutput(discardWriter{})
	if err := fs.Parse(args); err != nil {
		return Command{}, translateFlagErr(err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return Command{}, ErrMissingLogName
	}
	logName := rest[0]
	// Flags may also follow NAME, as in `deck logs NAME --tail=N`.
	if err := fs.Parse(rest[1:]); err != nil {
		return Command{}, translateFlagErr(err)
	}

	exclusive := 0
	if head != "" {
		exclusive++
	}
	if tail != "" {
		exclusive++
	}
	if full {
		exclusive++
	}
	if exclusive > 1 {
		return Command{}, ErrHeadAndTail
	}

	var q Quantifier
	if head != "" {
		n, err := strconv.Atoi(head)
		if err != nil || n <= 0 {
			return Command{}, ErrInvalidHeadValue
		}
		q.Head = n
	}
	if tail != "" {
		n, err := strconv.Atoi(tail)
		if err != nil || n <= 0 {
			return Command{}, ErrInvalidTailValue
		}
		q.Tail = n
	}
	if full {
		q.Full = true
	}

	return Command{
		Kind:    Logs,
		LogName: logName,
		Session: session,
		Quant:   q,
	}, nil
}

// defaultName derives a process name from its shell command per
// spec.md §6.1: the first whitespace-separated token, directory prefix
// stripped.
func defaultName(shellCommand string) string {
	fields := strings.Fields(shellCommand)
	if len(fields) == 0 {
		return shellCommand
	}
	return filepath.Base(fields[0])
}

func kindName(k Kind) string {
	if k == Start {
		return "start"
	}
	return "deck"
}

// discardWriter suppresses flag's default usage dump to stderr; cmd/deck
// prints its own usage text when a Parse error is returned.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// translateFlagErr maps the stdlib flag package's "flag needs an
// argument: -x" errors onto the named sentinels spec.md §7 requires,
// since flag itself has no typed error for this case.
func translateFlagErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "-n") || strings.Contains(msg, "-names"):
		return ErrMissingNamesValue
	case strings.Contains(msg, "-s") || strings.Contains(msg, "-session"):
		return ErrMissingSessionValue
	default:
		return err
	}
}
