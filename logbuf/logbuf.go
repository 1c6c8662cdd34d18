// Package logbuf implements the bounded, line-reassembling scrollback
// buffer each supervised process owns. A Buffer accepts raw, possibly
// partial byte chunks from a child's pipe and turns them into a ring of
// complete lines, evicting the oldest line once it grows past its
// capacity.
//
// Buffer is not safe for concurrent use; callers that share a Buffer
// across goroutines must provide their own synchronization. In this
// module a Buffer is owned exclusively by one process.Process, which is
// itself driven from a single goroutine, so no locking is needed here.
package logbuf

import "time"

// Capacity is the maximum number of committed lines a Buffer retains.
// Once len reaches Capacity, appending a new line drops the oldest one.
const Capacity = 1000

// Line is one committed line of captured output.
type Line struct {
	// Timestamp is when the line was committed (its terminating newline
	// was observed), truncated to millisecond precision.
	Timestamp time.Time

	// Text is the line's bytes, excluding the trailing newline. It never
	// contains '\n'. Bytes are opaque: no UTF-8 validation is performed.
	Text []byte
}

// Buffer is a bounded ring of committed Lines plus a partial-line
// accumulator for the not-yet-terminated tail of the stream.
type Buffer struct {
	lines   []Line // logical order, oldest first; len <= Capacity
	partial []byte
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{lines: make([]Line, 0, 64)}
}

// Append consumes a chunk of raw bytes, committing one Line per '\n'
// found. Any bytes after the final newline are retained internally and
// are not visible until a later Append supplies their terminator.
//
// Appending a chunk with K newlines commits exactly K lines. If doing so
// pushes len past Capacity, the oldest lines are dropped until len ==
// Capacity again; logical indices (§ Line) always refer to "oldest
// visible now", never to an absolute line id.
func (b *Buffer) Append(chunk []byte) {
	start := 0
	for i, c := range chunk {
		if c != '\n' {
			continue
		}
		var text []byte
		if len(b.partial) > 0 {
			text = make([]byte, 0, len(b.partial)+i-start)
			text = append(text, b.partial...)
			text = append(text, chunk[start:i]...)
			b.partial = nil
		} else {
			text = append([]byte(nil), chunk[start:i]...)
		}
		b.commit(text)
		start = i + 1
	}
	if start < len(chunk) {
		b.partial = append(b.partial, chunk[start:]...)
	}
}

// commit appends one complete line, evicting the oldest if Capacity is
// exceeded.
func (b *Buffer) commit(text []byte) {
	if len(b.lines) >= Capacity {
		// Drop the oldest line; its backing array becomes eligible for
		// collection once nothing else references it.
		copy(b.lines, b.lines[1:])
		b.lines = b.lines[:len(b.lines)-1]
	}
	b.lines = append(b.lines, Line{Text: text, Timestamp: time.Now().Truncate(time.Millisecond)})
}

// Len returns the number of committed lines currently visible.
func (b *Buffer) Len() int {
	return len(b.lines)
}

// Line returns the committed line at logical index i, where 0 is the
// oldest visible line and Len()-1 is the newest. The second return value
// is false if i is out of range.
func (b *Buffer) Line(i int) (Line, bool) {
	if i < 0 || i >= len(b.lines) {
		return Line{}, false
	}
	return b.lines[i], true
}

// Snapshot returns a copy of the committed line slice, safe for a caller
// (typically a renderer) to hold onto without risk of it being mutated
// by a subsequent Append.
func (b *Buffer) Snapshot() []Line {
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// TextRange concatenates the committed lines in [start, min(end, Len()))
// with a trailing '\n' after each, returning a new owned byte slice.
func (b *Buffer) TextRange(start, end int) []byte {
	if start < 0 {
		start = 0
	}
	if end > len(b.lines) {
		end = len(b.lines)
	}
	if start >= end {
		return []byte{}
	}
	size := 0
	for _, l := range b.lines[start:end] {
		size += len(l.Text) + 1
	}
	out := make([]byte, 0, size)
	for _, l := range b.lines[start:end] {
		out = append(out, l.Text...)
		out = append(out, '\n')
	}
	return out
}

// AllText is equivalent to TextRange(0, Len()).
func (b *Buffer) AllText() []byte {
	return b.TextRange(0, len(b.lines))
}

// Clear drops all committed lines and any partial bytes; Len becomes 0.
func (b *Buffer) Clear() {
	b.lines = b.lines[:0]
	b.partial = nil
}

// Iterator yields committed lines forward from a starting index. It is
// finite (stops at the Len() observed when it was created) and is not
// restartable in place; call Iter or IterFrom again to iterate again.
type Iterator struct {
	lines []Line
	pos   int
}

// Next returns the next line and true, or a zero Line and false once the
// iterator is exhausted.
func (it *Iterator) Next() (Line, bool) {
	if it == nil || it.pos >= len(it.lines) {
		return Line{}, false
	}
	l := it.lines[it.pos]
	it.pos++
	return l, true
}

// Iter returns a forward iterator starting at the oldest visible line.
func (b *Buffer) Iter() *Iterator {
	return b.IterFrom(0)
}

// IterFrom returns a forward iterator starting at logical index i. An
// out-of-range i yields an iterator that is immediately exhausted.
func (b *Buffer) IterFrom(i int) *Iterator {
	if i < 0 {
		i = 0
	}
	if i > len(b.lines) {
		i = len(b.lines)
	}
	return &Iterator{lines: b.lines[i:]}
}
