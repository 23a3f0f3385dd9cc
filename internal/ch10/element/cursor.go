// Package element implements a declarative, fixed-width overlay onto a
// moving byte cursor. Rather than relying on native struct bitfield layout
// (implementation defined per language, and unsafe to rely on for a wire
// format), every field is bound by an explicit fixed-size read followed by
// endian-correct decode, generalizing the fixed-header-then-mask-and-shift
// style used elsewhere in this codebase for other wire layouts.
package element

import "errors"

// ErrInsufficientBytes is returned when advancing the cursor would read
// past its configured end.
var ErrInsufficientBytes = errors.New("element: insufficient bytes")

// Cursor is a moving read pointer over an immutable byte range with a known
// upper bound. Cursors never copy the underlying slice; bound Elements are
// views into it and must not outlive it.
type Cursor struct {
	data []byte
	pos  int
	end  int
}

// NewCursor creates a cursor over data, bounded to len(data).
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data, pos: 0, end: len(data)}
}

// NewBoundedCursor creates a cursor over data whose readable range stops at
// end (end must be <= len(data)). Used to confine a component parser to the
// declared data_length of one packet body within a larger chunk buffer.
func NewBoundedCursor(data []byte, end int) *Cursor {
	if end > len(data) {
		end = len(data)
	}
	return &Cursor{data: data, pos: 0, end: end}
}

// Pos returns the current absolute offset into data.
func (c *Cursor) Pos() int { return c.pos }

// End returns the cursor's upper bound.
func (c *Cursor) End() int { return c.end }

// Remaining returns the number of unread bytes before End.
func (c *Cursor) Remaining() int { return c.end - c.pos }

// Base returns the underlying byte slice the cursor reads from (not bounded
// to End — callers needing the bounded view should use Remaining/Take).
func (c *Cursor) Base() []byte { return c.data }

// Take returns the next n bytes as a view (no copy) and advances the
// cursor. Returns ErrInsufficientBytes without advancing if n would pass
// End.
func (c *Cursor) Take(n int) ([]byte, error) {
	if n < 0 || c.pos+n > c.end {
		return nil, ErrInsufficientBytes
	}
	window := c.data[c.pos : c.pos+n]
	c.pos += n
	return window, nil
}

// Peek returns the next n bytes as a view without advancing the cursor.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if n < 0 || c.pos+n > c.end {
		return nil, ErrInsufficientBytes
	}
	return c.data[c.pos : c.pos+n], nil
}

// Advance moves the cursor forward by n bytes without binding them to
// anything (used to skip a packet body the dispatcher decided not to
// parse). Returns ErrInsufficientBytes without advancing if n would pass
// End.
func (c *Cursor) Advance(n int) error {
	if n < 0 || c.pos+n > c.end {
		return ErrInsufficientBytes
	}
	c.pos += n
	return nil
}

// SeekAbs repositions the cursor to an absolute offset into data, subject
// to 0 <= pos <= End. Used by the header state machine to resynchronize
// after a checksum or sync-pattern failure.
func (c *Cursor) SeekAbs(pos int) error {
	if pos < 0 || pos > c.end {
		return ErrInsufficientBytes
	}
	c.pos = pos
	return nil
}
