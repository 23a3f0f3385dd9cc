package element

import "encoding/binary"

// Element is a typed overlay onto a fixed-width byte window. ParseElements
// advances a Cursor by the sum of each element's Size, binding each element
// to the bytes at the cursor immediately prior to advancing over them.
type Element interface {
	// Size returns this element's fixed byte width.
	Size() int
	// Bind associates the element with window, where len(window) == Size().
	Bind(window []byte)
}

// ParseElements advances cursor through each element in order, binding it
// to the corresponding byte window. On the first element that would read
// past the cursor's end, it returns ErrInsufficientBytes and the cursor is
// left positioned just before that element (already-bound earlier elements
// keep their values).
func ParseElements(cursor *Cursor, elems ...Element) error {
	for _, e := range elems {
		window, err := cursor.Take(e.Size())
		if err != nil {
			return err
		}
		e.Bind(window)
	}
	return nil
}

// U8 binds an unsigned 8-bit field.
type U8 struct{ Value uint8 }

func (e *U8) Size() int     { return 1 }
func (e *U8) Bind(w []byte) { e.Value = w[0] }

// U16LE binds a little-endian unsigned 16-bit field (Ch10 headers are
// little-endian throughout).
type U16LE struct{ Value uint16 }

func (e *U16LE) Size() int     { return 2 }
func (e *U16LE) Bind(w []byte) { e.Value = binary.LittleEndian.Uint16(w) }

// U16BE binds a big-endian unsigned 16-bit field.
type U16BE struct{ Value uint16 }

func (e *U16BE) Size() int     { return 2 }
func (e *U16BE) Bind(w []byte) { e.Value = binary.BigEndian.Uint16(w) }

// U32LE binds a little-endian unsigned 32-bit field.
type U32LE struct{ Value uint32 }

func (e *U32LE) Size() int     { return 4 }
func (e *U32LE) Bind(w []byte) { e.Value = binary.LittleEndian.Uint32(w) }

// U64LE binds a little-endian unsigned 64-bit field.
type U64LE struct{ Value uint64 }

func (e *U64LE) Size() int     { return 8 }
func (e *U64LE) Bind(w []byte) { e.Value = binary.LittleEndian.Uint64(w) }

// Raw binds a fixed-width raw byte window (no decode). The bound Value is a
// view into the cursor's underlying buffer, not a copy — callers that need
// to retain it past the worker's processing of this chunk must copy it
// themselves: elements never outlive the chunk they were bound from.
type Raw struct {
	N     int
	Value []byte
}

func NewRaw(n int) *Raw      { return &Raw{N: n} }
func (e *Raw) Size() int     { return e.N }
func (e *Raw) Bind(w []byte) { e.Value = w }
