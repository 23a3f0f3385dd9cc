package header

import (
	"encoding/binary"
	"testing"

	"github.com/alxayo/ch10parse/internal/ch10/element"
)

// buildHeader assembles a 24-byte header with the given fields and a
// checksum mode of none (mode 0), so tests that don't care about checksums
// can ignore it.
func buildHeader(t *testing.T, channelID uint16, packetLength, dataLength uint32, seq uint8, flags uint8, dataType uint8) []byte {
	t.Helper()
	b := make([]byte, Size)
	binary.LittleEndian.PutUint16(b[0:2], SyncPattern)
	binary.LittleEndian.PutUint16(b[2:4], channelID)
	binary.LittleEndian.PutUint32(b[4:8], packetLength)
	binary.LittleEndian.PutUint32(b[8:12], dataLength)
	b[12] = 1 // header_version
	b[13] = seq
	b[14] = flags
	b[15] = dataType
	binary.LittleEndian.PutUint32(b[16:20], 0xAABBCCDD)
	binary.LittleEndian.PutUint16(b[20:22], 0x00FF)
	binary.LittleEndian.PutUint16(b[22:24], 0) // checksum, mode none
	return b
}

func TestReadHeaderBindsAllFields(t *testing.T) {
	raw := buildHeader(t, 7, Size+8, 8, 3, 0x00, 0x19)
	c := element.NewCursor(raw)
	h, err := ReadHeader(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Sync != SyncPattern || h.ChannelID != 7 || h.PacketLength != Size+8 || h.DataLength != 8 {
		t.Fatalf("unexpected header fields: %+v", h)
	}
	if h.DataType != MilStd1553F1 {
		t.Fatalf("expected MilStd1553F1, got %v", h.DataType)
	}
	if c.Remaining() != 0 {
		t.Fatalf("expected header fully consumed, remaining=%d", c.Remaining())
	}
}

func TestSeekSyncSkipsGarbageAndFindsConsistentHeader(t *testing.T) {
	good := buildHeader(t, 1, Size+4, 4, 0, 0, 0x11)
	data := append([]byte{0x00, 0xEB, 0x25, 0x00}, good...) // stray partial-sync noise first
	c := element.NewCursor(data)

	h, warned, err := SeekSync(c, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warned {
		t.Fatalf("expected no warning with nil tracker")
	}
	if h.ChannelID != 1 || h.DataType != TimeF1 {
		t.Fatalf("unexpected header found: %+v", h)
	}
}

func TestSeekSyncRejectsInternallyInconsistentCandidate(t *testing.T) {
	// packet_length <= Size is invalid; SeekSync must skip past it and keep
	// scanning rather than accepting a bogus header.
	bad := buildHeader(t, 1, Size, 0, 0, 0, 0)
	good := buildHeader(t, 2, Size+4, 4, 0, 0, 0)
	c := element.NewCursor(append(bad, good...))

	h, _, err := SeekSync(c, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ChannelID != 2 {
		t.Fatalf("expected to skip the inconsistent candidate, got channel %d", h.ChannelID)
	}
}

func TestSeekSyncReturnsIncompleteTailOnPartialHeader(t *testing.T) {
	c := element.NewCursor([]byte{0x25, 0xEB, 0x01, 0x02})
	_, _, err := SeekSync(c, nil)
	if err != ErrIncompleteTail {
		t.Fatalf("expected ErrIncompleteTail, got %v", err)
	}
	if c.Pos() != 0 {
		t.Fatalf("expected cursor left at tail start, pos=%d", c.Pos())
	}
}

func TestSeekSyncForcesResyncOnTwoConsecutiveSequenceDeviations(t *testing.T) {
	tracker := NewSequenceTracker(DefaultSequenceGapTolerance)
	h0 := buildHeader(t, 5, Size+4, 4, 0, 0, 0)
	_, _, err := SeekSync(element.NewCursor(h0), tracker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// sequence jumps from 0 to 10: first deviation on channel 5 is a warning...
	hDeviant := buildHeader(t, 5, Size+4, 4, 10, 0, 0)
	_, warned, err := SeekSync(element.NewCursor(hDeviant), tracker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !warned {
		t.Fatalf("expected warning on first deviation")
	}

	// ...a second consecutive deviation forces resync, so SeekSync must
	// skip this candidate (channel 5, seq 20) and keep scanning.
	hSecondDeviant := buildHeader(t, 5, Size+4, 4, 20, 0, 0)
	good := buildHeader(t, 5, Size+4, 4, 21, 0, 0)
	c := element.NewCursor(append(hSecondDeviant, good...))
	h, _, err := SeekSync(c, tracker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Sequence != 21 {
		t.Fatalf("expected resync to skip the forcing candidate, got sequence %d", h.Sequence)
	}
}

func TestVerifyHeaderChecksumModes(t *testing.T) {
	raw := buildHeader(t, 1, Size+4, 4, 0, byte(Checksum8Bit)<<6, 0)
	region := raw[0 : Size-2]

	sum := sum8(region)
	binary.LittleEndian.PutUint16(raw[Size-2:Size], uint16(sum))
	c := element.NewCursor(raw)
	h, err := ReadHeader(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.VerifyHeaderChecksum(c) {
		t.Fatalf("expected 8-bit checksum to verify")
	}

	raw[22] ^= 0xFF // corrupt checksum
	c2 := element.NewCursor(raw)
	h2, err := ReadHeader(c2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h2.VerifyHeaderChecksum(c2) {
		t.Fatalf("expected corrupted checksum to fail verification")
	}
}

func TestBodySizeAccountsForSecondaryHeader(t *testing.T) {
	withSecondary := buildHeader(t, 1, Size+SecondaryHeaderSize+16, 16, 0, 0x01, 0)
	c := element.NewCursor(withSecondary)
	h, err := ReadHeader(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Flags.SecondaryHdr {
		t.Fatalf("expected secondary_hdr flag set")
	}
	if h.BodySize() != 16 {
		t.Fatalf("expected body size 16, got %d", h.BodySize())
	}
}

func TestReadSecondaryHeader(t *testing.T) {
	raw := make([]byte, SecondaryHeaderSize)
	raw[0] = 1
	raw[1] = 0
	copy(raw[4:12], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	c := element.NewCursor(raw)
	sh, err := ReadSecondaryHeader(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sh.TimeSource != 1 || sh.TimeFormat != 0 {
		t.Fatalf("unexpected secondary header: %+v", sh)
	}
	if len(sh.TimeFields) != 8 || sh.TimeFields[7] != 8 {
		t.Fatalf("unexpected time fields: %v", sh.TimeFields)
	}
}
