package pcm

import (
	"encoding/binary"
	"testing"

	ch10err "github.com/alxayo/ch10parse/internal/errors"
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
	"github.com/alxayo/ch10parse/internal/ch10/element"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	"github.com/alxayo/ch10parse/internal/ch10/sink"
)

func newPCMContext(t *testing.T, channelID uint16) (*ch10ctx.Ch10Context, *sink.MemorySink) {
	t.Helper()
	ctx := ch10ctx.New()
	s := sink.NewMemorySink()
	if err := ctx.Configure(
		map[header.Ch10PacketType]bool{header.PcmF1: true},
		map[header.Ch10PacketType]string{header.PcmF1: "pcm"},
		map[header.Ch10PacketType]sink.RowSink{header.PcmF1: s},
	); err != nil {
		t.Fatalf("unexpected configure error: %v", err)
	}
	if err := ctx.SetPCMTMATS(channelID, ch10ctx.PCMTMATSData{
		BitsInMinFrame:         48,
		WordsInMinFrame:        3,
		MinFramesInMajFrame:    1,
		CommonWordLength:       16,
		MinFrameSyncPatternLen: 16,
	}); err != nil {
		t.Fatalf("unexpected SetPCMTMATS error: %v", err)
	}
	ctx.TDP.Seed(0, 1_000_000_000, false)
	return ctx, s
}

func putCSDWPCM(iph, ma, mi bool, align int, mode pcmMode) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, buildCSDWWord(iph, ma, mi, align, mode))
	return b
}

func buildMinorFrame(rtc1, rtc2 uint32, lockstNibble uint8, syncWord uint16, dataWords []uint16) []byte {
	b := make([]byte, 0, 16)
	rtcBytes := make([]byte, 8)
	binary.LittleEndian.PutUint32(rtcBytes[0:4], rtc1)
	binary.LittleEndian.PutUint32(rtcBytes[4:8], rtc2)
	b = append(b, rtcBytes...)

	ipdh := make([]byte, 2)
	binary.LittleEndian.PutUint16(ipdh, uint16(lockstNibble))
	b = append(b, ipdh...)

	sync := make([]byte, 2)
	binary.LittleEndian.PutUint16(sync, syncWord)
	b = append(b, sync...)

	for _, w := range dataWords {
		wb := make([]byte, 2)
		binary.LittleEndian.PutUint16(wb, w)
		b = append(b, wb...)
	}
	return b
}

func TestParseUnpackedEmitsRowPerUnlockedFrameAndSkipsFullyUnlocked(t *testing.T) {
	ctx, s := newPCMContext(t, 4)

	var raw []byte
	raw = append(raw, putCSDWPCM(true, false, false, 16, modeUnpacked)...)
	// frame 0: minor_lock=1 -> emitted
	raw = append(raw, buildMinorFrame(10, 0, 0b0001, 0xABCD, []uint16{0x1111, 0x2222})...)
	// frame 1: minor_lock=0, major_lock=0 -> skipped
	raw = append(raw, buildMinorFrame(20, 0, 0b0000, 0xFFFF, []uint16{0x3333, 0x4444})...)

	c := element.NewCursor(raw)
	h := &header.PacketHeader{ChannelID: 4}
	if err := Parse(ctx, c, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Remaining() != 0 {
		t.Fatalf("expected cursor fully consumed, remaining=%d", c.Remaining())
	}

	rows := s.Rows("pcm")
	if len(rows) != 1 {
		t.Fatalf("expected 1 emitted row (1 skipped), got %d", len(rows))
	}
	row := rows[0]
	if row["minor_frame_index"] != 0 {
		t.Fatalf("expected emitted row to be frame 0, got %v", row["minor_frame_index"])
	}
	words := row["data_words"].([]uint16)
	if len(words) != 2 || words[0] != 0x1111 || words[1] != 0x2222 {
		t.Fatalf("unexpected data words: %v", words)
	}
}

func TestParseThroughputIsLenientStub(t *testing.T) {
	ctx, s := newPCMContext(t, 4)
	raw := putCSDWPCM(false, false, false, 16, modeThroughput)
	c := element.NewCursor(raw)
	h := &header.PacketHeader{ChannelID: 4}
	if err := Parse(ctx, c, h); err != nil {
		t.Fatalf("expected throughput mode to return nil, got %v", err)
	}
	if rows := s.Rows("pcm"); len(rows) != 0 {
		t.Fatalf("expected no rows in throughput stub mode, got %d", len(rows))
	}
}

func TestParseRejectsConflictingFrameIndicators(t *testing.T) {
	ctx, _ := newPCMContext(t, 4)
	raw := putCSDWPCM(true, true, true, 16, modeUnpacked) // MI=MA=1, not throughput
	c := element.NewCursor(raw)
	h := &header.PacketHeader{ChannelID: 4}
	if err := Parse(ctx, c, h); err == nil {
		t.Fatalf("expected CheckFrameIndicator failure")
	}
}

func TestParseRejectsNonThroughputWithoutIPH(t *testing.T) {
	ctx, _ := newPCMContext(t, 4)
	raw := putCSDWPCM(false, false, false, 16, modeUnpacked)
	c := element.NewCursor(raw)
	h := &header.PacketHeader{ChannelID: 4}
	if err := Parse(ctx, c, h); err == nil {
		t.Fatalf("expected error for IPH=0 in non-throughput mode")
	}
}

func TestParseMissingTMATSFails(t *testing.T) {
	ctx := ch10ctx.New()
	s := sink.NewMemorySink()
	if err := ctx.Configure(
		map[header.Ch10PacketType]bool{header.PcmF1: true},
		map[header.Ch10PacketType]string{header.PcmF1: "pcm"},
		map[header.Ch10PacketType]sink.RowSink{header.PcmF1: s},
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw := putCSDWPCM(true, false, false, 16, modeUnpacked)
	c := element.NewCursor(raw)
	h := &header.PacketHeader{ChannelID: 99}
	if err := Parse(ctx, c, h); err == nil {
		t.Fatalf("expected error for missing TMATS entry")
	}
}

func TestParseNonIntegerMinorFrameCountFails(t *testing.T) {
	ctx, _ := newPCMContext(t, 4)
	var raw []byte
	raw = append(raw, putCSDWPCM(true, false, false, 16, modeUnpacked)...)
	raw = append(raw, buildMinorFrame(0, 0, 0b0001, 0, []uint16{0x1, 0x2})...)
	raw = append(raw, make([]byte, 3)...) // trailing partial bytes, not a full frame

	c := element.NewCursor(raw)
	h := &header.PacketHeader{ChannelID: 4}
	err := Parse(ctx, c, h)
	if err == nil {
		t.Fatalf("expected error for non-dividing packet body")
	}
	if !ch10err.IsCh10Error(err) {
		t.Fatalf("expected a classified ch10 error, got %v", err)
	}
}
