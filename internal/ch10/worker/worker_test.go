package worker

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/alxayo/ch10parse/internal/ch10/chronos"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	"github.com/alxayo/ch10parse/internal/ch10/sink"
)

// buildHeader assembles a 24-byte header with checksum mode none, mirroring
// internal/ch10/header's own test fixture so packets built here need no
// checksum bookkeeping.
func buildHeader(channelID uint16, packetLength, dataLength uint32, seq uint8, flags uint8, dataType uint8) []byte {
	b := make([]byte, header.Size)
	binary.LittleEndian.PutUint16(b[0:2], header.SyncPattern)
	binary.LittleEndian.PutUint16(b[2:4], channelID)
	binary.LittleEndian.PutUint32(b[4:8], packetLength)
	binary.LittleEndian.PutUint32(b[8:12], dataLength)
	b[12] = 1
	b[13] = seq
	b[14] = flags
	b[15] = dataType
	binary.LittleEndian.PutUint32(b[16:20], 1000)
	binary.LittleEndian.PutUint16(b[20:22], 0)
	binary.LittleEndian.PutUint16(b[22:24], 0)
	return b
}

func bcdByte(tens, ones uint8) byte { return tens<<4 | ones }

// buildTDPBody reproduces internal/ch10/components/timef1's packed-BCD
// day-of-year layout (csdw ‖ ms ‖ sec ‖ min ‖ hr ‖ day, 12 bytes total).
func buildTDPBody(ms, sec, mins, hrs, day uint16) []byte {
	b := make([]byte, 12)
	b[4] = bcdByte(uint8(ms/10%10), uint8(ms%10))
	b[5] = bcdByte(0, uint8(ms/100%10))
	b[6] = bcdByte(uint8(sec/10), uint8(sec%10))
	b[7] = bcdByte(uint8(mins/10), uint8(mins%10))
	b[8] = bcdByte(uint8(hrs/10), uint8(hrs%10))
	b[9] = bcdByte(uint8(day/10%10), uint8(day%10))
	b[10] = bcdByte(0, uint8(day/100%10))
	return b
}

func putCSDW1553(count uint32, ttb uint8) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, (count&0xFFFFFF)|uint32(ttb&0x3)<<30)
	return b
}

func putIPH1553(rtc1, rtc2 uint32, msgBytes uint16) []byte {
	b := make([]byte, 14)
	binary.LittleEndian.PutUint32(b[0:4], rtc1)
	binary.LittleEndian.PutUint32(b[4:8], rtc2)
	binary.LittleEndian.PutUint16(b[12:14], msgBytes)
	return b
}

func packet(channelID uint16, seq uint8, dataType header.Ch10PacketType, body []byte) []byte {
	h := buildHeader(channelID, uint32(header.Size)+uint32(len(body)), uint32(len(body)), seq, 0, dataTypeWireCode(dataType))
	return append(h, body...)
}

// dataTypeWireCode is a tiny local mirror of header's private wireCode
// table, keyed off the two types worker tests build packets for.
func dataTypeWireCode(t header.Ch10PacketType) byte {
	switch t {
	case header.TimeF1:
		return 0x11
	case header.MilStd1553F1:
		return 0x19
	default:
		return 0xFF
	}
}

func newMemoryConfig(enabled ...header.Ch10PacketType) (Config, *sink.MemorySink) {
	s := sink.NewMemorySink()
	enabledMap := make(map[header.Ch10PacketType]bool)
	paths := make(map[header.Ch10PacketType]string)
	sinks := make(map[header.Ch10PacketType]sink.RowSink)
	for _, t := range enabled {
		enabledMap[t] = true
		paths[t] = t.String()
		sinks[t] = s
	}
	return Config{EnabledTypes: enabledMap, OutputPaths: paths, Sinks: sinks}, s
}

func TestRunSeedsTDPThenDecodesSubsequentPacket(t *testing.T) {
	cfg, s := newMemoryConfig(header.TimeF1, header.MilStd1553F1)

	var chunk []byte
	chunk = append(chunk, packet(0, 0, header.TimeF1, buildTDPBody(0, 0, 0, 0, 1))...)

	msgBody := append(putCSDW1553(1, 0), putIPH1553(0, 0, 4)...)
	msgBody = append(msgBody, make([]byte, 4)...)
	chunk = append(chunk, packet(1, 0, header.MilStd1553F1, msgBody)...)

	result := Run(context.Background(), cfg, chunk)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.LastPosition != len(chunk) {
		t.Fatalf("expected last position %d, got %d", len(chunk), result.LastPosition)
	}
	if !result.TDP.HasSeenTDP {
		t.Fatalf("expected TDP seeded by the run")
	}
	rows := s.Rows(header.MilStd1553F1.String())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row in the 1553 sink, got %d", len(rows))
	}
}

func TestRunDefersPacketBeforeTDPAndReportsNeedsAppendPass(t *testing.T) {
	cfg, s := newMemoryConfig(header.MilStd1553F1)

	msgBody := append(putCSDW1553(1, 0), putIPH1553(0, 0, 4)...)
	msgBody = append(msgBody, make([]byte, 4)...)
	chunk := packet(1, 0, header.MilStd1553F1, msgBody)

	result := Run(context.Background(), cfg, chunk)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if !result.NeedsAppendPass {
		t.Fatalf("expected NeedsAppendPass, TDP was never seen")
	}
	if result.FirstDeferredPosition != 0 {
		t.Fatalf("expected the deferred packet's own header offset 0, got %d", result.FirstDeferredPosition)
	}
	if rows := s.Rows(header.MilStd1553F1.String()); len(rows) != 0 {
		t.Fatalf("expected no rows while TDP unresolved, got %d", len(rows))
	}
}

func TestRunDisabledTypeAdvancesWithoutDispatching(t *testing.T) {
	cfg, s := newMemoryConfig(header.TimeF1) // 1553 intentionally not enabled

	msgBody := append(putCSDW1553(1, 0), putIPH1553(0, 0, 4)...)
	msgBody = append(msgBody, make([]byte, 4)...)
	chunk := packet(1, 0, header.MilStd1553F1, msgBody)

	result := Run(context.Background(), cfg, chunk)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.LastPosition != len(chunk) {
		t.Fatalf("expected cursor to advance past the disabled packet, got %d of %d", result.LastPosition, len(chunk))
	}
	if rows := s.Rows(header.TimeF1.String()); len(rows) != 0 {
		t.Fatalf("expected no rows for an unrelated sink, got %d", len(rows))
	}
}

func TestRunStopsAtPartialTrailingHeader(t *testing.T) {
	cfg, _ := newMemoryConfig(header.TimeF1)
	full := packet(0, 0, header.TimeF1, buildTDPBody(0, 0, 0, 0, 1))
	chunk := append(full, full[:10]...) // a partial header tail

	result := Run(context.Background(), cfg, chunk)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.LastPosition != len(full) {
		t.Fatalf("expected last position at the clean packet boundary %d, got %d", len(full), result.LastPosition)
	}
}

func TestRunRejectsMissingSinkConfiguration(t *testing.T) {
	cfg := Config{
		EnabledTypes: map[header.Ch10PacketType]bool{header.TimeF1: true},
		OutputPaths:  map[header.Ch10PacketType]string{},
		Sinks:        map[header.Ch10PacketType]sink.RowSink{},
	}
	result := Run(context.Background(), cfg, nil)
	if result.Err == nil {
		t.Fatalf("expected a ConfigError for the unresolved sink")
	}
}

func TestRunAppendModeUsesSeededTDPImmediately(t *testing.T) {
	cfg, s := newMemoryConfig(header.MilStd1553F1)
	cfg.AppendMode = true
	seed := new(chronos.TDPState)
	seed.Seed(0, 5_000_000_000, false)
	cfg.SeedTDP = seed

	msgBody := append(putCSDW1553(1, 0), putIPH1553(0, 0, 4)...)
	msgBody = append(msgBody, make([]byte, 4)...)
	chunk := packet(1, 0, header.MilStd1553F1, msgBody)

	result := Run(context.Background(), cfg, chunk)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.NeedsAppendPass {
		t.Fatalf("expected no further deferral: TDP was pre-seeded")
	}
	if rows := s.Rows(header.MilStd1553F1.String()); len(rows) != 1 {
		t.Fatalf("expected 1 decoded row, got %d", len(rows))
	}
}

func TestRunCancellationStopsCleanly(t *testing.T) {
	cfg, _ := newMemoryConfig(header.TimeF1)
	chunk := packet(0, 0, header.TimeF1, buildTDPBody(0, 0, 0, 0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := Run(ctx, cfg, chunk)
	if result.Err == nil {
		t.Fatalf("expected ErrCancelled")
	}
}

