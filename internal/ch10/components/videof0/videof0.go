// Package videof0 implements the Video Data, Format 0 component parser:
// CSDW carrying an MPEG-TS packet count, then that many fixed 188-byte
// transport-stream packets.
package videof0

import (
	ch10err "github.com/alxayo/ch10parse/internal/errors"
	"github.com/alxayo/ch10parse/internal/ch10/chronos"
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
	"github.com/alxayo/ch10parse/internal/ch10/element"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	"github.com/alxayo/ch10parse/internal/ch10/sink"
)

// tsPacketSize is the fixed MPEG transport-stream packet size (ITU-T
// H.222.0): a sync byte, 3 header bytes, and 184 bytes of payload.
const tsPacketSize = 188

// decodeCSDW extracts the TS packet count. The retrieved original_source
// excerpt does not cover the video component (no ch10_videof0_*.h/.cpp was
// present), so the low-16-bits-of-the-CSDW placement is self-assigned,
// sized generously for a packet's realistic TS-packet count.
func decodeCSDW(word uint32) int {
	return int(element.Bits32(word, 0, 16))
}

// Parse decodes one Video-F0 packet body and emits one row per TS packet,
// all sharing the packet's single header-derived abs_time_ns (this format
// carries no per-TS-packet timestamp).
func Parse(ctx *ch10ctx.Ch10Context, cursor *element.Cursor, h *header.PacketHeader) error {
	var csdw element.U32LE
	if err := element.ParseElements(cursor, &csdw); err != nil {
		return err
	}
	count := decodeCSDW(csdw.Value)

	if ctx.SearchingForTDP() && !ctx.TDP.HasSeenTDP {
		ctx.RecordDeferredPacket(h.StartOffset)
		return ch10err.ErrNeedsAppendPass
	}
	rtcTicks := chronos.CombineRTC(h.RTCLow, uint32(h.RTCHigh))
	absTimeNS, err := ctx.TDP.ToAbsNS(rtcTicks * 100)
	if err != nil {
		return err
	}
	ctx.RecordVideoTimestamp(h.ChannelID, absTimeNS)

	handle, err := ctx.Handle(header.VideoDataF0)
	if err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		if cursor.Remaining() < tsPacketSize {
			return ch10err.NewTruncatedFrameError("videof0.parse: insufficient bytes for TS packet", nil)
		}
		raw, err := cursor.Take(tsPacketSize)
		if err != nil {
			return ch10err.NewTruncatedFrameError("videof0.parse: TS packet take failed", err)
		}

		row := sink.Row{
			"channel_id":  h.ChannelID,
			"ts_index":    i,
			"abs_time_ns": absTimeNS,
			"ts_packet":   raw,
		}
		if err := handle.AppendRow(row); err != nil {
			return err
		}
	}
	return nil
}
