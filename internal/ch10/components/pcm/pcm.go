// Package pcm implements the PCM Format-1 component parser: CSDW, then
// minor_frame_count minor frames of IPTS ‖ IPDH ‖ sync ‖ data.
package pcm

import (
	ch10err "github.com/alxayo/ch10parse/internal/errors"
	"github.com/alxayo/ch10parse/internal/ch10/chronos"
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
	"github.com/alxayo/ch10parse/internal/ch10/element"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	"github.com/alxayo/ch10parse/internal/ch10/sink"
)

const iptsLenBytes = 8

// lockStatus is the 4-bit lockst nibble from an IPDH: bit0 minor_lock,
// bit1 minor_warn, bit2 major_lock, bit3 major_warn. The full IPDH word's
// remaining bits and its 16- vs 32-bit width are not described in the
// retrieved original_source excerpt (ch10_pcmf1_msg_hdr_format.h was not
// present); this nibble packing is chosen to hold exactly the four flags
// an IPDH needs.
type lockStatus struct {
	MinorLock bool
	MinorWarn bool
	MajorLock bool
	MajorWarn bool
}

func decodeLockStatus(nibble uint8) lockStatus {
	return lockStatus{
		MinorLock: element.Bits8(nibble, 0, 1) != 0,
		MinorWarn: element.Bits8(nibble, 1, 1) != 0,
		MajorLock: element.Bits8(nibble, 2, 1) != 0,
		MajorWarn: element.Bits8(nibble, 3, 1) != 0,
	}
}

func readIPDH(cursor *element.Cursor, align int) (lockStatus, error) {
	if align == 16 {
		var w element.U16LE
		if err := element.ParseElements(cursor, &w); err != nil {
			return lockStatus{}, err
		}
		return decodeLockStatus(uint8(w.Value & 0xF)), nil
	}
	var w element.U32LE
	if err := element.ParseElements(cursor, &w); err != nil {
		return lockStatus{}, err
	}
	return decodeLockStatus(uint8(w.Value & 0xF)), nil
}

func readIPTS(cursor *element.Cursor) (rtc1, rtc2 uint32, err error) {
	var a, b element.U32LE
	if err := element.ParseElements(cursor, &a, &b); err != nil {
		return 0, 0, err
	}
	return a.Value, b.Value, nil
}

// Parse decodes one PCM-F1 packet body starting at cursor (positioned
// immediately after the packet header/secondary header) and emits one row
// per minor frame to the configured sink.
func Parse(ctx *ch10ctx.Ch10Context, cursor *element.Cursor, h *header.PacketHeader) error {
	tmats, err := ctx.PCMTMATS(h.ChannelID)
	if err != nil {
		return err
	}
	if err := tmats.Validate(); err != nil {
		return err
	}

	var word element.U32LE
	if err := element.ParseElements(cursor, &word); err != nil {
		return err
	}
	c, err := decodeCSDW(word.Value)
	if err != nil {
		return err
	}
	if !CheckFrameIndicator(c.ModeThroughput, c.MI, c.MA) {
		return ch10err.NewPcmF1Error("pcm.parse: CheckFrameIndicator failed", nil)
	}
	if c.ModeThroughput {
		// Half-specified in the source: treated as a lenient stub here,
		// returning Ok rather than failing on a mode this engine does not
		// fully decode.
		return nil
	}
	if !c.IPH {
		return ch10err.NewPcmF1Error("pcm.parse: non-throughput mode requires IPH=1", nil)
	}

	pktSyncBits := syncPatternBitCount(c, tmats.MinFrameSyncPatternLen)
	mfBits, err := minorFrameBitCount(tmats, c, pktSyncBits)
	if err != nil {
		return err
	}

	mfCount, mfSizeBytes, err := minorFrameCount(cursor.Remaining(), mfBits, c.ModeAlign)
	if err != nil {
		return err
	}

	syncBytes := pktSyncBits / 8
	wordSize := c.ModeAlign / 8
	dataWordCount := (mfSizeBytes - syncBytes) / wordSize

	handle, err := ctx.Handle(header.PcmF1)
	if err != nil {
		return err
	}

	for i := 0; i < mfCount; i++ {
		if cursor.Remaining() < iptsLenBytes {
			return ch10err.NewTruncatedFrameError("pcm.parse: insufficient bytes for IPTS", nil)
		}
		rtc1, rtc2, err := readIPTS(cursor)
		if err != nil {
			return ch10err.NewTruncatedFrameError("pcm.parse: IPTS read failed", err)
		}

		if ctx.SearchingForTDP() && !ctx.TDP.HasSeenTDP {
			ctx.RecordDeferredPacket(h.StartOffset)
			return ch10err.ErrNeedsAppendPass
		}
		absTimeNS, err := ctx.TDP.ToAbsNS(chronos.CombineRTC(rtc1, rtc2) * 100)
		if err != nil {
			return err
		}

		if cursor.Remaining() < ipdhLenBytes(c.ModeAlign) {
			return ch10err.NewTruncatedFrameError("pcm.parse: insufficient bytes for IPDH", nil)
		}
		lock, err := readIPDH(cursor, c.ModeAlign)
		if err != nil {
			return ch10err.NewTruncatedFrameError("pcm.parse: IPDH read failed", err)
		}

		if cursor.Remaining() < mfSizeBytes {
			return ch10err.NewTruncatedFrameError("pcm.parse: minor frame runs past packet end", nil)
		}

		skip := !lock.MinorLock && !lock.MajorLock
		if skip {
			if _, err := cursor.Take(mfSizeBytes); err != nil {
				return ch10err.NewTruncatedFrameError("pcm.parse: minor frame take failed", err)
			}
			continue
		}

		syncRaw, err := cursor.Take(syncBytes)
		if err != nil {
			return ch10err.NewTruncatedFrameError("pcm.parse: sync pattern take failed", err)
		}

		var dataWords any
		if wordSize == 2 {
			words := make([]uint16, dataWordCount)
			for w := 0; w < dataWordCount; w++ {
				var u element.U16LE
				if err := element.ParseElements(cursor, &u); err != nil {
					return ch10err.NewTruncatedFrameError("pcm.parse: data word read failed", err)
				}
				words[w] = u.Value
			}
			dataWords = words
		} else {
			words := make([]uint32, dataWordCount)
			for w := 0; w < dataWordCount; w++ {
				var u element.U32LE
				if err := element.ParseElements(cursor, &u); err != nil {
					return ch10err.NewTruncatedFrameError("pcm.parse: data word read failed", err)
				}
				words[w] = u.Value
			}
			dataWords = words
		}

		row := sink.Row{
			"channel_id":        h.ChannelID,
			"minor_frame_index": i,
			"abs_time_ns":       absTimeNS,
			"minor_lock":        lock.MinorLock,
			"minor_warn":        lock.MinorWarn,
			"major_lock":        lock.MajorLock,
			"major_warn":        lock.MajorWarn,
			"sync_pattern":      syncRaw,
			"data_words":        dataWords,
			"worker_index":      ctx.WorkerIndex,
		}
		if err := handle.AppendRow(row); err != nil {
			return err
		}
	}
	return nil
}
