// Package milstd1553 implements the MIL-STD-1553 Format-1 component parser:
// CSDW ‖ {IPH(14B) ‖ payload(variable)} × message_count.
package milstd1553

import (
	"encoding/binary"

	ch10err "github.com/alxayo/ch10parse/internal/errors"
	"github.com/alxayo/ch10parse/internal/ch10/chronos"
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
	"github.com/alxayo/ch10parse/internal/ch10/element"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	"github.com/alxayo/ch10parse/internal/ch10/sink"
)

const (
	// maxMessageCount guards against a corrupt message_count field
	// (original_source/cpp/parser_rewrite/include/ch10_1553f1_component.h).
	maxMessageCount = 10000
	// maxByteCount is 32 data words + 2 command words + 2 status words, at
	// 2 bytes/word, per the same source.
	maxByteCount = 72
	// cmdStatusWords is the generic command+status overhead deducted from
	// both the expected- and calculated-word-count budgets.
	// A real RT-to-RT transfer carries two status words; this engine does
	// not discriminate that case and uses the single-status approximation
	// throughout.
	cmdStatusWords = 2
	iphSize        = 14
	payloadWords   = 32
)

// csdw is the Channel-Specific Data Word for 1553-F1: message_count in the
// low 24 bits, then 6 reserved bits, then ttb in the top 2 bits — the same
// bit order as the source's packed bitfield record.
type csdw struct {
	MessageCount uint32
	TTB          uint8
}

func decodeCSDW(word uint32) csdw {
	return csdw{
		MessageCount: element.Bits32(word, 0, 24),
		TTB:          uint8(element.Bits32(word, 30, 2)),
	}
}

// iph is the per-message intra-packet header: 8-byte RTC timestamp plus a
// 6-byte block-status/gap-times/length header. The command word is not
// part of the IPH; it is the first 16-bit word of the message payload that
// follows, matching real 1553 bus traffic (command word, then data words,
// then status word(s)).
type iph struct {
	RTC1         uint32
	RTC2         uint32
	BlockStatus  uint16
	Gap1         uint8
	Gap2         uint8
	MessageBytes uint16
}

// readIPH binds the 14-byte intra-packet header: an 8-byte RTC timestamp
// (rtc1, rtc2 — matching chronos.ParseIPTS's FormatRTC layout), then
// block-status, gap1, gap2, message length.
func readIPH(cursor *element.Cursor) (iph, error) {
	var rtc1, rtc2 element.U32LE
	var blockStatus element.U16LE
	var gap1, gap2 element.U8
	var msgBytes element.U16LE

	if err := element.ParseElements(cursor,
		&rtc1, &rtc2, &blockStatus, &gap1, &gap2, &msgBytes); err != nil {
		return iph{}, err
	}

	return iph{
		RTC1:         rtc1.Value,
		RTC2:         rtc2.Value,
		BlockStatus:  blockStatus.Value,
		Gap1:         gap1.Value,
		Gap2:         gap2.Value,
		MessageBytes: msgBytes.Value,
	}, nil
}

// expectedPayloadWordCount decodes the command word's word-count field,
// handling the word-count-zero-means-32 rule and the mode-code subaddress
// discrimination.
func expectedPayloadWordCount(cmdWord uint16) int {
	subaddr := (cmdWord >> 5) & 0x1F
	field := cmdWord & 0x1F

	if subaddr == 0 || subaddr == 0x1F {
		// Mode code: codes 16-31 carry one data word, 0-15 carry none.
		if field >= 16 {
			return 1
		}
		return 0
	}
	if field == 0 {
		return payloadWords
	}
	return int(field)
}

// Parse decodes one 1553-F1 packet body starting at cursor (positioned
// immediately after the packet header/secondary header) and emits one row
// per message to the configured sink.
func Parse(ctx *ch10ctx.Ch10Context, cursor *element.Cursor, h *header.PacketHeader) error {
	var word element.U32LE
	if err := element.ParseElements(cursor, &word); err != nil {
		return err
	}
	c := decodeCSDW(word.Value)
	if c.MessageCount > maxMessageCount {
		return ch10err.NewCorruptPacketError("milstd1553.parse: message_count exceeds guard", nil)
	}
	if c.MessageCount == 0 {
		return nil
	}

	if ctx.SearchingForTDP() && !ctx.TDP.HasSeenTDP {
		ctx.RecordDeferredPacket(h.StartOffset)
		return ch10err.ErrNeedsAppendPass
	}

	handle, err := ctx.Handle(header.MilStd1553F1)
	if err != nil {
		return err
	}

	for i := uint32(0); i < c.MessageCount; i++ {
		if cursor.Remaining() < iphSize {
			return ch10err.NewTruncatedMessageError("milstd1553.parse: insufficient bytes for IPH", nil)
		}
		m, err := readIPH(cursor)
		if err != nil {
			return ch10err.NewTruncatedMessageError("milstd1553.parse: IPH read failed", err)
		}

		absTimeNS, err := ctx.TDP.ToAbsNS(chronos.CombineRTC(m.RTC1, m.RTC2) * 100)
		if err != nil {
			return err
		}

		msgLen := int(m.MessageBytes)
		alignedLen := msgLen
		if alignedLen%2 == 1 {
			alignedLen++
		}
		if cursor.Remaining() < alignedLen {
			return ch10err.NewTruncatedMessageError("milstd1553.parse: message body runs past packet end", nil)
		}
		raw, err := cursor.Take(alignedLen)
		if err != nil {
			return ch10err.NewTruncatedMessageError("milstd1553.parse: message body take failed", err)
		}

		var cmdWord uint16
		var statusWord uint16
		var calcPayloadWords int
		if msgLen >= 2 {
			cmdWord = binary.LittleEndian.Uint16(raw[0:2])
		}
		if msgLen >= cmdStatusWords*2 {
			statusWord = binary.LittleEndian.Uint16(raw[msgLen-2 : msgLen])
			calcPayloadWords = (msgLen - cmdStatusWords*2) / 2
		}
		if calcPayloadWords < 0 {
			calcPayloadWords = 0
		}
		if calcPayloadWords > payloadWords {
			calcPayloadWords = payloadWords
		}

		expected := expectedPayloadWordCount(cmdWord)
		wordBudget := maxByteCount/2 - cmdStatusWords
		if expected > wordBudget {
			expected = wordBudget
		}
		isIncomplete := expected > calcPayloadWords

		payload := make([]uint16, payloadWords)
		if calcPayloadWords > 0 {
			start := 2
			dataBytes := raw[start : start+calcPayloadWords*2]
			// Left-zero-padded: the copied words occupy the tail of the
			// fixed-width column.
			offset := payloadWords - calcPayloadWords
			for w := 0; w < calcPayloadWords; w++ {
				payload[offset+w] = binary.LittleEndian.Uint16(dataBytes[w*2 : w*2+2])
			}
		}

		rxAddr := uint8((cmdWord >> 11) & 0x1F)
		ctx.RecordLRUAddress(h.ChannelID, rxAddr)
		ctx.RecordCommandWords(h.ChannelID, ch10ctx.CommandWordPair{Cmd: cmdWord, Status: statusWord})

		row := sink.Row{
			"channel_id":         h.ChannelID,
			"abs_time_ns":        absTimeNS,
			"ttb":                c.TTB,
			"command_word":       cmdWord,
			"status_word":        statusWord,
			"block_status":       m.BlockStatus,
			"gap1":               m.Gap1,
			"gap2":               m.Gap2,
			"payload":            payload,
			"payload_word_count": calcPayloadWords,
			"is_incomplete":      isIncomplete,
			"worker_index":       ctx.WorkerIndex,
			"msg_index":          i,
		}
		if err := handle.AppendRow(row); err != nil {
			return err
		}
	}
	return nil
}
