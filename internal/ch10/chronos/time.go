// Package chronos implements Ch10Time: converting RTC pairs and
// intra-packet timestamps into absolute nanoseconds, anchored by the first
// Time Data Packet a worker observes (the "TDP" seeding rule). The absolute
// origin is the one the seeding TDP's AnchorAbsNS counts from.
package chronos

import (
	"encoding/binary"

	ch10err "github.com/alxayo/ch10parse/internal/errors"
	"github.com/alxayo/ch10parse/internal/ch10/element"
)

// rtcModulus is 2^48: the RTC counter wraps at 48 bits. Deltas between two
// RTC readings are taken modulo this value so a wrap between the TDP anchor
// and a later reading still yields a correct (small, positive) delta.
const rtcModulus = uint64(1) << 48

// TimeSource identifies where an intra-packet timestamp comes from.
type TimeSource uint8

const (
	// SourceHeaderRTC derives the timestamp from the packet header's own
	// rtc_low/rtc_high fields; ParseIPTS does not consume the cursor for
	// this source, since the header's fields are already in hand.
	SourceHeaderRTC TimeSource = iota
	// SourceBody derives the timestamp from 8 bytes at the front of (or
	// within) the packet body, in the format given by TimeFormat.
	SourceBody
)

// TimeFormat identifies the wire encoding of a body-sourced timestamp.
type TimeFormat uint8

const (
	// FormatRTC is a 48-bit RTC counter (100ns ticks), laid out as rtc1
	// (low 32 bits) followed by rtc2 (high 16 bits in a 32-bit field),
	// exactly like the packet header's own rtc_low/rtc_high.
	FormatRTC TimeFormat = iota
	// FormatIRIGDayOfYear is the packed-BCD day-of-year format used by
	// Time-F1 TDP packets: see decodeIRIGDayOfYear for the field layout.
	FormatIRIGDayOfYear
)

// CombineRTC returns the 48-bit RTC value (in 100ns ticks) formed from a
// packet header's rtc_low (full 32 bits) and rtc_high (low 16 bits used).
func CombineRTC(rtcLow, rtcHigh uint32) uint64 {
	return (uint64(rtcHigh&0xFFFF) << 32) | uint64(rtcLow)
}

// ParseIPTS consumes an intra-packet timestamp and returns it as
// nanoseconds (not yet anchored to absolute time — see TDPState.ToAbsNS).
// headerRTC is the already-combined 48-bit RTC from the enclosing packet's
// header, used only when src == SourceHeaderRTC (in which case cursor is
// left untouched).
func ParseIPTS(cursor *element.Cursor, headerRTC uint64, src TimeSource, format TimeFormat) (ns uint64, err error) {
	switch src {
	case SourceHeaderRTC:
		return headerRTC * 100, nil
	case SourceBody:
		raw, terr := cursor.Take(8)
		if terr != nil {
			return 0, terr
		}
		switch format {
		case FormatRTC:
			rtc1 := binary.LittleEndian.Uint32(raw[0:4])
			rtc2 := binary.LittleEndian.Uint32(raw[4:8])
			return CombineRTC(rtc1, rtc2) * 100, nil
		case FormatIRIGDayOfYear:
			return decodeIRIGDayOfYear(raw)
		default:
			return 0, ch10err.NewInvalidIntrapktTsSrcError("chronos.parseIPTS", nil)
		}
	default:
		return 0, ch10err.NewInvalidIntrapktTsSrcError("chronos.parseIPTS", nil)
	}
}

// TDPState is the time-data-packet seeding state: created per worker,
// settled once the first TDP is observed, and used thereafter to anchor
// every RTC-based timestamp to absolute time.
type TDPState struct {
	HasSeenTDP    bool
	AnchorRTC     uint64 // 100ns ticks, at the moment of seeding
	AnchorAbsNS   uint64 // absolute nanoseconds at the moment of seeding; Time-F1 counts from midnight of day 1 of the year, not from the Unix epoch
	DayOfYearMode bool
}

// Seed settles the TDP anchor. Subsequent TDPs update the anchor (drift
// correction across TDPs is out of scope).
func (s *TDPState) Seed(anchorRTC, anchorAbsNS uint64, dayOfYear bool) {
	s.HasSeenTDP = true
	s.AnchorRTC = anchorRTC
	s.AnchorAbsNS = anchorAbsNS
	s.DayOfYearMode = dayOfYear
}

// Reset clears the TDP state, as Ch10Context.Initialize does at the start
// of a worker's run.
func (s *TDPState) Reset() {
	*s = TDPState{}
}

// ToAbsNS anchors an RTC-derived ipts (in nanoseconds, i.e. already
// multiplied by 100 from raw 100ns ticks) to absolute nanoseconds on the
// anchor's origin: anchor_abs_ns + (ipts_ns - anchor_rtc_ns), with the 48-bit RTC
// wraparound handled by computing the delta modulo 2^48 * 100ns.
func (s *TDPState) ToAbsNS(iptsNS uint64) (uint64, error) {
	if !s.HasSeenTDP {
		return 0, ch10err.ErrNeedsAppendPass
	}
	const modNS = rtcModulus * 100
	anchorNS := s.AnchorRTC * 100
	delta := ((iptsNS%modNS - anchorNS%modNS) + modNS) % modNS
	return s.AnchorAbsNS + delta, nil
}
