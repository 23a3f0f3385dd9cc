// Package timef1 implements the Time Data Packet component parser: CSDW,
// then 8 bytes of packed-BCD day-of-year time that seeds (or re-anchors)
// the worker's TDPState.
package timef1

import (
	"github.com/alxayo/ch10parse/internal/ch10/chronos"
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
	"github.com/alxayo/ch10parse/internal/ch10/element"
	"github.com/alxayo/ch10parse/internal/ch10/header"
)

// Parse decodes one Time-F1 packet body and (re-)seeds ctx.TDP. The CSDW is
// read and discarded: this engine assigns it no fields to consume, and the
// date/time-format selector is already fixed to day-of-year BCD (the only
// format Time-F1 bodies use here).
//
// AnchorAbsNS is the nanosecond offset from midnight on day 1 of the
// current year, not a true Unix-epoch timestamp: Time-F1 TDPs carry no
// calendar year, and correlating one in is out of scope, along with drift
// correction across TDPs. Every AbsTime this engine derives is therefore
// anchored consistently to that same origin.
func Parse(ctx *ch10ctx.Ch10Context, cursor *element.Cursor, h *header.PacketHeader) error {
	var csdw element.U32LE
	if err := element.ParseElements(cursor, &csdw); err != nil {
		return err
	}

	anchorNS, err := chronos.ParseIPTS(cursor, 0, chronos.SourceBody, chronos.FormatIRIGDayOfYear)
	if err != nil {
		return err
	}

	rtcTicks := chronos.CombineRTC(h.RTCLow, uint32(h.RTCHigh))
	ctx.TDP.Seed(rtcTicks, anchorNS, true)
	ctx.SetSearchingForTDP(false)
	return nil
}
