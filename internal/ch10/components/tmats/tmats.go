// Package tmats implements the Computer-Generated-Data, Format 1 (TMATS)
// component parser: the worker only captures the packet's CSDW-then-ASCII
// body; the line-family parsing that turns those bytes into channel
// source/type maps (ParseChannelLines, called by the manager through
// metadata.ProcessTMATS) and PCM geometry (ParsePCMBlocks, called by the
// worker after each TMATS packet) lives alongside it here.
package tmats

import (
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
	"github.com/alxayo/ch10parse/internal/ch10/element"
	"github.com/alxayo/ch10parse/internal/ch10/header"
)

// Parse reads the CSDW (discarded: this engine assigns it no fields it
// uses) and accumulates the remaining ASCII payload into ctx's TMATS buffer.
func Parse(ctx *ch10ctx.Ch10Context, cursor *element.Cursor, h *header.PacketHeader) error {
	var csdw element.U32LE
	if err := element.ParseElements(cursor, &csdw); err != nil {
		return err
	}
	raw, err := cursor.Take(cursor.Remaining())
	if err != nil {
		return err
	}
	ctx.RecordTMATSBytes(raw)
	return nil
}
